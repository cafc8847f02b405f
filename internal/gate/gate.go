// Package gate runs the admission protocol: pin the authority key, submit
// the diff facts, pin the image digest the authority answers for, and
// require an explicit ALLOW. Every failure is fatal; nothing is retried.
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/ppiankov/admitgate/internal/authority"
	"github.com/ppiankov/admitgate/internal/config"
	"github.com/ppiankov/admitgate/internal/facts"
	"github.com/ppiankov/admitgate/internal/response"
)

// DecisionAllow is the only decision that passes the gate.
const DecisionAllow = "ALLOW"

const maxFindingSamples = 5

// Authority is the remote decision-maker.
type Authority interface {
	PublicKeyFingerprint(ctx context.Context) (string, error)
	Admit(ctx context.Context, body []byte) ([]byte, error)
}

// Verdict records how far a run got. It is filled in as stages complete, so
// a failed run still says what was observed.
type Verdict struct {
	Base                 string `json:"base"`
	Head                 string `json:"head"`
	Facts                int    `json:"facts"`
	AuthorityFingerprint string `json:"authority_fingerprint,omitempty"`
	ImageDigest          string `json:"image_digest,omitempty"`
	Decision             string `json:"decision,omitempty"`
	Findings             int    `json:"findings,omitempty"`
	Allowed              bool   `json:"allowed"`
}

// Gate holds the collaborators for one run.
type Gate struct {
	cfg       config.Config
	authority Authority
	source    facts.Source
	out       reporter
}

// New builds a Gate. cfg should already be normalized by config.Load.
func New(cfg config.Config, auth Authority, src facts.Source, out io.Writer) *Gate {
	return &Gate{cfg: cfg, authority: auth, source: src, out: reporter{w: out}}
}

// Run validates the configuration, extracts facts from the diff between the
// configured refs and submits them. Configuration problems are reported
// before any diff or network call.
func (g *Gate) Run(ctx context.Context) (Verdict, error) {
	if err := g.cfg.Validate(); err != nil {
		return g.verdict(), fail(KindConfig, err, "invalid configuration")
	}

	diff, err := g.source.Diff(ctx, g.cfg.BaseRef, g.cfg.HeadRef)
	if err != nil {
		return g.verdict(), fail(KindDiff, err, "diff %s..%s", g.cfg.BaseRef, g.cfg.HeadRef)
	}

	return g.Admit(ctx, facts.Extract(diff))
}

// Admit runs the pinned admission protocol for already extracted facts.
func (g *Gate) Admit(ctx context.Context, diffFacts []facts.Fact) (Verdict, error) {
	v := g.verdict()
	if err := g.cfg.ValidatePins(); err != nil {
		return v, fail(KindConfig, err, "invalid configuration")
	}

	v.Facts = len(diffFacts)
	g.out.line("%s=%d", MarkerFacts, len(diffFacts))

	body, err := authority.NewAdmitRequest(diffFacts).Encode()
	if err != nil {
		return v, fail(KindIntent, err, "encode intent")
	}
	if err := authority.Validate(body); err != nil {
		return v, fail(KindIntent, err, "intent rejected before submission")
	}

	if err := g.pinAuthority(ctx, &v); err != nil {
		return v, err
	}

	raw, err := g.authority.Admit(ctx, body)
	if err != nil {
		return v, fail(KindTransport, err, "admit call failed")
	}

	g.out.echoBody(raw)

	resp, err := response.Parse(raw)
	if err != nil {
		return v, fail(KindBadResponse, err, "admit response is not JSON")
	}

	if fp, ok := response.AuthorityFingerprint(resp); ok {
		if got := normalizeFingerprint(fp); got != g.cfg.PubkeySHA256 {
			return v, fail(KindPinAuth, nil, "admit response attributed to key observed=%s expected=%s", got, g.cfg.PubkeySHA256)
		}
	}

	v.ImageDigest = response.ImageDigest(resp)
	if v.ImageDigest != g.cfg.ImageDigest {
		return v, fail(KindPinImage, nil, "observed=%s expected=%s", v.ImageDigest, g.cfg.ImageDigest)
	}
	g.out.line("%s image_digest=%s", MarkerPinOKImage, v.ImageDigest)

	v.Decision = response.Decision(resp)
	g.out.line("%s=%s", MarkerDecision, v.Decision)

	if v.Decision != DecisionAllow {
		g.reportFindings(resp, &v)
		decision := v.Decision
		if decision == "" {
			decision = "<none>"
		}
		return v, fail(KindDenied, nil, "decision=%s", decision)
	}

	v.Allowed = true
	g.out.line("%s", MarkerAllowOK)
	return v, nil
}

func (g *Gate) verdict() Verdict {
	return Verdict{Base: g.cfg.BaseRef, Head: g.cfg.HeadRef}
}

// pinAuthority fetches the live key fingerprint and refuses to continue
// unless it matches the pin.
func (g *Gate) pinAuthority(ctx context.Context, v *Verdict) error {
	fp, err := g.authority.PublicKeyFingerprint(ctx)
	switch {
	case errors.Is(err, authority.ErrNoFingerprint):
		return fail(KindPinAuth, err, "observed=<none> expected=%s", g.cfg.PubkeySHA256)
	case errors.Is(err, authority.ErrBadResponse):
		return fail(KindBadResponse, err, "pubkey response")
	case err != nil:
		return fail(KindTransport, err, "pubkey call failed")
	}

	v.AuthorityFingerprint = normalizeFingerprint(fp)
	if v.AuthorityFingerprint != g.cfg.PubkeySHA256 {
		return fail(KindPinAuth, nil, "observed=%s expected=%s", v.AuthorityFingerprint, g.cfg.PubkeySHA256)
	}
	g.out.line("%s public_key_sha256=%s", MarkerPinOKAuth, v.AuthorityFingerprint)
	return nil
}

func (g *Gate) reportFindings(resp response.Value, v *Verdict) {
	items, ok := response.Findings(resp)
	if !ok {
		return
	}
	v.Findings = len(items)
	g.out.line("%s=%d", MarkerFindingsCount, len(items))

	sample := items[:min(len(items), maxFindingSamples)]
	data, err := json.Marshal(sample)
	if err != nil {
		return
	}
	g.out.line("%s=%s", MarkerFindingsJSON, data)
}

func normalizeFingerprint(fp string) string {
	return strings.ToLower(strings.TrimSpace(fp))
}
