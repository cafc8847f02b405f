package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/admitgate/internal/alert"
	"github.com/ppiankov/admitgate/internal/audit"
	"github.com/ppiankov/admitgate/internal/config"
	"github.com/ppiankov/admitgate/internal/gate"
	"github.com/ppiankov/admitgate/internal/redact"
)

// record is one finished run, shaped once and rendered for each sink. The
// reason and authority URL are scrubbed of credentials since every sink
// outlives the job log.
type record struct {
	timestamp string
	runID     string
	cfg       config.Config
	verdict   gate.Verdict
	outcome   string
	reason    string
	authority string
}

func newRecord(runID string, cfg config.Config, v gate.Verdict, err error) record {
	r := record{
		timestamp: time.Now().UTC().Format(audit.TimestampFormat),
		runID:     runID,
		cfg:       cfg,
		verdict:   v,
		outcome:   audit.OutcomeAllow,
		authority: redact.URL(cfg.AuthorityURL),
	}
	if err == nil {
		return r
	}

	var ge *gate.Error
	if errors.As(err, &ge) {
		r.outcome = string(ge.Kind)
		r.reason = ge.Msg
		if ge.Err != nil {
			r.reason = fmt.Sprintf("%s: %v", ge.Msg, ge.Err)
		}
	} else {
		r.outcome = "error"
		r.reason = err.Error()
	}
	r.reason = redact.Secrets(r.reason)
	return r
}

func (r record) auditEntry() audit.Entry {
	return audit.Entry{
		Timestamp: r.timestamp,
		RunID:     r.runID,
		Refs:      audit.Refs{Base: r.verdict.Base, Head: r.verdict.Head},
		Facts:     r.verdict.Facts,
		Pins: audit.Pins{
			AuthorityURL:        r.authority,
			ExpectedFingerprint: r.cfg.PubkeySHA256,
			ObservedFingerprint: r.verdict.AuthorityFingerprint,
			ExpectedImageDigest: r.cfg.ImageDigest,
			ObservedImageDigest: r.verdict.ImageDigest,
		},
		Decision: r.verdict.Decision,
		Outcome:  r.outcome,
		Reason:   r.reason,
		Findings: r.verdict.Findings,
	}
}

func (r record) alertEvent() alert.AlertEvent {
	return alert.AlertEvent{
		Timestamp:   r.timestamp,
		RunID:       r.runID,
		Repository:  r.cfg.GitHub.Repository,
		Base:        r.verdict.Base,
		Head:        r.verdict.Head,
		Outcome:     r.outcome,
		Decision:    r.verdict.Decision,
		Reason:      r.reason,
		ImageDigest: r.verdict.ImageDigest,
		Authority:   r.authority,
	}
}

func (r record) description() string {
	switch {
	case r.outcome == audit.OutcomeAllow:
		return fmt.Sprintf("ALLOW for %d facts", r.verdict.Facts)
	case r.reason != "":
		return r.outcome + ": " + r.reason
	default:
		return r.outcome
	}
}
