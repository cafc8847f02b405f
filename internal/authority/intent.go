package authority

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ppiankov/admitgate/internal/facts"
)

// ActionGitCommitDiff is the only intent type the gate submits.
const ActionGitCommitDiff = "GIT_COMMIT_DIFF"

// Intent describes the change the authority is asked to admit.
type Intent struct {
	ActionType string  `json:"action_type"`
	Payload    Payload `json:"payload"`
}

// Payload carries the added-line facts of the change.
type Payload struct {
	DiffFacts []facts.Fact `json:"diff_facts"`
}

// AdmitRequest is the body of POST /admit.
type AdmitRequest struct {
	Intent Intent `json:"intent"`
}

// NewAdmitRequest wraps facts in a GIT_COMMIT_DIFF intent. A nil slice is
// sent as an empty list, never null.
func NewAdmitRequest(diffFacts []facts.Fact) AdmitRequest {
	if diffFacts == nil {
		diffFacts = []facts.Fact{}
	}
	return AdmitRequest{Intent: Intent{
		ActionType: ActionGitCommitDiff,
		Payload:    Payload{DiffFacts: diffFacts},
	}}
}

// Encode returns compact JSON with fields in declaration order. Added lines
// are sent verbatim, so HTML escaping is disabled.
func (r AdmitRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode intent: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
