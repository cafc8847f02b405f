package audit

import (
	"crypto/rand"
	"encoding/hex"
)

// TimestampFormat is the layout used in entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Outcomes recorded for a gate run. Other failures record their failure kind.
const (
	OutcomeAllow  = "allow"
	OutcomeDenied = "denied"
)

// Refs names the commit range a run judged.
type Refs struct {
	Base string `json:"base"`
	Head string `json:"head"`
}

// Pins records the pinned values and what the authority presented.
type Pins struct {
	AuthorityURL        string `json:"authority_url"`
	ExpectedFingerprint string `json:"expected_fingerprint"`
	ObservedFingerprint string `json:"observed_fingerprint"`
	ExpectedImageDigest string `json:"expected_image_digest"`
	ObservedImageDigest string `json:"observed_image_digest"`
}

// Entry is one gate run in the hash-chained JSONL log.
// Every field is a struct or scalar (no maps) so json.Marshal output is
// deterministic and the chain hash is reproducible.
type Entry struct {
	Timestamp string `json:"ts"`
	RunID     string `json:"run_id"`
	Refs      Refs   `json:"refs"`
	Facts     int    `json:"facts"`
	Pins      Pins   `json:"pins"`
	Decision  string `json:"decision"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
	Findings  int    `json:"findings,omitempty"`
	PrevHash  string `json:"prev_hash"`
}

// NewRunID returns "r-" followed by 12 random hex characters.
func NewRunID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "r-000000000000"
	}
	return "r-" + hex.EncodeToString(b)
}
