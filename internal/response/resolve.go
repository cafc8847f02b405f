package response

import "strings"

// Envelope names a record member the authority may nest signed fields under.
// The empty Envelope is the top level of the response.
type Envelope string

const (
	TopLevel      Envelope = ""
	SignedPayload Envelope = "signed_payload"
	SignedRecord  Envelope = "signed_record"
)

// Response field names.
const (
	FieldDecision    = "decision"
	FieldImageDigest = "image_digest"
	FieldAuthorityFP = "authority_pubkey_sha256"
	FieldFindings    = "findings"
)

// Lookup orders.
var (
	// DigestOrder prefers the most specific signed envelope carrying the field.
	DigestOrder = []Envelope{SignedRecord, SignedPayload, TopLevel}
	// DecisionOrder prefers the top-level field and falls back inward.
	DecisionOrder = []Envelope{TopLevel, SignedPayload, SignedRecord}
)

// record returns the envelope's record and whether it exists as a record.
func (e Envelope) record(root Value) (Value, bool) {
	if e == TopLevel {
		return root, root.Kind() == Record
	}
	r := root.Field(string(e))
	return r, r.Kind() == Record
}

// ByEnvelope returns field from the first envelope in order that is a
// record carrying field as a string. Envelopes that are missing, not records,
// or lack a string field are skipped. The second result names the envelope
// used; ok is false when none carries the field.
func ByEnvelope(root Value, order []Envelope, field string) (value string, from Envelope, ok bool) {
	for _, e := range order {
		rec, present := e.record(root)
		if !present {
			continue
		}
		if s, isStr := rec.Field(field).Str(); isStr {
			return s, e, true
		}
	}
	return "", TopLevel, false
}

// FirstNonEmpty returns the first string value of field, in order, that is
// non-empty after trimming whitespace. The result is trimmed.
func FirstNonEmpty(root Value, order []Envelope, field string) (value string, from Envelope, ok bool) {
	for _, e := range order {
		rec, present := e.record(root)
		if !present {
			continue
		}
		s, isStr := rec.Field(field).Str()
		if !isStr {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s, e, true
		}
	}
	return "", TopLevel, false
}

// ImageDigest resolves the image digest the authority attributes its decision to.
func ImageDigest(root Value) string {
	s, _, _ := ByEnvelope(root, DigestOrder, FieldImageDigest)
	return s
}

// AuthorityFingerprint resolves an optional authority key fingerprint carried
// in the response itself. ok is false when no envelope carries one.
func AuthorityFingerprint(root Value) (string, bool) {
	s, _, ok := ByEnvelope(root, DigestOrder, FieldAuthorityFP)
	return s, ok
}

// Decision resolves the authority's decision string, trimmed.
func Decision(root Value) string {
	s, _, _ := FirstNonEmpty(root, DecisionOrder, FieldDecision)
	return s
}

// Findings returns signed_payload.findings when it is a list.
func Findings(root Value) ([]Value, bool) {
	return root.Field(string(SignedPayload)).Field(FieldFindings).Items()
}
