package gate

import (
	"errors"
	"fmt"
)

// Kind classifies why a run failed. Every kind is fatal.
type Kind string

const (
	KindConfig      Kind = "config"
	KindDiff        Kind = "diff"
	KindIntent      Kind = "intent"
	KindTransport   Kind = "transport"
	KindBadResponse Kind = "bad_response"
	KindPinAuth     Kind = "pin_authority"
	KindPinImage    Kind = "pin_image"
	KindDenied      Kind = "denied"
	KindAudit       Kind = "audit"
)

// Marker is the console token CI log scraping greps for.
func (k Kind) Marker() string {
	switch k {
	case KindConfig:
		return "L5_CONFIG_ERROR"
	case KindDiff:
		return "L5_DIFF_FAILED"
	case KindIntent:
		return "L5_INTENT_INVALID"
	case KindTransport:
		return "L5_CALL_FAILED"
	case KindBadResponse:
		return "L5_BAD_JSON"
	case KindPinAuth:
		return "PIN_FAIL_AUTH"
	case KindPinImage:
		return "PIN_FAIL_IMAGE"
	case KindDenied:
		return "L5_DENY"
	case KindAudit:
		return "L5_AUDIT_FAILED"
	default:
		return "L5_FAILED"
	}
}

// Error is a fatal gate failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Line is the single line printed for this failure.
func (e *Error) Line() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Kind.Marker(), e.Msg, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Kind.Marker(), e.Msg)
}

func fail(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of a gate error, or "" for anything else.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}
