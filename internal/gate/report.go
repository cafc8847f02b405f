package gate

import (
	"fmt"
	"io"
	"unicode/utf8"
)

// MaxEchoChars bounds how much of the admit response is echoed to the log.
const MaxEchoChars = 4000

// Console markers printed on the way to a verdict.
const (
	MarkerFacts         = "L5_FACTS"
	MarkerPinOKAuth     = "L5_PIN_OK_AUTH"
	MarkerResponseBegin = "L5_RESPONSE_BEGIN"
	MarkerResponseEnd   = "L5_RESPONSE_END"
	MarkerPinOKImage    = "L5_PIN_OK_IMAGE"
	MarkerDecision      = "DECISION"
	MarkerFindingsCount = "FINDINGS_COUNT"
	MarkerFindingsJSON  = "FINDINGS_SAMPLE"
	MarkerAllowOK       = "L5_ALLOW_OK"
)

// reporter writes marker lines. Write errors are ignored: the verdict does
// not depend on the log being readable.
type reporter struct {
	w io.Writer
}

func (r reporter) line(format string, args ...any) {
	if r.w == nil {
		return
	}
	_, _ = fmt.Fprintf(r.w, format+"\n", args...)
}

// echoBody prints at most MaxEchoChars characters of body between markers.
func (r reporter) echoBody(body []byte) {
	n := utf8.RuneCount(body)
	r.line("%s chars=%d shown=%d", MarkerResponseBegin, n, min(n, MaxEchoChars))
	r.line("%s", truncateChars(string(body), MaxEchoChars))
	r.line("%s", MarkerResponseEnd)
}

func truncateChars(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
