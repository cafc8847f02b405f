package redact

import (
	"net/url"
	"regexp"
)

var userinfoRe = regexp.MustCompile(`//[^/\s@]+@`)

// URL masks raw's userinfo and any credential-looking query values.
// Unparseable input has anything between "//" and "@" masked.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return Secrets(userinfoRe.ReplaceAllString(raw, "//"+Mask+"@"))
	}
	return Secrets(u.Redacted())
}
