package alert

// AlertConfig defines a webhook alert destination.
type AlertConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // outcomes, plus "fail" and "*"
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// AlertEvent is the payload sent to webhook endpoints for one gate run.
type AlertEvent struct {
	Timestamp   string `json:"timestamp"`
	RunID       string `json:"run_id"`
	Repository  string `json:"repository,omitempty"`
	Base        string `json:"base"`
	Head        string `json:"head"`
	Outcome     string `json:"outcome"`
	Decision    string `json:"decision"`
	Reason      string `json:"reason,omitempty"`
	ImageDigest string `json:"image_digest,omitempty"`
	Authority   string `json:"authority"`
}

// Failed reports whether the run did not end in an allow.
func (e AlertEvent) Failed() bool {
	return e.Outcome != "allow"
}
