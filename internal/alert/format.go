package alert

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event AlertEvent) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return formatGeneric(event)
	}
}

func formatGeneric(event AlertEvent) ([]byte, error) {
	return json.Marshal(event)
}

func formatSlack(event AlertEvent) ([]byte, error) {
	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("admitgate: %s", headline(event)),
				},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Range:* %s..%s", short(event.Base), short(event.Head))},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Decision:* %s", orDash(event.Decision))},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Run:* %s", event.RunID)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:* %s", orDash(event.Reason))},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event AlertEvent) ([]byte, error) {
	severity := "info"
	switch event.Outcome {
	case "allow":
	case "denied":
		severity = "warning"
	case "pin_authority", "pin_image":
		severity = "critical"
	default:
		severity = "error"
	}

	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("admitgate %s: %s..%s", headline(event), short(event.Base), short(event.Head)),
			"severity": severity,
			"source":   "admitgate",
			"custom_details": map[string]any{
				"run_id":       event.RunID,
				"repository":   event.Repository,
				"decision":     event.Decision,
				"reason":       event.Reason,
				"image_digest": event.ImageDigest,
				"authority":    event.Authority,
			},
		},
	}
	return json.Marshal(payload)
}

func headline(event AlertEvent) string {
	if event.Repository != "" {
		return event.Outcome + " in " + event.Repository
	}
	return event.Outcome
}

func short(ref string) string {
	if len(ref) > 7 {
		return ref[:7]
	}
	return ref
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
