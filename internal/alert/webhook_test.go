package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func init() {
	retryDelay = 10 * time.Millisecond
}

func countingServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &called
}

func deniedEvent() AlertEvent {
	return AlertEvent{
		Timestamp: "2026-03-01T09:05:00.000Z",
		RunID:     "r-0123456789ab",
		Base:      "1111111111111111111111111111111111111111",
		Head:      "2222222222222222222222222222222222222222",
		Outcome:   "denied",
		Decision:  "DENY",
		Reason:    "decision=DENY",
		Authority: "https://authority.example",
	}
}

func TestDispatchMatchesEvents(t *testing.T) {
	srv, called := countingServer(t, http.StatusOK)

	d := NewDispatcher([]AlertConfig{
		{URL: srv.URL, Format: "generic", Events: []string{"denied"}},
	})

	if err := d.Dispatch(context.Background(), deniedEvent()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if called.Load() != 1 {
		t.Errorf("expected 1 call, got %d", called.Load())
	}
}

func TestDispatchSkipsNonMatching(t *testing.T) {
	srv, called := countingServer(t, http.StatusOK)

	d := NewDispatcher([]AlertConfig{
		{URL: srv.URL, Format: "generic", Events: []string{"denied"}},
	})

	event := deniedEvent()
	event.Outcome = "allow"
	event.Decision = "ALLOW"
	if err := d.Dispatch(context.Background(), event); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if called.Load() != 0 {
		t.Errorf("expected 0 calls for non-matching event, got %d", called.Load())
	}
}

func TestDispatchMultipleWebhooks(t *testing.T) {
	srv1, called1 := countingServer(t, http.StatusOK)
	srv2, called2 := countingServer(t, http.StatusOK)

	d := NewDispatcher([]AlertConfig{
		{URL: srv1.URL, Format: "generic", Events: []string{"denied"}},
		{URL: srv2.URL, Format: "slack", Events: []string{"pin_image", "denied"}},
	})

	if err := d.Dispatch(context.Background(), deniedEvent()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if called1.Load()+called2.Load() != 2 {
		t.Errorf("expected 2 calls (both webhooks match), got %d", called1.Load()+called2.Load())
	}
}

func TestDispatchFailWildcard(t *testing.T) {
	srv, called := countingServer(t, http.StatusOK)

	d := NewDispatcher([]AlertConfig{
		{URL: srv.URL, Format: "generic", Events: []string{"fail"}},
	})

	event := deniedEvent()
	event.Outcome = "pin_authority"
	_ = d.Dispatch(context.Background(), event)

	event.Outcome = "allow"
	_ = d.Dispatch(context.Background(), event)

	if called.Load() != 1 {
		t.Errorf("expected only the failed run to alert, got %d calls", called.Load())
	}
}

func TestDispatchStarMatchesAllow(t *testing.T) {
	srv, called := countingServer(t, http.StatusOK)

	d := NewDispatcher([]AlertConfig{
		{URL: srv.URL, Format: "generic", Events: []string{"*"}},
	})

	event := deniedEvent()
	event.Outcome = "allow"
	_ = d.Dispatch(context.Background(), event)

	if called.Load() != 1 {
		t.Errorf("expected 1 call, got %d", called.Load())
	}
}

func TestDispatchJoinsErrors(t *testing.T) {
	ok, _ := countingServer(t, http.StatusOK)
	bad, _ := countingServer(t, http.StatusForbidden)

	d := NewDispatcher([]AlertConfig{
		{URL: ok.URL, Events: []string{"denied"}},
		{URL: bad.URL, Events: []string{"denied"}},
	})

	err := d.Dispatch(context.Background(), deniedEvent())
	if err == nil {
		t.Fatal("expected error from rejecting webhook")
	}
	if !strings.Contains(err.Error(), bad.URL) || strings.Contains(err.Error(), ok.URL) {
		t.Errorf("expected error to name only the failing webhook, got %v", err)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := Send(context.Background(), AlertConfig{URL: srv.URL, Format: "generic"}, deniedEvent())
	if err != nil {
		t.Errorf("expected success after retries, got: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	srv, attempts := countingServer(t, http.StatusBadRequest)

	err := Send(context.Background(), AlertConfig{URL: srv.URL, Format: "generic"}, deniedEvent())
	if err == nil {
		t.Error("expected error on 400, got nil")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt (no retry on 4xx), got %d", attempts.Load())
	}
}

func TestSendStopsOnCanceledContext(t *testing.T) {
	srv, attempts := countingServer(t, http.StatusBadGateway)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Send(ctx, AlertConfig{URL: srv.URL}, deniedEvent()); err == nil {
		t.Fatal("expected error for canceled context")
	}
	if attempts.Load() != 0 {
		t.Errorf("expected no request after cancel, got %d", attempts.Load())
	}
}

func TestSendHeaders(t *testing.T) {
	var gotAuth, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := AlertConfig{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer hook"}}
	if err := Send(context.Background(), cfg, deniedEvent()); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer hook" || gotType != "application/json" {
		t.Errorf("unexpected headers auth=%q type=%q", gotAuth, gotType)
	}
}

func TestFormatGenericJSON(t *testing.T) {
	data, err := FormatPayload("generic", deniedEvent())
	if err != nil {
		t.Fatal(err)
	}

	var parsed AlertEvent
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("generic format is not valid JSON: %v", err)
	}
	if parsed.RunID != "r-0123456789ab" {
		t.Errorf("expected run_id r-0123456789ab, got %s", parsed.RunID)
	}
	if parsed.Outcome != "denied" || parsed.Decision != "DENY" {
		t.Errorf("unexpected outcome/decision %s/%s", parsed.Outcome, parsed.Decision)
	}
}

func TestFormatSlackBlockKit(t *testing.T) {
	event := deniedEvent()
	event.Repository = "acme/api"

	data, err := FormatPayload("slack", event)
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("slack format is not valid JSON: %v", err)
	}

	blocks, ok := parsed["blocks"].([]any)
	if !ok || len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %v", parsed["blocks"])
	}

	header, _ := blocks[0].(map[string]any)
	text, _ := header["text"].(map[string]any)
	if text["text"] != "admitgate: denied in acme/api" {
		t.Errorf("unexpected header text %v", text["text"])
	}

	section, _ := blocks[1].(map[string]any)
	fields, ok := section["fields"].([]any)
	if !ok || len(fields) != 4 {
		t.Fatalf("expected 4 fields in section, got %v", fields)
	}
	first, _ := fields[0].(map[string]any)
	if first["text"] != "*Range:* 1111111..2222222" {
		t.Errorf("unexpected range field %v", first["text"])
	}
}

func TestFormatPagerDutySeverity(t *testing.T) {
	cases := map[string]string{
		"allow":         "info",
		"denied":        "warning",
		"pin_image":     "critical",
		"pin_authority": "critical",
		"transport":     "error",
	}
	for outcome, want := range cases {
		event := deniedEvent()
		event.Outcome = outcome

		data, err := FormatPayload("pagerduty", event)
		if err != nil {
			t.Fatal(err)
		}

		var parsed map[string]any
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("pagerduty format is not valid JSON: %v", err)
		}
		if parsed["event_action"] != "trigger" {
			t.Errorf("expected event_action trigger, got %v", parsed["event_action"])
		}
		payload, ok := parsed["payload"].(map[string]any)
		if !ok {
			t.Fatal("expected payload object")
		}
		if payload["severity"] != want {
			t.Errorf("%s: expected severity %s, got %v", outcome, want, payload["severity"])
		}
		if payload["source"] != "admitgate" {
			t.Errorf("expected source admitgate, got %v", payload["source"])
		}
	}
}

func TestNewDispatcherNilOnEmpty(t *testing.T) {
	if d := NewDispatcher(nil); d != nil {
		t.Error("expected nil dispatcher for empty configs")
	}
	if d := NewDispatcher([]AlertConfig{}); d != nil {
		t.Error("expected nil dispatcher for zero-length configs")
	}
}
