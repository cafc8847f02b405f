package authority

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/admitgate/internal/facts"
)

func TestPublicKeyFingerprint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/pubkey", r.URL.Path)
		_, _ = io.WriteString(w, `{"public_key_sha256":"ABCDEF"}`)
	}))
	defer srv.Close()

	fp, err := New(srv.URL + "//").PublicKeyFingerprint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF", fp)
}

func TestPublicKeyFingerprintBadResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"not json", `<html>`, ErrBadResponse},
		{"wrong type", `{"public_key_sha256":42}`, ErrBadResponse},
		{"missing", `{"key":"x"}`, ErrNoFingerprint},
		{"empty", `{"public_key_sha256":"  "}`, ErrNoFingerprint},
		{"null", `{"public_key_sha256":null}`, ErrNoFingerprint},
	}
	for _, tc := range tests {
		body := tc.body
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()

			_, err := New(srv.URL).PublicKeyFingerprint(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestNon2xxIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "authority sealed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Admit(context.Background(), []byte(`{}`))
	var se *StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, "admit", se.Op)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Equal(t, "authority sealed", se.Body)
}

func TestAdmitPostsJSON(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admit", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		got, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, `{"decision":"ALLOW"}`)
	}))
	defer srv.Close()

	body, err := NewAdmitRequest([]facts.Fact{{File: "a.go", Line: 3, Added: "x"}}).Encode()
	require.NoError(t, err)

	resp, err := New(srv.URL).Admit(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, `{"decision":"ALLOW"}`, string(resp))
	assert.Equal(t, body, got)
}

func TestAdmitTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := New(srv.URL, WithTimeout(100*time.Millisecond)).Admit(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).PublicKeyFingerprint(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).PublicKeyFingerprint(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBadResponse))
}
