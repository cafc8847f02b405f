package commitstatus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostCreatesStatus(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1,"state":"failure"}`))
	}))
	defer srv.Close()

	c, err := New("tok", "acme/api", "admitgate", srv.URL)
	require.NoError(t, err)

	err = c.Post(context.Background(), Status{
		SHA:         "2222222222222222222222222222222222222222",
		State:       StateFailure,
		Description: "decision=DENY",
	})
	require.NoError(t, err)

	assert.Equal(t, "/repos/acme/api/statuses/2222222222222222222222222222222222222222", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "failure", gotBody["state"])
	assert.Equal(t, "admitgate", gotBody["context"])
	assert.Equal(t, "decision=DENY", gotBody["description"])
	_, hasTarget := gotBody["target_url"]
	assert.False(t, hasTarget)
}

func TestPostReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"No commit found for SHA"}`))
	}))
	defer srv.Close()

	c, err := New("tok", "acme/api", "admitgate", srv.URL+"/")
	require.NoError(t, err)

	err = c.Post(context.Background(), Status{SHA: "abc", State: StateSuccess})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create commit status")
}

func TestNewRejectsBadRepository(t *testing.T) {
	for _, repo := range []string{"", "acme", "/api", "acme/", "acme/api/extra"} {
		_, err := New("tok", repo, "admitgate", "")
		assert.Error(t, err, repo)
	}
}

func TestStateFor(t *testing.T) {
	assert.Equal(t, StateSuccess, StateFor("allow"))
	assert.Equal(t, StateFailure, StateFor("denied"))
	assert.Equal(t, StateFailure, StateFor("pin_image"))
	assert.Equal(t, StateFailure, StateFor("pin_authority"))
	assert.Equal(t, StateError, StateFor("transport"))
	assert.Equal(t, StateError, StateFor("config"))
}

func TestTruncateDescription(t *testing.T) {
	long := strings.Repeat("é", 200)
	got := truncate(long, maxDescription)
	assert.Len(t, []rune(got), maxDescription)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, "short", truncate("short", maxDescription))
}
