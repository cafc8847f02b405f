// Package commitstatus reports gate verdicts on the head commit through the
// GitHub statuses API.
package commitstatus

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Commit status states accepted by GitHub.
const (
	StateSuccess = "success"
	StateFailure = "failure"
	StateError   = "error"
)

// GitHub rejects descriptions longer than this.
const maxDescription = 140

// Status is what gets posted for one run.
type Status struct {
	SHA         string
	State       string
	Description string
	TargetURL   string
}

// Client posts commit statuses to one repository.
type Client struct {
	gh      *github.Client
	owner   string
	repo    string
	context string
}

// New builds a client for repository "owner/name". An empty apiURL means
// api.github.com.
func New(token, repository, statusContext, apiURL string) (*Client, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("invalid repository %q, expected owner/name", repository)
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)
	gh := github.NewClient(tc)

	if apiURL != "" {
		base, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
		}
		gh.BaseURL = base
	}

	return &Client{gh: gh, owner: owner, repo: repo, context: statusContext}, nil
}

// Post creates the status on s.SHA.
func (c *Client) Post(ctx context.Context, s Status) error {
	status := &github.RepoStatus{
		State:       github.String(s.State),
		Description: github.String(truncate(s.Description, maxDescription)),
		Context:     github.String(c.context),
	}
	if s.TargetURL != "" {
		status.TargetURL = github.String(s.TargetURL)
	}

	if _, _, err := c.gh.Repositories.CreateStatus(ctx, c.owner, c.repo, s.SHA, status); err != nil {
		return fmt.Errorf("failed to create commit status: %w", err)
	}
	return nil
}

// StateFor maps a run outcome to a status state. Denials and pin failures
// are failures; anything that kept the gate from deciding is an error.
func StateFor(outcome string) string {
	switch {
	case outcome == "allow":
		return StateSuccess
	case outcome == "denied", strings.HasPrefix(outcome, "pin_"):
		return StateFailure
	default:
		return StateError
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
