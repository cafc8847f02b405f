package facts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Source produces the unified diff between two commit references.
type Source interface {
	Diff(ctx context.Context, base, head string) (string, error)
}

// GitSource runs `git diff --unified=0 base..head`. Color and external diff
// drivers are disabled so user git config cannot change the output format.
type GitSource struct {
	// Dir is the working tree to run git in. Empty means the current directory.
	Dir string
	// Binary overrides the git executable. Empty means "git" from PATH.
	Binary string
}

// Diff runs git and returns its output with invalid UTF-8 replaced.
func (g GitSource) Diff(ctx context.Context, base, head string) (string, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}

	// #nosec G204 -- refs are validated by config and passed as one argv element.
	cmd := exec.CommandContext(ctx, bin, "diff", "--no-color", "--no-ext-diff", "--unified=0", base+".."+head)
	cmd.Dir = g.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("git diff %s..%s: %w: %s", base, head, err, msg)
		}
		return "", fmt.Errorf("git diff %s..%s: %w", base, head, err)
	}

	return strings.ToValidUTF8(stdout.String(), "\uFFFD"), nil
}

// StaticSource returns a fixed diff regardless of the refs asked for.
type StaticSource string

// Diff returns the literal text.
func (s StaticSource) Diff(context.Context, string, string) (string, error) {
	return string(s), nil
}

// FileSource reads a pre-generated diff from a file, or from Stdin when Path is "-".
type FileSource struct {
	Path  string
	Stdin io.Reader
}

// Diff reads the whole file.
func (f FileSource) Diff(context.Context, string, string) (string, error) {
	var (
		data []byte
		err  error
	)
	if f.Path == "-" {
		in := f.Stdin
		if in == nil {
			in = os.Stdin
		}
		data, err = io.ReadAll(in)
	} else {
		// #nosec G304 -- path is operator-provided.
		data, err = os.ReadFile(f.Path)
	}
	if err != nil {
		return "", fmt.Errorf("read diff: %w", err)
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}
