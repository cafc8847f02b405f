// Package config resolves the gate's pins and run settings from flags, the
// environment, an optional .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/admitgate/internal/alert"
)

// Environment variables read by Load.
const (
	EnvAuthorityURL = "L5_AUTH_URL"
	EnvPubkeySHA256 = "L5_PUBKEY_SHA256"
	EnvImageDigest  = "L5_PIN_IMAGE_DIGEST"
	EnvBaseRef      = "BASE_SHA"
	EnvHeadRef      = "HEAD_SHA"

	EnvConfigPath   = "ADMITGATE_CONFIG"
	EnvAuditLog     = "ADMITGATE_AUDIT_LOG"
	EnvCommitStatus = "ADMITGATE_COMMIT_STATUS"

	EnvGitHubToken      = "GITHUB_TOKEN"
	EnvGitHubRepository = "GITHUB_REPOSITORY"
	EnvGitHubAPIURL     = "GITHUB_API_URL"
)

const (
	// ZeroRef is the all-zero commit name CI systems send for "no commit".
	ZeroRef = "0000000000000000000000000000000000000000"

	defaultEnvFile       = ".env"
	defaultTimeout       = 25 * time.Second
	defaultStatusContext = "admitgate"
)

// GitHubConfig controls reporting the verdict as a commit status.
type GitHubConfig struct {
	CommitStatus bool `yaml:"commit_status"`
	// Repository is "owner/name".
	Repository string `yaml:"repository"`
	Context    string `yaml:"context"`
	APIURL     string `yaml:"api_url"`
	// Token is only ever read from GITHUB_TOKEN.
	Token string `yaml:"-"`
}

// Config is everything one gate run needs. It is built once and passed down.
type Config struct {
	AuthorityURL string              `yaml:"authority_url"`
	PubkeySHA256 string              `yaml:"pubkey_sha256"`
	ImageDigest  string              `yaml:"image_digest"`
	BaseRef      string              `yaml:"base_ref"`
	HeadRef      string              `yaml:"head_ref"`
	RepoDir      string              `yaml:"repo_dir"`
	Timeout      time.Duration       `yaml:"timeout"`
	AuditLog     string              `yaml:"audit_log"`
	Alerts       []alert.AlertConfig `yaml:"alerts"`
	GitHub       GitHubConfig        `yaml:"github"`
}

// Default returns the built-in settings. Pins have no defaults.
func Default() Config {
	return Config{
		Timeout: defaultTimeout,
		GitHub:  GitHubConfig{Context: defaultStatusContext},
	}
}

// Overrides are command-line values; empty fields leave the loaded value alone.
type Overrides struct {
	AuthorityURL string
	PubkeySHA256 string
	ImageDigest  string
	BaseRef      string
	HeadRef      string
	RepoDir      string
	AuditLog     string
	Timeout      time.Duration
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// ConfigPath is an explicit YAML path. Empty falls back to $ADMITGATE_CONFIG,
	// and no file at all when that is unset too.
	ConfigPath string
	// EnvFile is an explicit .env path. Empty means ./.env when it exists.
	EnvFile string
	// Getenv defaults to os.Getenv.
	Getenv    func(string) string
	Overrides Overrides
}

// Load resolves the configuration with precedence
// flags > environment > .env file > YAML file > defaults,
// then normalizes it. It does not validate; call Validate.
func Load(opts LoadOptions) (Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return Config{}, err
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	path := opts.ConfigPath
	if path == "" {
		path = getenv(EnvConfigPath)
	}

	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = fileCfg
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	cfg.applyOverrides(opts.Overrides)
	return cfg.Normalize(), nil
}

// loadEnvFile exports variables from a .env file without overriding ones
// already set. A missing default file is not an error; a missing explicit one is.
func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("env file %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a YAML config. ${VAR} references are expanded from the
// environment before parsing; unspecified fields keep their defaults.
func LoadFile(path string) (Config, error) {
	// #nosec G304 -- path is operator-provided config path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(strings.ReplaceAll(string(raw), "\r\n", "\n"))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.AuthorityURL, EnvAuthorityURL)
	set(&c.PubkeySHA256, EnvPubkeySHA256)
	set(&c.ImageDigest, EnvImageDigest)
	set(&c.BaseRef, EnvBaseRef)
	set(&c.HeadRef, EnvHeadRef)
	set(&c.AuditLog, EnvAuditLog)
	set(&c.GitHub.Repository, EnvGitHubRepository)
	set(&c.GitHub.APIURL, EnvGitHubAPIURL)
	set(&c.GitHub.Token, EnvGitHubToken)

	if v := getenv(EnvCommitStatus); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCommitStatus, err)
		}
		c.GitHub.CommitStatus = on
	}
	return nil
}

func (c *Config) applyOverrides(o Overrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.AuthorityURL, o.AuthorityURL)
	set(&c.PubkeySHA256, o.PubkeySHA256)
	set(&c.ImageDigest, o.ImageDigest)
	set(&c.BaseRef, o.BaseRef)
	set(&c.HeadRef, o.HeadRef)
	set(&c.RepoDir, o.RepoDir)
	set(&c.AuditLog, o.AuditLog)
	if o.Timeout > 0 {
		c.Timeout = o.Timeout
	}
}

// Normalize trims every pin, strips trailing slashes from the authority URL
// and lowercases the key fingerprint. The image digest keeps its case.
func (c Config) Normalize() Config {
	c.AuthorityURL = strings.TrimRight(strings.TrimSpace(c.AuthorityURL), "/")
	c.PubkeySHA256 = strings.ToLower(strings.TrimSpace(c.PubkeySHA256))
	c.ImageDigest = strings.TrimSpace(c.ImageDigest)
	c.BaseRef = strings.TrimSpace(c.BaseRef)
	c.HeadRef = strings.TrimSpace(c.HeadRef)
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.GitHub.Context == "" {
		c.GitHub.Context = defaultStatusContext
	}
	return c
}

// Validate checks every setting the gate needs before any I/O happens.
func (c Config) Validate() error {
	if err := c.ValidatePins(); err != nil {
		return err
	}
	return c.ValidateRefs()
}

// ValidatePins checks the authority URL and both pins.
func (c Config) ValidatePins() error {
	if c.AuthorityURL == "" {
		return fmt.Errorf("authority URL is required (%s)", EnvAuthorityURL)
	}
	if u, err := url.Parse(c.AuthorityURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("authority URL %q must be an absolute http(s) URL", c.AuthorityURL)
	}
	if c.PubkeySHA256 == "" {
		return fmt.Errorf("pinned authority key fingerprint is required (%s)", EnvPubkeySHA256)
	}
	if c.ImageDigest == "" {
		return fmt.Errorf("pinned image digest is required (%s)", EnvImageDigest)
	}
	return nil
}

// ValidateRefs checks the commit references alone.
func (c Config) ValidateRefs() error {
	if err := validateRef("base", EnvBaseRef, c.BaseRef); err != nil {
		return err
	}
	return validateRef("head", EnvHeadRef, c.HeadRef)
}

func validateRef(name, env, ref string) error {
	switch {
	case ref == "":
		return fmt.Errorf("%s commit reference is required (%s)", name, env)
	case ref == ZeroRef:
		return fmt.Errorf("%s commit reference is the all-zero sentinel", name)
	case strings.HasPrefix(ref, "-"):
		return fmt.Errorf("%s commit reference %q looks like an option", name, ref)
	case strings.Contains(ref, ".."):
		return fmt.Errorf("%s commit reference %q must be a single revision", name, ref)
	}
	return nil
}

// CommitStatusEnabled reports whether verdicts should be posted to GitHub.
func (c Config) CommitStatusEnabled() bool {
	return c.GitHub.CommitStatus && c.GitHub.Token != "" && c.GitHub.Repository != ""
}
