// Package config loads service settings from an optional .env file, an
// optional YAML file and CREWHUB_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CREWHUB_"

type Config struct {
	HTTPAddr    string        `yaml:"http_addr"`
	GRPCAddr    string        `yaml:"grpc_addr"`
	DatabaseDSN string        `yaml:"database_dsn"`
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	AdminOverride      bool          `yaml:"admin_override"`
	UnpublishOnDisable bool          `yaml:"unpublish_on_disable"`
	EffectTimeout      time.Duration `yaml:"effect_timeout"`

	// AvatarHosts lists the hosts avatar references may point at. Empty
	// means avatar references are refused.
	AvatarHosts []string `yaml:"avatar_hosts"`

	Repo RepoConfig `yaml:"content_repo"`
	SMTP SMTPConfig `yaml:"smtp"`
	Site SiteConfig `yaml:"site"`
}

type RepoConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Owner             string        `yaml:"owner"`
	Name              string        `yaml:"name"`
	Branch            string        `yaml:"branch"`
	Token             string        `yaml:"token"`
	CommitterName     string        `yaml:"committer_name"`
	CommitterEmail    string        `yaml:"committer_email"`
	ManifestPath      string        `yaml:"manifest_path"`
	AvatarDir         string        `yaml:"avatar_dir"`
	EventType         string        `yaml:"event_type"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type SiteConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		HTTPAddr:           ":8080",
		GRPCAddr:           ":9090",
		TokenTTL:           12 * time.Hour,
		RateLimitRPS:       20,
		RateLimitBurst:     40,
		UnpublishOnDisable: true,
		EffectTimeout:      30 * time.Second,
		Repo: RepoConfig{
			BaseURL:           "https://api.github.com",
			Branch:            "main",
			CommitterName:     "crewhub",
			CommitterEmail:    "crewhub@users.noreply.github.com",
			ManifestPath:      "data/employees.json",
			AvatarDir:         "public/avatars",
			EventType:         "employee-updated",
			RequestTimeout:    15 * time.Second,
			RequestsPerSecond: 5,
		},
		SMTP: SMTPConfig{Port: 587},
		Site: SiteConfig{Name: "crewhub"},
	}
}

// Load reads configuration. path is an optional YAML file; when empty,
// CREWHUB_CONFIG is consulted. A missing .env file is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	cfg := Default()
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", envPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(envPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", envPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(envPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(envPrefix + key); ok {
			var out []string
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					out = append(out, item)
				}
			}
			*dst = out
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(envPrefix + key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", envPrefix, key, err))
				return
			}
			*dst = f
		}
	}

	str("HTTP_ADDR", &c.HTTPAddr)
	str("GRPC_ADDR", &c.GRPCAddr)
	str("PG_DSN", &c.DatabaseDSN)
	str("JWT_SECRET", &c.JWTSecret)
	dur("TOKEN_TTL", &c.TokenTTL)
	float("RATE_LIMIT_RPS", &c.RateLimitRPS)
	integer("RATE_LIMIT_BURST", &c.RateLimitBurst)
	boolean("ADMIN_OVERRIDE", &c.AdminOverride)
	boolean("UNPUBLISH_ON_DISABLE", &c.UnpublishOnDisable)
	dur("EFFECT_TIMEOUT", &c.EffectTimeout)
	list("AVATAR_HOSTS", &c.AvatarHosts)

	str("REPO_BASE_URL", &c.Repo.BaseURL)
	str("REPO_OWNER", &c.Repo.Owner)
	str("REPO_NAME", &c.Repo.Name)
	str("REPO_BRANCH", &c.Repo.Branch)
	str("REPO_TOKEN", &c.Repo.Token)
	str("REPO_COMMITTER_NAME", &c.Repo.CommitterName)
	str("REPO_COMMITTER_EMAIL", &c.Repo.CommitterEmail)
	str("REPO_MANIFEST_PATH", &c.Repo.ManifestPath)
	str("REPO_AVATAR_DIR", &c.Repo.AvatarDir)
	str("REPO_EVENT_TYPE", &c.Repo.EventType)
	dur("REPO_REQUEST_TIMEOUT", &c.Repo.RequestTimeout)
	float("REPO_RPS", &c.Repo.RequestsPerSecond)

	str("SMTP_HOST", &c.SMTP.Host)
	integer("SMTP_PORT", &c.SMTP.Port)
	str("SMTP_USERNAME", &c.SMTP.Username)
	str("SMTP_PASSWORD", &c.SMTP.Password)
	str("SMTP_FROM", &c.SMTP.From)

	str("SITE_NAME", &c.Site.Name)
	str("SITE_URL", &c.Site.BaseURL)

	return errors.Join(errs...)
}

// Validate checks the settings the API server cannot start without. The
// content repository may stay unconfigured; publishing is then skipped.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if len(strings.TrimSpace(c.JWTSecret)) < 32 {
		errs = append(errs, errors.New("jwt_secret must be at least 32 characters"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if c.EffectTimeout <= 0 {
		errs = append(errs, errors.New("effect_timeout must be positive"))
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		errs = append(errs, errors.New("smtp.from is required when smtp.host is set"))
	}
	if c.SMTP.Port < 0 || c.SMTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("smtp.port %d out of range", c.SMTP.Port))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(errs...))
}

// RepoConfigured reports whether owner, repository and token are all set.
func (c Config) RepoConfigured() bool {
	return c.Repo.Owner != "" && c.Repo.Name != "" && c.Repo.Token != ""
}
