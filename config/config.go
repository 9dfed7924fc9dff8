// Package config resolves server and client settings from defaults, the
// environment and an optional YAML file, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	auth "github.com/goliatone/go-booking-auth"
	"github.com/goliatone/go-booking-auth/session"
)

// DefaultSecret signs tokens when nothing else is configured. Running with it
// is allowed and reported by Warnings.
const DefaultSecret = "booking-demo-signing-secret-change-me"

// MinSecretLength is the shortest secret that does not trigger a warning.
const MinSecretLength = 32

var envPrefixes = []string{"JWT_", "APP_", "SESSION_"}

// JWT holds token settings.
type JWT struct {
	Secret               string   `koanf:"secret"`
	ExpiryMinutes        int      `koanf:"expiry_minutes"`
	ExpiryPaddingMinutes int      `koanf:"expiry_padding_minutes"`
	Issuer               string   `koanf:"issuer"`
	Audience             []string `koanf:"audience"`
	ValidateIssuer       bool     `koanf:"validate_issuer"`
	ValidateAudience     bool     `koanf:"validate_audience"`
	ContextKey           string   `koanf:"context_key"`
	AuthScheme           string   `koanf:"auth_scheme"`
}

// App holds API server settings.
type App struct {
	Port        int    `koanf:"port"`
	DatabaseDSN string `koanf:"database_dsn"`
	Seed        bool   `koanf:"seed"`
	Env         string `koanf:"env"`
	Debug       bool   `koanf:"debug"`
	// ActivityRedisAddr enables the redis activity sink when set.
	ActivityRedisAddr string `koanf:"activity_redis_addr"`
	ActivityRedisKey  string `koanf:"activity_redis_key"`
}

// Session holds client session store settings.
type Session struct {
	Storage    string `koanf:"storage"`
	Path       string `koanf:"path"`
	RedisAddr  string `koanf:"redis_addr"`
	Passphrase string `koanf:"passphrase"`
	Cipher     string `koanf:"cipher"`
	APIURL     string `koanf:"api_url"`
	Verify     bool   `koanf:"verify"`
}

// Config is the resolved configuration. It implements auth.Config.
type Config struct {
	JWT     JWT     `koanf:"jwt"`
	App     App     `koanf:"app"`
	Session Session `koanf:"session"`
}

var _ auth.Config = (*Config)(nil)

// Defaults returns the literal fallback values.
func Defaults() map[string]any {
	return map[string]any{
		"jwt.secret":                 DefaultSecret,
		"jwt.expiry_minutes":         60,
		"jwt.expiry_padding_minutes": 0,
		"jwt.issuer":                 "booking-api",
		"jwt.audience":               []string{"booking-client"},
		"jwt.validate_issuer":        false,
		"jwt.validate_audience":      false,
		"jwt.context_key":            auth.DefaultContextKey,
		"jwt.auth_scheme":            "Bearer",

		"app.port":         8080,
		"app.database_dsn": "file:booking.db?cache=shared",
		"app.seed":         true,
		"app.env":          "development",
		"app.debug":        false,

		"app.activity_redis_addr": "",
		"app.activity_redis_key":  "booking:activity",

		"session.storage":    "file",
		"session.path":       "",
		"session.redis_addr": "localhost:6379",
		"session.passphrase": "",
		"session.cipher":     "passphrase",
		"session.api_url":    "http://localhost:8080",
		"session.verify":     false,
	}
}

// Load resolves defaults, then JWT_*, APP_* and SESSION_* environment
// variables, then the YAML file at path when path is not empty.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "config: defaults")
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "config: environment")
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "config: load "+path)
		}
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "config: decode")
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envKey maps JWT_EXPIRY_MINUTES to jwt.expiry_minutes. Other variables are
// skipped.
func envKey(name string) string {
	for _, prefix := range envPrefixes {
		if strings.HasPrefix(name, prefix) {
			return strings.Replace(strings.ToLower(name), "_", ".", 1)
		}
	}
	return ""
}

func (c *Config) normalize() {
	var aud []string
	for _, entry := range c.JWT.Audience {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				aud = append(aud, part)
			}
		}
	}
	c.JWT.Audience = aud

	c.Session.Storage = strings.ToLower(strings.TrimSpace(c.Session.Storage))
	c.Session.Cipher = strings.ToLower(strings.TrimSpace(c.Session.Cipher))
	c.Session.APIURL = strings.TrimRight(c.Session.APIURL, "/")

	if c.Session.Path == "" {
		c.Session.Path = DefaultSessionPath()
	}
}

// DefaultSessionPath is where the file storage lives when session.path is empty.
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".booking-session.json"
	}
	return filepath.Join(dir, "booking", "session.json")
}

// Validate checks the resolved values.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.JWT,
		validation.Field(&c.JWT.Secret, validation.Required),
		validation.Field(&c.JWT.ExpiryMinutes, validation.Required, validation.Min(1)),
		validation.Field(&c.JWT.ExpiryPaddingMinutes, validation.Min(0)),
		validation.Field(&c.JWT.AuthScheme, validation.Required),
		validation.Field(&c.JWT.ContextKey, validation.Required),
	); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "config: jwt")
	}

	if err := validation.ValidateStruct(&c.App,
		validation.Field(&c.App.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.App.DatabaseDSN, validation.Required),
	); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "config: app")
	}

	if err := validation.ValidateStruct(&c.Session,
		validation.Field(&c.Session.Storage, validation.Required, validation.In("file", "memory", "redis", "bun")),
		validation.Field(&c.Session.Cipher, validation.Required, validation.In("passphrase", "gcm")),
		validation.Field(&c.Session.APIURL, validation.Required, is.URL),
	); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "config: session")
	}

	if c.Session.Storage == "redis" && c.Session.RedisAddr == "" {
		return errors.New("config: session: redis_addr: cannot be blank when storage is redis", errors.CategoryValidation)
	}

	return nil
}

// Warnings lists insecure settings. Binaries log each one on start.
func (c *Config) Warnings() []string {
	var out []string

	if c.JWT.Secret == DefaultSecret {
		out = append(out, "jwt.secret is the built-in default, set JWT_SECRET")
	} else if len(c.JWT.Secret) < MinSecretLength {
		out = append(out, fmt.Sprintf("jwt.secret is shorter than %d bytes", MinSecretLength))
	}

	if c.JWT.ExpiryPaddingMinutes > 0 {
		out = append(out, fmt.Sprintf("jwt.expiry_padding_minutes is %d, tokens live longer than jwt.expiry_minutes", c.JWT.ExpiryPaddingMinutes))
	}

	if c.Session.Passphrase == "" || c.Session.Passphrase == session.DefaultPassphrase {
		out = append(out, "session.passphrase is the built-in client key, persisted sessions are only obfuscated")
	}

	return out
}

func (c *Config) GetSigningKey() string {
	return c.JWT.Secret
}

func (c *Config) GetTokenExpiration() time.Duration {
	return time.Duration(c.JWT.ExpiryMinutes) * time.Minute
}

func (c *Config) GetExpiryPadding() time.Duration {
	return time.Duration(c.JWT.ExpiryPaddingMinutes) * time.Minute
}

func (c *Config) GetIssuer() string {
	return c.JWT.Issuer
}

func (c *Config) GetAudience() []string {
	return append([]string(nil), c.JWT.Audience...)
}

func (c *Config) GetValidateIssuer() bool {
	return c.JWT.ValidateIssuer
}

func (c *Config) GetValidateAudience() bool {
	return c.JWT.ValidateAudience
}

func (c *Config) GetContextKey() string {
	return c.JWT.ContextKey
}

func (c *Config) GetAuthScheme() string {
	return c.JWT.AuthScheme
}

// RedactedValue replaces secrets in Redacted copies.
const RedactedValue = "********"

// Redacted returns a copy safe to print, with the signing secret and the
// session passphrase masked.
func (c *Config) Redacted() Config {
	out := *c
	out.JWT.Audience = append([]string(nil), c.JWT.Audience...)
	if out.JWT.Secret != "" {
		out.JWT.Secret = RedactedValue
	}
	if out.Session.Passphrase != "" {
		out.Session.Passphrase = RedactedValue
	}
	return out
}

// IsProduction reports app.env == "production".
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}
