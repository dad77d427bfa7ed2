// Package config reads the runtime configuration of the Share Drop
// backend from environment variables.
//
// Every setting has a working default so a bare `go run ./cmd/backend`
// serves from the current directory. Values are validated once at
// startup by Validate so a misconfigured process fails fast.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxUploadBytes is the hard upload cap (10 GiB).
const DefaultMaxUploadBytes int64 = 10 << 30

// CookieSecureMode controls the Secure attribute of the session cookie.
type CookieSecureMode string

const (
	// CookieSecureAuto marks the cookie Secure when the request arrived
	// over TLS or the proxy reported X-Forwarded-Proto: https.
	CookieSecureAuto   CookieSecureMode = "auto"
	CookieSecureAlways CookieSecureMode = "true"
	CookieSecureNever  CookieSecureMode = "false"
)

// BuildInfo identifies the running binary in logs and metrics.
type BuildInfo struct {
	Version string
	Commit  string
}

// Config holds all runtime settings.
type Config struct {
	Addr string

	UploadDir    string
	DatabasePath string
	DatabaseURL  string // Postgres DSN; when set it replaces the SQLite catalog
	UsersFile    string
	SecretFile   string

	SessionTTL   time.Duration
	CookieName   string
	CookieSecure CookieSecureMode

	MaxUploadBytes int64
	LoginRate      int // attempts per minute per client IP

	LogLevel  string
	LogFormat string
	Env       string

	Build BuildInfo
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	v := NewValidator()

	cfg := Config{
		Addr:         getenvDefault("SHARE_ADDR", ":5000"),
		UploadDir:    getenvDefault("SHARE_UPLOAD_DIR", "uploads"),
		DatabasePath: getenvDefault("SHARE_DB_PATH", "files.db"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		UsersFile:    getenvDefault("SHARE_USERS_FILE", "ids01.txt"),
		SecretFile:   getenvDefault("SHARE_SECRET_FILE", "secret_key.txt"),
		CookieName:   getenvDefault("SHARE_COOKIE_NAME", "share_session"),
		CookieSecure: CookieSecureMode(strings.ToLower(getenvDefault("SHARE_COOKIE_SECURE", string(CookieSecureAuto)))),
		LogLevel:     strings.ToLower(getenvDefault("SHARE_LOG_LEVEL", "info")),
		LogFormat:    strings.ToLower(getenvDefault("SHARE_LOG_FORMAT", "console")),
		Env:          strings.ToLower(getenvDefault("SHARE_ENV", "development")),
		Build: BuildInfo{
			Version: getenvDefault("SHARE_VERSION", "dev"),
			Commit:  getenvDefault("SHARE_COMMIT", "unknown"),
		},
	}

	cfg.SessionTTL = v.Duration("SHARE_SESSION_TTL", getenvDefault("SHARE_SESSION_TTL", "720h"))
	cfg.MaxUploadBytes = v.PositiveInt64("SHARE_MAX_UPLOAD_BYTES", getenvDefault("SHARE_MAX_UPLOAD_BYTES", strconv.FormatInt(DefaultMaxUploadBytes, 10)))
	cfg.LoginRate = int(v.PositiveInt64("SHARE_LOGIN_RATE", getenvDefault("SHARE_LOGIN_RATE", "10")))

	if cfg.Env == "production" {
		cfg.LogFormat = "json"
	}

	v.Address("SHARE_ADDR", cfg.Addr)
	v.Postgres("DATABASE_URL", cfg.DatabaseURL)
	v.Enum("SHARE_COOKIE_SECURE", string(cfg.CookieSecure), []string{"auto", "true", "false"})
	v.Enum("SHARE_LOG_LEVEL", cfg.LogLevel, []string{"debug", "info", "warn", "error"})
	v.Enum("SHARE_LOG_FORMAT", cfg.LogFormat, []string{"console", "json"})
	v.Enum("SHARE_ENV", cfg.Env, []string{"development", "staging", "production"})
	v.NotEmpty("SHARE_UPLOAD_DIR", cfg.UploadDir)
	v.NotEmpty("SHARE_COOKIE_NAME", cfg.CookieName)
	if cfg.DatabaseURL == "" {
		v.NotEmpty("SHARE_DB_PATH", cfg.DatabasePath)
	}

	if v.HasErrors() {
		return Config{}, fmt.Errorf("%s", v.ErrorString())
	}
	return cfg, nil
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
