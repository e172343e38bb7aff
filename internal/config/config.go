package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=sheriff port=5432 sslmode=disable"

type Config struct {
	HTTPPort       string
	AppEnv         string
	LogLevel       string
	DatabaseDriver string // postgres | mysql | sqlite
	DatabaseDSN    string
	JWTSecret      string
	JWTTTL         time.Duration
	CORSOrigins    string
	UploadPath     string
	UploadMaxBytes int64
	RedisURL       string

	LoginMaxAttempts int
	LoginLockout     time.Duration
	StatsCacheTTL    time.Duration

	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPassword    string
	MailFrom        string
	InquiryNotifyTo string
}

// fileConfig mirrors the keys accepted in CONFIG_FILE. Environment variables win.
type fileConfig map[string]string

// Load reads .env (if present), the optional YAML file named by CONFIG_FILE and
// finally the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	defaults := fileConfig{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fc, err := readFile(path)
		if err != nil {
			return nil, err
		}
		defaults = fc
	}

	get := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		if v, ok := defaults[key]; ok && v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		HTTPPort:         get("HTTP_PORT", "8080"),
		AppEnv:           get("APP_ENV", "development"),
		LogLevel:         get("LOG_LEVEL", "info"),
		DatabaseDriver:   strings.ToLower(get("DATABASE_DRIVER", "postgres")),
		DatabaseDSN:      get("DATABASE_DSN", defaultDSN),
		JWTSecret:        get("JWT_SECRET", ""),
		JWTTTL:           getDuration(get("JWT_TTL", ""), 24*time.Hour),
		CORSOrigins:      get("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		UploadPath:       get("UPLOAD_PATH", "./uploads"),
		UploadMaxBytes:   int64(getInt(get("UPLOAD_MAX_BYTES", ""), 5<<20)),
		RedisURL:         get("REDIS_URL", ""),
		LoginMaxAttempts: getInt(get("LOGIN_MAX_ATTEMPTS", ""), 5),
		LoginLockout:     getDuration(get("LOGIN_LOCKOUT", ""), 15*time.Minute),
		StatsCacheTTL:    getDuration(get("STATS_CACHE_TTL", ""), time.Minute),
		SMTPHost:         get("SMTP_HOST", ""),
		SMTPPort:         getInt(get("SMTP_PORT", ""), 587),
		SMTPUser:         get("SMTP_USER", ""),
		SMTPPassword:     get("SMTP_PASSWORD", ""),
		MailFrom:         get("MAIL_FROM", ""),
		InquiryNotifyTo:  get("INQUIRY_NOTIFY_TO", ""),
	}

	return cfg, nil
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	switch c.DatabaseDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.LoginMaxAttempts < 1 {
		return errors.New("LOGIN_MAX_ATTEMPTS must be positive")
	}
	return nil
}

// Warnings lists settings that are acceptable locally but not in production.
func (c *Config) Warnings() []string {
	var w []string
	if c.DatabaseDSN == defaultDSN {
		w = append(w, "DATABASE_DSN uses the default value")
	}
	if c.CORSOrigins == "http://localhost:3000" {
		w = append(w, "CORS_ALLOWED_ORIGINS uses the default value")
	}
	if c.SMTPHost == "" {
		w = append(w, "SMTP_HOST is empty, inquiry notifications are disabled")
	}
	return w
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.MailFrom != "" && c.InquiryNotifyTo != ""
}

func readFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	fc := fileConfig{}
	for k, v := range raw {
		fc[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return fc, nil
}

func getInt(v string, def int) int {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}

func getDuration(v string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}
