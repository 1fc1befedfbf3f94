package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"subly/internal/core"
)

// Remote backends the mirror can target.
const (
	RemoteNone        = "none"
	RemoteMemory      = "memory"
	RemoteFirestore   = "firestore"
	RemoteObjectStore = "objectstore"
)

// Mirror transports.
const (
	MirrorDirect = "direct"
	MirrorQueue  = "queue"
)

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL               string
	AMQPExchange          string
	AMQPMirrorQueue       string
	AMQPNotificationQueue string

	// Remote mirror
	RemoteBackend   string
	MirrorTransport string

	// Firestore
	FirestoreProjectID  string
	FirestoreDatabaseID string

	// S3-compatible object store
	S3Bucket    string
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string

	// Auth
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// Reminders
	TimeZone        string
	ReminderRetries int
	NotifyViaQueue  bool

	// Caching
	CacheTTL time.Duration

	// API hardening
	RateLimitRequests int
	RateLimitWindow   time.Duration
	SuspiciousAgents  []string
	TrustedProxies    []string
}

// DefaultSuspiciousAgents are user agent fragments of common scanners.
var DefaultSuspiciousAgents = []string{
	"sqlmap", "nmap", "nikto", "gobuster", "dirb",
	"masscan", "zgrab", "scanner",
}

// DefaultTrustedProxies may set forwarding headers.
var DefaultTrustedProxies = []string{
	"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16",
}

func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8081"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/subly.db"),

		AMQPURL:               getEnv("AMQP_URL", ""),
		AMQPExchange:          getEnv("AMQP_EXCHANGE", "subly"),
		AMQPMirrorQueue:       getEnv("AMQP_MIRROR_QUEUE", "mirror_writes"),
		AMQPNotificationQueue: getEnv("AMQP_NOTIFICATION_QUEUE", "notifications"),

		RemoteBackend:   getEnv("REMOTE_BACKEND", RemoteMemory),
		MirrorTransport: getEnv("MIRROR_TRANSPORT", MirrorDirect),

		FirestoreProjectID:  getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreDatabaseID: getEnv("FIRESTORE_DATABASE_ID", "(default)"),

		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", ""),
		JWTAudience: getEnv("JWT_AUDIENCE", ""),

		TimeZone:        getEnv("TZ_NAME", "Local"),
		ReminderRetries: getEnvInt("REMINDER_RETRIES", 3),
		NotifyViaQueue:  getEnvBool("NOTIFY_VIA_QUEUE", false),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		SuspiciousAgents:  getEnvList("SUSPICIOUS_AGENTS", DefaultSuspiciousAgents),
		TrustedProxies:    getEnvList("TRUSTED_PROXIES", DefaultTrustedProxies),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	validBackends := []string{RemoteNone, RemoteMemory, RemoteFirestore, RemoteObjectStore}
	if !slices.Contains(validBackends, c.RemoteBackend) {
		errors = append(errors, fmt.Sprintf("invalid remote backend '%s': must be one of %v", c.RemoteBackend, validBackends))
	}

	validTransports := []string{MirrorDirect, MirrorQueue}
	if !slices.Contains(validTransports, c.MirrorTransport) {
		errors = append(errors, fmt.Sprintf("invalid mirror transport '%s': must be one of %v", c.MirrorTransport, validTransports))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPMirrorQueue == "" {
			errors = append(errors, "AMQP mirror queue name cannot be empty when AMQP URL is provided")
		}
	}
	if c.MirrorTransport == MirrorQueue && c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required when MIRROR_TRANSPORT is 'queue'")
	}
	if c.NotifyViaQueue && c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required when NOTIFY_VIA_QUEUE is set")
	}

	switch c.RemoteBackend {
	case RemoteFirestore:
		if c.FirestoreProjectID == "" {
			errors = append(errors, "FIRESTORE_PROJECT_ID is required when using firestore backend")
		}
	case RemoteObjectStore:
		if c.S3Bucket == "" {
			errors = append(errors, "S3_BUCKET is required when using objectstore backend")
		}
		if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
			errors = append(errors, "S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
		}
		if c.S3Endpoint != "" {
			if u, err := url.Parse(c.S3Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
				errors = append(errors, fmt.Sprintf("invalid S3 endpoint '%s': must be an absolute URL", c.S3Endpoint))
			}
		}
	}

	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		errors = append(errors, "JWT secret must be at least 16 characters")
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid time zone '%s': %v", c.TimeZone, err))
	}

	if c.ReminderRetries < 1 || c.ReminderRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid reminder retries %d: must be between 1 and 10", c.ReminderRetries))
	}

	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	if c.RateLimitRequests < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request", c.RateLimitRequests))
	}
	if c.RateLimitWindow < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rate limit window %v: must be at least 1 second", c.RateLimitWindow))
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Location resolves TimeZone. "Local" and "" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.TimeZone)
}

// AuthEnabled reports whether bearer tokens can be verified.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// MirrorEnabled reports whether local writes are copied anywhere.
func (c *Config) MirrorEnabled() bool {
	return c.RemoteBackend != RemoteNone
}

// Today is the current calendar date in the configured zone.
func (c *Config) Today() core.Date {
	loc, err := c.Location()
	if err != nil {
		loc = time.Local
	}
	return core.Today(loc)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks. Set the
// variable to "none" for an empty list.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return slices.Clone(defaultValue)
	}
	if strings.EqualFold(strings.TrimSpace(value), "none") {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
