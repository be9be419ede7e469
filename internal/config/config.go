package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Env      string
	Port     string
	LogLevel string

	// Gmail account the assistant acts on behalf of.
	UserEmail string
	// Keywords a first inquiry must contain to be answered automatically.
	Keywords []string
	// SearchWindowDays bounds the inbox query (newer_than:<n>d).
	SearchWindowDays int

	// OfferMarker is the calendar event summary that marks an offerable slot
	// (matched case-insensitively).
	OfferMarker string
	// MinOfferWarning is the slot count below which a low-availability
	// warning is emitted. Not an error; the run continues.
	MinOfferWarning int
	// CalendarListLimit caps how many upcoming events are fetched.
	CalendarListLimit int

	// Timezone all parsed timestamps are normalized to.
	Timezone string
	// LocalePath points at the optional TOML locale/template file.
	LocalePath string

	// DataDir is the per-account state root (ledger, archive, logs, token).
	DataDir string
	// LedgerDriver selects the ledger store: "file" or "postgres".
	LedgerDriver string
	DatabaseURL  string

	DryRun        bool
	WatchInterval time.Duration

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	RedisAddr     string
	RedisPassword string
	RunLockTTL    time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ArchiveS3Bucket     string

	SESFromEmail      string
	SESFromName       string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	OperatorEmail     string

	GoogleCredentialsPath string
	GoogleTokenPath       string
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		UserEmail:        getEnv("USER_EMAIL", ""),
		Keywords:         splitList(getEnv("KEYWORDS", "")),
		SearchWindowDays: getEnvAsInt("SEARCH_WINDOW_DAYS", 1),

		OfferMarker:       getEnv("OFFER_MARKER", "wolne"),
		MinOfferWarning:   getEnvAsInt("MIN_OFFER_WARNING", 15),
		CalendarListLimit: getEnvAsInt("CALENDAR_LIST_LIMIT", 15),

		Timezone:   getEnv("TIMEZONE", "Europe/Warsaw"),
		LocalePath: getEnv("LOCALE_PATH", ""),

		DataDir:      getEnv("DATA_DIR", "./users"),
		LedgerDriver: strings.ToLower(strings.TrimSpace(getEnv("LEDGER_DRIVER", "file"))),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		DryRun:        getEnvAsBool("DRY_RUN", false),
		WatchInterval: getEnvAsDuration("WATCH_INTERVAL", 0),

		RetryMaxAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   getEnvAsDuration("RETRY_BASE_DELAY", time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RunLockTTL:    getEnvAsDuration("RUN_LOCK_TTL", 10*time.Minute),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ArchiveS3Bucket:     getEnv("ARCHIVE_S3_BUCKET", ""),

		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Coachmail"),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Coachmail"),
		OperatorEmail:     getEnv("OPERATOR_EMAIL", ""),

		GoogleCredentialsPath: getEnv("GOOGLE_CREDENTIALS_PATH", ""),
		GoogleTokenPath:       getEnv("GOOGLE_TOKEN_PATH", ""),
	}

	if cfg.GoogleCredentialsPath == "" && cfg.UserEmail != "" {
		cfg.GoogleCredentialsPath = filepath.Join(cfg.DataDir, cfg.UserEmail, "credentials.json")
	}
	if cfg.GoogleTokenPath == "" && cfg.UserEmail != "" {
		cfg.GoogleTokenPath = filepath.Join(cfg.DataDir, cfg.UserEmail, "token.json")
	}

	return cfg
}

// AccountDir returns the state directory for the configured account.
func (c *Config) AccountDir() string {
	return filepath.Join(c.DataDir, c.UserEmail)
}

// LedgerPath returns the waiting-list file for the configured account.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.AccountDir(), "mails_waiting_for_answer.txt")
}

// ArchiveDir returns the daily-archive directory for the configured account.
func (c *Config) ArchiveDir() string {
	return filepath.Join(c.AccountDir(), "mails")
}

// PreparedRepliesDir returns where dry-run replies are written.
func (c *Config) PreparedRepliesDir() string {
	return filepath.Join(c.AccountDir(), "prepared_replies")
}

// LogDir returns the per-account log directory.
func (c *Config) LogDir() string {
	return filepath.Join(c.AccountDir(), "logs")
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
