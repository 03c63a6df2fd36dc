package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Telegram
	TelegramToken string
	AllowedUsers  []int64 // empty = anyone may use the bot

	// Classifier
	GroqAPIKey      string
	GroqURL         string
	GroqModel       string
	ClassifyTimeout time.Duration

	// Database
	SQLiteDBPath string

	// AMQP (optional; empty URL disables the backup event stream)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets backup (worker only)
	SheetsSpreadsheetID string
	SheetsSheetName     string

	// Reports and scheduling
	Timezone     string
	ReportHour   int
	ReportMinute int
	OutlierRatio float64

	// Ingestion limits
	RateLimitMsgs   int
	RateLimitWindow time.Duration
	SessionTTL      time.Duration

	// Worker
	BackupBatchSize int

	// Health listener
	HealthPort string
}

func Load() *Config {
	cfg := &Config{
		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		AllowedUsers:  getEnvInt64List("ALLOWED_USERS"),

		GroqAPIKey:      getEnv("GROQ_API_KEY", ""),
		GroqURL:         getEnv("GROQ_URL", "https://api.groq.com/openai/v1/chat/completions"),
		GroqModel:       getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		ClassifyTimeout: getEnvDuration("CLASSIFY_TIMEOUT", 30*time.Second),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/grana.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "grana"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_backup"),

		SheetsSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		SheetsSheetName:     getEnv("GOOGLE_SHEET_NAME", "Lancamentos"),

		Timezone:     getEnv("TIMEZONE", "America/Sao_Paulo"),
		ReportHour:   getEnvInt("REPORT_HOUR", 23),
		ReportMinute: getEnvInt("REPORT_MINUTE", 0),
		OutlierRatio: getEnvFloat("OUTLIER_RATIO", 8),

		RateLimitMsgs:   getEnvInt("RATE_LIMIT_MSGS", 5),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		SessionTTL:      getEnvDuration("SESSION_TTL", 3*time.Minute),

		BackupBatchSize: getEnvInt("BACKUP_BATCH_SIZE", 10),

		HealthPort: getEnv("PORT", "8080"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.TelegramToken == "" {
		errors = append(errors, "TELEGRAM_BOT_TOKEN is required")
	}
	if c.GroqAPIKey == "" {
		errors = append(errors, "GROQ_API_KEY is required")
	}

	if c.GroqURL != "" {
		if parsed, err := url.Parse(c.GroqURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Groq URL '%s': %v", c.GroqURL, err))
		} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid Groq URL scheme '%s': must be http or https", parsed.Scheme))
		}
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

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}
	if c.ReportHour < 0 || c.ReportHour > 23 {
		errors = append(errors, fmt.Sprintf("invalid report hour %d: must be between 0 and 23", c.ReportHour))
	}
	if c.ReportMinute < 0 || c.ReportMinute > 59 {
		errors = append(errors, fmt.Sprintf("invalid report minute %d: must be between 0 and 59", c.ReportMinute))
	}
	if c.OutlierRatio <= 1 {
		errors = append(errors, fmt.Sprintf("invalid outlier ratio %v: must be greater than 1", c.OutlierRatio))
	}

	if c.RateLimitMsgs < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 message", c.RateLimitMsgs))
	}
	if c.RateLimitWindow < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rate limit window %v: must be at least 1 second", c.RateLimitWindow))
	}
	if c.SessionTTL < 10*time.Second {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 10 seconds", c.SessionTTL))
	} else if c.SessionTTL > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at most 1 hour", c.SessionTTL))
	}

	if c.BackupBatchSize < 1 || c.BackupBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid backup batch size %d: must be between 1 and 1000", c.BackupBatchSize))
	}

	if port, err := strconv.Atoi(c.HealthPort); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.HealthPort))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// UserAllowed reports whether the given user may use the bot. An empty
// allowlist means the bot is open.
func (c *Config) UserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvInt64List(key string) []int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	var out []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}
