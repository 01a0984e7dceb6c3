package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	TransportWebhook  = "webhook"
	TransportTelegram = "telegram"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL string // empty selects the in-memory store
	RedisURL    string // set to keep the sender lease in Redis

	NotifyTransport   string
	WebhookURL        string
	WebhookRatePerSec float64
	TelegramToken     string
	AdminTelegramID   int64
	WarningChatID     int64

	LogLevel    string
	Environment string
	Location    *time.Location

	ScheduleFile     string
	InstanceID       string
	PollInterval     time.Duration
	LeaseTTL         time.Duration
	WarningWindow    time.Duration
	LedgerMaxSize    int64
	DispatchTimeout  time.Duration
	RateLimitMaxWait time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		WebhookURL:    os.Getenv("WEBHOOK_URL"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		InstanceID:    strings.TrimSpace(os.Getenv("INSTANCE_ID")),
	}
	var err error

	cfg.NotifyTransport = strings.ToLower(envOr("NOTIFY_TRANSPORT", TransportWebhook))
	cfg.LogLevel = strings.ToLower(envOr("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(envOr("ENVIRONMENT", "development"))
	cfg.ScheduleFile = envOr("SCHEDULE_FILE", "schedule.yaml")

	tz := envOr("TIMEZONE", "Asia/Manila")
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	if cfg.AdminTelegramID, err = envInt("ADMIN_TELEGRAM_ID", 0); err != nil {
		return nil, err
	}
	if cfg.WarningChatID, err = envInt("WARNING_CHAT_ID", 0); err != nil {
		return nil, err
	}
	if cfg.LedgerMaxSize, err = envInt("LEDGER_MAX_SIZE", 5000); err != nil {
		return nil, err
	}
	if cfg.WebhookRatePerSec, err = envFloat("WEBHOOK_RATE_PER_SEC", 1); err != nil {
		return nil, err
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"POLL_INTERVAL", 30 * time.Second, &cfg.PollInterval},
		{"LEASE_TTL", 90 * time.Second, &cfg.LeaseTTL},
		{"WARNING_WINDOW", 5 * time.Minute, &cfg.WarningWindow},
		{"DISPATCH_TIMEOUT", 10 * time.Second, &cfg.DispatchTimeout},
		{"RATE_LIMIT_MAX_WAIT", 5 * time.Second, &cfg.RateLimitMaxWait},
	}
	for _, d := range durations {
		if *d.dest, err = envDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = defaultInstanceID()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. All problems are reported together.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be positive"))
	}
	// one missed renewal must not hand the lease to another instance
	if c.LeaseTTL < 2*c.PollInterval {
		errs = append(errs, fmt.Errorf("LEASE_TTL (%s) must be at least twice POLL_INTERVAL (%s)", c.LeaseTTL, c.PollInterval))
	}
	if c.WarningWindow <= 0 {
		errs = append(errs, fmt.Errorf("WARNING_WINDOW must be positive"))
	}
	if c.LedgerMaxSize <= 0 {
		errs = append(errs, fmt.Errorf("LEDGER_MAX_SIZE must be positive"))
	}
	if c.DispatchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_TIMEOUT must be positive"))
	}
	if c.RateLimitMaxWait < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MAX_WAIT must not be negative"))
	}

	switch c.NotifyTransport {
	case TransportWebhook:
		if c.WebhookURL == "" {
			errs = append(errs, fmt.Errorf("WEBHOOK_URL is not set"))
		}
		if c.WebhookRatePerSec <= 0 {
			errs = append(errs, fmt.Errorf("WEBHOOK_RATE_PER_SEC must be positive"))
		}
	case TransportTelegram:
		if c.TelegramToken == "" {
			errs = append(errs, fmt.Errorf("TELEGRAM_TOKEN is not set"))
		}
		if c.WarningChatID == 0 {
			errs = append(errs, fmt.Errorf("WARNING_CHAT_ID is not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFY_TRANSPORT %q", c.NotifyTransport))
	}
	return errors.Join(errs...)
}

func defaultInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "instance"
	}
	return host + "-" + uuid.NewString()
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
