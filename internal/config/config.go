package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	DB struct {
		Driver string // postgres | sqlite
		DSN    string // postgres DSN or sqlite file path
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	API struct {
		Port     string
		BasePath string
	}
	Logging struct {
		Dir   string
		Level string
	}
	Thresholds struct {
		PerformanceSeconds       int
		ErrorCount               int
		CooldownMinutes          int
		MaxNotificationsPerHour  int
		ActivityThresholdPercent float64
	}
	Activity struct {
		CheckInterval time.Duration
		Sources       []string
	}
	Channels struct {
		Email struct {
			Enabled    bool
			SMTPServer string
			SMTPPort   int
			Username   string
			Password   string
			Recipients []string
		}
		Webhook struct {
			Enabled bool
			URL     string
		}
		Telegram struct {
			Enabled  bool
			BotToken string
			ChatID   int64
		}
		Log struct {
			Enabled bool
		}
	}
	Monitor struct {
		QueueSize  int
		MaxWorkers int
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Database settings
	cfg.DB.Driver = os.Getenv("DB_DRIVER")
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Kafka settings (ingest is optional, disabled when the broker is empty)
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Logging settings
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Alerting thresholds
	cfg.Thresholds.PerformanceSeconds = intEnv("PERFORMANCE_THRESHOLD_SECONDS", 300)
	cfg.Thresholds.ErrorCount = intEnv("ERROR_THRESHOLD_COUNT", 10)
	cfg.Thresholds.CooldownMinutes = intEnv("NOTIFICATION_COOLDOWN_MINUTES", 30)
	cfg.Thresholds.MaxNotificationsPerHour = intEnv("MAX_NOTIFICATIONS_PER_HOUR", 10)
	cfg.Thresholds.ActivityThresholdPercent = floatEnv("ACTIVITY_THRESHOLD_PERCENT", 10.0)

	// Activity check loop
	cfg.Activity.CheckInterval = durationEnv("ACTIVITY_CHECK_INTERVAL", 15*time.Minute)
	if sources := os.Getenv("ACTIVITY_SOURCES"); sources != "" {
		for _, s := range strings.Split(sources, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Activity.Sources = append(cfg.Activity.Sources, s)
			}
		}
	}

	// Email channel
	cfg.Channels.Email.Enabled = boolEnv("EMAIL_ENABLED")
	cfg.Channels.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	cfg.Channels.Email.SMTPPort = intEnv("EMAIL_SMTP_PORT", 587)
	cfg.Channels.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Channels.Email.Password = os.Getenv("EMAIL_PASSWORD")
	if rcpts := os.Getenv("EMAIL_RECIPIENTS"); rcpts != "" {
		for _, r := range strings.Split(rcpts, ",") {
			if r = strings.TrimSpace(r); r != "" {
				cfg.Channels.Email.Recipients = append(cfg.Channels.Email.Recipients, r)
			}
		}
	}

	// Webhook channel
	cfg.Channels.Webhook.Enabled = boolEnv("WEBHOOK_ENABLED")
	cfg.Channels.Webhook.URL = os.Getenv("WEBHOOK_URL")

	// Telegram channel
	cfg.Channels.Telegram.Enabled = boolEnv("TELEGRAM_ENABLED")
	cfg.Channels.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if id, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64); err == nil {
		cfg.Channels.Telegram.ChatID = id
	}

	// Log channel defaults on, opt out with LOG_CHANNEL_ENABLED=false
	cfg.Channels.Log.Enabled = true
	if v := os.Getenv("LOG_CHANNEL_ENABLED"); v != "" {
		cfg.Channels.Log.Enabled = boolEnv("LOG_CHANNEL_ENABLED")
	}

	// Ingest worker settings
	cfg.Monitor.QueueSize = intEnv("QUEUE_SIZE", 500)
	cfg.Monitor.MaxWorkers = intEnv("MAX_WORKERS", 10)

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = "postgres"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}

// Cooldown returns the per-key cooldown as a duration.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.Thresholds.CooldownMinutes) * time.Minute
}

func intEnv(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func floatEnv(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func boolEnv(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}
