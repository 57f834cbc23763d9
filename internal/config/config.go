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
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	AppHost   string
	HTTPPort  string
	AppEnv    string
	LogLevel  string
	LogFormat string

	// BotHTTPPort serves health and metrics of the bot process.
	BotHTTPPort string
	MediaRoot   string

	DB struct {
		Driver   string
		Path     string
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
	}

	Telegram struct {
		Token          string
		RequestTimeout time.Duration
		PollTimeout    time.Duration
	}

	Staff struct {
		Username       string
		PasswordHash   string
		Password       string
		SessionSecret  string
		SessionTTL     time.Duration
		LoginRateLimit int
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	ConversationTTL time.Duration

	KafkaBrokers     []string
	KafkaTopicTicket string
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:     getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:    firstEnv("APP_PORT", "HTTP_PORT", "8097"),
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		BotHTTPPort: firstEnv("BOT_HTTP_PORT", "METRICS_PORT", "9097"),
		MediaRoot:   getEnv("MEDIA_ROOT", "media"),
	}
	cfg.DB.Driver = strings.ToLower(getEnv("DB_DRIVER", DriverSQLite))
	cfg.DB.Path = getEnv("DB_PATH", "supportbot.db")
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "supportbot")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")

	var err error
	cfg.Telegram.Token = getEnv("TELEGRAM_BOT_TOKEN", "")
	if cfg.Telegram.RequestTimeout, err = getDuration("TELEGRAM_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Telegram.PollTimeout, err = getDuration("TELEGRAM_POLL_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	cfg.Staff.Username = getEnv("STAFF_USERNAME", "admin")
	cfg.Staff.PasswordHash = getEnv("STAFF_PASSWORD_HASH", "")
	cfg.Staff.Password = getEnv("STAFF_PASSWORD", "")
	cfg.Staff.SessionSecret = getEnv("SESSION_SECRET", "")
	if cfg.Staff.SessionTTL, err = getDuration("SESSION_TTL", 12*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Staff.LoginRateLimit, err = getInt("LOGIN_RATE_LIMIT", 10); err != nil {
		return nil, err
	}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.ConversationTTL, err = getDuration("CONVERSATION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	cfg.KafkaBrokers = ParseList(getEnv("KAFKA_BROKERS", ""))
	cfg.KafkaTopicTicket = getEnv("KAFKA_TOPIC_TICKET", "")
	return cfg, nil
}

// Validate checks settings shared by every command.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Path == "" {
			return errors.New("config: DB_PATH is required for sqlite")
		}
	case DriverPostgres:
		if c.DB.Host == "" || c.DB.Database == "" {
			return errors.New("config: DB_HOST and DB_DATABASE are required")
		}
		if c.IsProduction() && c.DB.Password == "" {
			return errors.New("config: in production DB_PASSWORD is required")
		}
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.MediaRoot == "" {
		return errors.New("config: MEDIA_ROOT is required")
	}
	return nil
}

// ValidateBot checks settings required by the chat process.
func (c *Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Telegram.Token == "" {
		return errors.New("config: TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

// ValidateDashboard checks settings required by the staff dashboard.
func (c *Config) ValidateDashboard() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Staff.Username == "" {
		return errors.New("config: STAFF_USERNAME is required")
	}
	if c.Staff.PasswordHash == "" && c.Staff.Password == "" {
		return errors.New("config: STAFF_PASSWORD_HASH or STAFF_PASSWORD is required")
	}
	if c.Staff.SessionSecret == "" {
		return errors.New("config: SESSION_SECRET is required")
	}
	if c.IsProduction() {
		if c.Staff.PasswordHash == "" {
			return errors.New("config: in production STAFF_PASSWORD_HASH is required")
		}
		if len(c.Staff.SessionSecret) < 16 {
			return errors.New("config: in production SESSION_SECRET must be at least 16 characters")
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) DSN() string {
	if c.DB.Driver == DriverSQLite {
		return c.DB.Path
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

func (c *Config) BotAddr() string {
	return c.AppHost + ":" + c.BotHTTPPort
}

// ParseList splits "host1:9092,host2:9092" into its non-empty parts.
func ParseList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
