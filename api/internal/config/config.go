package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8000"`

	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	GoogleAIAPIKey  string `env:"GOOGLE_AI_API_KEY"`
	GeminiModel     string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	GeminiTransport string `env:"GEMINI_TRANSPORT" envDefault:"sdk"`
	GeminiBaseURL   string `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`

	// Upper bound for the whole multipart body of one upload.
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"20971520"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"auto"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`

	DatabaseURL      string `env:"DATABASE_URL"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"healthtech"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresHost     string `env:"PGHOST"`
	PostgresPort     string `env:"PGPORT" envDefault:"5432"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"healthtech"`
}

// Load reads .env (if present) and parses the environment into Config.
// The Gemini key is optional here: without it every analysis fails with a
// processing error instead of the server refusing to start.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Port = strings.TrimSpace(c.Port)
	if c.Port == "" {
		c.Port = "8000"
	}
	c.GeminiAPIKey = strings.TrimSpace(c.GeminiAPIKey)
	if c.GeminiAPIKey == "" {
		c.GeminiAPIKey = strings.TrimSpace(c.GoogleAIAPIKey)
	}
	c.GeminiModel = strings.TrimSpace(c.GeminiModel)
	if c.GeminiModel == "" {
		c.GeminiModel = "gemini-1.5-flash"
	}
	c.GeminiTransport = strings.ToLower(strings.TrimSpace(c.GeminiTransport))
	if c.GeminiTransport == "" {
		c.GeminiTransport = "sdk"
	}
	c.GeminiBaseURL = strings.TrimRight(strings.TrimSpace(c.GeminiBaseURL), "/")
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 20 << 20
	}
	c.TelegramBotToken = strings.TrimSpace(c.TelegramBotToken)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return "0.0.0.0:" + c.Port
}

// DSN returns DATABASE_URL if set, otherwise builds one from POSTGRES_* / PG*
// variables. Empty when no database host is configured.
func (c *Config) DSN() string {
	if v := strings.TrimSpace(c.DatabaseURL); v != "" {
		return v
	}
	host := strings.TrimSpace(c.PostgresHost)
	if host == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     net.JoinHostPort(host, c.PostgresPort),
		Path:     "/" + c.PostgresDB,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SafeDSNSummary describes a DSN for logs without the password.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// ServerURL is the base URL the CLI talks to, overridable with HEALTHTECH_URL.
func ServerURL() string {
	return getEnv("HEALTHTECH_URL", "http://localhost:8000")
}
