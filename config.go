package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every runtime setting. Values come from the environment
// (a .env file is loaded by godotenv/autoload) with defaults for local use.
type Config struct {
	Port        string
	LogLevel    string
	ContentFile string

	Chat    ChatConfig
	Contact ContactConfig
	Admin   AdminConfig

	DatabaseDSN       string
	RetentionDays     int
	RetentionSchedule string
}

type ChatConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Temperature   float32
	MaxTokens     int
	TopP          float32
	HistoryWindow int
	Timeout       time.Duration
}

type ContactConfig struct {
	Provider string // "emailjs", "smtp" or empty for auto-detect

	EmailJSServiceID  string
	EmailJSTemplateID string
	EmailJSPublicKey  string
	EmailJSPrivateKey string
	EmailJSEndpoint   string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	ToEmail  string
	ToName   string
}

type AdminConfig struct {
	Username string
	Password string
	Secret   string
}

const (
	defaultGroqBaseURL     = "https://api.groq.com/openai/v1"
	defaultChatModel       = "llama-3.3-70b-versatile"
	defaultEmailJSEndpoint = "https://api.emailjs.com/api/v1.0/email/send"
	defaultDatabaseDSN     = "file:portfolio?mode=memory&cache=shared"
)

// LoadConfig reads the configuration from the environment.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Getenv)
}

func loadConfig(getenv func(string) string) (*Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Port:        env("PORT", "8080"),
		LogLevel:    env("LOG_LEVEL", "info"),
		ContentFile: env("CONTENT_FILE", ""),
		Chat: ChatConfig{
			APIKey:  env("GROQ_API_KEY", ""),
			BaseURL: env("GROQ_BASE_URL", defaultGroqBaseURL),
			Model:   env("CHAT_MODEL", defaultChatModel),
		},
		Contact: ContactConfig{
			Provider:          strings.ToLower(env("CONTACT_PROVIDER", "")),
			EmailJSServiceID:  env("EMAILJS_SERVICE_ID", ""),
			EmailJSTemplateID: env("EMAILJS_TEMPLATE_ID", ""),
			EmailJSPublicKey:  env("EMAILJS_PUBLIC_KEY", ""),
			EmailJSPrivateKey: env("EMAILJS_PRIVATE_KEY", ""),
			EmailJSEndpoint:   env("EMAILJS_ENDPOINT", defaultEmailJSEndpoint),
			SMTPHost:          env("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:          env("SMTP_PORT", "587"),
			SMTPUser:          env("SMTP_USER", ""),
			SMTPPass:          env("SMTP_PASS", ""),
			ToEmail:           env("TO_EMAIL", ""),
			ToName:            env("TO_NAME", ""),
		},
		Admin: AdminConfig{
			Username: env("ADMIN_USERNAME", ""),
			Password: env("ADMIN_PASSWORD", ""),
			Secret:   env("ADMIN_SECRET", ""),
		},
		DatabaseDSN:       env("DATABASE_DSN", defaultDatabaseDSN),
		RetentionSchedule: env("RETENTION_SCHEDULE", "0 3 * * *"),
	}

	var err error
	if cfg.Chat.Temperature, err = parseFloat32(env("CHAT_TEMPERATURE", "0.7")); err != nil {
		return nil, fmt.Errorf("CHAT_TEMPERATURE: %w", err)
	}
	if cfg.Chat.TopP, err = parseFloat32(env("CHAT_TOP_P", "0.9")); err != nil {
		return nil, fmt.Errorf("CHAT_TOP_P: %w", err)
	}
	if cfg.Chat.MaxTokens, err = strconv.Atoi(env("CHAT_MAX_TOKENS", "1024")); err != nil {
		return nil, fmt.Errorf("CHAT_MAX_TOKENS: %w", err)
	}
	if cfg.Chat.HistoryWindow, err = strconv.Atoi(env("CHAT_HISTORY_WINDOW", "6")); err != nil {
		return nil, fmt.Errorf("CHAT_HISTORY_WINDOW: %w", err)
	}
	if cfg.Chat.Timeout, err = time.ParseDuration(env("CHAT_TIMEOUT", "30s")); err != nil {
		return nil, fmt.Errorf("CHAT_TIMEOUT: %w", err)
	}
	if cfg.RetentionDays, err = strconv.Atoi(env("RETENTION_DAYS", "365")); err != nil {
		return nil, fmt.Errorf("RETENTION_DAYS: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Chat.HistoryWindow < 1 {
		return fmt.Errorf("CHAT_HISTORY_WINDOW must be at least 1, got %d", c.Chat.HistoryWindow)
	}
	if c.Chat.MaxTokens < 1 {
		return fmt.Errorf("CHAT_MAX_TOKENS must be positive, got %d", c.Chat.MaxTokens)
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("RETENTION_DAYS must be positive, got %d", c.RetentionDays)
	}
	switch c.Contact.Provider {
	case "", "emailjs", "smtp":
	default:
		return fmt.Errorf("CONTACT_PROVIDER must be emailjs or smtp, got %q", c.Contact.Provider)
	}
	return nil
}

func parseFloat32(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	return float32(f), err
}
