package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration. Every field maps to an
// environment variable of the same name in upper case.
type Config struct {
	Port     string `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level"`

	// Messenger
	VerifyToken     string `mapstructure:"verify_token"`
	AppSecret       string `mapstructure:"fb_app_secret"`
	AppID           string `mapstructure:"fb_app_id"`
	PageAccessToken string `mapstructure:"fb_page_access_token"`
	GraphAPIURL     string `mapstructure:"graph_api_url" validate:"required,url"`

	// WhatsApp support channel
	WhatsAppPhoneNumberID string `mapstructure:"whatsapp_phone_number_id"`
	WhatsAppAccessToken   string `mapstructure:"whatsapp_access_token"`
	SupportPhoneNumber    string `mapstructure:"support_phone_number"`

	// Storage
	StorageDriver       string `mapstructure:"storage_driver" validate:"oneof=mongo postgres"`
	MongoURI            string `mapstructure:"mongo_uri" validate:"required_if=StorageDriver mongo"`
	DatabaseName        string `mapstructure:"mongo_db_name"`
	PostgresDSN         string `mapstructure:"postgres_dsn" validate:"required_if=StorageDriver postgres"`
	PostgresAutoMigrate bool   `mapstructure:"postgres_auto_migrate"`

	// AI
	AIProvider          string `mapstructure:"ai_provider" validate:"oneof=gemini claude openai none"`
	GeminiAPIKey        string `mapstructure:"gemini_api_key"`
	GeminiModel         string `mapstructure:"gemini_model"`
	ClaudeAPIKey        string `mapstructure:"claude_api_key"`
	ClaudeModel         string `mapstructure:"claude_model"`
	OpenAIAPIKey        string `mapstructure:"openai_api_key"`
	OpenAIModel         string `mapstructure:"openai_model"`
	AIRequestsPerMinute int    `mapstructure:"ai_requests_per_minute" validate:"gte=0"`
	BusinessName        string `mapstructure:"business_name"`
	BusinessDescription string `mapstructure:"business_description"`

	// Routing
	SpamStrategy         string        `mapstructure:"spam_strategy" validate:"oneof=heuristic ai"`
	SpamThreshold        float64       `mapstructure:"spam_threshold" validate:"gt=0,lte=1"`
	OnboardingStrategy   string        `mapstructure:"onboarding_strategy" validate:"oneof=ai scripted"`
	PauseResumeAfter     time.Duration `mapstructure:"pause_resume_after" validate:"gt=0"`
	RepeatSpamWindow     int           `mapstructure:"repeat_spam_window" validate:"gte=1"`
	RepeatSpamMinMatches int           `mapstructure:"repeat_spam_min_matches" validate:"gte=1,ltefield=RepeatSpamWindow"`

	// Conversation history
	HistoryStore string        `mapstructure:"history_store" validate:"oneof=memory redis"`
	HistoryTTL   time.Duration `mapstructure:"history_ttl" validate:"gt=0"`
	RedisURL     string        `mapstructure:"redis_url" validate:"required_if=HistoryStore redis"`

	// Processing
	WorkerPoolSize  int           `mapstructure:"worker_pool_size" validate:"gte=1"`
	WorkerQueueSize int           `mapstructure:"worker_queue_size" validate:"gte=0"`
	OutboundTimeout time.Duration `mapstructure:"outbound_timeout" validate:"gt=0"`
	EventTimeout    time.Duration `mapstructure:"event_timeout" validate:"gt=0"`

	// HTTP surface
	BodyLimit       int           `mapstructure:"body_limit" validate:"gte=1024"`
	RateLimitMax    int           `mapstructure:"rate_limit_max" validate:"gte=1"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window" validate:"gt=0"`
	AdminTokenHash  string        `mapstructure:"admin_token_hash"`
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
}

var defaults = map[string]interface{}{
	"port":                     "3000",
	"log_level":                "info",
	"verify_token":             "",
	"fb_app_secret":            "",
	"fb_app_id":                "",
	"fb_page_access_token":     "",
	"graph_api_url":            "https://graph.facebook.com/v18.0",
	"whatsapp_phone_number_id": "",
	"whatsapp_access_token":    "",
	"support_phone_number":     "",
	"storage_driver":           "mongo",
	"mongo_uri":                "mongodb://localhost:27017",
	"mongo_db_name":            "support_router",
	"postgres_dsn":             "",
	"postgres_auto_migrate":    false,
	"ai_provider":              "gemini",
	"gemini_api_key":           "",
	"gemini_model":             "gemini-2.5-flash",
	"claude_api_key":           "",
	"claude_model":             "claude-3-5-haiku-latest",
	"openai_api_key":           "",
	"openai_model":             "gpt-4o-mini",
	"ai_requests_per_minute":   60,
	"business_name":            "Desert Sound",
	"business_description":     "home theater systems, home automation, premium speakers and their installation",
	"spam_strategy":            "heuristic",
	"spam_threshold":           0.5,
	"onboarding_strategy":      "ai",
	"pause_resume_after":       90 * time.Minute,
	"repeat_spam_window":       3,
	"repeat_spam_min_matches":  2,
	"history_store":            "memory",
	"history_ttl":              24 * time.Hour,
	"redis_url":                "",
	"worker_pool_size":         16,
	"worker_queue_size":        1000,
	"outbound_timeout":         15 * time.Second,
	"event_timeout":            60 * time.Second,
	"body_limit":               10 * 1024,
	"rate_limit_max":           100,
	"rate_limit_window":        15 * time.Minute,
	"admin_token_hash":         "",
	"metrics_enabled":          true,
}

// LoadConfig reads an optional config.yaml from path (or the working
// directory) and overlays environment variables on top of it.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MessengerConfigured reports whether replies can be sent to end users.
func (c *Config) MessengerConfigured() bool {
	return c.PageAccessToken != ""
}

// WhatsAppConfigured reports whether support notifications can be sent.
func (c *Config) WhatsAppConfigured() bool {
	return c.WhatsAppPhoneNumberID != "" && c.WhatsAppAccessToken != "" && c.SupportPhoneNumber != ""
}
