// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"time"
)

// ValidationMode controls what happens to an offer that fails the
// business-rule validator.
type ValidationMode string

const (
	// ValidationPermissive delivers the offer and logs the violations.
	ValidationPermissive ValidationMode = "permissive"
	// ValidationStrict suppresses the offer and keeps the reply.
	ValidationStrict ValidationMode = "strict"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret string

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DefaultLLM      string
	LLMTimeout      time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// Chat-send limiter: calls per rolling window, per client.
	ChatRateLimitRequests int
	ChatRateLimitWindow   time.Duration

	// Offer pipeline
	OfferValidationMode ValidationMode

	// Prompt budgets
	MaxMessageLength   int
	KnowledgeItemChars int
	PromptBudgetChars  int
	ContextWindow      int

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		DefaultLLM:      getEnv("DEFAULT_LLM", "anthropic"),
		LLMTimeout:      getDurationEnv("LLM_TIMEOUT", 60*time.Second),

		// Rate limiting
		RateLimitRequests:     getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:       getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		ChatRateLimitRequests: getIntEnv("CHAT_RATE_LIMIT_REQUESTS", 10),
		ChatRateLimitWindow:   getDurationEnv("CHAT_RATE_LIMIT_WINDOW", time.Minute),

		// Offer pipeline
		OfferValidationMode: validationMode(getEnv("OFFER_VALIDATION_MODE", "permissive")),

		// Prompt budgets
		MaxMessageLength:   getIntEnv("MAX_MESSAGE_LENGTH", 2000),
		KnowledgeItemChars: getIntEnv("KNOWLEDGE_ITEM_CHARS", 1000),
		PromptBudgetChars:  getIntEnv("PROMPT_BUDGET_CHARS", 8000),
		ContextWindow:      getIntEnv("CONTEXT_WINDOW", 10),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func validationMode(s string) ValidationMode {
	if s == string(ValidationStrict) {
		return ValidationStrict
	}
	return ValidationPermissive
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
