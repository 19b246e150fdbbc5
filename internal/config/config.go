package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// Practice identity spoken to callers.
	PracticeName string

	// Scheduling policy.
	Timezone        string
	ConsultDuration time.Duration
	BusinessHours   string
	MaxSearchProbes int
	MaxSilentTurns  int

	// Calendar provider.
	GoogleCalendarID       string
	GoogleCredentialsJSON  string
	UseMemoryCalendar      bool
	CalendarRequestTimeout time.Duration

	// Session store.
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SessionTTL    time.Duration

	// Language model.
	BedrockModelID string
	GeminiAPIKey   string
	GeminiModelID  string
	LLMMaxTokens   int
	LLMTimeout     time.Duration

	// Call records + events.
	DatabaseURL       string
	CallEventsQueue   string
	UseMemoryQueue    bool
	AdminJWTSecret    string
	VoiceWebhookToken string

	// AWS (Bedrock, SQS).
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		PracticeName: getEnv("PRACTICE_NAME", "the practice"),

		Timezone:        getEnv("PRACTICE_TIMEZONE", "Europe/Paris"),
		ConsultDuration: getEnvAsDuration("CONSULT_DURATION", 30*time.Minute),
		BusinessHours:   getEnv("BUSINESS_HOURS", "Mon-Fri 08:00-18:00, Sat 08:00-12:00"),
		MaxSearchProbes: getEnvAsInt("MAX_SEARCH_PROBES", 16),
		MaxSilentTurns:  getEnvAsInt("MAX_SILENT_TURNS", 2),

		GoogleCalendarID:       getEnv("GOOGLE_CALENDAR_ID", "primary"),
		GoogleCredentialsJSON:  getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		UseMemoryCalendar:      getEnvAsBool("USE_MEMORY_CALENDAR", false),
		CalendarRequestTimeout: getEnvAsDuration("CALENDAR_REQUEST_TIMEOUT", 10*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		LLMMaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 300),
		LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT", 15*time.Second),

		DatabaseURL:       getEnv("DATABASE_URL", ""),
		CallEventsQueue:   getEnv("CALL_EVENTS_QUEUE_URL", ""),
		UseMemoryQueue:    getEnvAsBool("USE_MEMORY_QUEUE", false),
		AdminJWTSecret:    getEnv("ADMIN_JWT_SECRET", ""),
		VoiceWebhookToken: getEnv("VOICE_WEBHOOK_TOKEN", ""),

		AWSRegion:           getEnv("AWS_REGION", "eu-west-3"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
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
