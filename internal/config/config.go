package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/oops"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	AppEnv           string `validate:"required"`
	AppName          string `validate:"required"`
	APIPrefix        string `validate:"required,startswith=/"`
	AppPort          string `validate:"required,numeric"`
	LogMode          string `validate:"oneof=dev development prod production"`
	DatabaseURL      string
	SessionStore     string `validate:"oneof=memory redis"`
	RedisURL         string
	CORSAllowOrigins []string `validate:"min=1,dive,required"`

	DialogflowProjectID    string
	DialogflowClientEmail  string
	DialogflowPrivateKey   string
	DialogflowLanguageCode string `validate:"required"`

	LlamaAPIKey         string
	LlamaBaseURL        string   `validate:"required,url"`
	LlamaModels         []string `validate:"min=1,dive,required"`
	LlamaTimeoutSeconds int      `validate:"gt=0"`
	LlamaTemperature    float64  `validate:"gte=0,lte=2"`
	LlamaMaxTokens      int      `validate:"gt=0"`
	LlamaTopP           float64  `validate:"gt=0,lte=1"`

	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioWhatsAppNumber    string
	TwilioValidateSignature bool
	TwilioWebhookURL        string

	TranscriptListLimit int `validate:"gt=0,lte=100"`
}

func Load() Config {
	_ = godotenv.Load(".env")

	return Config{
		AppEnv:       getEnv("APP_ENV", "local"),
		AppName:      getEnv("APP_NAME", "Swasthya HealthBot API"),
		APIPrefix:    getEnv("API_PREFIX", "/api"),
		AppPort:      getEnv("APP_PORT", getEnv("PORT", "3001")),
		LogMode:      strings.ToLower(getEnv("LOG_MODE", "dev")),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SessionStore: strings.ToLower(getEnv("SESSION_STORE", SessionStoreMemory)),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CORSAllowOrigins: getEnvCSV(
			"CORS_ALLOW_ORIGINS",
			[]string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:3000"},
		),

		DialogflowProjectID:    getEnv("DIALOGFLOW_PROJECT_ID", "default-project"),
		DialogflowClientEmail:  getEnv("DIALOGFLOW_CLIENT_EMAIL", ""),
		DialogflowPrivateKey:   getEnv("DIALOGFLOW_PRIVATE_KEY", ""),
		DialogflowLanguageCode: getEnv("DIALOGFLOW_LANGUAGE_CODE", "en"),

		LlamaAPIKey:  getEnv("LLAMA_API_KEY", ""),
		LlamaBaseURL: getEnv("LLAMA_BASE_URL", "https://api.groq.com/openai/v1"),
		LlamaModels: getEnvCSV("LLAMA_MODELS", []string{
			"llama-3.3-70b-versatile",
			"llama-3.1-8b-instant",
			"llama-4-scout-17b-16e",
			"compound-mini",
		}),
		LlamaTimeoutSeconds: getEnvInt("LLAMA_TIMEOUT_SECONDS", 15),
		LlamaTemperature:    getEnvFloat("LLAMA_TEMPERATURE", 0.7),
		LlamaMaxTokens:      getEnvInt("LLAMA_MAX_TOKENS", 1000),
		LlamaTopP:           getEnvFloat("LLAMA_TOP_P", 0.9),

		TwilioAccountSID:        getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:         getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppNumber:    getEnv("TWILIO_WHATSAPP_NUMBER", ""),
		TwilioValidateSignature: getEnvBool("TWILIO_VALIDATE_SIGNATURE", false),
		TwilioWebhookURL:        getEnv("TWILIO_WEBHOOK_URL", ""),

		TranscriptListLimit: getEnvInt("TRANSCRIPT_LIST_LIMIT", 15),
	}
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return oops.In("config").With("field", first.Field()).
				Errorf("%s failed %q validation", first.Field(), first.Tag())
		}
		return oops.In("config").Wrapf(err, "validate config")
	}
	if c.SessionStore == SessionStoreRedis && strings.TrimSpace(c.RedisURL) == "" {
		return errors.New("REDIS_URL is required when SESSION_STORE=redis")
	}
	if c.TwilioValidateSignature {
		if strings.TrimSpace(c.TwilioWebhookURL) == "" {
			return errors.New("TWILIO_WEBHOOK_URL is required when TWILIO_VALIDATE_SIGNATURE=true")
		}
		if strings.TrimSpace(c.TwilioAuthToken) == "" {
			return errors.New("TWILIO_AUTH_TOKEN is required when TWILIO_VALIDATE_SIGNATURE=true")
		}
	}
	return nil
}

func (c Config) DialogflowConfigured() bool {
	return strings.TrimSpace(c.DialogflowClientEmail) != "" && strings.TrimSpace(c.DialogflowPrivateKey) != ""
}

func (c Config) LlamaConfigured() bool {
	return strings.TrimSpace(c.LlamaAPIKey) != ""
}

func (c Config) TwilioConfigured() bool {
	return strings.TrimSpace(c.TwilioAccountSID) != "" && strings.TrimSpace(c.TwilioAuthToken) != ""
}

func (c Config) DatabaseConfigured() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvCSV(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, item := range parts {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}
