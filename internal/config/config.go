package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port     string
	LogLevel string

	AirtableBaseURL string
	AirtableAPIKey  string
	AirtableBaseID  string
	AirtableTable   string
	StoreTimeout    time.Duration

	StaffAPIToken string

	OTLPEndpoint string
	OTLPInsecure bool

	SMSProvider        string
	SMSFromNumber      string
	SMSWebhookURL      string
	SMSWebhookToken    string
	SMSTemplate        string
	DefaultCountryCode string

	RateLimitPerMinute      int
	RateLimitBurst          int
	ActorRateLimitPerMinute int
	ActorRateLimitBurst     int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	table := os.Getenv("AIRTABLE_TABLE")
	if table == "" {
		table = "Queue"
	}
	country := os.Getenv("DEFAULT_COUNTRY_CODE")
	if country == "" {
		country = "1"
	}

	return Config{
		Port:     port,
		LogLevel: os.Getenv("LOG_LEVEL"),

		AirtableBaseURL: os.Getenv("AIRTABLE_BASE_URL"),
		AirtableAPIKey:  os.Getenv("AIRTABLE_API_KEY"),
		AirtableBaseID:  os.Getenv("AIRTABLE_BASE_ID"),
		AirtableTable:   table,
		StoreTimeout:    readDurationSeconds("STORE_TIMEOUT_SECONDS", 10),

		StaffAPIToken: os.Getenv("STAFF_API_TOKEN"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure: readBool("OTEL_EXPORTER_OTLP_INSECURE", false),

		SMSProvider:        os.Getenv("SMS_PROVIDER"),
		SMSFromNumber:      os.Getenv("SMS_FROM_NUMBER"),
		SMSWebhookURL:      os.Getenv("SMS_WEBHOOK_URL"),
		SMSWebhookToken:    os.Getenv("SMS_WEBHOOK_TOKEN"),
		SMSTemplate:        os.Getenv("SMS_TEMPLATE"),
		DefaultCountryCode: country,

		RateLimitPerMinute:      readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:          readInt("RATE_LIMIT_BURST", 30),
		ActorRateLimitPerMinute: readInt("ACTOR_RATE_LIMIT_PER_MIN", 600),
		ActorRateLimitBurst:     readInt("ACTOR_RATE_LIMIT_BURST", 120),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
