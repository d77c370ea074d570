package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	LogLevel  string
	LogPretty bool

	DBPath     string
	RawMailDir string
	OutputDir  string

	MatchAdmissionThreshold float64
	MatchAutoPriceThreshold float64
	AutoSendConfidence      float64

	TaxRateLocal      float64
	TaxRateCentral    float64
	CurrencyWord      string
	QuoteValidityDays int

	CompanyName    string
	CompanyAddress string
	CompanyEmail   string
	CompanyPhone   string
	CompanyTaxID   string
	AdminEmail     string

	AIAPIKey    string
	AIBaseURL   string
	AIModel     string
	AITimeout   time.Duration
	AIRateLimit int
	AIMaxTokens int

	SweepBudget   time.Duration
	SweepSchedule string
	SweepLockTTL  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DocumentStore   string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3PublicBaseURL string

	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPassword    string
	SMTPFrom        string
	DispatchTimeout time.Duration

	HTTPAddr   string
	AdminToken string
	CronSecret string

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string

	MaildropDir string

	CatalogFeedURL     string
	CatalogFeedToken   string
	CatalogFeedTimeout time.Duration
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Env:       getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", ""),
		LogPretty: getEnvBool("LOG_PRETTY", false),

		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "autoquote.db")),
		RawMailDir: getEnv("RAW_MAIL_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		MatchAdmissionThreshold: getEnvFloat("MATCH_ADMISSION_THRESHOLD", 0.70),
		MatchAutoPriceThreshold: getEnvFloat("MATCH_AUTO_PRICE_THRESHOLD", 0.95),
		AutoSendConfidence:      getEnvFloat("AUTO_SEND_CONFIDENCE", 95),

		TaxRateLocal:      getEnvFloat("TAX_RATE_LOCAL", 0.09),
		TaxRateCentral:    getEnvFloat("TAX_RATE_CENTRAL", 0.09),
		CurrencyWord:      getEnv("CURRENCY_WORD", "Rupees"),
		QuoteValidityDays: getEnvInt("QUOTE_VALIDITY_DAYS", 30),

		CompanyName:    getEnv("COMPANY_NAME", "Your Company"),
		CompanyAddress: getEnv("COMPANY_ADDRESS", ""),
		CompanyEmail:   getEnv("COMPANY_EMAIL", ""),
		CompanyPhone:   getEnv("COMPANY_PHONE", ""),
		CompanyTaxID:   getEnv("COMPANY_TAX_ID", ""),
		AdminEmail:     getEnv("ADMIN_EMAIL", ""),

		AIAPIKey:    getEnv("AI_API_KEY", getEnv("GROQ_API_KEY", "")),
		AIBaseURL:   getEnv("AI_BASE_URL", "https://api.groq.com/openai/v1"),
		AIModel:     getEnv("AI_MODEL", "llama-3.3-70b-versatile"),
		AITimeout:   getEnvDuration("AI_TIMEOUT", 20*time.Second),
		AIRateLimit: getEnvInt("AI_RATE_LIMIT_RPS", 2),
		AIMaxTokens: getEnvInt("AI_MAX_TOKENS", 1000),

		SweepBudget:   getEnvDuration("SWEEP_BUDGET", 50*time.Second),
		SweepSchedule: getEnv("SWEEP_SCHEDULE", "@every 5m"),
		SweepLockTTL:  getEnvDuration("SWEEP_LOCK_TTL", 2*time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DocumentStore:   getEnv("DOCUMENT_STORE", "local"),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Region:        getEnv("S3_REGION", "ap-south-1"),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),

		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnvInt("SMTP_PORT", 587),
		SMTPUser:        getEnv("SMTP_USER", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:        getEnv("SMTP_FROM", ""),
		DispatchTimeout: getEnvDuration("DISPATCH_TIMEOUT", 30*time.Second),

		HTTPAddr:   getEnv("HTTP_ADDR", ":8080"),
		AdminToken: getEnv("ADMIN_TOKEN", ""),
		CronSecret: getEnv("CRON_SECRET", ""),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),

		MaildropDir: getEnv("MAILDROP_DIR", filepath.Join(cwd, "data", "maildrop")),

		CatalogFeedURL:     getEnv("CATALOG_FEED_URL", ""),
		CatalogFeedToken:   getEnv("CATALOG_FEED_TOKEN", ""),
		CatalogFeedTimeout: getEnvDuration("CATALOG_FEED_TIMEOUT", 30*time.Second),
	}

	if cfg.MatchAdmissionThreshold > cfg.MatchAutoPriceThreshold {
		return Config{}, fmt.Errorf("MATCH_ADMISSION_THRESHOLD (%.2f) must not exceed MATCH_AUTO_PRICE_THRESHOLD (%.2f)", cfg.MatchAdmissionThreshold, cfg.MatchAutoPriceThreshold)
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	// bare integers are seconds
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
