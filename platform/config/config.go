// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// StripeConfig provides payment platform credentials and price mapping.
type StripeConfig interface {
	GetStripeSecretKey() string
	GetStripeWebhookSecret() string
	GetCarePlanPriceIDs() map[string]string
	GetCheckoutSuccessURL() string
	GetCheckoutCancelURL() string
}

// LLMConfig provides settings for the OpenAI-compatible model endpoint.
type LLMConfig interface {
	GetLLMAPIKey() string
	GetLLMBaseURL() string
	GetLLMModel() string
	GetLLMTranscribeModel() string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinIOBucketDocuments() string
}

// GotenbergConfig provides settings for the Gotenberg HTML-to-PDF service.
type GotenbergConfig interface {
	GetGotenbergURL() string
	GetGotenbergUsername() string
	GetGotenbergPassword() string
	IsGotenbergEnabled() bool
}

// SMTPConfig provides settings for outbound mail.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsSMTPEnabled() bool
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	IsSchedulerEnabled() bool
}

// AgencyConfig provides agency-wide settings used by domain modules.
type AgencyConfig interface {
	GetAgencyName() string
	GetAppBaseURL() string
	GetTeamNotificationEmail() string
	GetPhoneDefaultRegion() string
	GetProvisioningRepoOrg() string
	GetProvisioningStagingDomain() string
	GetLeadFollowUpDelay() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                       string
	HTTPAddr                  string
	DatabaseURL               string
	JWTAccessSecret           string
	CORSAllowAll              bool
	CORSOrigins               []string
	CORSAllowCreds            bool
	StripeSecretKey           string
	StripeWebhookSecret       string
	StripeCareBasicPriceID    string
	StripeCarePlusPriceID     string
	StripeCareProPriceID      string
	LLMAPIKey                 string
	LLMBaseURL                string
	LLMModel                  string
	LLMTranscribeModel        string
	MinIOEndpoint             string
	MinIOAccessKey            string
	MinIOSecretKey            string
	MinIOUseSSL               bool
	MinIOMaxFileSize          int64
	MinIOBucketDocuments      string
	GotenbergURL              string
	GotenbergUsername         string
	GotenbergPassword         string
	SMTPHost                  string
	SMTPPort                  int
	SMTPUsername              string
	SMTPPassword              string
	EmailFromName             string
	EmailFromAddress          string
	RedisURL                  string
	RedisTLSInsecure          bool
	AsynqQueueName            string
	AsynqConcurrency          int
	AgencyName                string
	AppBaseURL                string
	TeamNotificationEmail     string
	PhoneDefaultRegion        string
	ProvisioningRepoOrg       string
	ProvisioningStagingDomain string
	LeadFollowUpDelay         time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// StripeConfig implementation
func (c *Config) GetStripeSecretKey() string     { return c.StripeSecretKey }
func (c *Config) GetStripeWebhookSecret() string { return c.StripeWebhookSecret }
func (c *Config) GetCheckoutSuccessURL() string  { return c.AppBaseURL + "/portal/proposals/accepted" }
func (c *Config) GetCheckoutCancelURL() string   { return c.AppBaseURL + "/portal/proposals" }

// GetCarePlanPriceIDs returns price id -> plan for every configured care plan.
func (c *Config) GetCarePlanPriceIDs() map[string]string {
	out := make(map[string]string, 3)
	for priceID, plan := range map[string]string{
		c.StripeCareBasicPriceID: "care_basic",
		c.StripeCarePlusPriceID:  "care_plus",
		c.StripeCareProPriceID:   "care_pro",
	} {
		if priceID != "" {
			out[priceID] = plan
		}
	}
	return out
}

// LLMConfig implementation
func (c *Config) GetLLMAPIKey() string          { return c.LLMAPIKey }
func (c *Config) GetLLMBaseURL() string         { return c.LLMBaseURL }
func (c *Config) GetLLMModel() string           { return c.LLMModel }
func (c *Config) GetLLMTranscribeModel() string { return c.LLMTranscribeModel }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string        { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string       { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string       { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool            { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64      { return c.MinIOMaxFileSize }
func (c *Config) GetMinIOBucketDocuments() string { return c.MinIOBucketDocuments }

// GotenbergConfig implementation
func (c *Config) GetGotenbergURL() string      { return c.GotenbergURL }
func (c *Config) GetGotenbergUsername() string { return c.GotenbergUsername }
func (c *Config) GetGotenbergPassword() string { return c.GotenbergPassword }
func (c *Config) IsGotenbergEnabled() bool     { return c.GotenbergURL != "" }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsSMTPEnabled() bool         { return c.SMTPHost != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) IsSchedulerEnabled() bool  { return c.RedisURL != "" }

// AgencyConfig implementation
func (c *Config) GetAgencyName() string                { return c.AgencyName }
func (c *Config) GetAppBaseURL() string                { return c.AppBaseURL }
func (c *Config) GetTeamNotificationEmail() string     { return c.TeamNotificationEmail }
func (c *Config) GetPhoneDefaultRegion() string        { return c.PhoneDefaultRegion }
func (c *Config) GetProvisioningRepoOrg() string       { return c.ProvisioningRepoOrg }
func (c *Config) GetProvisioningStagingDomain() string { return c.ProvisioningStagingDomain }
func (c *Config) GetLeadFollowUpDelay() time.Duration  { return c.LeadFollowUpDelay }

// Load reads configuration from the environment, preloading .env when present.
// Missing credentials for the store, auth, payments, storage or the LLM are
// reported together as a single error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                       getEnv("APP_ENV", "development"),
		HTTPAddr:                  getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		JWTAccessSecret:           getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:              corsAllowAll,
		CORSOrigins:               corsOrigins,
		CORSAllowCreds:            strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		StripeSecretKey:           getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:       getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeCareBasicPriceID:    getEnv("STRIPE_CARE_BASIC_PRICE_ID", ""),
		StripeCarePlusPriceID:     getEnv("STRIPE_CARE_PLUS_PRICE_ID", ""),
		StripeCareProPriceID:      getEnv("STRIPE_CARE_PRO_PRICE_ID", ""),
		LLMAPIKey:                 getEnv("LLM_API_KEY", ""),
		LLMBaseURL:                strings.TrimRight(getEnv("LLM_BASE_URL", "https://api.openai.com/v1"), "/"),
		LLMModel:                  getEnv("LLM_MODEL", "gpt-4o"),
		LLMTranscribeModel:        getEnv("LLM_TRANSCRIBE_MODEL", "whisper-1"),
		MinIOEndpoint:             getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:            getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:            getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:               strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:          mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "104857600")),
		MinIOBucketDocuments:      getEnv("MINIO_BUCKET_DOCUMENTS", "agency-documents"),
		GotenbergURL:              getEnv("GOTENBERG_URL", ""),
		GotenbergUsername:         getEnv("GOTENBERG_USERNAME", ""),
		GotenbergPassword:         getEnv("GOTENBERG_PASSWORD", ""),
		SMTPHost:                  getEnv("SMTP_HOST", ""),
		SMTPPort:                  mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:              getEnv("SMTP_USERNAME", ""),
		SMTPPassword:              getEnv("SMTP_PASSWORD", ""),
		EmailFromName:             getEnv("EMAIL_FROM_NAME", "Agency"),
		EmailFromAddress:          getEnv("EMAIL_FROM_ADDRESS", ""),
		RedisURL:                  getEnv("REDIS_URL", ""),
		RedisTLSInsecure:          strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:            getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:          mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		AgencyName:                getEnv("AGENCY_NAME", "Agency"),
		AppBaseURL:                strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:5173"), "/"),
		TeamNotificationEmail:     getEnv("TEAM_NOTIFICATION_EMAIL", ""),
		PhoneDefaultRegion:        strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "GB")),
		ProvisioningRepoOrg:       getEnv("PROVISIONING_REPO_ORG", "agency"),
		ProvisioningStagingDomain: getEnv("PROVISIONING_STAGING_DOMAIN", "vercel.app"),
		LeadFollowUpDelay:         mustDuration(getEnv("LEAD_FOLLOW_UP_DELAY", "48h")),
	}

	var missing []string
	for key, val := range map[string]string{
		"DATABASE_URL":          cfg.DatabaseURL,
		"JWT_ACCESS_SECRET":     cfg.JWTAccessSecret,
		"STRIPE_SECRET_KEY":     cfg.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": cfg.StripeWebhookSecret,
		"LLM_API_KEY":           cfg.LLMAPIKey,
		"MINIO_ENDPOINT":        cfg.MinIOEndpoint,
		"MINIO_ACCESS_KEY":      cfg.MinIOAccessKey,
		"MINIO_SECRET_KEY":      cfg.MinIOSecretKey,
	} {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if cfg.IsSMTPEnabled() && cfg.EmailFromAddress == "" {
		return nil, errors.New("EMAIL_FROM_ADDRESS is required when SMTP_HOST is set")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, errors.New("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.LeadFollowUpDelay <= 0 {
		return nil, errors.New("LEAD_FOLLOW_UP_DELAY must be a positive duration")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
