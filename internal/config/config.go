package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig     `yaml:"server"`
	Environment string           `yaml:"environment"`
	LogLevel    string           `yaml:"log_level"`
	Validation  ValidationConfig `yaml:"validation"`
	HubSpot     HubSpotConfig    `yaml:"hubspot"`
	Webhook     WebhookConfig    `yaml:"webhook"`
	Storage     StorageConfig    `yaml:"storage"`
	Redis       RedisConfig      `yaml:"redis"`
}

// IsProduction reports whether the service runs in the production environment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                   int    `yaml:"port"`
	Host                   string `yaml:"host"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// ShutdownTimeout bounds graceful shutdown, including webhook task draining.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// ValidationConfig toggles correction rules and sets retention windows.
type ValidationConfig struct {
	RemoveGmailAliases  bool `yaml:"remove_gmail_aliases"`
	CheckAustralianTLDs bool `yaml:"check_australian_tlds"`
	KnownValidTTLDays   int  `yaml:"known_valid_ttl_days"`
	ResultLogTTLDays    int  `yaml:"result_log_ttl_days"`
}

func (c ValidationConfig) KnownValidTTL() time.Duration {
	return time.Duration(c.KnownValidTTLDays) * 24 * time.Hour
}

func (c ValidationConfig) ResultLogTTL() time.Duration {
	return time.Duration(c.ResultLogTTLDays) * 24 * time.Hour
}

// HubSpotConfig holds webhook verification and CRM API settings
type HubSpotConfig struct {
	ClientSecret              string `yaml:"client_secret"`
	APIKey                    string `yaml:"api_key"`
	BaseURL                   string `yaml:"base_url"`
	SkipSignatureVerification bool   `yaml:"skip_signature_verification"`
	TimeoutSeconds            int    `yaml:"timeout_seconds"`
	MaxRetries                int    `yaml:"max_retries"`
}

// Timeout returns the per-request CRM timeout.
func (c HubSpotConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WebhookConfig controls the detached webhook processing.
type WebhookConfig struct {
	TaskTimeoutSeconds int `yaml:"task_timeout_seconds"`
	DedupeTTLSeconds   int `yaml:"dedupe_ttl_seconds"`
}

func (c WebhookConfig) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutSeconds) * time.Second
}

func (c WebhookConfig) DedupeTTL() time.Duration {
	return time.Duration(c.DedupeTTLSeconds) * time.Second
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type               string `yaml:"type"` // local, redis, aws, postgres
	KnownValidPath     string `yaml:"known_valid_path"`
	ResultsPath        string `yaml:"results_path"`
	DatabaseURL        string `yaml:"database_url"`
	S3Bucket           string `yaml:"s3_bucket"`
	DynamoDBTable      string `yaml:"dynamodb_table"`
	DynamoDBEndpoint   string `yaml:"dynamodb_endpoint"`
	AWSRegion          string `yaml:"aws_region"`
	AWSProfile         string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	AWSAccessKeyID     string `yaml:"-"`
	AWSSecretAccessKey string `yaml:"-"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// RedisConfig holds the optional Redis connection. It backs the redis
// storage type and webhook de-duplication.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// defaults returns the configuration used for keys absent from the file.
// Boolean rules default to enabled, so they are seeded before decoding
// instead of being patched afterwards.
func defaults() Config {
	return Config{
		Server:      ServerConfig{Port: 3000, Host: "localhost", ShutdownTimeoutSeconds: 15},
		Environment: "development",
		LogLevel:    "info",
		Validation: ValidationConfig{
			RemoveGmailAliases:  true,
			CheckAustralianTLDs: true,
			KnownValidTTLDays:   30,
			ResultLogTTLDays:    90,
		},
		HubSpot: HubSpotConfig{
			BaseURL:        "https://api.hubapi.com",
			TimeoutSeconds: 30,
			MaxRetries:     3,
		},
		Webhook: WebhookConfig{TaskTimeoutSeconds: 60, DedupeTTLSeconds: 600},
		Storage: StorageConfig{
			Type:           "local",
			KnownValidPath: "data/known_valid_emails.csv",
			ResultsPath:    "data/validation_results.csv",
			DynamoDBTable:  "email-validator",
			AWSRegion:      "us-east-1",
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	// Zero values written explicitly in the file fall back to defaults.
	d := defaults()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = d.Server.ShutdownTimeoutSeconds
	}
	if cfg.Validation.KnownValidTTLDays <= 0 {
		cfg.Validation.KnownValidTTLDays = d.Validation.KnownValidTTLDays
	}
	if cfg.Validation.ResultLogTTLDays <= 0 {
		cfg.Validation.ResultLogTTLDays = d.Validation.ResultLogTTLDays
	}
	if cfg.HubSpot.TimeoutSeconds == 0 {
		cfg.HubSpot.TimeoutSeconds = d.HubSpot.TimeoutSeconds
	}
	if cfg.Webhook.TaskTimeoutSeconds == 0 {
		cfg.Webhook.TaskTimeoutSeconds = d.Webhook.TaskTimeoutSeconds
	}
	if cfg.Webhook.DedupeTTLSeconds == 0 {
		cfg.Webhook.DedupeTTLSeconds = d.Webhook.DedupeTTLSeconds
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = d.Storage.Type
	}

	return &cfg, nil
}

// LoadFromEnv loads the YAML file, then applies environment overrides.
// A .env file in the working directory is read first when present.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("NODE_ENV"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Rules stay enabled unless explicitly switched off.
	if v, ok := os.LookupEnv("REMOVE_GMAIL_ALIASES"); ok {
		cfg.Validation.RemoveGmailAliases = v != "false"
	}
	if v, ok := os.LookupEnv("CHECK_AUSTRALIAN_TLDS"); ok {
		cfg.Validation.CheckAustralianTLDs = v != "false"
	}
	if err := envPositiveInt("KNOWN_VALID_TTL_DAYS", &cfg.Validation.KnownValidTTLDays); err != nil {
		return err
	}
	if err := envPositiveInt("RESULT_LOG_TTL_DAYS", &cfg.Validation.ResultLogTTLDays); err != nil {
		return err
	}

	if v := os.Getenv("HUBSPOT_CLIENT_SECRET"); v != "" {
		cfg.HubSpot.ClientSecret = v
	}
	if v := os.Getenv("HUBSPOT_API_KEY"); v != "" {
		cfg.HubSpot.APIKey = v
	}
	if v := os.Getenv("HUBSPOT_BASE_URL"); v != "" {
		cfg.HubSpot.BaseURL = v
	}
	// Only the literal "true" turns verification off.
	if v, ok := os.LookupEnv("SKIP_SIGNATURE_VERIFICATION"); ok {
		cfg.HubSpot.SkipSignatureVerification = v == "true"
	}

	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("KNOWN_VALID_EMAILS_PATH"); v != "" {
		cfg.Storage.KnownValidPath = v
	}
	if v := os.Getenv("VALIDATION_RESULTS_PATH"); v != "" {
		cfg.Storage.ResultsPath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("DYNAMODB_TABLE"); v != "" {
		cfg.Storage.DynamoDBTable = v
	}
	if v := os.Getenv("DYNAMODB_ENDPOINT"); v != "" {
		cfg.Storage.DynamoDBEndpoint = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
	}
	cfg.Storage.AWSAccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.Storage.AWSSecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	return nil
}

func envPositiveInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid %s %q: must be a positive integer", key, v)
	}
	*dst = n
	return nil
}
