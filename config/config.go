package config

import (
	"crypto/rand"
	"encoding/base64"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// MinJWTSecretLength is the minimum required length for the token signing secret in production
	MinJWTSecretLength = 32
)

// Ledger drivers
const (
	LedgerDriverMemory   = "memory"
	LedgerDriverPostgres = "postgres"
	LedgerDriverHTTP     = "http"
)

type Config struct {
	ServerPort  string
	DBPath      string
	Environment string
	LogLevel    string
	LogFormat   string
	// Bearer credentials
	JWTSecret string
	TokenTTL  time.Duration
	// External ledger
	LedgerDriver      string
	LedgerDatabaseURL string
	LedgerURL         string
	LedgerAPIKey      string
	// Anchoring pipeline
	AnchorMaxAttempts    int
	AnchorBaseBackoff    time.Duration
	AnchorMaxBackoff     time.Duration
	AnchorAttemptTimeout time.Duration
	AnchorQueueSize      int
	AnchorReconcileSpec  string
	// Rate limiting (optional shared store)
	RateLimitRedisURL string
	// Email (Resend)
	ResendAPIKey  string
	EmailFrom     string
	EmailFromName string
	EmailTestMode bool // When true, emails are logged instead of sent
	// Report archive (Cloudflare R2, local fallback)
	ReportDir         string
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string
}

func Load() *Config {
	// Load .env file (ignore error if not present - use system env vars)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	environment := getEnv("ENVIRONMENT", "development")
	jwtSecret := getEnv("JWT_SECRET", "")

	// Validate signing secret - this will fatal in production if invalid
	ValidateJWTSecret(jwtSecret, environment)

	if jwtSecret == "" && environment != "production" {
		jwtSecret = GenerateSecureSecret()
		log.Println("[INFO] Generated temporary JWT secret for development. Set JWT_SECRET env var for persistence.")
	}

	return &Config{
		ServerPort:           getEnv("SERVER_PORT", "8080"),
		DBPath:               getEnv("DB_PATH", "db/app.db"),
		Environment:          environment,
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "text"),
		JWTSecret:            jwtSecret,
		TokenTTL:             getEnvDuration("TOKEN_TTL", 30*time.Minute),
		LedgerDriver:         strings.ToLower(getEnv("LEDGER_DRIVER", LedgerDriverMemory)),
		LedgerDatabaseURL:    getEnv("LEDGER_DATABASE_URL", ""),
		LedgerURL:            getEnv("LEDGER_URL", ""),
		LedgerAPIKey:         getEnv("LEDGER_API_KEY", ""),
		AnchorMaxAttempts:    getEnvInt("ANCHOR_MAX_ATTEMPTS", 5),
		AnchorBaseBackoff:    getEnvDuration("ANCHOR_BASE_BACKOFF", 500*time.Millisecond),
		AnchorMaxBackoff:     getEnvDuration("ANCHOR_MAX_BACKOFF", 30*time.Second),
		AnchorAttemptTimeout: getEnvDuration("ANCHOR_ATTEMPT_TIMEOUT", 10*time.Second),
		AnchorQueueSize:      getEnvInt("ANCHOR_QUEUE_SIZE", 1024),
		AnchorReconcileSpec:  getEnv("ANCHOR_RECONCILE_SPEC", "@every 1m"),
		RateLimitRedisURL:    getEnv("RATE_LIMIT_REDIS_URL", ""),
		ResendAPIKey:         getEnv("RESEND_API_KEY", ""),
		EmailFrom:            getEnv("EMAIL_FROM", "noreply@lawledger.app"),
		EmailFromName:        getEnv("EMAIL_FROM_NAME", "Law Ledger"),
		EmailTestMode:        getEnvBool("EMAIL_TEST_MODE", true), // Default true for safety
		ReportDir:            getEnv("REPORT_DIR", "reports"),
		R2AccountID:          getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:        getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey:    getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:         getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:          getEnv("R2_PUBLIC_URL", ""),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		if !strings.Contains(key, "SECRET") && !strings.Contains(key, "KEY") {
			log.Printf("Using default value for %s: %s", key, defaultValue)
		}
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept common boolean representations
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Printf("[WARNING] Invalid value for %s: %q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("[WARNING] Invalid duration for %s: %q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

// ValidateJWTSecret validates the token signing secret meets security requirements
// In production, it must be at least 32 bytes and not a known insecure default
func ValidateJWTSecret(secret string, environment string) error {
	// Known insecure defaults that must be rejected
	insecureDefaults := []string{
		"dev-secret-change-in-production",
		"change-me",
		"secret",
		"development",
		"test",
		"",
	}

	for _, insecure := range insecureDefaults {
		if strings.EqualFold(secret, insecure) {
			if environment == "production" {
				log.Fatal("[CRITICAL] JWT_SECRET is set to an insecure default value. Generate a secure random secret with: openssl rand -base64 32")
			}
			log.Printf("[WARNING] JWT_SECRET is set to an insecure default value. This is acceptable only in development.")
			return nil
		}
	}

	if environment == "production" {
		if len(secret) < MinJWTSecretLength {
			log.Fatalf("[CRITICAL] JWT_SECRET must be at least %d characters in production (current: %d). Generate with: openssl rand -base64 32", MinJWTSecretLength, len(secret))
		}
	}

	return nil
}

// GenerateSecureSecret generates a cryptographically secure random secret
// This is used only for development when no secret is provided
func GenerateSecureSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Printf("[WARNING] Failed to generate secure secret: %v", err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(bytes)
}
