package config

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string
	Env  string

	MongoURI     string
	DatabaseName string

	JWTSecret          string
	JWTExpirationHours int

	// KeyDerivationSalt feeds the per-user file key derivation. Changing it
	// makes every stored blob undecryptable, so it is set once per deployment.
	KeyDerivationSalt string

	// BlobBackend selects where encrypted blobs live: "disk" or "b2".
	BlobBackend string
	BlobRoot    string

	B2ApplicationKeyID string
	B2ApplicationKey   string
	B2BucketName       string

	MaxFileSize int64
	CopyWorkers int

	StaleUploadTTL           time.Duration
	StaleUploadSweepInterval time.Duration

	AllowedOrigins []string
}

var AppConfig *Config

func LoadConfig() {
	AppConfig = &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DatabaseName: getEnv("DATABASE_NAME", "filevault"),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTExpirationHours: parseInt(getEnv("JWT_EXPIRATION_HOURS", "24")),

		KeyDerivationSalt: getEnv("KEY_DERIVATION_SALT", ""),

		BlobBackend: getEnv("BLOB_BACKEND", "disk"),
		BlobRoot:    getEnv("BLOB_ROOT", "./data/blobs"),

		B2ApplicationKeyID: getEnv("B2_APPLICATION_KEY_ID", ""),
		B2ApplicationKey:   getEnv("B2_APPLICATION_KEY", ""),
		B2BucketName:       getEnv("B2_BUCKET_NAME", ""),

		MaxFileSize: parseInt64(getEnv("MAX_FILE_SIZE", "5368709120")),
		CopyWorkers: parseInt(getEnv("COPY_WORKERS", "4")),

		StaleUploadTTL:           parseDuration(getEnv("STALE_UPLOAD_TTL", "168h")),
		StaleUploadSweepInterval: parseDuration(getEnv("STALE_UPLOAD_SWEEP_INTERVAL", "1h")),

		AllowedOrigins: parseStringSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	logConfig()
	validateConfig()
}

func logConfig() {
	log.Println("Configuration loaded:")
	log.Printf("  Port: %s", AppConfig.Port)
	log.Printf("  Environment: %s", AppConfig.Env)
	log.Printf("  Database: %s", AppConfig.DatabaseName)
	log.Printf("  MongoDB URI: %s", maskConnectionString(AppConfig.MongoURI))
	log.Printf("  JWT Secret: %s", maskSecret(AppConfig.JWTSecret))
	log.Printf("  Key Derivation Salt: %s", maskSecret(AppConfig.KeyDerivationSalt))
	log.Printf("  Blob Backend: %s", AppConfig.BlobBackend)
	log.Printf("  Blob Root: %s", AppConfig.BlobRoot)
	log.Printf("  B2 Key ID: %s", maskSecret(AppConfig.B2ApplicationKeyID))
	log.Printf("  B2 Bucket: %s", AppConfig.B2BucketName)
	log.Printf("  Max File Size: %d bytes", AppConfig.MaxFileSize)
	log.Printf("  Copy Workers: %d", AppConfig.CopyWorkers)
	log.Printf("  Stale Upload TTL: %v", AppConfig.StaleUploadTTL)
	log.Printf("  Stale Upload Sweep Interval: %v", AppConfig.StaleUploadSweepInterval)
	log.Printf("  Allowed Origins: %v", AppConfig.AllowedOrigins)
}

func validateConfig() {
	var missingVars []string

	required := map[string]string{
		"MONGO_URI":           AppConfig.MongoURI,
		"JWT_SECRET":          AppConfig.JWTSecret,
		"KEY_DERIVATION_SALT": AppConfig.KeyDerivationSalt,
	}
	if AppConfig.BlobBackend == "b2" {
		required["B2_APPLICATION_KEY_ID"] = AppConfig.B2ApplicationKeyID
		required["B2_APPLICATION_KEY"] = AppConfig.B2ApplicationKey
		required["B2_BUCKET_NAME"] = AppConfig.B2BucketName
	}

	for key, value := range required {
		if value == "" {
			missingVars = append(missingVars, key)
		}
	}

	if AppConfig.BlobBackend != "disk" && AppConfig.BlobBackend != "b2" {
		log.Fatalf("Invalid BLOB_BACKEND %q: must be \"disk\" or \"b2\"", AppConfig.BlobBackend)
	}

	if len(missingVars) > 0 {
		log.Printf("Missing required environment variables: %v", missingVars)
		log.Fatal("Please set all required environment variables")
	}
}

func maskSecret(secret string) string {
	if secret == "" {
		return "[NOT SET]"
	}
	if len(secret) <= 8 {
		return "[HIDDEN]"
	}
	return secret[:4] + "***" + secret[len(secret)-4:]
}

func maskConnectionString(uri string) string {
	if uri == "" {
		return "[NOT SET]"
	}
	if strings.Contains(uri, "@") {
		parts := strings.Split(uri, "@")
		if len(parts) >= 2 {
			return "[CREDENTIALS_HIDDEN]@" + parts[len(parts)-1]
		}
	}
	return uri
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("Failed to parse int: %s", s)
	}
	return i
}

func parseInt64(s string) int64 {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		log.Fatalf("Failed to parse int64: %s", s)
	}
	return i
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("Failed to parse duration: %s", s)
	}
	return d
}

func parseStringSlice(s string) []string {
	if s == "" {
		return []string{}
	}

	parts := strings.Split(s, ",")
	var result []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func CreateContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
