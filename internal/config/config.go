package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port          string
	PostgresDSN   string
	MongoURI      string
	MongoDB       string
	RedisAddr     string
	RedisPassword string

	// Object storage. The defaults target the GCS S3-interoperability
	// endpoint with HMAC keys; any S3-compatible store works.
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
	StorageScheme    string
	UploadURLTTL     time.Duration

	JobAPIURL   string
	JobName     string
	JobAPIToken string

	ExamWindow     string
	AllowedOrigins []string
	CookieSecure   bool
}

func Load() *Config {
	return &Config{
		Port:             getenv("PORT", "8080"),
		PostgresDSN:      getenv("POSTGRES_DSN", ""),
		MongoURI:         getenv("MONGO_URI", ""),
		MongoDB:          getenv("MONGO_DB", "thunder"),
		RedisAddr:        getenv("REDIS_ADDR", "redis:6379"),
		RedisPassword:    getenv("REDIS_PASSWORD", ""),
		StorageEndpoint:  getenv("STORAGE_ENDPOINT", "storage.googleapis.com"),
		StorageAccessKey: getenv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey: getenv("STORAGE_SECRET_KEY", ""),
		StorageBucket:    getenv("STORAGE_BUCKET", "project-thunder-assets"),
		StorageUseSSL:    getenv("STORAGE_USE_SSL", "true") == "true",
		StorageScheme:    getenv("STORAGE_SCHEME", "gs"),
		UploadURLTTL:     getduration("UPLOAD_URL_TTL", 15*time.Minute),
		JobAPIURL:        getenv("JOB_API_URL", "https://run.googleapis.com"),
		JobName:          getenv("JOB_NAME", ""),
		JobAPIToken:      getenv("JOB_API_TOKEN", ""),
		ExamWindow:       getenv("EXAM_WINDOW", "midterm"),
		AllowedOrigins:   splitList(getenv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		CookieSecure:     getenv("COOKIE_SECURE", "false") == "true",
	}
}

// Validate reports the required settings that are missing.
func (c *Config) Validate() error {
	var missing []string
	for key, val := range map[string]string{
		"POSTGRES_DSN": c.PostgresDSN,
		"MONGO_URI":    c.MongoURI,
		"JOB_NAME":     c.JobName,
	} {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getenv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
