// internal/config/config.go
// Centralized configuration management
// Loads from environment variables (and an optional config file) with sensible defaults

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port           string
	Environment    string
	LogLevel       string
	RequestTimeout time.Duration

	// Document store
	StoreBackend       string // "firestore" or "memory"
	GCPProjectID       string
	GCPCredentialsFile string
	GCPCredentialsJSON string

	// Auth
	AuthProvider string // "firebase" or "jwt"
	JWTSecret    string
	JWTIssuer    string

	// Push
	PushProvider string // "fcm" or "mock"

	// Redis job locks (optional)
	RedisURL string

	// Archive
	ArchiveBackend string // "firestore" or "postgres"
	DatabaseURL    string

	// Room media (optional)
	S3Bucket           string
	S3Region           string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	MediaCDNURL        string

	// Jobs
	SchedulerEnabled      bool
	JobTimeout            time.Duration
	JobToken              string
	WeeklyMatchWeekday    time.Weekday
	WeeklyMatchHour       int
	WeeklyMatchMinute     int
	DailySweepHour        int
	ArchiveWeekday        time.Weekday
	ArchiveHour           int
	GenerationConcurrency int
	CandidateScanLimit    int
}

var defaults = map[string]interface{}{
	"PORT":            "8080",
	"ENVIRONMENT":     "development",
	"LOG_LEVEL":       "info",
	"REQUEST_TIMEOUT": "10s",

	"STORE_BACKEND":        "firestore",
	"GCP_PROJECT_ID":       "",
	"GCP_CREDENTIALS_FILE": "",
	"GCP_CREDENTIALS_JSON": "",

	"AUTH_PROVIDER": "firebase",
	"JWT_SECRET":    "",
	"JWT_ISSUER":    "spark",

	"PUSH_PROVIDER": "fcm",

	"REDIS_URL": "",

	"ARCHIVE_BACKEND": "firestore",
	"DATABASE_URL":    "",

	"S3_BUCKET":             "",
	"S3_REGION":             "us-east-1",
	"AWS_ACCESS_KEY_ID":     "",
	"AWS_SECRET_ACCESS_KEY": "",
	"MEDIA_CDN_URL":         "",

	"SCHEDULER_ENABLED":      true,
	"JOB_TIMEOUT":            "9m",
	"JOB_TOKEN":              "",
	"WEEKLY_MATCH_WEEKDAY":   int(time.Sunday),
	"WEEKLY_MATCH_HOUR":      4,
	"WEEKLY_MATCH_MINUTE":    30,
	"DAILY_SWEEP_HOUR":       18,
	"ARCHIVE_WEEKDAY":        int(time.Sunday),
	"ARCHIVE_HOUR":           0,
	"GENERATION_CONCURRENCY": 8,
	"CANDIDATE_SCAN_LIMIT":   200,
}

// Load reads configuration from v. Pass nil to use a fresh viper bound to the environment.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	requestTimeout, err := parseDuration(v, "REQUEST_TIMEOUT")
	if err != nil {
		return nil, err
	}
	jobTimeout, err := parseDuration(v, "JOB_TIMEOUT")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:           v.GetString("PORT"),
		Environment:    v.GetString("ENVIRONMENT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		RequestTimeout: requestTimeout,

		StoreBackend:       strings.ToLower(v.GetString("STORE_BACKEND")),
		GCPProjectID:       v.GetString("GCP_PROJECT_ID"),
		GCPCredentialsFile: v.GetString("GCP_CREDENTIALS_FILE"),
		GCPCredentialsJSON: v.GetString("GCP_CREDENTIALS_JSON"),

		AuthProvider: strings.ToLower(v.GetString("AUTH_PROVIDER")),
		JWTSecret:    v.GetString("JWT_SECRET"),
		JWTIssuer:    v.GetString("JWT_ISSUER"),

		PushProvider: strings.ToLower(v.GetString("PUSH_PROVIDER")),

		RedisURL: v.GetString("REDIS_URL"),

		ArchiveBackend: strings.ToLower(v.GetString("ARCHIVE_BACKEND")),
		DatabaseURL:    v.GetString("DATABASE_URL"),

		S3Bucket:           v.GetString("S3_BUCKET"),
		S3Region:           v.GetString("S3_REGION"),
		AWSAccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
		MediaCDNURL:        v.GetString("MEDIA_CDN_URL"),

		SchedulerEnabled:      v.GetBool("SCHEDULER_ENABLED"),
		JobTimeout:            jobTimeout,
		JobToken:              v.GetString("JOB_TOKEN"),
		WeeklyMatchWeekday:    time.Weekday(v.GetInt("WEEKLY_MATCH_WEEKDAY")),
		WeeklyMatchHour:       v.GetInt("WEEKLY_MATCH_HOUR"),
		WeeklyMatchMinute:     v.GetInt("WEEKLY_MATCH_MINUTE"),
		DailySweepHour:        v.GetInt("DAILY_SWEEP_HOUR"),
		ArchiveWeekday:        time.Weekday(v.GetInt("ARCHIVE_WEEKDAY")),
		ArchiveHour:           v.GetInt("ARCHIVE_HOUR"),
		GenerationConcurrency: v.GetInt("GENERATION_CONCURRENCY"),
		CandidateScanLimit:    v.GetInt("CANDIDATE_SCAN_LIMIT"),
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	return d, nil
}

// Validate checks that required configuration is present
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "firestore", "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be firestore or memory, got %q", c.StoreBackend)
	}

	switch c.AuthProvider {
	case "firebase":
	case "jwt":
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_PROVIDER=jwt")
		}
		if c.IsProduction() && len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
	default:
		return fmt.Errorf("AUTH_PROVIDER must be firebase or jwt, got %q", c.AuthProvider)
	}

	switch c.PushProvider {
	case "fcm", "mock":
	default:
		return fmt.Errorf("PUSH_PROVIDER must be fcm or mock, got %q", c.PushProvider)
	}

	switch c.ArchiveBackend {
	case "firestore":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when ARCHIVE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("ARCHIVE_BACKEND must be firestore or postgres, got %q", c.ArchiveBackend)
	}

	if c.StoreBackend == "memory" && c.IsProduction() {
		return fmt.Errorf("STORE_BACKEND=memory is not allowed in production")
	}

	if c.RequestTimeout <= 0 || c.JobTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT and JOB_TIMEOUT must be positive")
	}

	if c.WeeklyMatchHour < 0 || c.WeeklyMatchHour > 23 || c.DailySweepHour < 0 || c.DailySweepHour > 23 || c.ArchiveHour < 0 || c.ArchiveHour > 23 {
		return fmt.Errorf("job hours must be between 0 and 23")
	}
	if c.WeeklyMatchMinute < 0 || c.WeeklyMatchMinute > 59 {
		return fmt.Errorf("WEEKLY_MATCH_MINUTE must be between 0 and 59")
	}
	if c.WeeklyMatchWeekday < time.Sunday || c.WeeklyMatchWeekday > time.Saturday || c.ArchiveWeekday < time.Sunday || c.ArchiveWeekday > time.Saturday {
		return fmt.Errorf("job weekdays must be between 0 (Sunday) and 6 (Saturday)")
	}

	if c.GenerationConcurrency < 1 {
		return fmt.Errorf("GENERATION_CONCURRENCY must be at least 1")
	}
	if c.CandidateScanLimit < 1 {
		return fmt.Errorf("CANDIDATE_SCAN_LIMIT must be at least 1")
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// MediaEnabled reports whether room media uploads are configured
func (c *Config) MediaEnabled() bool {
	return c.S3Bucket != ""
}
