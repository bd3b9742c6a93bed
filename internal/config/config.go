package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultTimeZone = "Asia/Kolkata"
	BatchSize       = 1000

	// ERP exports carry five banner rows above the header and a totals row at the end.
	SourceSkipHeadRows = 5
	SourceSkipTailRows = 1

	DefaultCatalogRefreshSchedule = "0 2 * * *"
	DefaultRetentionSchedule      = "30 3 * * *"
	DefaultRetentionDays          = 0

	DefaultHTTPPort     = "8081"
	DefaultReferenceDir = "./reference"
	DefaultServicesFile = "./services.yaml"

	FallbackWorkers = 4
)

// Settings is the environment-derived process configuration.
type Settings struct {
	DatabaseURL   string
	ReferenceDir  string
	ServicesFile  string
	RedisURL      string
	HTTPPort      string
	Workers       int
	RetentionDays int
}

// Load reads Settings from the environment. godotenv should already have run.
func Load() Settings {
	s := Settings{
		DatabaseURL:   DatabaseURL(),
		ReferenceDir:  envOr("REFERENCE_DIR", DefaultReferenceDir),
		ServicesFile:  envOr("SERVICES_FILE", DefaultServicesFile),
		RedisURL:      strings.TrimSpace(os.Getenv("REDIS_URL")),
		HTTPPort:      envOr("HTTP_PORT", DefaultHTTPPort),
		Workers:       envInt("CERTIFY_WORKERS", 0),
		RetentionDays: envInt("REPORT_RETENTION_DAYS", DefaultRetentionDays),
	}
	if s.Workers <= 0 {
		s.Workers = Workers()
	}
	return s
}

// DatabaseURL prefers DATABASE_URL and otherwise assembles a key/value DSN
// from the DB_* variables.
func DatabaseURL() string {
	if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		return url
	}
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_HOST"),
		envOr("DB_PORT", "5432"), os.Getenv("DB_NAME"),
	)
}

// Location is DefaultTimeZone, or UTC when the zone database lacks it.
func Location() *time.Location {
	loc, err := time.LoadLocation(DefaultTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Workers is the validation fan-out width: one chunk per CPU.
func Workers() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return FallbackWorkers
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
