package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REFERENCE_DIR", "")
	t.Setenv("CERTIFY_WORKERS", "")
	t.Setenv("DB_USER", "certify")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_NAME", "certify")

	s := Load()
	assert.Equal(t, DefaultReferenceDir, s.ReferenceDir)
	assert.Equal(t, "user=certify password=secret host=db port=5432 dbname=certify sslmode=disable", s.DatabaseURL)
	assert.Equal(t, Workers(), s.Workers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/certify")
	t.Setenv("CERTIFY_WORKERS", "3")
	t.Setenv("REPORT_RETENTION_DAYS", "not-a-number")

	s := Load()
	assert.Equal(t, "postgres://u:p@localhost/certify", s.DatabaseURL)
	assert.Equal(t, 3, s.Workers)
	assert.Equal(t, DefaultRetentionDays, s.RetentionDays)
}

func TestLocation(t *testing.T) {
	loc := Location()
	if _, err := time.LoadLocation(DefaultTimeZone); err != nil {
		assert.Equal(t, time.UTC, loc)
		return
	}
	assert.Equal(t, DefaultTimeZone, loc.String())
}
