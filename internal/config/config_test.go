package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("JWT_SECRET", "dev-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "pgx", cfg.DBDriver)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 168*time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes())
	assert.False(t, cfg.SMTPEnabled())
	assert.Nil(t, cfg.CorsOrigins)
}

func TestLoadCorsOrigins(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ORIGINS", "http://a.test, ,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CorsOrigins)
}

func TestLoadDriverAliases(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "SQLite3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)

	t.Setenv("DB_DRIVER", "mongo")
	_, err = Load()
	assert.ErrorContains(t, err, "DB_DRIVER")
}

func TestLoadMissingSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadProductionRejectsShortSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestLoadClampsRetention(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_RETENTION_DAYS", "30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.LogRetentionDays)
}
