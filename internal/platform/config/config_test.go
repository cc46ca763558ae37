package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("JWT_SECRET", "test-secret-at-least-16")
}

func TestLoad_AllRequiredVarsSet(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "test-secret-at-least-16", cfg.JWTSecret)
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		skipEnv string
		wantErr string
	}{
		{"missing DATABASE_URL", "DATABASE_URL", "DATABASE_URL is required"},
		{"missing REDIS_URL", "REDIS_URL", "REDIS_URL is required"},
		{"missing JWT_SECRET", "JWT_SECRET", "JWT_SECRET is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.skipEnv, "")

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 60, cfg.SweepIntervalMinutes)
	assert.Equal(t, 4, cfg.SweepConcurrency)
	assert.False(t, cfg.ComputeOnJoinMiss)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_CustomSweepSettings(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SWEEP_INTERVAL_MINUTES", "15")
	t.Setenv("COMPUTE_ON_JOIN_MISS", "true")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.SweepIntervalMinutes)
	assert.True(t, cfg.ComputeOnJoinMiss)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"short secret", "JWT_SECRET", "short", "JWT_SECRET must be at least 16 characters"},
		{"zero interval", "SWEEP_INTERVAL_MINUTES", "0", "SWEEP_INTERVAL_MINUTES must be at least 1"},
		{"zero concurrency", "SWEEP_CONCURRENCY", "0", "SWEEP_CONCURRENCY must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}
