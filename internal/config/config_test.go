package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanaudit/domain/provenance"
	"loanaudit/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("AUDIT_ACTOR", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("IQR_MULTIPLIER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "6060", cfg.Profiling.Port)
	assert.Equal(t, provenance.DefaultActor, cfg.Audit.Actor)
	assert.Equal(t, int64(42), cfg.Audit.Seed)
	assert.Equal(t, 1.5, cfg.Audit.Multiplier)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://audit@localhost/loans?sslmode=disable")
	t.Setenv("AUDIT_ACTOR", "Model_Validator_7")
	t.Setenv("SIMULATION_SEED", "1234")
	t.Setenv("IQR_MULTIPLIER", "2.5")
	t.Setenv("DB_CONN_MAX_LIFETIME", "5m")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "Model_Validator_7", cfg.Audit.Actor)
	assert.Equal(t, int64(1234), cfg.Audit.Seed)
	assert.Equal(t, 2.5, cfg.Audit.Multiplier)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("IQR_MULTIPLIER", "4")
	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigOutOfRange, errors.GetCode(err))

	t.Setenv("IQR_MULTIPLIER", "")
	t.Setenv("LOG_LEVEL", "verbose")
	_, err = Load()
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	t.Setenv("LOG_LEVEL", "")
	t.Setenv("PORT", "7000")
	t.Setenv("PPROF_PORT", "7000")
	_, err = Load()
	assert.Error(t, err)
}
