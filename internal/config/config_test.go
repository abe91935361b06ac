package config

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, uint(3), cfg.Votes.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Votes.AttemptTimeout)
	level, err := cfg.Votes.IsolationLevel()
	require.NoError(t, err)
	assert.Equal(t, sql.LevelReadCommitted, level)
	assert.Equal(t, "secret", cfg.DB.Password)
	assert.Contains(t, cfg.DB.DSN(), "password=secret")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VOTE_MAX_ATTEMPTS", "5")
	t.Setenv("VOTE_ATTEMPT_TIMEOUT", "750ms")
	t.Setenv("VOTE_ISOLATION", "repeatable_read")
	t.Setenv("DB_HOST", "db.internal")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint(5), cfg.Votes.MaxAttempts)
	assert.Equal(t, 750*time.Millisecond, cfg.Votes.AttemptTimeout)
	assert.Equal(t, "db.internal", cfg.DB.Host)

	level, err := cfg.Votes.IsolationLevel()
	require.NoError(t, err)
	assert.Equal(t, sql.LevelRepeatableRead, level)
}

func TestLoadRejectsBadVoteSettings(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown isolation", "VOTE_ISOLATION", "snapshot"},
		{"zero attempts", "VOTE_MAX_ATTEMPTS", "0"},
		{"bad duration", "VOTE_ATTEMPT_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}
