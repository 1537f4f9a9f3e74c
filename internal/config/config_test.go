package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/skeesen8/blackjack/internal/engine"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := parse()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, engine.DefaultRules(), cfg.Rules())
	assert.Equal(t, 5*time.Second, cfg.NewRoundDelay)
	assert.Equal(t, 3*time.Second, cfg.SendTimeout)
	assert.Equal(t, 16, cfg.OutboxSize)
	assert.Equal(t, "none", cfg.HistoryDriver)
	assert.Equal(t, zapcore.InfoLevel, cfg.Level())
	assert.False(t, cfg.Dev)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("BLACKJACK_ADDR", ":9090")
	t.Setenv("BLACKJACK_MAX_PLAYERS", "3")
	t.Setenv("BLACKJACK_MIN_BET", "25")
	t.Setenv("BLACKJACK_MAX_BET", "1000")
	t.Setenv("BLACKJACK_NEW_ROUND_DELAY", "250ms")
	t.Setenv("BLACKJACK_LOG_LEVEL", "debug")
	t.Setenv("BLACKJACK_DEV", "true")
	t.Setenv("BLACKJACK_HISTORY_DRIVER", "sqlite")
	t.Setenv("BLACKJACK_HISTORY_DSN", "file:rounds.db")
	t.Setenv("BLACKJACK_ALLOWED_ORIGINS", "localhost:*,example.com")

	cfg, err := parse()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 3, cfg.Rules().MaxPlayers)
	assert.Equal(t, 25, cfg.Rules().MinBet)
	assert.Equal(t, 1000, cfg.Rules().MaxBet)
	assert.Equal(t, 250*time.Millisecond, cfg.NewRoundDelay)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level())
	assert.True(t, cfg.Dev)
	assert.Equal(t, []string{"localhost:*", "example.com"}, cfg.AllowedOrigins)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"not an int", map[string]string{"BLACKJACK_MIN_BET": "ten"}, "parse env"},
		{"bad duration", map[string]string{"BLACKJACK_SEND_TIMEOUT": "soon"}, "parse env"},
		{"bet range", map[string]string{"BLACKJACK_MIN_BET": "100", "BLACKJACK_MAX_BET": "50"}, "MAX_BET (50) is below MIN_BET (100)"},
		{"zero seats", map[string]string{"BLACKJACK_MAX_PLAYERS": "0"}, "MAX_PLAYERS must be positive"},
		{"log level", map[string]string{"BLACKJACK_LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"unknown driver", map[string]string{"BLACKJACK_HISTORY_DRIVER": "mongo"}, "not one of none, postgres, sqlite"},
		{"driver without dsn", map[string]string{"BLACKJACK_HISTORY_DRIVER": "postgres"}, "HISTORY_DSN is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := parse()
			require.Error(t, err)
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("want error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateJoinsAllProblems(t *testing.T) {
	cfg, err := parse()
	require.NoError(t, err)

	cfg.NumDecks = 0
	cfg.OutboxSize = -1
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NUM_DECKS")
	assert.Contains(t, err.Error(), "OUTBOX_SIZE")
	assert.Len(t, multierr.Errors(err), 2)
}
