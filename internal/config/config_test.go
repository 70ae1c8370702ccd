package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newViper(values map[string]interface{}) *viper.Viper {
	v := viper.New()
	for key, value := range values {
		v.Set(key, value)
	}
	return v
}

func TestFromViperDefaults(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]interface{}{
		"jwt.secret":         "a",
		"jwt.refresh_secret": "b",
	}))
	require.NoError(t, err)

	require.Equal(t, "postgres", cfg.DatabaseDriver)
	require.Equal(t, "reject", cfg.AttemptPolicy)
	require.False(t, cfg.LedgerLastWriteWins)
	require.Equal(t, 10*time.Minute, cfg.SelectionCacheTTL)
	require.Equal(t, "gema", cfg.EventChannel)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 200, cfg.MaxVideoUploadMB)
	require.Equal(t, 120, cfg.RateLimitPerMinute)
	require.Equal(t, "*", cfg.CORSAllowOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]interface{}{
		"jwt.secret":             "a",
		"jwt.refresh_secret":     "b",
		"database.driver":        "SQLite",
		"attempt.policy":         "supersede",
		"ledger.last_write_wins": true,
		"selection.cache_ttl":    "30s",
		"app.port":               ":9000",
		"cors.allow_origins":     " https://gema.example.com ",
	}))
	require.NoError(t, err)

	require.Equal(t, "sqlite", cfg.DatabaseDriver)
	require.Equal(t, "supersede", cfg.AttemptPolicy)
	require.True(t, cfg.LedgerLastWriteWins)
	require.Equal(t, 30*time.Second, cfg.SelectionCacheTTL)
	require.Equal(t, ":9000", cfg.HTTPAddress())
	require.Equal(t, "https://gema.example.com", cfg.CORSAllowOrigins)
}

func TestFromViperRejectsInvalidValues(t *testing.T) {
	base := map[string]interface{}{"jwt.secret": "a", "jwt.refresh_secret": "b"}

	_, err := fromViper(newViper(map[string]interface{}{}))
	require.Error(t, err)

	for key, value := range map[string]interface{}{
		"database.driver":     "mysql",
		"attempt.policy":      "latest",
		"selection.cache_ttl": "soon",
	} {
		values := map[string]interface{}{key: value}
		for k, v := range base {
			values[k] = v
		}
		_, err := fromViper(newViper(values))
		require.Error(t, err, key)
	}
}
