package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9090"
db:
  driver: sqlite
  path: /tmp/chat.db
chat:
  history_limit: 20
  typing_ttl: 5s
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "/tmp/chat.db", cfg.DB.Path)
	assert.Equal(t, 20, cfg.Chat.HistoryLimit)
	assert.Equal(t, 5*time.Second, cfg.Chat.TypingTTL)

	// 沒寫到的欄位使用預設值
	assert.Equal(t, time.Second, cfg.Chat.ReconnectBase)
	assert.Equal(t, 30*time.Second, cfg.Chat.ReconnectCap)
	assert.Equal(t, 5, cfg.Chat.ReconnectMaxAttempts)
	assert.Equal(t, 240*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile_EnvOverride(t *testing.T) {
	path := writeConfig(t, "db:\n  driver: postgres\n")
	t.Setenv("BCHAT_DB_DRIVER", "sqlite")
	t.Setenv("BCHAT_CHAT_RECONNECT_MAX_ATTEMPTS", "3")
	t.Setenv("BCHAT_AUTH_JWT_SECRET", "from-env")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 3, cfg.Chat.ReconnectMaxAttempts)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DB: DBConfig{Driver: "sqlite"},
			Chat: ChatConfig{
				HistoryLimit:         50,
				TypingTTL:            3 * time.Second,
				ReconnectBase:        time.Second,
				ReconnectCap:         30 * time.Second,
				ReconnectMaxAttempts: 5,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "driver", mutate: func(c *Config) { c.DB.Driver = "mysql" }, wantErr: "unsupported db driver"},
		{name: "history limit", mutate: func(c *Config) { c.Chat.HistoryLimit = 0 }, wantErr: "history_limit"},
		{name: "base above cap", mutate: func(c *Config) { c.Chat.ReconnectBase = time.Minute }, wantErr: "reconnect_base"},
		{name: "negative attempts", mutate: func(c *Config) { c.Chat.ReconnectMaxAttempts = -1 }, wantErr: "reconnect_max_attempts"},
		{name: "typing ttl", mutate: func(c *Config) { c.Chat.TypingTTL = 0 }, wantErr: "typing_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
