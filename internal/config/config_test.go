package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeEnv(t, `DB_HOST=db
DB_USER=chat
DB_PASSWORD=secret
DB_NAME=schoolconnect
DB_PORT=5433
SERVER_PORT=9090
JWT_KEY=test-key
ALLOWED_ORIGINS=http://a.example,http://b.example
SHUTDOWN_TIMEOUT=5s
WS_SEND_BUFFER=32
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 32, cfg.WSSendBuffer)
	assert.Equal(t, 50, cfg.WSHistoryReplay)
	assert.Equal(t, "host=db user=chat password=secret dbname=schoolconnect port=5433 sslmode=disable", cfg.DSN())
}

func TestLoadMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("REDIS_DB", "3")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.IsDevelopment())
	assert.NotEmpty(t, cfg.JWTKey, "development falls back to an insecure key")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want string
	}{
		{"missing user", "DB_HOST=db\nDB_PASSWORD=p\nDB_NAME=n\nJWT_KEY=k\n", "DB_USER is required"},
		{"unknown driver", "DB_DRIVER=mysql\n", "unsupported DB_DRIVER"},
		{"jwt in production", "DB_DRIVER=sqlite\n", "JWT_KEY is required"},
		{"bad buffer", "DB_DRIVER=sqlite\nJWT_KEY=k\nWS_SEND_BUFFER=0\n", "WS_SEND_BUFFER must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(writeEnv(t, tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
