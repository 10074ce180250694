package config

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapReaders(t *testing.T) {
	cfg := map[string]interface{}{
		"a": 3, "b": int64(4), "c": 5.0, "d": " 6 ", "e": "x",
		"name": "  ledger ", "blank": " ",
		"on": true, "yes": "YES", "off": "no",
	}
	tests := []struct {
		key  string
		want int
	}{{"a", 3}, {"b", 4}, {"c", 5}, {"d", 6}, {"e", 9}, {"missing", 9}}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			assert.Equal(t, tc.want, Int(cfg, tc.key, 9))
		})
	}
	assert.Equal(t, "ledger", String(cfg, "name", "def"))
	assert.Equal(t, "def", String(cfg, "blank", "def"))
	assert.Equal(t, "def", String(nil, "name", "def"))
	assert.True(t, Bool(cfg, "on", false))
	assert.True(t, Bool(cfg, "yes", false))
	assert.False(t, Bool(cfg, "off", true))
	assert.True(t, Bool(cfg, "missing", true))
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_USER", "ledger")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_NAME", "books")
	t.Setenv("DB_SSLMODE", "")
	t.Setenv("POSTGREST_URL", "https://x.supabase.co/\r\n")
	t.Setenv("ADMIN_CLEAR_TOKEN", " tok\n")
	t.Setenv("LEDGER_S3_ENABLED", "true")
	t.Setenv("HTTP_ADDR", "")

	s := LoadEnv(t.TempDir() + "/missing.env")
	assert.Equal(t, BackendSQLite, s.StoreBackend)
	assert.Equal(t, "postgres://ledger:pw@db:5432/books?sslmode=disable", s.DatabaseURL)
	assert.Equal(t, "https://x.supabase.co", s.PostgRESTURL)
	assert.Equal(t, "tok", s.AdminClearToken)
	assert.True(t, s.S3Enabled)
	assert.Equal(t, DefaultHTTPAddr, s.HTTPAddr)
}

func TestDSNFromParts_EscapesCredentials(t *testing.T) {
	t.Setenv("DB_USER", "led ger")
	t.Setenv("DB_PASSWORD", "p@ss/w:rd%?")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "books")
	t.Setenv("DB_SSLMODE", "require")

	dsn := dsnFromParts()
	cfg, err := pgconn.ParseConfig(dsn)
	require.NoError(t, err, dsn)
	assert.Equal(t, "led ger", cfg.User)
	assert.Equal(t, "p@ss/w:rd%?", cfg.Password)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, uint16(6543), cfg.Port)
	assert.Equal(t, "books", cfg.Database)
	assert.NotContains(t, dsn, "p@ss")

	t.Setenv("DB_HOST", "")
	assert.Empty(t, dsnFromParts())
}
