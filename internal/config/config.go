package config

import (
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultTimeZone   = "Asia/Seoul"
	DefaultHTTPAddr   = ":8080"
	DefaultTable      = "ledger_entries"
	DefaultRunsTable  = "ledger_import_runs"
	BatchSize         = 1000
	HeaderScanRows    = 10
	MaxUploadBytes    = 32 << 20
	DefaultSearchRows = 50
	MaxSearchRows     = 200

	// Retention job defaults; a zero RetentionMonths disables the job.
	DefaultRetentionSchedule = "0 3 * * *"
	RetentionBatchTimeout    = 10 * time.Minute
)

// Store backends.
const (
	BackendPostgres  = "postgres"
	BackendPostgREST = "postgrest"
	BackendSQLite    = "sqlite"
)

// Settings gathers the process environment. Values set in services.yaml
// take precedence over these where both exist.
type Settings struct {
	StoreBackend    string
	DatabaseURL     string
	SQLitePath      string
	PostgRESTURL    string
	PostgRESTKey    string
	AdminClearToken string
	HTTPAddr        string
	S3Enabled       bool
	S3Bucket        string
	S3Region        string
	S3Prefix        string
}

// LoadEnv reads .env files if present and returns the resolved settings.
func LoadEnv(files ...string) Settings {
	// Missing .env is normal outside local development.
	_ = godotenv.Load(files...)

	s := Settings{
		StoreBackend:    strings.ToLower(envOr("STORE_BACKEND", BackendPostgres)),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SQLitePath:      envOr("SQLITE_PATH", "ledger.db"),
		PostgRESTURL:    strings.TrimRight(cleanEnv("POSTGREST_URL"), "/"),
		PostgRESTKey:    cleanEnv("POSTGREST_KEY"),
		AdminClearToken: cleanEnv("ADMIN_CLEAR_TOKEN"),
		HTTPAddr:        envOr("HTTP_ADDR", DefaultHTTPAddr),
		S3Enabled:       envBool("LEDGER_S3_ENABLED"),
		S3Bucket:        cleanEnv("LEDGER_S3_BUCKET"),
		S3Region:        envOr("LEDGER_S3_REGION", "ap-northeast-2"),
		S3Prefix:        envOr("LEDGER_S3_PREFIX", "ledger-uploads/"),
	}
	if s.DatabaseURL == "" {
		s.DatabaseURL = dsnFromParts()
	}
	return s
}

// dsnFromParts builds a DSN from the DB_* variables, or "" if any is unset.
func dsnFromParts() string {
	user := os.Getenv("DB_USER")
	pass := os.Getenv("DB_PASSWORD")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	name := os.Getenv("DB_NAME")
	if user == "" || host == "" || port == "" || name == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pass),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + name,
		RawQuery: url.Values{"sslmode": {envOr("DB_SSLMODE", "disable")}}.Encode(),
	}
	return u.String()
}

// cleanEnv strips whitespace and stray line breaks copied into dashboards.
func cleanEnv(key string) string {
	v := os.Getenv(key)
	v = strings.NewReplacer("\r", "", "\n", "").Replace(v)
	return strings.TrimSpace(v)
}

func envOr(key, def string) string {
	if v := cleanEnv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	v := strings.ToLower(cleanEnv(key))
	return v == "1" || v == "true" || v == "yes"
}

// Int reads an integer option from a services.yaml config map. YAML and
// JSON decoders disagree on numeric types, so every shape is accepted.
func Int(cfg map[string]interface{}, key string, def int) int {
	if cfg == nil {
		return def
	}
	switch t := cfg[key].(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

// String reads a string option from a services.yaml config map.
func String(cfg map[string]interface{}, key, def string) string {
	if cfg == nil {
		return def
	}
	if s, ok := cfg[key].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return def
}

// Bool reads a boolean option from a services.yaml config map.
func Bool(cfg map[string]interface{}, key string, def bool) bool {
	if cfg == nil {
		return def
	}
	switch t := cfg[key].(type) {
	case bool:
		return t
	case string:
		v := strings.ToLower(strings.TrimSpace(t))
		return v == "1" || v == "true" || v == "yes"
	}
	return def
}
