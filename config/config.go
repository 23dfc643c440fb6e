package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSupabase = "supabase"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is read once at startup and treated as read-only afterwards.
type Config struct {
	SecretKey string

	StoreDriver   string
	SupabaseURL   string
	SupabaseKey   string
	SupabaseTable string
	DatabaseURL   string
	SQLitePath    string

	Port          int
	CookieSecure  bool
	SessionMaxAge int
	BcryptCost    int
	CSRFEnabled   bool
	LogLevel      string
}

// Load reads the configuration from the environment. Each dotenv file is
// loaded first when it exists; variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{
		SecretKey:     os.Getenv("SECRET_KEY"),
		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", DriverSupabase)),
		SupabaseURL:   strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseKey:   os.Getenv("SUPABASE_KEY"),
		SupabaseTable: getEnv("SUPABASE_TABLE", "users"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    getEnv("SQLITE_PATH", "gatehouse.db"),
		CookieSecure:  getEnvBool("COOKIE_SECURE", false),
		SessionMaxAge: getEnvInt("SESSION_MAX_AGE", 0),
		BcryptCost:    getEnvInt("BCRYPT_COST", 0),
		CSRFEnabled:   getEnvBool("CSRF_ENABLED", false),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	port, err := strconv.Atoi(getEnv("PORT", "5000"))
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT %q", os.Getenv("PORT"))
	}
	cfg.Port = port

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the process cannot run without. Missing store
// credentials are not fatal here; see StoreConfigured.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("SECRET_KEY is required")
	}
	switch c.StoreDriver {
	case DriverSupabase, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.SessionMaxAge < 0 {
		return errors.New("SESSION_MAX_AGE must not be negative")
	}
	return nil
}

// RequiredStoreKeys lists the variables the configured driver needs.
func (c *Config) RequiredStoreKeys() []string {
	switch c.StoreDriver {
	case DriverPostgres:
		return []string{"DATABASE_URL"}
	case DriverSQLite:
		return []string{"SQLITE_PATH"}
	default:
		return []string{"SUPABASE_URL", "SUPABASE_KEY"}
	}
}

// Presence reports, per required variable, whether it has a value. The
// values themselves are never exposed.
func (c *Config) Presence() map[string]bool {
	values := map[string]string{
		"SECRET_KEY":   c.SecretKey,
		"SUPABASE_URL": c.SupabaseURL,
		"SUPABASE_KEY": c.SupabaseKey,
		"DATABASE_URL": c.DatabaseURL,
		"SQLITE_PATH":  c.SQLitePath,
	}
	out := map[string]bool{"SECRET_KEY": c.SecretKey != ""}
	for _, k := range c.RequiredStoreKeys() {
		out[k] = values[k] != ""
	}
	return out
}

// StoreConfigured reports whether every required variable is present.
func (c *Config) StoreConfigured() bool {
	for _, ok := range c.Presence() {
		if !ok {
			return false
		}
	}
	return true
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return i
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}
