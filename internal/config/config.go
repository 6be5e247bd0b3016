// Package config loads application configuration from environment
// variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds the runtime configuration. Each field corresponds to an
// environment variable; required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBDriver     string // "mysql" or "memory" (datastore-free dev mode)
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to sign operator JWTs
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for operator password hashing

	LockBackend  string        // "local" or "redis"
	LockTimeout  time.Duration // scope lock acquisition timeout
	IdemTTL      time.Duration // idempotency result retention
	RuleCacheTTL time.Duration // read-path rule list cache TTL

	// Dev-mode operator seeded into the in-memory store so the command
	// surface is usable without a database. Only read when DB_DRIVER=memory.
	DevStoreID       string
	DevOperatorEmail string
	DevOperatorPass  string

	OpenTime    string // first bookable slot, HH:MM
	CloseTime   string // end of service, HH:MM (exclusive)
	SlotMinutes int    // availability grid step
}

// Load reads configuration from the environment.
func Load() Config {
	cfg := Config{
		Env:          must("APP_ENV"),
		Port:         must("APP_PORT"),
		DBDriver:     getenv("DB_DRIVER", "mysql"),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:   mustInt("BCRYPT_COST"),

		LockBackend:  getenv("LOCK_BACKEND", "local"),
		LockTimeout:  getdur("LOCK_TIMEOUT", 3*time.Second),
		IdemTTL:      getdur("IDEMPOTENCY_TTL", time.Minute),
		RuleCacheTTL: getdur("RULE_CACHE_TTL", 5*time.Second),

		OpenTime:    getenv("OPEN_TIME", "11:00"),
		CloseTime:   getenv("CLOSE_TIME", "22:00"),
		SlotMinutes: getint("SLOT_MINUTES", 30),
	}
	if cfg.DBDriver == "mysql" {
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}
	if cfg.DBDriver == "memory" {
		cfg.DevStoreID = getenv("DEV_STORE_ID", "store-1")
		cfg.DevOperatorEmail = getenv("DEV_OPERATOR_EMAIL", "operator@example.com")
		cfg.DevOperatorPass = getenv("DEV_OPERATOR_PASSWORD", "devpass")
	}
	return cfg
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts to an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
