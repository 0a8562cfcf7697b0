package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultDSN = "root:@tcp(127.0.0.1:3306)/apicore?parseTime=true&loc=UTC&clientFoundRows=true&charset=utf8mb4&timeout=5s&readTimeout=30s&writeTimeout=30s"

// Env is the process configuration. Values come from defaults, then the
// optional YAML file named by APP_CONFIG_FILE, then environment variables.
type Env struct {
	AppAddr            string   `yaml:"app_addr"`
	GinMode            string   `yaml:"gin_mode"`
	AppEnv             string   `yaml:"app_env"`
	LogLevel           string   `yaml:"log_level"`
	LogFormat          string   `yaml:"log_format"`
	DatabaseDSN        string   `yaml:"database_dsn"`
	DBMaxOpenConns     int      `yaml:"db_max_open_conns"`
	DBMaxIdleConns     int      `yaml:"db_max_idle_conns"`
	RequestTimeoutMS   int      `yaml:"request_timeout_ms"`
	SlowRequestMS      int      `yaml:"slow_request_ms"`
	CacheTTLSeconds    int      `yaml:"cache_ttl_seconds"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	JWTSecret          string   `yaml:"jwt_secret"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	MaxBodyBytes       int64    `yaml:"max_body_bytes"`
}

func defaults() Env {
	return Env{
		AppAddr:          ":8080",
		AppEnv:           "development",
		LogLevel:         "info",
		LogFormat:        "json",
		DatabaseDSN:      defaultDSN,
		DBMaxOpenConns:   25,
		DBMaxIdleConns:   25,
		RequestTimeoutMS: 30000,
		SlowRequestMS:    1000,
		CacheTTLSeconds:  300,
		CORSAllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		MaxBodyBytes: 10 << 20,
	}
}

// LoadEnv builds the configuration and validates it.
func LoadEnv() (Env, error) {
	env := defaults()

	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := env.loadFile(path); err != nil {
			return Env{}, err
		}
	}
	if err := env.loadVars(); err != nil {
		return Env{}, err
	}
	if err := env.Validate(); err != nil {
		return Env{}, err
	}
	return env, nil
}

func (e *Env) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, e); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (e *Env) loadVars() error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", key, v)
		}
		*dst = n
		return nil
	}

	str("APP_ADDR", &e.AppAddr)
	str("GIN_MODE", &e.GinMode)
	str("APP_ENV", &e.AppEnv)
	str("LOG_LEVEL", &e.LogLevel)
	str("LOG_FORMAT", &e.LogFormat)
	str("DATABASE_DSN", &e.DatabaseDSN)
	str("JWT_SECRET", &e.JWTSecret)

	for key, dst := range map[string]*int{
		"DB_MAX_OPEN_CONNS":     &e.DBMaxOpenConns,
		"DB_MAX_IDLE_CONNS":     &e.DBMaxIdleConns,
		"REQUEST_TIMEOUT_MS":    &e.RequestTimeoutMS,
		"SLOW_REQUEST_MS":       &e.SlowRequestMS,
		"CACHE_TTL_SECONDS":     &e.CacheTTLSeconds,
		"RATE_LIMIT_PER_MINUTE": &e.RateLimitPerMinute,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v := strings.TrimSpace(os.Getenv("MAX_BODY_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_BODY_BYTES: invalid integer %q", v)
		}
		e.MaxBodyBytes = n
	}

	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		e.CORSAllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				e.CORSAllowedOrigins = append(e.CORSAllowedOrigins, o)
			}
		}
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (e Env) Validate() error {
	if !slices.Contains([]string{"development", "production", "test"}, e.AppEnv) {
		return fmt.Errorf("APP_ENV must be development, production or test, got %q", e.AppEnv)
	}
	if e.RequestTimeoutMS <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_MS must be positive")
	}
	if e.CacheTTLSeconds <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be positive")
	}
	if e.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if e.Production() && e.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

func (e Env) Production() bool { return e.AppEnv == "production" }

func (e Env) RequestTimeout() time.Duration {
	return time.Duration(e.RequestTimeoutMS) * time.Millisecond
}

func (e Env) SlowRequestThreshold() time.Duration {
	return time.Duration(e.SlowRequestMS) * time.Millisecond
}

func (e Env) CacheTTL() time.Duration {
	return time.Duration(e.CacheTTLSeconds) * time.Second
}
