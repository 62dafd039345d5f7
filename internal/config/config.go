package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application level configuration for both services.
type Config struct {
	AppEnv   string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	ServerPort  string   `mapstructure:"server_port"`
	EnginePort  string   `mapstructure:"engine_port"`
	SwaggerHost string   `mapstructure:"swagger_host"`
	CORSOrigins []string `mapstructure:"cors_origins"`

	DBDriver    string `mapstructure:"db_driver"`
	DatabaseDSN string `mapstructure:"database_dsn"`
	ResetDB     bool   `mapstructure:"reset_db"`

	RedisAddr string `mapstructure:"redis_addr"`
	RedisPass string `mapstructure:"redis_password"`
	RedisDB   int    `mapstructure:"redis_db"`

	JWTKeys         string        `mapstructure:"jwt_keys"`
	JWTActiveKID    string        `mapstructure:"jwt_active_kid"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
	JWTIssuer       string        `mapstructure:"jwt_issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	ServiceTokenTTL time.Duration `mapstructure:"service_token_ttl"`
	LoginRateLimit  float64       `mapstructure:"login_rate_limit"`

	LedgerURL            string          `mapstructure:"ledger_url"`
	LedgerTimeout        time.Duration   `mapstructure:"ledger_timeout"`
	LedgerRetries        int             `mapstructure:"ledger_retries"`
	DecisionSeed         uint64          `mapstructure:"decision_seed"`
	DeclineRate          float64         `mapstructure:"decline_rate"`
	HighValueDeclineRate float64         `mapstructure:"high_value_decline_rate"`
	HighValueThreshold   decimal.Decimal `mapstructure:"-"`
}

// Load builds Config from .env, the environment and defaults.
func Load() (*Config, error) {
	// a missing .env is fine; real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	threshold, err := decimal.NewFromString(v.GetString("high_value_threshold"))
	if err != nil {
		return nil, fmt.Errorf("HIGH_VALUE_THRESHOLD: %w", err)
	}
	cfg.HighValueThreshold = threshold
	cfg.CORSOrigins = splitCSV(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("server_port", "8000")
	v.SetDefault("engine_port", "8001")
	v.SetDefault("swagger_host", "")
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("db_driver", "mysql")
	v.SetDefault("database_dsn", "user:password@tcp(localhost:3306)/cardpay?charset=utf8mb4&parseTime=True&loc=UTC")
	v.SetDefault("reset_db", false)

	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("jwt_keys", "")
	v.SetDefault("jwt_active_kid", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_issuer", "cardpay")
	v.SetDefault("access_token_ttl", "15m")
	v.SetDefault("refresh_token_ttl", "168h")
	v.SetDefault("service_token_ttl", "1m")
	v.SetDefault("login_rate_limit", 5)

	v.SetDefault("ledger_url", "http://localhost:8000")
	v.SetDefault("ledger_timeout", "2s")
	v.SetDefault("ledger_retries", 3)
	v.SetDefault("decision_seed", 0)
	v.SetDefault("decline_rate", 0.20)
	v.SetDefault("high_value_decline_rate", 0.40)
	v.SetDefault("high_value_threshold", "5000")
}

// Validate checks ranges that would otherwise fail deep inside a service.
func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q must be mysql, postgres or sqlite", c.DBDriver))
	}
	if c.JWTKeys == "" && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_KEYS or JWT_SECRET required"))
	}
	if c.LedgerRetries < 1 {
		errs = append(errs, errors.New("LEDGER_RETRIES must be at least 1"))
	}
	if c.LedgerTimeout <= 0 {
		errs = append(errs, errors.New("LEDGER_TIMEOUT must be positive"))
	}
	for name, rate := range map[string]float64{
		"DECLINE_RATE":            c.DeclineRate,
		"HIGH_VALUE_DECLINE_RATE": c.HighValueDeclineRate,
	} {
		if rate < 0 || rate > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1]", name))
		}
	}
	return errors.Join(errs...)
}

func splitCSV(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
