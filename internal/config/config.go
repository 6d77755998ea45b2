package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	DatabaseURL         string
	RedisURL            string
	LogLevel            string
	AdminKey            string // X-Admin-Key for asset price and delete endpoints
	HealthAdminKey      string
	PriceCacheTTL       time.Duration
	BrokerAPIURL        string // empty disables the broker price refresh
	BrokerAPIToken      string
	ReconcileSchedule   string // cron spec with seconds; empty disables the job
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PRICE_CACHE_TTL", "60s")

	env := v.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := v.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = v.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = v.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL_DEV")
	}

	ttl := v.GetDuration("PRICE_CACHE_TTL")
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &Config{
		Env:                 env,
		Port:                v.GetString("PORT"),
		DatabaseURL:         dbURL,
		RedisURL:            v.GetString("REDIS_URL"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		AdminKey:            v.GetString("ADMIN_KEY"),
		HealthAdminKey:      v.GetString("HEALTH_ADMIN_KEY"),
		PriceCacheTTL:       ttl,
		BrokerAPIURL:        strings.TrimSpace(v.GetString("BROKER_API_URL")),
		BrokerAPIToken:      v.GetString("BROKER_API_TOKEN"),
		ReconcileSchedule:   strings.TrimSpace(v.GetString("RECONCILE_SCHEDULE")),
		FrontendURLEndsWith: v.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         v.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(v.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
	}, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
