package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type (
	Config struct {
		App      `json:"app"      toml:"app"`
		HTTP     `json:"http"     toml:"http"`
		DB       `json:"db"       toml:"db"`
		Storage  `json:"storage"  toml:"storage"`
		Auth     `json:"auth"     toml:"auth"`
		SMS      `json:"sms"      toml:"sms"`
		Workers  `json:"workers"  toml:"workers"`
		RabbitMQ `json:"rabbitmq" toml:"rabbitmq"`
		Log      `json:"logger"   toml:"logger"`
	}

	App struct {
		Name        string `json:"name"        toml:"name"        env:"APP_NAME"`
		Environment string `json:"environment" toml:"environment" env:"ENV_NAME" env-default:"dev"`
		Debug       bool   `json:"debug"       toml:"debug"       env:"DEBUG"    env-default:"false"`
	}

	HTTP struct {
		Port           string   `json:"port"            toml:"port"            env:"HTTP_PORT" env-default:"8080"`
		AllowedOrigins []string `json:"allowed_origins" toml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	}

	DB struct {
		DatabaseURL       string `json:"database_url"        toml:"database_url"        env:"DATABASE_URL"`
		PoolMax           int32  `json:"pool_max"            toml:"pool_max"            env:"PG_POOL_MAX" env-default:"10"`
		ConnectTimeout    int    `json:"connect_timeout"     toml:"connect_timeout"     env:"PG_POOL_CONN_TIMEOUT" env-default:"5"`
		HealthCheckPeriod int    `json:"health_check_period" toml:"health_check_period" env:"PG_POOL_HEALTHCHECK" env-default:"1"`
	}

	Storage struct {
		Driver string `json:"driver" toml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
	}

	Auth struct {
		JWTSecret     string `json:"jwt_secret"      toml:"jwt_secret"      env:"JWT_SECRET" env-required:"true"`
		TokenTTLHours int    `json:"token_ttl_hours" toml:"token_ttl_hours" env:"JWT_TTL_HOURS" env-default:"72"`
		AdminEmail    string `json:"admin_email"     toml:"admin_email"     env:"ADMIN_EMAIL"`
		AdminPassword string `json:"admin_password"  toml:"admin_password"  env:"ADMIN_PASSWORD"`
	}

	SMS struct {
		Token string `json:"token" toml:"token" env:"SMS_TOKEN" env-required:"true"`
	}

	Workers struct {
		VerificationWorkers int `json:"verification_workers" toml:"verification_workers" env:"VERIFICATION_WORKERS" env-default:"4"`
		QueueSize           int `json:"queue_size"           toml:"queue_size"           env:"VERIFICATION_QUEUE_SIZE" env-default:"256"`
		SweepInterval       int `json:"sweep_interval"       toml:"sweep_interval"       env:"VERIFICATION_SWEEP_INTERVAL" env-default:"120"` // seconds
		OutboxInterval      int `json:"outbox_interval"      toml:"outbox_interval"      env:"OUTBOX_INTERVAL" env-default:"5"`               // seconds
	}

	RabbitMQ struct {
		URL        string `json:"url"         toml:"url"         env:"RABBITMQ_URL"`
		Exchange   string `json:"exchange"    toml:"exchange"    env:"RABBITMQ_EXCHANGE" env-default:"digiseba.events"`
		RoutingKey string `json:"routing_key" toml:"routing_key" env:"RABBITMQ_ROUTING_KEY" env-default:"portal"`
	}

	Log struct {
		Level slog.Level `json:"level" toml:"level" env:"LOG_LEVEL"`
	}
)

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	_, b, _, _ := runtime.Caller(0)
	basePath := filepath.Dir(b)

	// A missing .env is fine; real environments set variables directly.
	_ = godotenv.Load(filepath.Join(basePath, "..", ".env"))

	configTomlPath := filepath.Join(basePath, "config.toml")
	err := cleanenv.ReadConfig(configTomlPath, cfg)
	if err != nil {
		configJsonPath := filepath.Join(basePath, "config.json")
		err = cleanenv.ReadConfig(configJsonPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	err = cleanenv.ReadEnv(cfg)
	if err != nil {
		return nil, fmt.Errorf("env read error: %w", err)
	}

	if err = cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.DB.DatabaseURL == "" {
			return fmt.Errorf("config error: db.database_url is required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("config error: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Workers.VerificationWorkers < 1 {
		return fmt.Errorf("config error: workers.verification_workers must be positive")
	}
	return nil
}
