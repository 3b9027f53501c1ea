package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DBType        string `env:"DB_TYPE" envDefault:"memory"`
	PostgresURL   string `env:"POSTGRES_URL"`
	MongoURL      string `env:"MONGO_URL"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"parcelhub"`
	Port          string `env:"PORT" envDefault:"8080"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	MigrationsPath      string `env:"MIGRATIONS_PATH" envDefault:"file://db/migrations"`
	MutationConcurrency int    `env:"MUTATION_CONCURRENCY" envDefault:"8"`
	LabelDir            string `env:"LABEL_DIR" envDefault:"./labels"`

	R2 R2Config `envPrefix:"R2_"`
}

// R2Config holds the Cloudflare R2 credentials used for label uploads.
// Uploads are disabled unless Bucket, AccountID and PublicURL are all set.
type R2Config struct {
	Bucket          string `env:"BUCKET"`
	AccountID       string `env:"ACCOUNT_ID"`
	PublicURL       string `env:"PUBLIC_URL"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
}

func (c R2Config) Enabled() bool {
	return c.Bucket != "" && c.AccountID != "" && c.PublicURL != ""
}

// LoadConfig reads .env when present and then the process environment.
// The bool result reports whether a .env file was loaded.
func LoadConfig() (*Config, bool, error) {
	loaded := godotenv.Load() == nil

	cfg, err := Parse()
	if err != nil {
		return nil, loaded, err
	}
	return cfg, loaded, nil
}

// Parse reads and validates the configuration from the environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBType {
	case "memory":
	case "postgres":
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required when DB_TYPE=postgres")
		}
	case "mongo":
		if c.MongoURL == "" {
			return fmt.Errorf("MONGO_URL is required when DB_TYPE=mongo")
		}
	default:
		return fmt.Errorf("DB_TYPE %q not supported", c.DBType)
	}
	if c.MutationConcurrency < 1 {
		return fmt.Errorf("MUTATION_CONCURRENCY must be at least 1")
	}
	return nil
}
