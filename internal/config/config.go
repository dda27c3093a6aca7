// Package config reads settings from the environment, an optional .env file
// and top-level command line flags, in increasing order of precedence.
package config

import (
	"flag"
	"fmt"
	"log"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StoreText     = "text"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	StoreKind string `env:"STORE_KIND" env-default:"text"`
	DataDir   string `env:"DATA_DIR" env-default:"data"`

	// DatabaseURL wins over the DB_* settings when set
	DatabaseURL string `env:"DATABASE_URL"`
	DBHost      string `env:"DB_HOST" env-default:"localhost"`
	DBPort      string `env:"DB_PORT" env-default:"5433"`
	DBUser      string `env:"DB_USER" env-default:"trader"`
	DBPassword  string `env:"DB_PASSWORD" env-default:"trading123"`
	DBName      string `env:"DB_NAME" env-default:"trading_db"`

	SeedSampleStocks bool   `env:"SEED_SAMPLE_STOCKS" env-default:"true"`
	PriceSeed        uint64 `env:"PRICE_SEED"` // 0 picks a random seed
}

// Load reads the environment, then registers -store and -data-dir on fs and
// parses args so the flags override it.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults or environment variables")
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("couldn't read environment variables: %w", err)
	}

	fs.StringVar(&cfg.StoreKind, "store", cfg.StoreKind, "storage backend: text, postgres or memory")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory of the text record files")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch cfg.StoreKind {
	case StoreText, StorePostgres, StoreMemory:
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.StoreKind)
	}
	return cfg, nil
}

// DSN is the PostgreSQL connection string
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}
