package config

import (
	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Host           string `env:"HOST,default=localhost"`
	Port           int    `env:"PORT,default=8080"`
	DatabasePath   string `env:"DATABASE_PATH,default=./partyhub.db"`
	MigrationsPath string `env:"MIGRATIONS_PATH,default=pkg/db/migrations/sqlite"`
	AllowedOrigin  string `env:"ALLOWED_ORIGIN,default=http://localhost:3000"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
