package config

import (
	"errors"
	"strings"

	platformconfig "github.com/example/journey-platform/internal/platform/config"
)

type Config struct {
	// DatabaseURL selects Postgres. Empty runs on in-memory rows, which is
	// refused in production.
	DatabaseURL string `env:"DATABASE_URL"`
	// JWTSecret verifies HS256 bearer tokens.
	JWTSecret string `env:"JWT_SECRET"`
	// NATSURL enables journey.progress.saved events. Empty means stub mode.
	NATSURL  string `env:"NATS_URL"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":9090"`
}

func Load() (Config, error) {
	var cfg Config
	if err := platformconfig.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	cfg.NATSURL = strings.TrimSpace(cfg.NATSURL)
	cfg.GRPCAddr = strings.TrimSpace(cfg.GRPCAddr)
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.GRPCAddr == "" {
		cfg.GRPCAddr = ":9090"
	}
	return cfg, nil
}
