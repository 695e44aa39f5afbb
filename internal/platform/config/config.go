package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

type HTTPConfig struct {
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`
}

type AppConfig struct {
	ServiceName string `env:"SERVICE_NAME"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Env         string `env:"APP_ENV" envDefault:"development"`
	HTTP        HTTPConfig
}

// Production reports whether APP_ENV is "production".
func (c AppConfig) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func Load() (AppConfig, error) {
	var cfg AppConfig
	if err := ParseEnv(&cfg); err != nil {
		return AppConfig{}, err
	}
	cfg.ServiceName = strings.TrimSpace(cfg.ServiceName)
	cfg.LogLevel = strings.TrimSpace(cfg.LogLevel)
	cfg.HTTP.Addr = strings.TrimSpace(cfg.HTTP.Addr)
	if cfg.ServiceName == "" {
		return AppConfig{}, errors.New("SERVICE_NAME is required")
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}
