package config

import (
	"errors"
	"strings"

	platformconfig "github.com/example/journey-platform/internal/platform/config"
)

// DefaultStatePath is the SQLite file used when no local store is configured.
const DefaultStatePath = "journey-state.db"

type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"warn"`

	// JourneyFile is a JSON journey definition; empty plays the built-in sample.
	JourneyFile string `env:"PLAYER_JOURNEY_FILE"`
	// OwnerA and OwnerB override the sequence key from the journey file.
	OwnerA    string `env:"PLAYER_OWNER_A"`
	OwnerB    string `env:"PLAYER_OWNER_B"`
	KeyPrefix string `env:"PLAYER_KEY_PREFIX" envDefault:"journey"`

	// StatePath is the SQLite file for local progress. It is ignored when
	// RedisURL is set.
	StatePath string `env:"PLAYER_STATE_PATH"`
	// RedisURL stores local progress in Redis instead of SQLite.
	RedisURL string `env:"PLAYER_REDIS_URL"`

	// ProgressURL is the progress service base URL; empty disables remote sync.
	ProgressURL string `env:"PLAYER_PROGRESS_URL"`
	Token       string `env:"PLAYER_TOKEN"`
	// UserID with JWTSecret issues a development token when Token is empty.
	UserID    string `env:"PLAYER_USER_ID"`
	JWTSecret string `env:"PLAYER_JWT_SECRET"`

	MockPurchase bool `env:"PLAYER_MOCK_PURCHASE" envDefault:"true"`
}

func Load() (Config, error) {
	var cfg Config
	if err := platformconfig.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	for _, f := range []*string{
		&cfg.LogLevel, &cfg.JourneyFile, &cfg.OwnerA, &cfg.OwnerB, &cfg.KeyPrefix,
		&cfg.StatePath, &cfg.RedisURL, &cfg.ProgressURL, &cfg.Token, &cfg.UserID, &cfg.JWTSecret,
	} {
		*f = strings.TrimSpace(*f)
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "journey"
	}
	if cfg.StatePath == "" && cfg.RedisURL == "" {
		cfg.StatePath = DefaultStatePath
	}
	if (cfg.OwnerA == "") != (cfg.OwnerB == "") {
		return Config{}, errors.New("PLAYER_OWNER_A and PLAYER_OWNER_B must be set together")
	}
	return cfg, nil
}

// RemoteEnabled reports whether progress is synced to the progress service.
func (c Config) RemoteEnabled() bool {
	return c.ProgressURL != ""
}
