package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/example/journey-platform/internal/journey/engine"
	"github.com/example/journey-platform/internal/journey/localstore"
	"github.com/example/journey-platform/internal/journey/paywall"
	"github.com/example/journey-platform/internal/journey/remotestore"
	"github.com/example/journey-platform/internal/journey/syncer"
	"github.com/example/journey-platform/internal/platform/auth"
	"github.com/example/journey-platform/internal/platform/logging"
	"github.com/example/journey-platform/internal/platform/run"
	playerconfig "github.com/example/journey-platform/services/player/internal/config"
	"github.com/example/journey-platform/services/player/internal/content"
	"github.com/example/journey-platform/services/player/internal/repl"
)

func main() {
	cfg, err := playerconfig.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := logging.New(cfg.LogLevel, zap.String("service", "player"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	j, err := loadJourney(cfg)
	if err != nil {
		log.Error("journey", zap.Error(err))
		_ = log.Sync()
		run.Exit(1)
	}

	kv, closeKV, err := openKV(cfg)
	if err != nil {
		log.Error("local store", zap.Error(err))
		_ = log.Sync()
		run.Exit(1)
	}
	local := localstore.New(kv, cfg.KeyPrefix, log)

	remote, err := initRemote(log, cfg)
	if err != nil {
		log.Error("remote store", zap.Error(err))
		_ = log.Sync()
		run.Exit(1)
	}

	purchase := paywall.Purchase(func(context.Context) (bool, error) { return false, nil })
	if cfg.MockPurchase {
		purchase = paywall.MockPurchase(500 * time.Millisecond)
	}

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		eng, err := engine.New(ctx, engine.Config{
			Key:          j.Key(),
			Items:        j.Items,
			PaywallIndex: j.PaywallIndex,
			Local:        local,
			Remote:       remote,
			Purchase:     purchase,
			Logger:       log,
		})
		if err != nil {
			return err
		}
		if j.Title != "" {
			fmt.Println(j.Title)
		}
		return repl.New(eng, j, os.Stdout, log).Run(ctx, os.Stdin)
	})
	closeKV()
	_ = log.Sync()
	run.Exit(code)
}

func loadJourney(cfg playerconfig.Config) (content.Journey, error) {
	j := content.Sample()
	if cfg.JourneyFile != "" {
		var err error
		if j, err = content.Load(cfg.JourneyFile); err != nil {
			return content.Journey{}, err
		}
	}
	if cfg.OwnerA != "" {
		j.Topic, j.Company = cfg.OwnerA, cfg.OwnerB
	}
	return j, nil
}

// openKV prefers Redis when configured and falls back to the SQLite file.
func openKV(cfg playerconfig.Config) (localstore.KV, func(), error) {
	if cfg.RedisURL != "" {
		kv := localstore.NewRedisKV(cfg.RedisURL, 0)
		return kv, func() { _ = kv.Close() }, nil
	}
	kv, err := localstore.OpenSQLite(cfg.StatePath)
	if err != nil {
		return nil, nil, err
	}
	return kv, func() { _ = kv.Close() }, nil
}

// initRemote wires the progress service. A nil Remote keeps the engine
// local-only.
func initRemote(log *zap.Logger, cfg playerconfig.Config) (syncer.Remote, error) {
	if !cfg.RemoteEnabled() {
		log.Info("PLAYER_PROGRESS_URL not set, progress stays on this device")
		return nil, nil
	}
	token := cfg.Token
	if token == "" && cfg.UserID != "" && cfg.JWTSecret != "" {
		var err error
		token, err = auth.Issuer{Secret: []byte(cfg.JWTSecret)}.Issue(cfg.UserID)
		if err != nil {
			return nil, fmt.Errorf("issue token: %w", err)
		}
	}
	var userID string
	if token != "" {
		sub, err := auth.PeekSubject(token)
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		userID = sub
	} else {
		log.Warn("no token configured, remote sync is disabled until signed in")
	}

	rows := remotestore.NewHTTPRows(cfg.ProgressURL,
		func(context.Context) string { return token },
		&http.Client{Timeout: 10 * time.Second})
	user := func(context.Context) (string, bool) { return userID, userID != "" }
	return remotestore.New(rows, user, cfg.KeyPrefix, log), nil
}

