// Package natsconn connects to the NATS server that carries progress events.
package natsconn

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Options configures the connection. Zero values fall back to env vars or
// built-in defaults.
type Options struct {
	URL           string        // default from NATS_URL or nats.DefaultURL
	Name          string        // client name shown in server monitoring
	MaxReconnects int           // default from NATS_MAX_RECONNECTS or 5
	ReconnectWait time.Duration // default from NATS_RECONNECT_WAIT or 2s
}

// resolve fills the zero fields of opts.
func (opts Options) resolve() Options {
	if opts.URL = strings.TrimSpace(opts.URL); opts.URL == "" {
		opts.URL = strings.TrimSpace(os.Getenv("NATS_URL"))
	}
	if opts.URL == "" {
		opts.URL = nats.DefaultURL
	}
	opts.Name = strings.TrimSpace(opts.Name)
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = envInt("NATS_MAX_RECONNECTS", 5)
	}
	if opts.ReconnectWait == 0 {
		opts.ReconnectWait = envDuration("NATS_RECONNECT_WAIT", 2*time.Second)
	}
	return opts
}

// natsOptions translates resolved options. Connect fails fast: the first
// dial is not retried.
func (opts Options) natsOptions() []nats.Option {
	out := []nats.Option{
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.RetryOnFailedConnect(false),
	}
	if opts.Name != "" {
		out = append(out, nats.Name(opts.Name))
	}
	return out
}

// Connect dials NATS and returns an error when the server is unreachable so
// the caller can fall back to stub publishing.
func Connect(opts Options) (*nats.Conn, error) {
	opts = opts.resolve()
	nc, err := nats.Connect(opts.URL, opts.natsOptions()...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s (max_reconnects=%d, wait=%s): %w",
			opts.URL, opts.MaxReconnects, opts.ReconnectWait, err)
	}
	return nc, nil
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
