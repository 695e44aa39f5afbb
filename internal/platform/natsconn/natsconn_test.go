package natsconn

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"NATS_URL", "NATS_MAX_RECONNECTS", "NATS_RECONNECT_WAIT"} {
		t.Setenv(k, "")
	}
}

// apply runs the translated options against the client defaults.
func apply(t *testing.T, opts Options) nats.Options {
	t.Helper()
	o := nats.GetDefaultOptions()
	for _, fn := range opts.natsOptions() {
		if err := fn(&o); err != nil {
			t.Fatalf("apply option: %v", err)
		}
	}
	return o
}

func TestResolve_Defaults(t *testing.T) {
	clearEnv(t)
	got := Options{}.resolve()
	if got.URL != nats.DefaultURL {
		t.Fatalf("expected %s, got %s", nats.DefaultURL, got.URL)
	}
	if got.MaxReconnects != 5 || got.ReconnectWait != 2*time.Second {
		t.Fatalf("unexpected defaults %+v", got)
	}
}

func TestResolve_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("NATS_URL", " nats://events.internal:4222 ")
	t.Setenv("NATS_MAX_RECONNECTS", "9")
	t.Setenv("NATS_RECONNECT_WAIT", "750ms")
	got := Options{}.resolve()
	if got.URL != "nats://events.internal:4222" || got.MaxReconnects != 9 || got.ReconnectWait != 750*time.Millisecond {
		t.Fatalf("unexpected options %+v", got)
	}
}

func TestResolve_ExplicitWinsOverEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NATS_URL", "nats://from-env:4222")
	t.Setenv("NATS_MAX_RECONNECTS", "9")
	got := Options{URL: "nats://explicit:4222", MaxReconnects: 2, ReconnectWait: time.Second}.resolve()
	if got.URL != "nats://explicit:4222" || got.MaxReconnects != 2 || got.ReconnectWait != time.Second {
		t.Fatalf("unexpected options %+v", got)
	}
}

func TestResolve_BadEnvFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("NATS_MAX_RECONNECTS", "-3")
	t.Setenv("NATS_RECONNECT_WAIT", "soon")
	got := Options{}.resolve()
	if got.MaxReconnects != 5 || got.ReconnectWait != 2*time.Second {
		t.Fatalf("expected defaults for malformed env, got %+v", got)
	}
}

func TestNatsOptions_Name(t *testing.T) {
	clearEnv(t)
	o := apply(t, Options{Name: " progress "}.resolve())
	if o.Name != "progress" {
		t.Fatalf("expected client name progress, got %q", o.Name)
	}
	if o.MaxReconnect != 5 || o.ReconnectWait != 2*time.Second || o.RetryOnFailedConnect {
		t.Fatalf("unexpected reconnect policy %+v", o)
	}
	if o := apply(t, Options{}.resolve()); o.Name != "" {
		t.Fatalf("expected no client name, got %q", o.Name)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	clearEnv(t)
	_, err := Connect(Options{
		URL:           "nats://127.0.0.1:19999",
		Name:          "progress",
		MaxReconnects: 1,
		ReconnectWait: 10 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected error connecting to an unreachable server")
	}
}
