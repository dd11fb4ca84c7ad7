package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Environments(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker"} {
		l, err := NewLogger("api", env)
		if err != nil {
			t.Fatalf("%s: %v", env, err)
		}
		_ = l.Sync()
	}

	if _, err := NewLogger("api", "staging"); err == nil {
		t.Error("expected error for unknown environment")
	}
	if _, err := NewLogger("api", "prod", "loud"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("reindex", "prod", "warn")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info must be disabled at warn level")
	}
	if !l.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn must be enabled")
	}
}

func TestConfigFor_ProdKeepsEveryLine(t *testing.T) {
	cfg, err := configFor("prod")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Sampling != nil {
		t.Error("prod config must not sample")
	}
	if cfg.Encoding != "json" {
		t.Errorf("encoding = %q, want json", cfg.Encoding)
	}
}

func TestWith_ExtendsContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core).With(zap.String("request_id", "r1")))

	ctx = With(ctx, zap.String("actor_id", "42"))
	FromContext(ctx).Info("flag changed")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "r1" || fields["actor_id"] != "42" {
		t.Errorf("fields = %v", fields)
	}
}

func TestWith_NoLoggerInContext(t *testing.T) {
	ctx := context.Background()
	if got := With(ctx, zap.String("actor_id", "42")); got != ctx {
		t.Error("context without a logger must be returned unchanged")
	}
	FromContext(ctx).Info("dropped")
}
