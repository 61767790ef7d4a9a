package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfigLevels(t *testing.T) {
	cases := []struct {
		cfg     Config
		valid   bool
		debugOn bool
	}{
		{Config{Level: "debug", Format: "console"}, true, true},
		{Config{Level: "info", Format: "json"}, true, false},
		{Config{}, true, false},
		{Config{Level: "loud"}, false, false},
		{Config{Format: "xml"}, false, false},
	}
	for _, tc := range cases {
		if err := ValidateConfig(tc.cfg); (err == nil) != tc.valid {
			t.Fatalf("%+v: validate returned %v", tc.cfg, err)
		}
		if got := NewLogger(tc.cfg).Core().Enabled(zap.DebugLevel); got != tc.debugOn {
			t.Fatalf("%+v: debug enabled = %v", tc.cfg, got)
		}
	}
}

func TestFileOutputIsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compia.log")
	log := NewLogger(Config{Output: path})
	log.WithContext(ContextWithFields(context.Background(), zap.String("user_id", "u-9"))).Warn("scope denied")
	_ = log.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), `"user_id":"u-9"`) || !strings.Contains(string(raw), `"level":"WARN"`) {
		t.Fatalf("unexpected log line: %s", raw)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := &Logger{Logger: zap.New(core)}

	ctx := ContextWithFields(context.Background(), zap.String("request_id", "r-1"))
	ctx = ContextWithFields(ctx, zap.String("user_id", "u-1"))
	log.WithContext(ctx).Info("resolved")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "r-1" || fields["user_id"] != "u-1" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}
