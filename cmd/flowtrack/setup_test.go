package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goodtune/flowtrack/internal/config"
	"github.com/rs/zerolog"
)

func TestOpenStorage(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr bool
	}{
		{"memory", config.StorageConfig{Type: "memory"}, false},
		{"bolt", config.StorageConfig{Type: "bolt", Path: filepath.Join(dir, "ft.bolt")}, false},
		{"sqlite", config.StorageConfig{Type: "sqlite", Path: filepath.Join(dir, "ft.db")}, false},
		{"unknown", config.StorageConfig{Type: "etcd"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := openStorage(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("openStorage failed: %v", err)
			}
			if err := store.Close(); err != nil {
				t.Errorf("Close failed: %v", err)
			}
		})
	}
}

func TestOpenProvider(t *testing.T) {
	if _, err := openProvider(config.WindowConfig{Provider: "static", StaticApp: "Code"}, zerolog.Nop()); err != nil {
		t.Errorf("static provider: %v", err)
	}
	if _, err := openProvider(config.WindowConfig{Provider: "exec", FocusCommand: "true"}, zerolog.Nop()); err != nil {
		t.Errorf("exec provider: %v", err)
	}
	if _, err := openProvider(config.WindowConfig{Provider: "x11"}, zerolog.Nop()); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestTrackingConfig(t *testing.T) {
	cfg := trackingConfig(config.TrackingConfig{TickInterval: "2s", FlushInterval: "bogus", FocusTimeout: "250ms"})
	if cfg.TickInterval != 2*time.Second {
		t.Errorf("Expected 2s tick, got %s", cfg.TickInterval)
	}
	if cfg.FlushInterval != time.Second {
		t.Errorf("Expected fallback flush interval, got %s", cfg.FlushInterval)
	}
	if cfg.FocusTimeout != 250*time.Millisecond {
		t.Errorf("Expected 250ms focus timeout, got %s", cfg.FocusTimeout)
	}
}

func TestRemoveApps(t *testing.T) {
	got := removeApps([]string{"Code", "Slack", "Terminal"}, []string{" slack ", "TERMINAL", "Music"})
	if strings.Join(got, ",") != "Code" {
		t.Errorf("Expected [Code], got %v", got)
	}
}
