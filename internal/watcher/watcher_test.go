package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pingline/omnisearch/internal/config"
)

func writeConfig(t *testing.T, path string, defaultLimit int) {
	t.Helper()
	content := "search:\n  default_limit: " + strconv.Itoa(defaultLimit) + "\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestConfigWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, 20)

	reloaded := make(chan *config.Config, 4)
	w := NewConfigWatcher(path, func(cfg *config.Config) {
		reloaded <- cfg
	}, zap.NewNop(), WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	defer w.Stop()

	writeConfig(t, path, 42)

	select {
	case cfg := <-reloaded:
		if cfg.Search.DefaultLimit != 42 {
			t.Errorf("reloaded default_limit = %d, want 42", cfg.Search.DefaultLimit)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config write")
	}
}

func TestConfigWatcherSkipsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, 20)

	reloaded := make(chan *config.Config, 4)
	w := NewConfigWatcher(path, func(cfg *config.Config) {
		reloaded <- cfg
	}, zap.NewNop(), WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte(":: not yaml ::"), 0600); err != nil {
		t.Fatalf("write broken config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		t.Errorf("broken config must not trigger a reload, got %+v", cfg)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestConfigWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, 20)

	reloaded := make(chan *config.Config, 4)
	w := NewConfigWatcher(path, func(cfg *config.Config) {
		reloaded <- cfg
	}, zap.NewNop(), WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600); err != nil {
		t.Fatalf("write sibling: %v", err)
	}

	select {
	case <-reloaded:
		t.Error("sibling file change must not trigger a reload")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestConfigWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, 20)

	w := NewConfigWatcher(path, func(*config.Config) {}, zap.NewNop())
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	w.Stop()
	w.Stop()
}
