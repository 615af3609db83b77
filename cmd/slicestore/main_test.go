package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/slicestore/internal/config"
	"github.com/vango-dev/slicestore/internal/errors"
	"github.com/vango-dev/slicestore/pkg/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTick(t *testing.T) {
	s := newDemoStore(quietLogger())

	var countWakes, tickWakes int
	s.Subscribe("count", func() { countWakes++ })
	s.Subscribe("ticks", func() { tickWakes++ })

	for i := 0; i < 6; i++ {
		tick(s)
	}

	st := s.Get()
	if st["ticks"] != 6 {
		t.Errorf("ticks = %v, want 6", st["ticks"])
	}
	if st["count"] != 2 {
		t.Errorf("count = %v, want 2", st["count"])
	}
	if tickWakes != 6 {
		t.Errorf("ticks subscriber woke %d times, want 6", tickWakes)
	}
	if countWakes != 2 {
		t.Errorf("count subscriber woke %d times, want 2", countWakes)
	}
}

func TestDemoReset(t *testing.T) {
	s := newDemoStore(quietLogger())
	for i := 0; i < 3; i++ {
		tick(s)
	}

	reset, ok := store.Action[func()](s, "reset")
	if !ok {
		t.Fatal("reset action missing")
	}
	reset()

	st := s.Get()
	if st["count"] != 0 || st["ticks"] != 0 {
		t.Errorf("after reset count=%v ticks=%v, want 0 0", st["count"], st["ticks"])
	}
	if st["label"] != "clicks" {
		t.Errorf("label = %v, reset must keep other fields", st["label"])
	}
}

func TestMountView(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := newDemoStore(quietLogger())

	view, err := mountView(s, logger)
	if err != nil {
		t.Fatalf("mountView() error: %v", err)
	}

	inc, _ := store.Action[func()](s, "increment")
	inc()
	_ = s.Set(func(store.State) store.State { return store.State{"ticks": 9} }, "ticks")

	if n := strings.Count(buf.String(), "view re-rendered"); n != 1 {
		t.Errorf("re-renders = %d, want 1 (ticks is not bound)", n)
	}

	view.Dispose()
	if s.Registry().Has("count") {
		t.Error("disposing the view should unsubscribe")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.New()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	logger := newLogger(&buf, cfg)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := t.TempDir()

	path, err := writeDefaultConfig(dir, false)
	if err != nil {
		t.Fatalf("writeDefaultConfig() error: %v", err)
	}
	if path != filepath.Join(dir, config.ConfigFileName) {
		t.Errorf("path = %q", path)
	}
	if _, err := config.Load(dir); err != nil {
		t.Errorf("written config does not load: %v", err)
	}

	_, err = writeDefaultConfig(dir, false)
	if !stderrors.Is(err, errors.New(errors.CodeConfigInvalid)) {
		t.Errorf("second write error = %v, want %s", err, errors.CodeConfigInvalid)
	}

	if _, err := writeDefaultConfig(dir, true); err != nil {
		t.Errorf("forced write error: %v", err)
	}
}

func TestRunServeStopsOnCancel(t *testing.T) {
	cfg := config.New()
	cfg.Inspector.Enabled = false

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := runServe(ctx, cfg, 5*time.Millisecond, io.Discard); err != nil {
		t.Errorf("runServe() error: %v", err)
	}
}
