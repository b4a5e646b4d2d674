package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeRules(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
}

func TestHotReloader_RequiresHandler(t *testing.T) {
	if _, err := NewHotReloader("rules.yaml", DefaultHotReloadConfig(), nil, nil); err == nil {
		t.Fatal("expected error without handler")
	}
}

func TestHotReloader_ReloadRunsHandler(t *testing.T) {
	var calls atomic.Int32
	reloader, err := NewHotReloader("rules.yaml", DefaultHotReloadConfig(), func() error {
		calls.Add(1)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create hot reloader: %v", err)
	}
	defer reloader.Stop()

	before := time.Now()
	for i := 0; i < 2; i++ {
		if err := reloader.Reload(); err != nil {
			t.Fatalf("reload %d: %v", i, err)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 handler calls, got %d", calls.Load())
	}
	if reloader.GetLastReloadTime().Before(before) {
		t.Errorf("last reload = %v, want after %v", reloader.GetLastReloadTime(), before)
	}
}

func TestHotReloader_FailedReloadKeepsLastTime(t *testing.T) {
	fail := errors.New("bad rules")
	reloader, _ := NewHotReloader("rules.yaml", DefaultHotReloadConfig(), func() error { return fail }, nil)
	defer reloader.Stop()

	if err := reloader.Reload(); !errors.Is(err, fail) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if !reloader.GetLastReloadTime().IsZero() {
		t.Error("failed reload should not update last reload time")
	}
}

func TestHotReloader_WatchesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeRules(t, path, "symbols: {}\n")

	fired := make(chan struct{}, 8)
	reloader, err := NewHotReloader(path, HotReloadConfig{Enabled: true, Debounce: 50 * time.Millisecond}, func() error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create hot reloader: %v", err)
	}
	if err := reloader.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start reloader: %v", err)
	}
	defer reloader.Stop()

	// 同目录其它文件不触发
	writeRules(t, filepath.Join(dir, "other.yaml"), "x: 1\n")
	writeRules(t, path, "symbols: {BTCUSDT: {perGrid: []}}\n")

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("handler not called after rules file changed")
	}
}

// startContentReloader 启动一个把文件内容记到 applied 的重载器。
func startContentReloader(t *testing.T, path string, debounce time.Duration) (*atomic.Value, *atomic.Int32) {
	t.Helper()
	var applied atomic.Value
	var calls atomic.Int32
	reloader, err := NewHotReloader(path, HotReloadConfig{Enabled: true, Debounce: debounce}, func() error {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		applied.Store(string(data))
		calls.Add(1)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create hot reloader: %v", err)
	}
	if err := reloader.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start reloader: %v", err)
	}
	t.Cleanup(func() { _ = reloader.Stop() })
	return &applied, &calls
}

func waitApplied(t *testing.T, applied *atomic.Value, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got, _ := applied.Load().(string); got == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	got, _ := applied.Load().(string)
	t.Fatalf("applied content = %q, want %q", got, want)
}

func TestHotReloader_TrailingWriteApplied(t *testing.T) {
	for _, debounce := range []time.Duration{50 * time.Millisecond, 500 * time.Millisecond} {
		t.Run(debounce.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rules.yaml")
			writeRules(t, path, "v0")
			applied, _ := startContentReloader(t, path, debounce)

			writeRules(t, path, "v1")
			time.Sleep(200 * time.Millisecond)
			writeRules(t, path, "v2")

			waitApplied(t, applied, "v2")
		})
	}
}

func TestHotReloader_CoalescesBurst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	writeRules(t, path, "v0")
	applied, calls := startContentReloader(t, path, 500*time.Millisecond)

	for _, v := range []string{"v1", "v2", "v3"} {
		writeRules(t, path, v)
	}
	waitApplied(t, applied, "v3")
	time.Sleep(700 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("burst should reload once, got %d", n)
	}
}

func TestHotReloader_StartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	writeRules(t, path, "symbols: {}\n")

	reloader, _ := NewHotReloader(path, DefaultHotReloadConfig(), func() error { return nil }, nil)
	if err := reloader.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start reloader: %v", err)
	}
	if err := reloader.Stop(); err != nil {
		t.Errorf("Failed to stop reloader: %v", err)
	}
	if err := reloader.Stop(); err != nil {
		t.Errorf("second stop should be a no-op: %v", err)
	}
}

func TestHotReloader_Disabled(t *testing.T) {
	reloader, _ := NewHotReloader("missing/rules.yaml", HotReloadConfig{}, func() error { return nil }, nil)
	if err := reloader.Start(context.Background()); err != nil {
		t.Fatalf("disabled reloader should not watch: %v", err)
	}
	if err := reloader.Stop(); err != nil {
		t.Errorf("stop: %v", err)
	}
}
