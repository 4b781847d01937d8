package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestNewWatcher(t *testing.T) {
	loader := NewLoader()

	t.Run("valid config path", func(t *testing.T) {
		// Create a temp config file
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("app:\n  name: test\n"), 0644); err != nil {
			t.Fatalf("failed to create temp config: %v", err)
		}

		watcher, err := NewWatcher(configPath, loader)
		if err != nil {
			t.Fatalf("NewWatcher failed: %v", err)
		}
		defer watcher.Stop()

		if watcher == nil {
			t.Fatal("expected non-nil watcher")
		}
	})

	t.Run("empty config path", func(t *testing.T) {
		_, err := NewWatcher("", loader)
		if err == nil {
			t.Fatal("expected error for empty config path")
		}
	})

	t.Run("with debounce option", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("app:\n  name: test\n"), 0644); err != nil {
			t.Fatalf("failed to create temp config: %v", err)
		}

		watcher, err := NewWatcher(configPath, loader, WithDebounce(100*time.Millisecond))
		if err != nil {
			t.Fatalf("NewWatcher failed: %v", err)
		}
		defer watcher.Stop()

		if watcher.debounce != 100*time.Millisecond {
			t.Errorf("expected debounce 100ms, got %v", watcher.debounce)
		}
	})
}

func TestWatcher_Watch(t *testing.T) {
	loader := NewLoader()

	t.Run("detects file changes", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")

		// Create initial config
		initialContent := `app:
  name: test-app
server:
  port: 8080
log:
  level: info
  format: json
`
		if err := os.WriteFile(configPath, []byte(initialContent), 0644); err != nil {
			t.Fatalf("failed to create temp config: %v", err)
		}

		watcher, err := NewWatcher(configPath, loader, WithDebounce(50*time.Millisecond))
		if err != nil {
			t.Fatalf("NewWatcher failed: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		var callbackCalled bool
		var callbackMu sync.Mutex
		var receivedConfig *Config

		watcher.OnChange(func(cfg *Config) {
			callbackMu.Lock()
			defer callbackMu.Unlock()
			callbackCalled = true
			receivedConfig = cfg
		})

		// Start watching in a goroutine
		watchErr := make(chan error, 1)
		go func() {
			watchErr <- watcher.Watch(ctx)
		}()

		// Wait a bit for watcher to start
		time.Sleep(100 * time.Millisecond)

		// Modify the config file
		updatedContent := `app:
  name: updated-app
server:
  port: 8080
log:
  level: debug
  format: json
`
		if err := os.WriteFile(configPath, []byte(updatedContent), 0644); err != nil {
			t.Fatalf("failed to update temp config: %v", err)
		}

		// Wait for callback to be called
		time.Sleep(600 * time.Millisecond)

		callbackMu.Lock()
		if !callbackCalled {
			t.Error("expected callback to be called after config change")
		}
		if receivedConfig != nil && receivedConfig.Log.Level != "debug" {
			t.Errorf("expected log level 'debug', got '%s'", receivedConfig.Log.Level)
		}
		callbackMu.Unlock()

		watcher.Stop()
	})

	t.Run("stops on context cancel", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("app:\n  name: test\n"), 0644); err != nil {
			t.Fatalf("failed to create temp config: %v", err)
		}

		watcher, err := NewWatcher(configPath, loader)
		if err != nil {
			t.Fatalf("NewWatcher failed: %v", err)
		}
		defer watcher.Stop()

		ctx, cancel := context.WithCancel(context.Background())

		watchErr := make(chan error, 1)
		go func() {
			watchErr <- watcher.Watch(ctx)
		}()

		// Cancel context
		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case err := <-watchErr:
			if err != context.Canceled {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(1 * time.Second):
			t.Error("watcher did not stop on context cancel")
		}
	})

	t.Run("prevents double watch", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("app:\n  name: test\n"), 0644); err != nil {
			t.Fatalf("failed to create temp config: %v", err)
		}

		watcher, err := NewWatcher(configPath, loader)
		if err != nil {
			t.Fatalf("NewWatcher failed: %v", err)
		}
		defer watcher.Stop()

		ctx := context.Background()

		// Start first watch
		go func() {
			watcher.Watch(ctx)
		}()

		// Wait for watcher to start
		time.Sleep(100 * time.Millisecond)

		// Try to start second watch - should fail
		err = watcher.Watch(ctx)
		if err == nil {
			t.Error("expected error when starting double watch")
		}
	})
}

func TestWatcher_OnChange(t *testing.T) {
	loader := NewLoader()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("app:\n  name: test\n"), 0644); err != nil {
		t.Fatalf("failed to create temp config: %v", err)
	}

	watcher, err := NewWatcher(configPath, loader)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Stop()

	// Register multiple callbacks
	var callCount int
	var mu sync.Mutex

	watcher.OnChange(func(cfg *Config) {
		mu.Lock()
		callCount++
		mu.Unlock()
	})
	watcher.OnChange(func(cfg *Config) {
		mu.Lock()
		callCount++
		mu.Unlock()
	})

	// Callbacks run before reloadConfig returns.
	watcher.reloadConfig(context.Background())

	mu.Lock()
	if callCount != 2 {
		t.Errorf("expected 2 callback calls, got %d", callCount)
	}
	mu.Unlock()
}

func TestWatcher_Stop(t *testing.T) {
	loader := NewLoader()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("app:\n  name: test\n"), 0644); err != nil {
		t.Fatalf("failed to create temp config: %v", err)
	}

	watcher, err := NewWatcher(configPath, loader)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	ctx := context.Background()
	done := make(chan error, 1)
	go func() {
		done <- watcher.Watch(ctx)
	}()

	// Wait for watcher to start
	time.Sleep(100 * time.Millisecond)

	if err := watcher.Watch(ctx); err == nil {
		t.Error("expected a second Watch to fail while running")
	}

	if err := watcher.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v after Stop, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after Stop")
	}
}

func TestWatcher_NonExistentFile(t *testing.T) {
	loader := NewLoader()

	watcher, err := NewWatcher("/nonexistent/config.yaml", loader)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	// Watch should fail because file doesn't exist
	err = watcher.Watch(ctx)
	if err == nil {
		t.Error("expected error when watching non-existent file")
	}
}

func TestWatcher_ReloadAppliesOverridesAndDropsStaleKeys(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	first := "memory:\n  scoring:\n    half_life_days: 3\n"
	if err := os.WriteFile(configPath, []byte(first), 0644); err != nil {
		t.Fatalf("failed to create temp config: %v", err)
	}

	loader := NewLoader()
	watcher, err := NewWatcher(configPath, loader, WithOverrides(map[string]interface{}{"log.level": "warn"}))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Stop()

	got := make(chan *Config, 2)
	watcher.OnChange(func(cfg *Config) { got <- cfg })

	watcher.reloadConfig(context.Background())
	cfg := <-got
	if cfg.Memory.Scoring.HalfLifeDays != 3 {
		t.Errorf("half life = %v, want 3", cfg.Memory.Scoring.HalfLifeDays)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("override lost, log level = %s", cfg.Log.Level)
	}

	// Removing the key from the file restores the default on reload.
	if err := os.WriteFile(configPath, []byte("app:\n  name: recall\n"), 0644); err != nil {
		t.Fatalf("failed to update temp config: %v", err)
	}
	watcher.reloadConfig(context.Background())
	cfg = <-got
	if cfg.Memory.Scoring.HalfLifeDays != 7 {
		t.Errorf("half life = %v, want default 7", cfg.Memory.Scoring.HalfLifeDays)
	}
}

func TestHotReloadableConfig(t *testing.T) {
	t.Run("ExtractHotReloadable", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Log.Level = "debug"
		cfg.Memory.Scoring.HalfLifeDays = 14
		cfg.Memory.Strategic.TaskThreshold = 0.5

		hot := ExtractHotReloadable(cfg)

		if hot.LogLevel != "debug" {
			t.Errorf("expected log level 'debug', got '%s'", hot.LogLevel)
		}
		if hot.Scoring.HalfLifeDays != 14 {
			t.Errorf("expected half life 14, got %v", hot.Scoring.HalfLifeDays)
		}
		if hot.Strategic.TaskThreshold != 0.5 {
			t.Errorf("expected task threshold 0.5, got %v", hot.Strategic.TaskThreshold)
		}
	})

	t.Run("Changed detects differences", func(t *testing.T) {
		h1 := ExtractHotReloadable(DefaultConfig())

		t.Run("no changes", func(t *testing.T) {
			h2 := ExtractHotReloadable(DefaultConfig())
			if h1.Changed(h2) {
				t.Error("expected no change detected")
			}
		})

		t.Run("log level changed", func(t *testing.T) {
			h2 := h1
			h2.LogLevel = "debug"
			if !h1.Changed(h2) {
				t.Error("expected change detected for log level")
			}
		})

		t.Run("scoring changed", func(t *testing.T) {
			h2 := h1
			h2.Scoring.RecencyWeight = 0.2
			if !h1.Changed(h2) {
				t.Error("expected change detected for recency weight")
			}
		})

		t.Run("strategic threshold changed", func(t *testing.T) {
			h2 := h1
			h2.Strategic.TaskThreshold = 0.6
			if !h1.Changed(h2) || !h1.StrategicChanged(h2) {
				t.Error("expected change detected for task threshold")
			}
		})

		t.Run("goal keywords changed", func(t *testing.T) {
			h2 := h1
			h2.Strategic.GoalKeywords = []string{"goal"}
			if !h1.StrategicChanged(h2) {
				t.Error("expected change detected for goal keywords")
			}
		})
	})
}

func TestWatcher_SeesRenameSaves(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "recall.yaml")
	if err := os.WriteFile(configPath, []byte("log:\n  level: info\n"), 0644); err != nil {
		t.Fatalf("failed to create temp config: %v", err)
	}

	watcher, err := NewWatcher(configPath, NewLoader(), WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Stop()

	got := make(chan *Config, 4)
	watcher.OnChange(func(cfg *Config) { got <- cfg })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Watch(ctx)
	time.Sleep(100 * time.Millisecond)

	// Save the way editors do: write a temp file, then rename it over.
	tmp := filepath.Join(tmpDir, ".recall.yaml.swp")
	if err := os.WriteFile(tmp, []byte("log:\n  level: error\n"), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := os.Rename(tmp, configPath); err != nil {
		t.Fatalf("rename failed: %v", err)
	}

	select {
	case cfg := <-got:
		if cfg.Log.Level != "error" {
			t.Errorf("log level = %s, want error", cfg.Log.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after a rename save")
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "recall.yaml")
	if err := os.WriteFile(configPath, []byte("app:\n  name: v0\n"), 0644); err != nil {
		t.Fatalf("failed to create temp config: %v", err)
	}

	watcher, err := NewWatcher(configPath, NewLoader(), WithDebounce(150*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Stop()

	var mu sync.Mutex
	var names []string
	watcher.OnChange(func(cfg *Config) {
		mu.Lock()
		names = append(names, cfg.App.Name)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Watch(ctx)
	time.Sleep(100 * time.Millisecond)

	for i := 1; i <= 5; i++ {
		content := []byte("app:\n  name: v" + string(rune('0'+i)) + "\n")
		if err := os.WriteFile(configPath, content, 0644); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(names) != 1 || names[0] != "v5" {
		t.Errorf("reloads = %v, want a single reload of v5", names)
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "recall.yaml")
	if err := os.WriteFile(configPath, []byte("app:\n  name: test\n"), 0644); err != nil {
		t.Fatalf("failed to create temp config: %v", err)
	}
	watcher, err := NewWatcher(configPath, NewLoader())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := watcher.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := watcher.Stop(); err != nil {
		t.Errorf("second Stop = %v, want nil", err)
	}
}
