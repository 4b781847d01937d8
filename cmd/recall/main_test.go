package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goclaw/recall/config"
	"github.com/goclaw/recall/pkg/memory"
	"github.com/goclaw/recall/pkg/storage/sqlite"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recall.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

const baseConfig = `
app:
  name: recall-test
  environment: development
log:
  level: error
  format: json
  output: stderr
embedding:
  provider: hash
  dimension: 64
metrics:
  enabled: false
`

func TestServerStartup(t *testing.T) {
	const port = 18090
	path := writeConfig(t, baseConfig+fmt.Sprintf(`
server:
  host: 127.0.0.1
  port: %d
storage:
  type: memory
`, port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- runServe(ctx, path, nil)
	}()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	var err error
	for i := 0; i < 100; i++ {
		var resp *http.Response
		if resp, err = http.Get(base + "/health"); err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Server never became reachable: %v", err)
	}

	for _, endpoint := range []string{"/ready", "/status", "/api/v1/retention"} {
		resp, err := http.Get(base + endpoint)
		if err != nil {
			t.Fatalf("GET %s: %v", endpoint, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", endpoint, resp.StatusCode)
		}
	}

	resp, err := http.Post(base+"/api/v1/owners/alice/memories", "application/json",
		strings.NewReader(`{"tier":"PERSONAL","content":"enjoys long walks"}`))
	if err != nil {
		t.Fatalf("create memory: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("create status = %d, want 201", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("runServe() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServe did not return after cancellation")
	}
}

func TestServerStartup_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	path := writeConfig(t, baseConfig+fmt.Sprintf(`
server:
  host: 127.0.0.1
  port: %d
storage:
  type: memory
`, ln.Addr().(*net.TCPAddr).Port))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runServe(ctx, path, nil); err == nil {
		t.Fatal("expected runServe to fail when the port is taken")
	}
}

func TestRunSweep(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "recall.db")
	store, err := sqlite.NewStore(sqlite.Config{Path: dbPath, Dimension: 64})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	ctx := context.Background()
	old := time.Now().AddDate(0, 0, -45)
	seed := []*memory.Memory{
		{ID: "a-old", Owner: "alice", Tier: memory.TierTask, Content: "expired errand", CreatedAt: old},
		{ID: "a-new", Owner: "alice", Tier: memory.TierTask, Content: "fresh errand"},
		{ID: "a-personal", Owner: "alice", Tier: memory.TierPersonal, Content: "old preference", CreatedAt: old},
		{ID: "b-old", Owner: "bob", Tier: memory.TierTask, Content: "expired errand", CreatedAt: old},
	}
	for _, m := range seed {
		if err := store.Insert(ctx, m); err != nil {
			t.Fatalf("Insert(%s): %v", m.ID, err)
		}
	}
	store.Close()

	path := writeConfig(t, baseConfig+fmt.Sprintf(`
storage:
  type: sqlite
  sqlite:
    path: %s
`, dbPath))

	var out bytes.Buffer
	if err := runSweep(ctx, path, nil, "alice", &out); err != nil {
		t.Fatalf("runSweep() error = %v", err)
	}

	var res memory.SweepResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if res.Pruned != 1 || res.Owner != "alice" {
		t.Errorf("unexpected result: %+v", res)
	}

	store, err = sqlite.NewStore(sqlite.Config{Path: dbPath, Dimension: 64})
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store.Close()
	if bob, _ := store.List(ctx, "bob", ""); len(bob) != 1 {
		t.Errorf("bob has %d memories after an alice-only sweep, want 1", len(bob))
	}
	if alice, _ := store.List(ctx, "alice", ""); len(alice) != 2 {
		t.Errorf("alice has %d memories, want 2", len(alice))
	}
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{name: "memory", mutate: func(c *config.Config) { c.Storage.Type = "memory" }},
		{name: "sqlite", mutate: func(c *config.Config) {
			c.Storage.Type = "sqlite"
			c.Storage.SQLite.Path = filepath.Join(dir, "s.db")
		}},
		{name: "badger", mutate: func(c *config.Config) {
			c.Storage.Type = "badger"
			c.Storage.Badger.Path = filepath.Join(dir, "badger")
		}},
		{name: "unknown", mutate: func(c *config.Config) { c.Storage.Type = "etcd" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Embedding.Dimension = 8
			tt.mutate(cfg)

			store, err := openStore(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("openStore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if err := store.Close(); err != nil {
					t.Errorf("Close() error = %v", err)
				}
			}
		})
	}
}

func TestBuildOverrides(t *testing.T) {
	defer func() {
		appName, serverPort, logLevel, debugMode, storageType = "", 0, "", false, ""
	}()

	if got := buildOverrides(); len(got) != 0 {
		t.Errorf("buildOverrides() with no flags = %v, want empty", got)
	}

	appName = "custom"
	serverPort = 9090
	logLevel = "debug"
	debugMode = true
	storageType = "badger"

	got := buildOverrides()
	want := map[string]interface{}{
		"app.name":     "custom",
		"server.port":  9090,
		"log.level":    "debug",
		"app.debug":    true,
		"storage.type": "badger",
	}
	if len(got) != len(want) {
		t.Fatalf("buildOverrides() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("override %s = %v, want %v", k, got[k], v)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)

	if !strings.Contains(out.String(), "Version:") {
		t.Errorf("version output = %q", out.String())
	}
}
