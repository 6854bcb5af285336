package watcher

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPollOnceReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.json")
	if err := os.WriteFile(path, []byte(`{"acme": 5}`), 0o644); err != nil {
		t.Fatalf("write limits: %v", err)
	}

	limits := NewLimits(map[string]int{"acme": 1}, path)
	limits.pollOnce()
	if got := limits.Snapshot()["acme"]; got != 5 {
		t.Fatalf("got limit %d, want 5", got)
	}

	if err := os.WriteFile(path, []byte(`{"acme": 9, "globex": 2}`), 0o644); err != nil {
		t.Fatalf("rewrite limits: %v", err)
	}
	limits.pollOnce()
	snapshot := limits.Snapshot()
	if snapshot["acme"] != 9 || snapshot["globex"] != 2 {
		t.Fatalf("got %v", snapshot)
	}
}

func TestPollOnceKeepsTableOnInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.json")
	if err := os.WriteFile(path, []byte(`{"acme": 5}`), 0o644); err != nil {
		t.Fatalf("write limits: %v", err)
	}

	limits := NewLimits(nil, path)
	limits.pollOnce()

	if err := os.WriteFile(path, []byte(`{broken`), 0o644); err != nil {
		t.Fatalf("corrupt limits: %v", err)
	}
	limits.pollOnce()
	if got := limits.Snapshot()["acme"]; got != 5 {
		t.Fatalf("invalid file replaced the table, got %v", limits.Snapshot())
	}
}

func TestFileReloadKeepsBaseCompanies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.json")
	if err := os.WriteFile(path, []byte(`{"acme": 5}`), 0o644); err != nil {
		t.Fatalf("write limits: %v", err)
	}

	// envco is configured through the environment only, never in the file.
	limits := NewLimits(map[string]int{"envco": 7}, path)
	snapshot := limits.Snapshot()
	if snapshot["envco"] != 7 || snapshot["acme"] != 5 {
		t.Fatalf("got %v", snapshot)
	}

	if err := os.WriteFile(path, []byte(`{"acme": 9}`), 0o644); err != nil {
		t.Fatalf("rewrite limits: %v", err)
	}
	limits.pollOnce()
	snapshot = limits.Snapshot()
	if snapshot["envco"] != 7 {
		t.Fatalf("file reload dropped the env-configured limit: %v", snapshot)
	}
	if snapshot["acme"] != 9 {
		t.Fatalf("got %v", snapshot)
	}

	// A company removed from the file falls back to its base entry or,
	// absent one, the default limit.
	if err := os.WriteFile(path, []byte(`{"other": 2}`), 0o644); err != nil {
		t.Fatalf("rewrite limits: %v", err)
	}
	limits.pollOnce()
	snapshot = limits.Snapshot()
	if _, ok := snapshot["acme"]; ok {
		t.Fatalf("removed file entry lingered: %v", snapshot)
	}
	if snapshot["envco"] != 7 || snapshot["other"] != 2 {
		t.Fatalf("got %v", snapshot)
	}
}

func TestPollOnceMissingFileKeepsTable(t *testing.T) {
	limits := NewLimits(map[string]int{"acme": 3}, filepath.Join(t.TempDir(), "absent.json"))
	limits.pollOnce()
	if got := limits.Snapshot()["acme"]; got != 3 {
		t.Fatalf("got limit %d, want 3", got)
	}
}
