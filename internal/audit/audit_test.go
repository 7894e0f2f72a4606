package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func openTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewLogger(Config{Path: path})
	if err != nil {
		t.Fatalf("failed to open logger: %v", err)
	}
	return logger, path
}

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("undecodable entry: %v", err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestWriteAppendsChainedEntries(t *testing.T) {
	logger, path := openTestLogger(t)
	defer logger.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		err := logger.Write(ctx, "threat_detected", "error", "user-alice", "10.0.0.5",
			"brute_force", "detected", map[string]any{"seq": i})
		if err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	entries := readEntries(t, path)
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	if entries[0].PreviousHash != "" {
		t.Error("first entry should have empty previous hash")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].PreviousHash != entries[i-1].EntryHash {
			t.Errorf("entry %d previous hash does not chain", i)
		}
	}
	for i, e := range entries {
		if e.Sequence != uint64(i+1) {
			t.Errorf("entry %d sequence = %d, want %d", i, e.Sequence, i+1)
		}
	}
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	logger, path := openTestLogger(t)
	defer logger.Close()

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if err := logger.Write(ctx, "threat_detected", "info", "", "", "test", "ok", nil); err != nil {
			t.Fatal(err)
		}
	}

	entries := readEntries(t, path)
	if broken := VerifyChain(entries); broken != -1 {
		t.Fatalf("untampered chain reported broken at %d", broken)
	}

	// Mutating a field breaks that entry's hash.
	tampered := make([]Entry, len(entries))
	copy(tampered, entries)
	tampered[2].Result = "modified"
	if broken := VerifyChain(tampered); broken != 2 {
		t.Errorf("tampered entry reported at %d, want 2", broken)
	}

	// Removing an entry breaks the chain at the gap.
	truncated := append([]Entry{entries[0]}, entries[2:]...)
	if broken := VerifyChain(truncated); broken != 1 {
		t.Errorf("deleted entry reported at %d, want 1", broken)
	}
}

func TestChainSurvivesReopen(t *testing.T) {
	logger, path := openTestLogger(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := logger.Write(ctx, "threat_detected", "info", "", "", "test", "ok", nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewLogger(Config{Path: path})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	if err := reopened.Write(ctx, "threat_detected", "info", "", "", "test", "ok", nil); err != nil {
		t.Fatal(err)
	}

	entries := readEntries(t, path)
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, e := range entries {
		if e.Sequence != uint64(i+1) {
			t.Errorf("entry %d sequence = %d, want %d", i, e.Sequence, i+1)
		}
	}
	if entries[2].PreviousHash != entries[1].EntryHash {
		t.Error("first entry after reopen does not chain to the last stored entry")
	}
	if broken := VerifyChain(entries); broken != -1 {
		t.Errorf("chain reported broken at %d after reopen", broken)
	}
}

func TestWriteAfterCloseFails(t *testing.T) {
	logger, _ := openTestLogger(t)

	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
	err := logger.Write(context.Background(), "threat_detected", "info", "", "", "test", "ok", nil)
	if err != ErrLoggerClosed {
		t.Errorf("got %v, want ErrLoggerClosed", err)
	}
}

func TestNewLoggerCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "audit.jsonl")
	logger, err := NewLogger(Config{Path: path})
	if err != nil {
		t.Fatalf("expected nested directories to be created: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file missing: %v", err)
	}
}
