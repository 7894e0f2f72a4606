// Package audit provides an append-only audit log for detection and
// response events. Entries form a SHA-256 hash chain so modification,
// deletion, or insertion of entries is detectable.
package audit

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentinel-engine/internal/logging"
)

// ErrLoggerClosed is returned when writing to a closed logger.
var ErrLoggerClosed = errors.New("audit logger is closed")

// Entry is a single audit log record.
type Entry struct {
	ID            string         `json:"id"`
	Sequence      uint64         `json:"sequence"`
	Timestamp     time.Time      `json:"timestamp"`
	EventType     string         `json:"event_type"`
	Severity      string         `json:"severity"`
	Principal     string         `json:"principal,omitempty"`
	SourceAddress string         `json:"source_address,omitempty"`
	Action        string         `json:"action"`
	Result        string         `json:"result"`
	Details       map[string]any `json:"details,omitempty"`

	PreviousHash string `json:"previous_hash"`
	EntryHash    string `json:"entry_hash"`
}

// computeHash hashes the entry fields in deterministic order, excluding
// the entry hash itself.
func (e *Entry) computeHash() string {
	h := sha256.New()
	h.Write([]byte(e.ID))
	fmt.Fprintf(h, "%d", e.Sequence)
	h.Write([]byte(e.Timestamp.Format(time.RFC3339Nano)))
	h.Write([]byte(e.EventType))
	h.Write([]byte(e.Severity))
	h.Write([]byte(e.Principal))
	h.Write([]byte(e.SourceAddress))
	h.Write([]byte(e.Action))
	h.Write([]byte(e.Result))

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Write([]byte(k))
			fmt.Fprintf(h, "%v", e.Details[k])
		}
	}

	h.Write([]byte(e.PreviousHash))
	return hex.EncodeToString(h.Sum(nil))
}

// Config holds audit logger settings.
type Config struct {
	Path string `yaml:"path"`
}

// DefaultConfig returns the default audit configuration.
func DefaultConfig() Config {
	return Config{Path: "audit/audit.jsonl"}
}

// Logger writes hash-chained audit entries to a JSONL file.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	sequence uint64
	prevHash string
	closed   bool
}

// NewLogger opens (or creates) the audit log file for appending.
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("audit: create log directory: %w", err)
		}
	}

	file, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("audit: open log file: %w", err)
	}

	l := &Logger{file: file}
	if err := l.recoverState(cfg.Path); err != nil {
		file.Close()
		return nil, fmt.Errorf("audit: recover chain state: %w", err)
	}
	return l, nil
}

// recoverState restores the sequence and previous hash from the last
// entry of an existing log file. Without it the chain restarts from
// sequence 1 on reopen and verification breaks at the process boundary.
func (l *Logger) recoverState(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var last []byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if line := bytes.TrimSpace(scanner.Bytes()); len(line) > 0 {
			last = append(last[:0], line...)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(last) == 0 {
		return nil
	}

	var entry Entry
	if err := json.Unmarshal(last, &entry); err != nil {
		return fmt.Errorf("decode last entry: %w", err)
	}
	l.sequence = entry.Sequence
	l.prevHash = entry.EntryHash
	return nil
}

// Write appends one audit entry. Entries are chained: each carries the
// hash of the previous entry. Sensitive detail values are redacted
// before the entry is hashed and stored.
func (l *Logger) Write(ctx context.Context, eventType, severity, principal, sourceAddress, action, result string, details map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLoggerClosed
	}

	details = logging.MaskFields(details)

	l.sequence++
	entry := Entry{
		ID:            uuid.NewString(),
		Sequence:      l.sequence,
		Timestamp:     time.Now().UTC(),
		EventType:     eventType,
		Severity:      severity,
		Principal:     principal,
		SourceAddress: sourceAddress,
		Action:        action,
		Result:        result,
		Details:       details,
		PreviousHash:  l.prevHash,
	}
	entry.EntryHash = entry.computeHash()

	line, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("audit: encode entry: %w", err)
	}

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: append entry: %w", err)
	}

	l.prevHash = entry.EntryHash
	return nil
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// VerifyChain checks that a sequence of entries forms an unbroken hash
// chain. Returns the index of the first broken entry, or -1.
func VerifyChain(entries []Entry) int {
	prev := ""
	for i := range entries {
		e := entries[i]
		if e.PreviousHash != prev {
			return i
		}
		if e.computeHash() != e.EntryHash {
			return i
		}
		prev = e.EntryHash
	}
	return -1
}
