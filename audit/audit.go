// Package audit provides an append-only JSONL trail of handled compliance
// events. Sweep and daemon modes write one; the event-driven handler path
// stays stateless and runs without one.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/remedian/remedian/types"
)

// EntryKind classifies an audit entry
type EntryKind string

const (
	EntryHandled EntryKind = "handled" // Event processed, any outcome but failed
	EntryFailed  EntryKind = "failed"  // Corrective call or notification failed
)

// Entry is a single audit record
type Entry struct {
	Timestamp  time.Time       `json:"timestamp"`
	Sequence   int64           `json:"sequence"`
	Kind       EntryKind       `json:"kind"`
	ResourceID string          `json:"resource_id,omitempty"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error,omitempty"`
}

// record pairs the event with its result inside an entry
type record struct {
	Event  types.ComplianceEvent   `json:"event"`
	Result types.RemediationResult `json:"result"`
}

// Trail is an append-only audit log, one JSON entry per line
type Trail struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	sequence int64
	dir      string
}

// Open creates or opens an audit trail in the specified directory
func Open(dir string) (*Trail, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	filename := fmt.Sprintf("remedian-%s.audit", time.Now().Format("20060102-150405"))
	path := filepath.Join(dir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640) // #nosec G304 -- path built from operator config
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	return &Trail{
		file:   file,
		writer: bufio.NewWriter(file),
		dir:    dir,
	}, nil
}

// Close flushes and closes the trail
func (t *Trail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.writer.Flush(); err != nil {
		return err
	}
	return t.file.Close()
}

// Record appends one handled event. Implements remediator.AuditSink.
func (t *Trail) Record(_ context.Context, event types.ComplianceEvent, result types.RemediationResult) error {
	kind := EntryHandled
	if result.Outcome == types.OutcomeFailed {
		kind = EntryFailed
	}
	return t.Append(kind, event.ResourceID, record{Event: event, Result: result}, result.Error)
}

// Append adds an entry to the trail
func (t *Trail) Append(kind EntryKind, resourceID string, data any, errText string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal audit data: %w", err)
	}

	t.sequence++
	entry := Entry{
		Timestamp:  time.Now(),
		Sequence:   t.sequence,
		Kind:       kind,
		ResourceID: resourceID,
		Data:       jsonData,
		Error:      errText,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	if _, err := t.writer.Write(line); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	// Flush per entry; audit holes after a crash are worse than the
	// syscall cost at this event rate
	return t.writer.Flush()
}

// ReadAll returns every entry in the trail's directory, oldest file first
func ReadAll(dir string) ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "remedian-*.audit"))
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, path := range paths {
		file, err := os.Open(path) // #nosec G304 -- path from Glob over the audit dir
		if err != nil {
			return nil, fmt.Errorf("failed to open audit file: %w", err)
		}

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			var entry Entry
			if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
				_ = file.Close()
				return nil, fmt.Errorf("corrupt audit entry in %s: %w", path, err)
			}
			entries = append(entries, entry)
		}
		if err := scanner.Err(); err != nil {
			_ = file.Close()
			return nil, err
		}
		_ = file.Close()
	}
	return entries, nil
}
