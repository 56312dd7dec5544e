package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventOperation EventType = "operation"
	EventChange    EventType = "change"
	EventImport    EventType = "import"
	EventDuplicate EventType = "duplicate"
	EventError     EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseEventLevel maps a config string to an EventLevel, defaulting to info
func ParseEventLevel(s string) EventLevel {
	if _, ok := levelPriority[EventLevel(s)]; ok {
		return EventLevel(s)
	}
	if s == "warn" {
		return LevelWarning
	}
	return LevelInfo
}

// Event is one line of the audit log
type Event struct {
	Timestamp time.Time         `json:"ts"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	OpID      string            `json:"op_id,omitempty"`
	Operation string            `json:"operation,omitempty"`
	Entity    string            `json:"entity,omitempty"`
	EntityID  int64             `json:"entity_id,omitempty"`
	Path      string            `json:"path,omitempty"`
	Kind      string            `json:"kind,omitempty"`
	Duration  int64             `json:"duration_ms,omitempty"`
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file. A nil *EventLogger is valid and discards everything.
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates audit-<timestamp>.jsonl in outputDir.
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := fmt.Sprintf("audit-%s.jsonl", time.Now().Format("20060102-150405"))
	path := filepath.Join(outputDir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogOperation records one completed database operation.
// Reads are debug level; writes are info; failures are errors.
func (l *EventLogger) LogOperation(opID, operation string, write bool, duration time.Duration, kind string, err error) error {
	level := LevelDebug
	if write {
		level = LevelInfo
	}
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:     level,
		Event:     EventOperation,
		OpID:      opID,
		Operation: operation,
		Kind:      kind,
		Duration:  duration.Milliseconds(),
		Error:     errMsg,
	})
}

// LogChange records a data-changed notification; entityID -1 means full refresh
func (l *EventLogger) LogChange(entity string, entityID int64) error {
	return l.Log(&Event{
		Level:    LevelDebug,
		Event:    EventChange,
		Entity:   entity,
		EntityID: entityID,
	})
}

// LogImport records the outcome of importing one media file
func (l *EventLogger) LogImport(path string, recordingID int64, duration float64, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventImport,
		Entity:   "recording",
		EntityID: recordingID,
		Path:     path,
		Error:    errMsg,
		Extra: map[string]string{
			"duration_s": fmt.Sprintf("%.3f", duration),
		},
	})
}

// LogDuplicate records a file that was already in the library
func (l *EventLogger) LogDuplicate(path string) error {
	return l.Log(&Event{
		Level: LevelWarning,
		Event: EventDuplicate,
		Path:  path,
		Kind:  "Duplicate path",
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, path string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: event,
		Path:  path,
		Error: err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}

// ReadEvents decodes every event of a JSONL audit log
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	var events []Event
	dec := json.NewDecoder(f)
	for dec.More() {
		var e Event
		if err := dec.Decode(&e); err != nil {
			return events, fmt.Errorf("failed to decode event %d: %w", len(events)+1, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// LatestEventLog returns the newest audit-*.jsonl file in dir, "" when none exist
func LatestEventLog(dir string) string {
	matches, err := filepath.Glob(filepath.Join(dir, "audit-*.jsonl"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	// timestamped names sort chronologically
	latest := matches[0]
	for _, m := range matches[1:] {
		if m > latest {
			latest = m
		}
	}
	return latest
}
