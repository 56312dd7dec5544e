package report

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestLogger(t *testing.T, minLevel EventLevel) *EventLogger {
	t.Helper()
	logger, err := NewEventLogger(t.TempDir(), minLevel)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func readBack(t *testing.T, logger *EventLogger) []Event {
	t.Helper()
	logger.Close()
	events, err := ReadEvents(logger.Path())
	if err != nil {
		t.Fatalf("ReadEvents failed: %v", err)
	}
	return events
}

func TestNewEventLogger(t *testing.T) {
	logger := newTestLogger(t, LevelDebug)

	if _, err := os.Stat(logger.Path()); os.IsNotExist(err) {
		t.Errorf("Event log file was not created at %s", logger.Path())
	}

	filename := filepath.Base(logger.Path())
	if len(filename) != len("audit-20060102-150405.jsonl") {
		t.Errorf("Event log filename format incorrect: %s", filename)
	}
}

func TestEventLogger_LogOperation(t *testing.T) {
	logger := newTestLogger(t, LevelDebug)

	logger.LogOperation("op-1", "create_recording", true, 15*time.Millisecond, "", nil)
	logger.LogOperation("op-2", "create_recording", true, time.Millisecond, "Duplicate path", errors.New("duplicate path"))
	logger.LogOperation("op-3", "get_all_recordings", false, time.Millisecond, "", nil)

	events := readBack(t, logger)
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}

	if events[0].Level != LevelInfo || events[0].OpID != "op-1" || events[0].Duration != 15 {
		t.Errorf("unexpected write event: %+v", events[0])
	}
	if events[1].Level != LevelError || events[1].Kind != "Duplicate path" || events[1].Error != "duplicate path" {
		t.Errorf("unexpected failure event: %+v", events[1])
	}
	if events[2].Level != LevelDebug {
		t.Errorf("expected reads at debug level, got %s", events[2].Level)
	}
	for i, e := range events {
		if e.Timestamp.IsZero() {
			t.Errorf("event %d: timestamp not set", i)
		}
		if e.Event != EventOperation {
			t.Errorf("event %d: expected operation event, got %s", i, e.Event)
		}
	}
}

func TestEventLogger_LogImportAndDuplicate(t *testing.T) {
	logger := newTestLogger(t, LevelInfo)

	logger.LogImport("/r/a.wav", 7, 12.5, nil)
	logger.LogDuplicate("/r/a.wav")
	logger.LogChange("recording", 7) // debug, filtered

	events := readBack(t, logger)
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}

	imp := events[0]
	if imp.Event != EventImport || imp.EntityID != 7 || imp.Path != "/r/a.wav" {
		t.Errorf("unexpected import event: %+v", imp)
	}
	if imp.Extra["duration_s"] != "12.500" {
		t.Errorf("expected duration_s 12.500, got %q", imp.Extra["duration_s"])
	}
	if events[1].Level != LevelWarning || events[1].Kind != "Duplicate path" {
		t.Errorf("unexpected duplicate event: %+v", events[1])
	}
}

func TestEventLogger_ConcurrentWrites(t *testing.T) {
	logger := newTestLogger(t, LevelDebug)

	const numGoroutines = 10
	const eventsPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				if err := logger.LogChange("recording", int64(j)); err != nil {
					t.Errorf("Concurrent log failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	events := readBack(t, logger)
	if want := numGoroutines * eventsPerGoroutine; len(events) != want {
		t.Errorf("Expected %d events, got %d", want, len(events))
	}
}

func TestEventLogger_NullLogger(t *testing.T) {
	logger := NullLogger()

	if err := logger.Log(&Event{Level: LevelInfo, Event: EventChange}); err != nil {
		t.Errorf("NullLogger.Log should not return error, got: %v", err)
	}
	if err := logger.LogOperation("id", "op", true, 0, "", nil); err != nil {
		t.Errorf("NullLogger.LogOperation should not return error, got: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("NullLogger.Close should not return error, got: %v", err)
	}
	if path := logger.Path(); path != "" {
		t.Errorf("NullLogger.Path should return empty string, got: %s", path)
	}
}

func TestEventLogger_LogLevelFiltering(t *testing.T) {
	all := []Event{
		{Level: LevelDebug, Event: EventChange},
		{Level: LevelInfo, Event: EventOperation},
		{Level: LevelWarning, Event: EventDuplicate},
		{Level: LevelError, Event: EventError},
	}

	testCases := []struct {
		minLevel      EventLevel
		expectedCount int
	}{
		{LevelDebug, 4},
		{LevelInfo, 3},
		{LevelWarning, 2},
		{LevelError, 1},
	}

	for _, tc := range testCases {
		t.Run(string(tc.minLevel), func(t *testing.T) {
			logger := newTestLogger(t, tc.minLevel)
			for _, e := range all {
				e := e
				logger.Log(&e)
			}
			if got := len(readBack(t, logger)); got != tc.expectedCount {
				t.Errorf("Expected %d events, got %d", tc.expectedCount, got)
			}
		})
	}
}

func TestParseEventLevel(t *testing.T) {
	tests := map[string]EventLevel{
		"debug":   LevelDebug,
		"warning": LevelWarning,
		"warn":    LevelWarning,
		"error":   LevelError,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseEventLevel(in); got != want {
			t.Errorf("ParseEventLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLatestEventLog(t *testing.T) {
	dir := t.TempDir()
	if got := LatestEventLog(dir); got != "" {
		t.Errorf("expected no log in empty dir, got %s", got)
	}

	for _, name := range []string{"audit-20240101-000000.jsonl", "audit-20240301-120000.jsonl", "audit-20240201-000000.jsonl"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0644)
	}
	if got := filepath.Base(LatestEventLog(dir)); got != "audit-20240301-120000.jsonl" {
		t.Errorf("expected newest log, got %s", got)
	}
}
