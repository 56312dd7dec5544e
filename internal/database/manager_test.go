package database

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sourcegraph/conc"

	"github.com/franz/transcribrr/internal/metrics"
	"github.com/franz/transcribrr/internal/store"
)

const awaitTimeout = 10 * time.Second

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := Open(filepath.Join(t.TempDir(), "database", "database.sqlite"), nil)
	if err != nil {
		t.Fatalf("failed to open manager: %v", err)
	}
	t.Cleanup(func() { m.Shutdown() })
	return m
}

// await submits an operation and blocks until its callback has run
func await[T any](t *testing.T, call func(done func(T, error))) (T, error) {
	t.Helper()
	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)
	call(func(v T, err error) { ch <- outcome{v, err} })

	select {
	case o := <-ch:
		return o.v, o.err
	case <-time.After(awaitTimeout):
		t.Fatal("timed out waiting for callback")
		var zero T
		return zero, nil
	}
}

func awaitErr(t *testing.T, call func(done func(error))) error {
	t.Helper()
	_, err := await(t, func(done func(struct{}, error)) {
		call(func(err error) { done(struct{}{}, err) })
	})
	return err
}

func flush(t *testing.T, m *Manager) {
	t.Helper()
	ch := make(chan struct{})
	m.Flush(func() { close(ch) })
	select {
	case <-ch:
	case <-time.After(awaitTimeout):
		t.Fatal("timed out waiting for flush")
	}
}

func testRecording(path string) store.Recording {
	return store.Recording{
		Filename:    filepath.Base(path),
		FilePath:    path,
		DateCreated: "2024-05-10 09:30:00",
		Duration:    42,
	}
}

func TestManagerConcurrentMixedOperations(t *testing.T) {
	m := newTestManager(t)

	const n = 40
	var (
		mu        sync.Mutex
		callbacks int
		failures  []error
	)
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		callbacks++
		if err != nil {
			failures = append(failures, err)
		}
	}

	var wg conc.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Go(func() {
			path := fmt.Sprintf("/recordings/take-%03d.wav", i)
			m.CreateRecording(testRecording(path), func(id int64, err error) {
				record(err)
				if err != nil {
					return
				}
				transcript := fmt.Sprintf("transcript %d", i)
				m.UpdateRecording(id, store.RecordingUpdate{RawTranscript: &transcript}, record)
			})
			m.SearchRecordings("take", func(_ []*store.Recording, err error) { record(err) })
			m.CountRecordings(func(_ int, err error) { record(err) })
		})
	}
	wg.Wait()

	// updates are submitted from callbacks, so flush twice
	flush(t, m)
	flush(t, m)

	count, err := await(t, m.CountRecordings)
	if err != nil {
		t.Fatalf("CountRecordings failed: %v", err)
	}
	if count != n {
		t.Errorf("expected %d recordings, got %d", n, count)
	}

	mu.Lock()
	defer mu.Unlock()
	if callbacks != 4*n {
		t.Errorf("expected %d callbacks, got %d", 4*n, callbacks)
	}
	for _, err := range failures {
		if strings.Contains(strings.ToLower(err.Error()), "locked") {
			t.Errorf("unexpected lock contention: %v", err)
		} else {
			t.Errorf("unexpected failure: %v", err)
		}
	}

	all, err := await(t, m.GetAllRecordings)
	if err != nil {
		t.Fatalf("GetAllRecordings failed: %v", err)
	}
	for _, r := range all {
		if !r.IsTranscribed() {
			t.Errorf("recording %s missing its transcript", r.FilePath)
		}
	}
}

func TestManagerDuplicatePath(t *testing.T) {
	m := newTestManager(t)

	var (
		mu     sync.Mutex
		events []*OpError
	)
	m.OnError(func(e *OpError) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})

	rec := testRecording("/recordings/interview.mp3")
	if _, err := await(t, func(done func(int64, error)) { m.CreateRecording(rec, done) }); err != nil {
		t.Fatalf("first CreateRecording failed: %v", err)
	}

	_, err := await(t, func(done func(int64, error)) { m.CreateRecording(rec, done) })
	var opErr *OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected *OpError, got %v", err)
	}
	if opErr.Kind != KindDuplicatePath {
		t.Errorf("expected kind %q, got %q", KindDuplicatePath, opErr.Kind)
	}
	if !errors.Is(err, store.ErrDuplicatePath) {
		t.Error("OpError should unwrap to store.ErrDuplicatePath")
	}

	count, _ := await(t, m.CountRecordings)
	if count != 1 {
		t.Errorf("expected 1 recording, got %d", count)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 error event, got %d", len(events))
	}
	if events[0].Kind != KindDuplicatePath {
		t.Errorf("expected error event kind %q, got %q", KindDuplicatePath, events[0].Kind)
	}
}

func TestManagerInvalidRecording(t *testing.T) {
	m := newTestManager(t)

	rec := testRecording("/recordings/bad.wav")
	rec.DateCreated = "yesterday"
	_, err := await(t, func(done func(int64, error)) { m.CreateRecording(rec, done) })

	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Kind != KindRuntime {
		t.Fatalf("expected runtime error, got %v", err)
	}
	if !errors.Is(err, store.ErrInvalidRecording) {
		t.Errorf("expected ErrInvalidRecording, got %v", err)
	}
}

func TestManagerTolerantUpdateAndDelete(t *testing.T) {
	m := newTestManager(t)

	name := "renamed.wav"
	if err := awaitErr(t, func(done func(error)) {
		m.UpdateRecording(9999, store.RecordingUpdate{Filename: &name}, done)
	}); err != nil {
		t.Errorf("update of missing id should succeed, got %v", err)
	}
	if err := awaitErr(t, func(done func(error)) { m.DeleteRecording(9999, done) }); err != nil {
		t.Errorf("delete of missing id should succeed, got %v", err)
	}

	rec, err := await(t, func(done func(*store.Recording, error)) { m.GetRecordingByID(9999, done) })
	if err != nil || rec != nil {
		t.Errorf("expected nil recording without error, got %v, %v", rec, err)
	}
}

func TestManagerUpdateAndDelete(t *testing.T) {
	m := newTestManager(t)

	id, err := await(t, func(done func(int64, error)) {
		m.CreateRecording(testRecording("/recordings/meeting.m4a"), done)
	})
	if err != nil {
		t.Fatalf("CreateRecording failed: %v", err)
	}

	processed := "Summary of the meeting"
	if err := awaitErr(t, func(done func(error)) {
		m.UpdateRecording(id, store.RecordingUpdate{ProcessedText: &processed}, done)
	}); err != nil {
		t.Fatalf("UpdateRecording failed: %v", err)
	}

	rec, err := await(t, func(done func(*store.Recording, error)) { m.GetRecordingByID(id, done) })
	if err != nil {
		t.Fatalf("GetRecordingByID failed: %v", err)
	}
	if rec.ProcessedText != processed {
		t.Errorf("expected processed text %q, got %q", processed, rec.ProcessedText)
	}
	if rec.Filename != "meeting.m4a" {
		t.Errorf("unnamed fields should be untouched, got filename %q", rec.Filename)
	}

	if err := awaitErr(t, func(done func(error)) { m.DeleteRecording(id, done) }); err != nil {
		t.Fatalf("DeleteRecording failed: %v", err)
	}
	exists, _ := await(t, func(done func(bool, error)) { m.RecordingExists("/recordings/meeting.m4a", done) })
	if exists {
		t.Error("recording should be gone after delete")
	}
}

func TestManagerSearch(t *testing.T) {
	m := newTestManager(t)

	paths := []string{"/rec/alpha.wav", "/rec/beta.wav", "/rec/gamma.mp3"}
	for _, p := range paths {
		m.CreateRecording(testRecording(p), nil)
	}

	all, err := await(t, func(done func([]*store.Recording, error)) { m.SearchRecordings("", done) })
	if err != nil {
		t.Fatalf("SearchRecordings failed: %v", err)
	}
	if len(all) != len(paths) {
		t.Errorf("empty term should match all %d recordings, got %d", len(paths), len(all))
	}

	some, _ := await(t, func(done func([]*store.Recording, error)) { m.SearchRecordings("wav", done) })
	if len(some) != 2 {
		t.Errorf("expected 2 matches for 'wav', got %d", len(some))
	}
}

func TestManagerUnicodeRoundTrip(t *testing.T) {
	m := newTestManager(t)

	rec := testRecording("/録音/Интервью 🎙.wav")
	rec.RawTranscript = "Grüße, 你好, مرحبا"

	id, err := await(t, func(done func(int64, error)) { m.CreateRecording(rec, done) })
	if err != nil {
		t.Fatalf("CreateRecording failed: %v", err)
	}

	got, err := await(t, func(done func(*store.Recording, error)) { m.GetRecordingByID(id, done) })
	if err != nil {
		t.Fatalf("GetRecordingByID failed: %v", err)
	}
	if got.Filename != rec.Filename || got.FilePath != rec.FilePath || got.RawTranscript != rec.RawTranscript {
		t.Errorf("round trip mismatch: got %+v", got)
	}
}

func TestManagerDataChanged(t *testing.T) {
	m := newTestManager(t)

	var (
		mu      sync.Mutex
		changes []Change
	)
	unsubscribe := m.OnDataChanged(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	})

	id, _ := await(t, func(done func(int64, error)) {
		m.CreateRecording(testRecording("/rec/changes.wav"), done)
	})
	m.GetAllRecordings(func([]*store.Recording, error) {})
	m.ExecuteQuery("UPDATE recordings SET duration = 1", nil, nil)
	m.DeleteRecording(id, nil)
	flush(t, m)

	unsubscribe()
	m.DeleteRecording(id, nil)
	flush(t, m)

	want := []Change{
		{Entity: EntityRecording, ID: id},
		{Entity: EntityQuery, ID: FullRefresh},
		{Entity: EntityRecording, ID: id},
	}
	mu.Lock()
	defer mu.Unlock()
	if len(changes) != len(want) {
		t.Fatalf("expected %d changes, got %v", len(want), changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d: expected %+v, got %+v", i, want[i], changes[i])
		}
	}
	if !changes[1].IsFullRefresh() {
		t.Error("query change should be a full refresh")
	}
}

func TestManagerExecuteQuery(t *testing.T) {
	m := newTestManager(t)

	m.CreateRecording(testRecording("/rec/one.wav"), nil)
	m.CreateRecording(testRecording("/rec/two.wav"), nil)

	res, err := await(t, func(done func(*store.QueryResult, error)) {
		m.ExecuteQuery("SELECT COUNT(*) AS n FROM recordings", nil, done)
	})
	if err != nil {
		t.Fatalf("ExecuteQuery failed: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0][0] != int64(2) {
		t.Errorf("expected count 2, got %v", res.Rows)
	}

	res, err = await(t, func(done func(*store.QueryResult, error)) {
		m.ExecuteQuery("DELETE FROM recordings WHERE file_path = ?", []any{"/rec/one.wav"}, done)
	})
	if err != nil {
		t.Fatalf("ExecuteQuery delete failed: %v", err)
	}
	if res.RowsAffected != 1 {
		t.Errorf("expected 1 row affected, got %d", res.RowsAffected)
	}

	var (
		mu      sync.Mutex
		changes []Change
	)
	m.OnDataChanged(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	})

	res, err = await(t, func(done func(*store.QueryResult, error)) {
		m.ExecuteQuery("INSERT INTO recordings (filename, file_path, date_created) VALUES (?, ?, ?) RETURNING id",
			[]any{"three.wav", "/rec/three.wav", "2024-06-01"}, done)
	})
	if err != nil {
		t.Fatalf("ExecuteQuery insert returning failed: %v", err)
	}
	if len(res.Rows) != 1 || len(res.Columns) != 1 || res.Columns[0] != "id" {
		t.Errorf("expected the new id back, got %+v", res)
	}

	res, err = await(t, func(done func(*store.QueryResult, error)) {
		m.ExecuteQuery("WITH doomed AS (SELECT id FROM recordings) DELETE FROM recordings WHERE id IN (SELECT id FROM doomed)", nil, done)
	})
	if err != nil {
		t.Fatalf("ExecuteQuery CTE delete failed: %v", err)
	}
	if res.RowsAffected != 2 {
		t.Errorf("expected 2 rows affected by CTE delete, got %d", res.RowsAffected)
	}

	count, _ := await(t, m.CountRecordings)
	if count != 0 {
		t.Errorf("expected no recordings left, got %d", count)
	}

	flush(t, m)
	mu.Lock()
	defer mu.Unlock()
	want := Change{Entity: EntityQuery, ID: FullRefresh}
	if len(changes) != 2 || changes[0] != want || changes[1] != want {
		t.Errorf("expected two full-refresh query changes, got %v", changes)
	}
}

func TestManagerNilCallbackReadNotEnqueued(t *testing.T) {
	m := newTestManager(t)

	counter := metrics.DBOperationsTotal.WithLabelValues("get_all_recordings", metrics.StatusSuccess)
	before := testutil.ToFloat64(counter)

	m.GetAllRecordings(nil)
	flush(t, m)

	if after := testutil.ToFloat64(counter); after != before {
		t.Errorf("read without callback should not run, counter went from %v to %v", before, after)
	}
}

func TestManagerFolders(t *testing.T) {
	m := newTestManager(t)

	work, err := await(t, func(done func(*store.Folder, error)) { m.CreateFolder("Work", nil, done) })
	if err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}
	if work.ID == 0 || work.CreatedAt == "" {
		t.Errorf("created folder should carry id and timestamp, got %+v", work)
	}

	_, err = await(t, func(done func(*store.Folder, error)) { m.CreateFolder("Work", nil, done) })
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Kind != KindDuplicateFolder {
		t.Errorf("expected %q, got %v", KindDuplicateFolder, err)
	}

	missing := int64(404)
	_, err = await(t, func(done func(*store.Folder, error)) { m.CreateFolder("Orphan", &missing, done) })
	if !errors.Is(err, store.ErrInvalidFolder) {
		t.Errorf("expected ErrInvalidFolder for unknown parent, got %v", err)
	}

	recID, _ := await(t, func(done func(int64, error)) {
		m.CreateRecording(testRecording("/rec/standup.wav"), done)
	})
	if err := awaitErr(t, func(done func(error)) { m.AddRecordingToFolder(recID, work.ID, done) }); err != nil {
		t.Fatalf("AddRecordingToFolder failed: %v", err)
	}

	n, _ := await(t, func(done func(int, error)) { m.CountRecordingsInFolder(work.ID, done) })
	if n != 1 {
		t.Errorf("expected 1 recording in folder, got %d", n)
	}

	tree, err := await(t, func(done func(FolderTree, error)) { m.DeleteFolder(work.ID, done) })
	if err != nil {
		t.Fatalf("DeleteFolder failed: %v", err)
	}
	if !tree.Changed || len(tree.Folders) != 0 {
		t.Errorf("expected deleted folder and empty list, got %+v", tree)
	}

	exists, _ := await(t, func(done func(bool, error)) { m.RecordingExists("/rec/standup.wav", done) })
	if !exists {
		t.Error("deleting a folder must not delete its recordings")
	}
}

func TestManagerShutdown(t *testing.T) {
	m := newTestManager(t)

	var created int64
	m.CreateRecording(testRecording("/rec/last.wav"), func(id int64, err error) {
		created = id
	})

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if created == 0 {
		t.Error("pending operations should complete before Shutdown returns")
	}
	if err := m.Shutdown(); err != nil {
		t.Errorf("second Shutdown should be a no-op, got %v", err)
	}

	var (
		called bool
		late   error
	)
	m.CreateRecording(testRecording("/rec/too-late.wav"), func(_ int64, err error) {
		called = true
		late = err
	})
	if !called {
		t.Fatal("callback after Shutdown should run synchronously")
	}
	var opErr *OpError
	if !errors.As(late, &opErr) || opErr.Kind != KindStopped {
		t.Errorf("expected %q error, got %v", KindStopped, late)
	}
}
