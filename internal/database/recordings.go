package database

import (
	"context"

	"github.com/franz/transcribrr/internal/store"
	"github.com/franz/transcribrr/internal/util"
)

// CreateRecording inserts rec and calls done with the new id.
// An existing file_path fails with kind "Duplicate path".
func (m *Manager) CreateRecording(rec store.Recording, done func(int64, error)) {
	submit(m, "create_recording", true, func(ctx context.Context, s *store.Store) (int64, error) {
		return s.CreateRecording(ctx, &rec)
	}, done, func(id int64) *Change {
		return changed(EntityRecording, id)
	})
}

// UpdateRecording changes only the fields named in u. A missing id is not an
// error: done(nil) is still called and nothing changes.
func (m *Manager) UpdateRecording(id int64, u store.RecordingUpdate, done func(error)) {
	submit(m, "update_recording", true, func(ctx context.Context, s *store.Store) (bool, error) {
		ok, err := s.UpdateRecording(ctx, id, u)
		if err == nil && !ok && !u.IsEmpty() {
			util.DebugLog("Update of recording %d matched no row", id)
		}
		return ok, err
	}, ignoreValue[bool](done), func(bool) *Change {
		return changed(EntityRecording, id)
	})
}

// DeleteRecording removes the row and its folder associations; a missing id is not an error
func (m *Manager) DeleteRecording(id int64, done func(error)) {
	submit(m, "delete_recording", true, func(ctx context.Context, s *store.Store) (bool, error) {
		ok, err := s.DeleteRecording(ctx, id)
		if err == nil && !ok {
			util.DebugLog("Delete of recording %d matched no row", id)
		}
		return ok, err
	}, ignoreValue[bool](done), func(bool) *Change {
		return changed(EntityRecording, id)
	})
}

// GetRecordingByID calls done with the recording, or nil when it does not exist
func (m *Manager) GetRecordingByID(id int64, done func(*store.Recording, error)) {
	if !requireCallback("GetRecordingByID", done) {
		return
	}
	submit(m, "get_recording", false, func(ctx context.Context, s *store.Store) (*store.Recording, error) {
		return s.GetRecordingByID(ctx, id)
	}, done, nil)
}

// GetAllRecordings calls done with every recording, newest first
func (m *Manager) GetAllRecordings(done func([]*store.Recording, error)) {
	if !requireCallback("GetAllRecordings", done) {
		return
	}
	submit(m, "get_all_recordings", false, func(ctx context.Context, s *store.Store) ([]*store.Recording, error) {
		return s.GetAllRecordings(ctx)
	}, done, nil)
}

// SearchRecordings matches term against filename and transcripts; "" matches all
func (m *Manager) SearchRecordings(term string, done func([]*store.Recording, error)) {
	if !requireCallback("SearchRecordings", done) {
		return
	}
	submit(m, "search_recordings", false, func(ctx context.Context, s *store.Store) ([]*store.Recording, error) {
		return s.SearchRecordings(ctx, term)
	}, done, nil)
}

// RecordingExists reports whether a recording with filePath is stored
func (m *Manager) RecordingExists(filePath string, done func(bool, error)) {
	if !requireCallback("RecordingExists", done) {
		return
	}
	submit(m, "recording_exists", false, func(ctx context.Context, s *store.Store) (bool, error) {
		return s.RecordingExists(ctx, filePath)
	}, done, nil)
}

// CountRecordings calls done with the number of stored recordings
func (m *Manager) CountRecordings(done func(int, error)) {
	if !requireCallback("CountRecordings", done) {
		return
	}
	submit(m, "count_recordings", false, func(ctx context.Context, s *store.Store) (int, error) {
		return s.CountRecordings(ctx)
	}, done, nil)
}

// ExecuteQuery runs an arbitrary statement. Statements that may write run in
// a transaction and emit a full-refresh change for the "query" entity.
func (m *Manager) ExecuteQuery(query string, args []any, done func(*store.QueryResult, error)) {
	write := store.IsWrite(query)
	var change func(*store.QueryResult) *Change
	if write {
		change = func(*store.QueryResult) *Change { return changed(EntityQuery, FullRefresh) }
	} else if !requireCallback("ExecuteQuery", done) {
		return
	}

	submit(m, "execute_query", write, func(ctx context.Context, s *store.Store) (*store.QueryResult, error) {
		return s.Execute(ctx, query, args...)
	}, done, change)
}

func ignoreValue[T any](done func(error)) func(T, error) {
	if done == nil {
		return nil
	}
	return func(_ T, err error) { done(err) }
}
