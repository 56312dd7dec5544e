package main

import (
	"fmt"
	"strconv"

	"github.com/franz/transcribrr/internal/database"
	"github.com/franz/transcribrr/internal/folders"
	"github.com/franz/transcribrr/internal/report"
	"github.com/franz/transcribrr/internal/util"
)

// app holds the services one command works with
type app struct {
	db      *database.Manager
	folders *folders.Manager
	events  *report.EventLogger
}

// openApp opens the database and loads the folder cache
func openApp() (*app, error) {
	a := &app{}

	if cfg.AuditEnabled() {
		events, err := report.NewEventLogger(cfg.AuditDir, report.ParseEventLevel(cfg.AuditLevel))
		if err != nil {
			util.WarnLog("Audit log disabled: %v", err)
		} else {
			a.events = events
		}
	}

	db, err := database.Open(cfg.DB, &database.Options{
		QueueSize:     cfg.QueueSize,
		BusyTimeoutMs: cfg.BusyTimeoutMs,
		Events:        a.events,
	})
	if err != nil {
		a.events.Close()
		return nil, err
	}
	a.db = db

	a.folders, err = folders.New(db)
	if err != nil {
		a.close()
		return nil, err
	}
	if err := awaitErr(a.folders.Load); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to load folders: %w", err)
	}
	return a, nil
}

func (a *app) close() {
	if err := a.db.Shutdown(); err != nil {
		util.ErrorLog("%v", err)
	}
	a.events.Close()
}

// await submits an operation and blocks until its callback has run
func await[T any](call func(done func(T, error))) (T, error) {
	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)
	call(func(v T, err error) { ch <- outcome{v, err} })
	o := <-ch
	return o.v, o.err
}

// awaitErr is await for operations without a result. Folder operations
// rejected up front still report through done, so their accepted flag is
// not needed here.
func awaitErr(call func(done func(error))) error {
	ch := make(chan error, 1)
	call(func(err error) { ch <- err })
	return <-ch
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
