// CLAUDE:SUMMARY SQLite-backed tool invocation log with async batch flushing.
// Package audit persists tool invocation records to SQLite.
//
// Entries can be written synchronously (Log) or queued (LogAsync); queued
// entries are batch-inserted by a background goroutine and drained on Close.
// The caller must blank-import a sqlite driver:
//
//	import _ "modernc.org/sqlite"
package audit

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Schema for the tool_invocations table. Applied by Init.
const Schema = `
CREATE TABLE IF NOT EXISTS tool_invocations (
	entry_id    TEXT PRIMARY KEY,
	tool        TEXT NOT NULL,
	path        TEXT NOT NULL DEFAULT '',
	params      TEXT NOT NULL DEFAULT '{}',
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_us INTEGER NOT NULL DEFAULT 0,
	blocks      INTEGER NOT NULL DEFAULT 0,
	timestamp   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_invocations_ts ON tool_invocations(timestamp);
CREATE INDEX IF NOT EXISTS idx_tool_invocations_tool ON tool_invocations(tool);
`

const insertSQL = `INSERT INTO tool_invocations
	(entry_id, tool, path, params, status, error, duration_us, blocks, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Entry is one recorded tool invocation. Zero fields are filled with
// defaults at write time: a UUIDv7 entry ID, the current timestamp, and a
// status derived from Error.
type Entry struct {
	EntryID    string
	Tool       string
	Path       string
	Params     string // JSON-encoded tool arguments
	Status     string // "success" or "error"
	Error      string
	DurationUs int64
	Blocks     int
	Timestamp  int64 // unix millis
}

// Logger persists entries to the tool_invocations table.
type Logger struct {
	db    *sql.DB
	newID func() string
	ch    chan *Entry
	done  chan struct{}
	once  sync.Once
}

// Option customises a Logger.
type Option func(*Logger)

// WithIDGenerator overrides the entry ID generator. Default: UUIDv7.
func WithIDGenerator(gen func() string) Option {
	return func(l *Logger) { l.newID = gen }
}

// NewLogger creates a Logger backed by the given database connection and
// starts its flush goroutine. Call Close to drain and stop it.
func NewLogger(db *sql.DB, opts ...Option) *Logger {
	l := &Logger{
		db:    db,
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
		ch:    make(chan *Entry, 256),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.flushLoop()
	return l
}

// Init creates the tool_invocations table if it doesn't exist.
func (l *Logger) Init() error {
	_, err := l.db.Exec(Schema)
	return err
}

// Log writes one entry synchronously.
func (l *Logger) Log(ctx context.Context, e *Entry) error {
	l.fill(e)
	_, err := l.db.ExecContext(ctx, insertSQL,
		e.EntryID, e.Tool, e.Path, e.Params, e.Status, e.Error, e.DurationUs, e.Blocks, e.Timestamp)
	return err
}

// LogAsync queues an entry for background persistence. Non-blocking: the
// entry is dropped when the buffer is full, so logging can never
// backpressure a tool call.
func (l *Logger) LogAsync(e *Entry) {
	l.fill(e)
	select {
	case l.ch <- e:
	default:
	}
}

// Close drains queued entries and stops the flush goroutine.
func (l *Logger) Close() error {
	l.once.Do(func() {
		close(l.ch)
		<-l.done
	})
	return nil
}

func (l *Logger) fill(e *Entry) {
	if e.EntryID == "" {
		e.EntryID = l.newID()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	if e.Status == "" {
		if e.Error != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}
	if e.Params == "" {
		e.Params = "{}"
	}
}

func (l *Logger) flushLoop() {
	defer close(l.done)

	batch := make([]*Entry, 0, 32)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-l.ch:
			if !ok {
				l.flushBatch(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= 32 {
				l.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				l.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (l *Logger) flushBatch(batch []*Entry) {
	if len(batch) == 0 {
		return
	}

	tx, err := l.db.Begin()
	if err != nil {
		slog.Error("audit: begin tx", "error", err)
		return
	}

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		tx.Rollback()
		slog.Error("audit: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.Exec(e.EntryID, e.Tool, e.Path, e.Params, e.Status, e.Error,
			e.DurationUs, e.Blocks, e.Timestamp); err != nil {
			slog.Error("audit: insert", "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("audit: commit", "error", err)
	}
}
