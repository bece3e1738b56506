// internal/weblog/weblog.go
//
// Persistent log sink for webhook and admin events.
//
// Context
// -------
// The deploy pipeline and the remap engine record every step to the
// `webhook_log` table so operators can audit them from the console.  A
// sink write must never break the flow that called it: on insert failure
// the entry is emitted through the zap file logger instead, and the error
// stops there.
//
// The sink also owns the process-wide "startup logged" guard.  Exactly one
// startup line is written per process, on the first Write, no matter how
// many goroutines race to it.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package weblog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Severity levels stored in the `level` column.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Entry is one append-only event.  Status and IP are optional; zero Status
// and empty IP persist as NULL.
type Entry struct {
	Source  string         // "deploy", "remap", "admin", …
	Level   string         // LevelInfo, LevelWarn, LevelError
	Message string
	Meta    map[string]any // optional structured detail, stored as JSON
	Status  int            // optional HTTP status
	IP      string         // optional originating address
}

// Row mirrors one persisted `webhook_log` row for the admin browser.
type Row struct {
	ID        int64     `db:"id" json:"id"`
	Source    string    `db:"source" json:"source"`
	Level     string    `db:"level" json:"level"`
	Message   string    `db:"message" json:"message"`
	Meta      *string   `db:"meta" json:"meta"`
	Status    *int      `db:"status" json:"status"`
	IP        *string   `db:"ip" json:"ip"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Sink writes entries to the database, falling back to zap.  Safe for
// concurrent use; construct with NewSink.
type Sink struct {
	db          *sqlx.DB
	startupOnce sync.Once
}

// NewSink returns a ready sink.
func NewSink(db *sqlx.DB) *Sink {
	return &Sink{db: db}
}

// Write persists one entry, best-effort.  The first call per process also
// writes a single startup line so the log always marks where a restart
// happened.
func (s *Sink) Write(ctx context.Context, e Entry) {
	s.startupOnce.Do(func() {
		s.insert(ctx, Entry{
			Source:  "system",
			Level:   LevelInfo,
			Message: "waypost started",
		})
	})
	s.insert(ctx, e)
}

func (s *Sink) insert(ctx context.Context, e Entry) {
	var meta any // NULL unless Meta present
	if len(e.Meta) > 0 {
		b, err := json.Marshal(e.Meta)
		if err != nil {
			zap.S().Errorw("weblog meta marshal failed", "err", err, "msg", e.Message)
		} else {
			meta = string(b)
		}
	}
	var status any
	if e.Status != 0 {
		status = e.Status
	}
	var ip any
	if e.IP != "" {
		ip = e.IP
	}

	const q = `INSERT INTO webhook_log (source, level, message, meta, status, ip)
        VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, e.Source, e.Level, e.Message, meta, status, ip); err != nil {
		// Fallback channel: the daily file log.  Never propagate.
		zap.S().Errorw("weblog insert failed",
			"err", err,
			"source", e.Source,
			"level", e.Level,
			"msg", e.Message,
		)
	}
}

// Recent returns persisted rows, newest first, optionally filtered by
// source.  Used by the admin log browser.
func (s *Sink) Recent(ctx context.Context, source string, limit, offset int) ([]Row, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rows []Row
	if source != "" {
		const q = `SELECT id, source, level, message, meta, status, ip, created_at
            FROM   webhook_log
            WHERE  source = ?
            ORDER  BY id DESC
            LIMIT  ? OFFSET ?`
		if err := s.db.SelectContext(ctx, &rows, q, source, limit, offset); err != nil {
			return nil, err
		}
		return rows, nil
	}

	const q = `SELECT id, source, level, message, meta, status, ip, created_at
        FROM   webhook_log
        ORDER  BY id DESC
        LIMIT  ? OFFSET ?`
	if err := s.db.SelectContext(ctx, &rows, q, limit, offset); err != nil {
		return nil, err
	}
	return rows, nil
}
