// Package journal keeps a local sqlite record of tunnel and publish events.
package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	_ "modernc.org/sqlite"

	"minerlink/pkg/model"
)

var logger = loggo.GetLogger("minerlink.journal")

// Event kinds.
const (
	KindStart          = "start"
	KindStartFailed    = "start_failed"
	KindLivenessFailed = "liveness_failed"
	KindRecovered      = "recovered"
	KindAlert          = "alert"
	KindPublished      = "published"
	KindSync           = "sync"
)

const schema = `CREATE TABLE IF NOT EXISTS tunnel_events(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	host TEXT,
	port INTEGER,
	detail TEXT,
	ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tunnel_events_ts ON tunnel_events(ts);`

type Journal struct {
	db  *sql.DB
	now func() time.Time
}

func Open(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Annotate(err, "journal mkdir")
	}
	dsn := "file:" + path + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Annotate(err, "journal open")
	}
	db.SetMaxOpenConns(1)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Annotate(err, "journal ping")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Annotate(err, "journal schema")
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Record appends an event. Failures are logged and returned; callers
// treat the journal as best effort.
func (j *Journal) Record(ctx context.Context, kind, host string, port uint16, detail string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO tunnel_events(kind, host, port, detail, ts) VALUES(?,?,?,?,?)`,
		kind, host, int(port), detail, j.now().UnixMilli())
	if err != nil {
		logger.Warningf("journal record %s failed: %v", kind, err)
		return errors.Trace(err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]model.TunnelEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, kind, host, port, detail, ts FROM tunnel_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()
	var out []model.TunnelEvent
	for rows.Next() {
		var (
			ev        model.TunnelEvent
			host, det sql.NullString
			port      sql.NullInt64
			tsMillis  int64
		)
		if err := rows.Scan(&ev.ID, &ev.Kind, &host, &port, &det, &tsMillis); err != nil {
			return nil, errors.Trace(err)
		}
		ev.Host = host.String
		ev.Port = uint16(port.Int64)
		ev.Detail = det.String
		ev.Time = time.UnixMilli(tsMillis).UTC()
		out = append(out, ev)
	}
	return out, errors.Trace(rows.Err())
}

// Prune drops everything but the newest keep events.
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM tunnel_events WHERE id NOT IN (SELECT id FROM tunnel_events ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, errors.Trace(err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logger.Debugf("pruned %d journal events", n)
	}
	return n, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}
