// CLAUDE:SUMMARY SQLite sink persisting sessions, batches and records; reads sessions back for export and replay.
package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/domreplay/record"
)

// Schema holds one row per recording scope (session), one per delivered
// batch and one per record. Record data is the JSON payload as emitted.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	href        TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	last_seq    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS batches (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	stats       TEXT NOT NULL DEFAULT '{}',
	created_at  INTEGER NOT NULL,
	UNIQUE (session_id, seq)
);

CREATE TABLE IF NOT EXISTS records (
	batch_id    TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	event_id    INTEGER NOT NULL,
	type        INTEGER NOT NULL,
	timestamp   INTEGER NOT NULL,
	data        TEXT NOT NULL,
	PRIMARY KEY (batch_id, position)
);
`

// Session summarises a stored recording scope.
type Session struct {
	ID        string
	Href      string
	StartedAt time.Time
	LastSeq   uint64
	Batches   int
}

// Store persists batches in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets a custom logger.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// OpenStore opens (creating if needed) the database at path. Use
// ":memory:" for a throwaway store.
func OpenStore(path string, opts ...StoreOption) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: sqlite: schema: %w", err)
	}
	s := &Store{db: db, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Send stores the batch and its records in one transaction.
func (s *Store) Send(ctx context.Context, b record.Batch) error {
	stats, err := json.Marshal(b.Stats)
	if err != nil {
		return fmt.Errorf("sink: sqlite: marshal stats: %w", err)
	}
	datas := make([][]byte, len(b.Records))
	for i, r := range b.Records {
		if datas[i], err = json.Marshal(r.Data); err != nil {
			return fmt.Errorf("sink: sqlite: marshal record %d: %w", r.ID, err)
		}
	}

	err = runTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, started_at, last_seq) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET last_seq = MAX(last_seq, excluded.last_seq)`,
			b.SessionID, b.Timestamp, b.Seq); err != nil {
			return fmt.Errorf("sink: sqlite: session: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO batches (id, session_id, seq, kind, stats, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			b.ID, b.SessionID, b.Seq, string(b.Kind), string(stats), b.Timestamp); err != nil {
			return fmt.Errorf("sink: sqlite: batch: %w", err)
		}
		for i, r := range b.Records {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO records (batch_id, position, event_id, type, timestamp, data)
				VALUES (?, ?, ?, ?, ?, ?)`,
				b.ID, i, r.ID, int(r.Type), r.Timestamp, string(datas[i])); err != nil {
				return fmt.Errorf("sink: sqlite: record %d: %w", r.ID, err)
			}
			if m, ok := r.Data.(*record.Meta); ok {
				if _, err := tx.ExecContext(ctx, `UPDATE sessions SET href = ? WHERE id = ?`, m.Href, b.SessionID); err != nil {
					return fmt.Errorf("sink: sqlite: session href: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("sink: batch stored", "session", b.SessionID, "seq", b.Seq, "records", len(b.Records))
	return nil
}

// Sessions lists stored sessions, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.href, s.started_at, s.last_seq,
		       (SELECT COUNT(*) FROM batches b WHERE b.session_id = s.id)
		FROM sessions s
		ORDER BY s.started_at, s.id`)
	if err != nil {
		return nil, fmt.Errorf("sink: sqlite: sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var started int64
		if err := rows.Scan(&sess.ID, &sess.Href, &started, &sess.LastSeq, &sess.Batches); err != nil {
			return nil, fmt.Errorf("sink: sqlite: sessions: %w", err)
		}
		sess.StartedAt = time.UnixMilli(started)
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Batches returns the batches of a session in Seq order. Record data is
// raw JSON; decode it with record.Decoder.
func (s *Store) Batches(ctx context.Context, sessionID string) ([]record.Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.seq, b.kind, b.stats, b.created_at,
		       r.event_id, r.type, r.timestamp, r.data
		FROM batches b
		JOIN records r ON r.batch_id = b.id
		WHERE b.session_id = ?
		ORDER BY b.seq, r.position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sink: sqlite: batches: %w", err)
	}
	defer rows.Close()

	var out []record.Batch
	for rows.Next() {
		var (
			id, kind, stats string
			seq             uint64
			created         int64
			r               record.Record
			data            string
		)
		if err := rows.Scan(&id, &seq, &kind, &stats, &created, &r.ID, &r.Type, &r.Timestamp, &data); err != nil {
			return nil, fmt.Errorf("sink: sqlite: batches: %w", err)
		}
		r.Data = json.RawMessage(data)

		if n := len(out); n == 0 || out[n-1].ID != id {
			b := record.Batch{ID: id, SessionID: sessionID, Seq: seq, Kind: record.Kind(kind), Timestamp: created}
			if err := json.Unmarshal([]byte(stats), &b.Stats); err != nil {
				return nil, fmt.Errorf("sink: sqlite: batch %s stats: %w", id, err)
			}
			out = append(out, b)
		}
		last := &out[len(out)-1]
		last.Records = append(last.Records, r)
	}
	return out, rows.Err()
}

// Records returns every record of a session in emission order.
func (s *Store) Records(ctx context.Context, sessionID string) ([]record.Record, error) {
	batches, err := s.Batches(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var out []record.Record
	for _, b := range batches {
		out = append(out, b.Records...)
	}
	return out, nil
}

func (s *Store) Close() error { return s.db.Close() }
