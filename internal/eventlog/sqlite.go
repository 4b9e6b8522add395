package eventlog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `CREATE TABLE IF NOT EXISTS events (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	ts       INTEGER NOT NULL,
	message  TEXT    NOT NULL,
	checksum BLOB    NOT NULL
)`

// Entry is a journaled event.
type Entry struct {
	ID      int64
	Time    time.Time
	Message string
}

// SQLiteLog journals events into SQLite with a per-row checksum.
type SQLiteLog struct {
	db *sql.DB
}

func OpenSQLite(dbPath string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create events table: %w", err)
	}

	return &SQLiteLog{db: db}, nil
}

func checksum(ts int64, message string) []byte {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s", ts, message)))
	return sum[:]
}

func (s *SQLiteLog) Append(ts time.Time, message string) error {
	nanos := ts.UnixNano()
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO events (ts, message, checksum) VALUES (?, ?, ?)`,
		nanos, message, checksum(nanos, message))
	if err != nil {
		return fmt.Errorf("failed to write event to db: %w", err)
	}
	return nil
}

// Entries returns journaled events in insertion order, verifying each
// checksum. A limit of zero reads everything.
func (s *SQLiteLog) Entries(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, ts, message, checksum FROM events ORDER BY id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			id     int64
			nanos  int64
			msg    string
			stored []byte
		)
		if err := rows.Scan(&id, &nanos, &msg, &stored); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if !bytes.Equal(stored, checksum(nanos, msg)) {
			return nil, fmt.Errorf("checksum verification failed for event %d: data corruption detected", id)
		}
		out = append(out, Entry{ID: id, Time: time.Unix(0, nanos), Message: msg})
	}
	return out, rows.Err()
}

func (s *SQLiteLog) Close() error {
	return s.db.Close()
}
