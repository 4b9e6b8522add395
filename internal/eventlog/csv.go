// Package eventlog records engine decisions as an append-only audit trail.
package eventlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"
)

// TimestampLayout is the row timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

var csvHeader = []string{"timestamp", "event"}

// CSVLog appends (timestamp, event) rows to a CSV file. The header is
// written only when the file is created.
type CSVLog struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

func OpenCSV(path string) (*CSVLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat event log: %w", err)
	}

	l := &CSVLog{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := l.write(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	return l, nil
}

func (l *CSVLog) Append(ts time.Time, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write([]string{ts.Format(TimestampLayout), message})
}

func (l *CSVLog) write(record []string) error {
	if err := l.w.Write(record); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	l.w.Flush()
	return l.w.Error()
}

func (l *CSVLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}
