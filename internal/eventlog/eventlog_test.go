package eventlog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func TestCSVLog_HeaderOnlyOnCreation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade_log.csv")

	l, err := OpenCSV(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(ts, "Tick price = 3297"))
	require.NoError(t, l.Close())

	l, err = OpenCSV(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(ts.Add(time.Second), "TP HIT BUY at 3305, target 3305"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,event", lines[0])
	assert.Equal(t, "2025-03-14 09:26:53,Tick price = 3297", lines[1])
	assert.Equal(t, `2025-03-14 09:26:54,"TP HIT BUY at 3305, target 3305"`, lines[2])
}

func TestSQLiteLog_AppendAndRead(t *testing.T) {
	l, err := OpenSQLite(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Append(ts, "Starting cycle"))
	require.NoError(t, l.Append(ts.Add(time.Second), "Tick price = 3300.5"))

	entries, err := l.Entries(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Starting cycle", entries[0].Message)
	assert.True(t, entries[1].Time.Equal(ts.Add(time.Second)))

	limited, err := l.Entries(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteLog_DetectsTampering(t *testing.T) {
	l, err := OpenSQLite(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Append(ts, "original"))
	_, err = l.db.Exec(`UPDATE events SET message = 'forged'`)
	require.NoError(t, err)

	_, err = l.Entries(context.Background(), 0)
	assert.ErrorContains(t, err, "checksum verification failed")
}

type recordingLog struct {
	rows   []string
	err    error
	closed bool
}

func (r *recordingLog) Append(_ time.Time, message string) error {
	r.rows = append(r.rows, message)
	return r.err
}

func (r *recordingLog) Close() error {
	r.closed = true
	return nil
}

func TestMultiLog_FansOutAndJoinsErrors(t *testing.T) {
	boom := errors.New("disk full")
	a := &recordingLog{}
	b := &recordingLog{err: boom}

	m := NewMultiLog(a, b)
	err := m.Append(ts, "filled")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"filled"}, a.rows)
	assert.Equal(t, []string{"filled"}, b.rows)

	require.NoError(t, m.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
