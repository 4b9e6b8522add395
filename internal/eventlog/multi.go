package eventlog

import (
	"errors"
	"time"

	"ladderbot/internal/core"
)

// MultiLog fans every append out to all of its logs.
type MultiLog struct {
	logs []core.IEventLog
}

func NewMultiLog(logs ...core.IEventLog) *MultiLog {
	return &MultiLog{logs: logs}
}

func (m *MultiLog) Append(ts time.Time, message string) error {
	var errs []error
	for _, l := range m.logs {
		if err := l.Append(ts, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiLog) Close() error {
	var errs []error
	for _, l := range m.logs {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
