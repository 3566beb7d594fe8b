package journal

import (
	"context"
	"time"

	"codeberg.org/mutker/statehook/internal/dispatch"
)

// Journal records dispatch results. It satisfies dispatch.Recorder.
type Journal interface {
	Record(ctx context.Context, result dispatch.Result) error
	Close() error
}

// Repository defines the interface for journal storage
type Repository interface {
	Record(entry *Entry) error
	Close() error
}

// Entry is one persisted dispatch result
type Entry struct {
	Timestamp  time.Time
	CycleID    string
	Key        string
	Value      string
	ValueKind  string
	Action     string
	Outcome    string
	StatusCode int
	Initial    bool
	Error      string
}

// NewEntry flattens a dispatch result into its stored form
func NewEntry(result dispatch.Result) *Entry {
	entry := &Entry{
		Timestamp:  result.At,
		CycleID:    result.CycleID,
		Key:        result.Key,
		Value:      result.Value.String(),
		ValueKind:  result.Value.Kind().String(),
		Action:     result.Action,
		Outcome:    string(result.Outcome),
		StatusCode: result.StatusCode,
		Initial:    result.Initial,
	}
	if result.Err != nil {
		entry.Error = result.Err.Error()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return entry
}
