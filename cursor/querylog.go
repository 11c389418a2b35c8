package cursor

import (
	"fmt"
	"io"
	"sync"
)

type (
	// QueryLogEntry is a statement recorded by [DebugWrapper]. Time is the
	// duration in seconds with 3 decimal places.
	QueryLogEntry struct {
		SQL  string `json:"sql"`
		Time string `json:"time"`
	}

	// QueryLog is an append only log of executed statements. It grows until
	// [QueryLog.Reset] is called.
	QueryLog struct {
		mu      sync.Mutex
		entries []QueryLogEntry
	}
)

func NewQueryLog() *QueryLog {
	return &QueryLog{}
}

func (l *QueryLog) Append(e QueryLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Entries returns a copy of the logged entries in order
func (l *QueryLog) Entries() []QueryLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]QueryLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *QueryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *QueryLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// WriteTo writes one "(time) sql" line per entry
func (l *QueryLog) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, i := range l.Entries() {
		n, err := fmt.Fprintf(w, "(%s) %s\n", i.Time, i.SQL)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
