package battle

import (
	"fmt"
	"slices"
	"sync"
)

// maxLogEntries caps the battle log; older entries are dropped first.
const maxLogEntries = 500

// LogEntry is one line of the battle log.
type LogEntry struct {
	Turn int    `json:"turn"`
	Text string `json:"text"`
}

// Log is an append-only battle log.
type Log struct {
	mu      sync.Mutex
	entries []LogEntry
}

func newLog() *Log {
	return &Log{entries: make([]LogEntry, 0, 64)}
}

// Add appends a formatted line.
func (l *Log) Add(turn int, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, LogEntry{Turn: turn, Text: fmt.Sprintf(format, args...)})
	if n := len(l.entries) - maxLogEntries; n > 0 {
		l.entries = slices.Delete(l.entries, 0, n)
	}
}

// Entries returns a copy of the log.
func (l *Log) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Tail returns up to n newest entries.
func (l *Log) Tail(n int) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n >= len(l.entries) {
		return slices.Clone(l.entries)
	}
	return slices.Clone(l.entries[len(l.entries)-n:])
}
