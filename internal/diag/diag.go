// Package diag keeps a small ring of recent failure messages for operator
// visibility. Append is O(1) and never grows beyond Capacity; the oldest
// entry is dropped when full.
package diag

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Capacity bounds the number of retained diagnostics.
const Capacity = 10

// Log is a thread-safe bounded FIFO of diagnostic strings. Every Append is
// also emitted through zap at error level, so the ring is the operator view
// and the structured log is the durable one.
type Log struct {
	log *zap.Logger

	mu      sync.RWMutex
	entries [Capacity]string
	head    int // next write position
	size    int
	full    bool
}

// New builds an empty diagnostics log.
func New(log *zap.Logger) *Log {
	return &Log{log: log.Named("diag")}
}

// Append records msg, dropping the oldest entry when the ring is full.
func (l *Log) Append(msg string) {
	l.log.Error(msg)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.head] = msg
	l.head = (l.head + 1) % Capacity

	if l.full {
		return
	}
	l.size++
	if l.size == Capacity {
		l.full = true
	}
}

// Tail returns the retained entries, newest first. The slice is caller-owned.
func (l *Log) Tail() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.size == 0 {
		return nil
	}

	newest := l.size - 1
	if l.full {
		newest = (l.head - 1 + Capacity) % Capacity
	}

	out := make([]string, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.entries[(newest-i+Capacity)%Capacity]
	}
	return out
}

// Text renders the retained entries oldest-first, one per line, for display
// surfaces that show a single text blob.
func (l *Log) Text() string {
	tail := l.Tail()

	var sb strings.Builder
	for i := len(tail) - 1; i >= 0; i-- {
		sb.WriteString("[ERROR] ")
		sb.WriteString(tail[i])
		sb.WriteByte('\n')
	}
	return sb.String()
}
