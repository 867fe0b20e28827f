// Package logging provides the gateway's log sinks: an append-mode event log
// and a per-component debug log with buffer hex dumps.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// FileLogger appends timestamped event lines to a file.
// It is safe for concurrent use.
type FileLogger struct {
	file   *os.File
	mu     sync.Mutex
	closed bool
}

// NewFileLogger opens path for appending, creating it if needed.
func NewFileLogger(path string) (*FileLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &FileLogger{file: file}, nil
}

// Log writes one formatted line prefixed with a timestamp.
func (l *FileLogger) Log(format string, args ...interface{}) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	fmt.Fprintf(l.file, "%s %s\n", stamp(), fmt.Sprintf(format, args...))
}

// Write implements io.Writer so the logger can back the tview log pane or
// the standard log package. Each call is logged as one line.
func (l *FileLogger) Write(p []byte) (int, error) {
	l.Log("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// Close closes the file. Later calls to Log are dropped.
func (l *FileLogger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}
