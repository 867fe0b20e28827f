package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// DebugLogger writes verbose, per-component debug output to a dedicated
// file. It is meant for troubleshooting tag lifecycles: which handle was
// created with which attributes, what status every call returned and what
// the buffer looked like after a read.
type DebugLogger struct {
	out     io.WriteCloser
	mu      sync.Mutex
	closed  bool
	filters map[string]bool // empty = log all
}

var globalDebugLogger *DebugLogger
var globalDebugMu sync.RWMutex

// KnownComponents lists the component names used with DebugLog.
var KnownComponents = []string{
	"tag",
	"engine",
	"native",
	"sim",
	"tagman",
	"mqtt",
	"kafka",
	"valkey",
	"api",
	"tui",
	"debug",
}

// related expands a filter entry to the components that serve it.
var related = map[string][]string{
	"tag":    {"engine", "native", "sim"},
	"engine": {"native", "sim"},
	"tagman": {"tag"},
}

// NewDebugLogger creates a debug logger writing to path.
// The file is truncated so every session starts fresh.
func NewDebugLogger(path string) (*DebugLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open debug log file: %w", err)
	}
	return newDebugLogger(file), nil
}

func newDebugLogger(out io.WriteCloser) *DebugLogger {
	logger := &DebugLogger{
		out:     out,
		filters: make(map[string]bool),
	}
	logger.Log("debug", "Debug logging started - %s", time.Now().Format(time.RFC3339))
	logger.Log("debug", "========================================")
	return logger
}

// SetFilter restricts logging to a comma-separated list of components.
// An empty filter logs everything. Matching is case-insensitive.
func (l *DebugLogger) SetFilter(filter string) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.filters = make(map[string]bool)
	for _, p := range strings.Split(filter, ",") {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		l.filters[p] = true
		for _, r := range related[p] {
			l.filters[r] = true
		}
	}

	if len(l.filters) > 0 {
		list := make([]string, 0, len(l.filters))
		for p := range l.filters {
			list = append(list, p)
		}
		sort.Strings(list)
		fmt.Fprintf(l.out, "%s [debug] Filtering enabled for: %s\n", stamp(), strings.Join(list, ", "))
	}
}

// shouldLog must be called with l.mu held.
func (l *DebugLogger) shouldLog(component string) bool {
	if len(l.filters) == 0 {
		return true
	}
	c := strings.ToLower(component)
	return l.filters[c] || c == "debug"
}

// SetGlobalDebugLogger installs the process-wide debug logger. Nil disables
// debug logging.
func SetGlobalDebugLogger(logger *DebugLogger) {
	globalDebugMu.Lock()
	defer globalDebugMu.Unlock()
	globalDebugLogger = logger
}

// GetGlobalDebugLogger returns the process-wide debug logger, or nil.
func GetGlobalDebugLogger() *DebugLogger {
	globalDebugMu.RLock()
	defer globalDebugMu.RUnlock()
	return globalDebugLogger
}

// Log writes a timestamped message tagged with its component.
func (l *DebugLogger) Log(component, format string, args ...interface{}) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || !l.shouldLog(component) {
		return
	}
	fmt.Fprintf(l.out, "%s [%s] %s\n", stamp(), component, fmt.Sprintf(format, args...))
}

// LogBuffer writes a labelled hex dump of a tag buffer.
func (l *DebugLogger) LogBuffer(component, label string, data []byte) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || !l.shouldLog(component) {
		return
	}
	fmt.Fprintf(l.out, "%s [%s] %s (%d bytes):\n", stamp(), component, label, len(data))
	fmt.Fprintf(l.out, "%s\n", hexDump(data))
}

// LogConnect logs a connection attempt to an outside service.
func (l *DebugLogger) LogConnect(component, address string) {
	l.Log(component, "CONNECT to %s", address)
}

// LogConnectError logs a failed connection attempt.
func (l *DebugLogger) LogConnectError(component, address string, err error) {
	l.Log(component, "CONNECT FAILED to %s: %v", address, err)
}

// LogError logs an error with context.
func (l *DebugLogger) LogError(component, context string, err error) {
	l.Log(component, "ERROR in %s: %v", context, err)
}

// Close writes a footer and closes the underlying file.
func (l *DebugLogger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	fmt.Fprintf(l.out, "%s [debug] Debug logging ended\n", stamp())
	return l.out.Close()
}

func stamp() string {
	return time.Now().Format("2006-01-02 15:04:05.000")
}

// hexDump formats data as offset, two groups of eight hex bytes and ASCII:
//
//	0000: 05 00 00 00 48 65 6C 6C  6F 00 00 00 00 00 00 00  ....Hello.......
func hexDump(data []byte) string {
	if len(data) == 0 {
		return "    (empty)"
	}

	var sb strings.Builder
	for offset := 0; offset < len(data); offset += 16 {
		fmt.Fprintf(&sb, "    %04X: ", offset)
		for i := 0; i < 16; i++ {
			if offset+i < len(data) {
				fmt.Fprintf(&sb, "%02X ", data[offset+i])
			} else {
				sb.WriteString("   ")
			}
			if i == 7 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte(' ')
		for i := 0; i < 16 && offset+i < len(data); i++ {
			b := data[offset+i]
			if b >= 32 && b < 127 {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// DebugLog logs through the global debug logger when one is installed.
func DebugLog(component, format string, args ...interface{}) {
	if logger := GetGlobalDebugLogger(); logger != nil {
		logger.Log(component, format, args...)
	}
}

// DebugBuffer hex-dumps data through the global debug logger.
func DebugBuffer(component, label string, data []byte) {
	if logger := GetGlobalDebugLogger(); logger != nil {
		logger.LogBuffer(component, label, data)
	}
}

// DebugConnect logs a connection attempt through the global debug logger.
func DebugConnect(component, address string) {
	if logger := GetGlobalDebugLogger(); logger != nil {
		logger.LogConnect(component, address)
	}
}

// DebugConnectError logs a connection failure through the global debug logger.
func DebugConnectError(component, address string, err error) {
	if logger := GetGlobalDebugLogger(); logger != nil {
		logger.LogConnectError(component, address, err)
	}
}

// DebugError logs an error through the global debug logger.
func DebugError(component, context string, err error) {
	if logger := GetGlobalDebugLogger(); logger != nil {
		logger.LogError(component, context, err)
	}
}
