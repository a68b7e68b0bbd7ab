package task

import (
	"bytes"
	"strings"
	"sync"
)

// LineWriter adapts an io.Writer sink into a per-line callback. Tool
// output arrives in arbitrary chunks; callers get whole lines with the
// trailing newline (and any carriage return) stripped.
type LineWriter struct {
	mu   sync.Mutex
	buf  []byte
	emit func(line string)
}

// NewLineWriter returns a writer that invokes emit once per complete line.
func NewLineWriter(emit func(line string)) *LineWriter {
	return &LineWriter{emit: emit}
}

// Write buffers p and dispatches every complete line it contains.
// It never returns an error; a panicking callback must not take down
// the process wait goroutine feeding it.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	w.dispatchLocked()
	return len(p), nil
}

func (w *LineWriter) dispatchLocked() {
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx < 0 {
			return
		}
		line := strings.TrimSuffix(string(w.buf[:idx]), "\r")
		w.buf = w.buf[idx+1:]
		w.safeEmit(line)
	}
}

// Flush emits any buffered partial line. Whitespace-only tails are
// dropped so a final dangling newline does not produce an empty entry.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) == 0 {
		return
	}
	tail := strings.TrimSuffix(string(w.buf), "\r")
	w.buf = nil
	if strings.TrimSpace(tail) == "" {
		return
	}
	w.safeEmit(tail)
}

func (w *LineWriter) safeEmit(line string) {
	defer func() {
		_ = recover()
	}()
	w.emit(line)
}
