package eventlog

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer outputs JSONL records for job lifecycle events.
//
// Implementations must be safe for concurrent use from multiple
// goroutines. Each Write* method emits a complete record as a
// single line of JSON followed by a newline.
type Writer interface {
	// WriteCreated emits a record for a newly tracked job.
	WriteCreated(ctx context.Context, rec *CreatedRecord) error

	// WriteTransition emits a status or progress change record.
	WriteTransition(ctx context.Context, rec *TransitionRecord) error

	// WriteTerminal emits a terminal transition record.
	WriteTerminal(ctx context.Context, rec *TerminalRecord) error

	// WriteAction emits a control action record.
	WriteAction(ctx context.Context, rec *ActionRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// JSONLWriter is safe for concurrent use. Writes are serialized using
// a mutex to ensure atomic line writes (no interleaved output).
type JSONLWriter struct {
	w      io.Writer
	source string
	mu     sync.Mutex

	closed bool
}

// NewJSONLWriter creates a new JSONL writer.
//
// Parameters:
//   - w: The underlying writer (stdout, file, etc.)
//   - source: Identifier for the emitting process (e.g., "serve")
func NewJSONLWriter(w io.Writer, source string) *JSONLWriter {
	return &JSONLWriter{
		w:      w,
		source: source,
	}
}

// WriteCreated emits a record for a newly tracked job.
func (jw *JSONLWriter) WriteCreated(ctx context.Context, rec *CreatedRecord) error {
	return jw.writeRecord(ctx, TypeCreated, rec)
}

// WriteTransition emits a status or progress change record.
func (jw *JSONLWriter) WriteTransition(ctx context.Context, rec *TransitionRecord) error {
	return jw.writeRecord(ctx, TypeTransition, rec)
}

// WriteTerminal emits a terminal transition record.
func (jw *JSONLWriter) WriteTerminal(ctx context.Context, rec *TerminalRecord) error {
	return jw.writeRecord(ctx, TypeTerminal, rec)
}

// WriteAction emits a control action record.
func (jw *JSONLWriter) WriteAction(ctx context.Context, rec *ActionRecord) error {
	return jw.writeRecord(ctx, TypeAction, rec)
}

// Close marks the writer as closed.
//
// If the underlying writer implements io.Closer, it is NOT closed.
// The caller is responsible for closing the underlying writer.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

// writeRecord marshals data and writes a complete record line.
//
// This method holds the mutex for the entire operation to ensure
// atomic line writes. The record is written as a single line of
// JSON followed by a newline character.
func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Marshal the data payload first (outside the lock for better concurrency)
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record := Record{
		Type:   recordType,
		TS:     time.Now().UTC(),
		Source: jw.source,
		Data:   dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// Write the record followed by newline.
	// We must handle short writes: io.Writer is allowed to return n < len(p)
	// with nil error, which would silently truncate JSONL lines and corrupt output.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}

	return nil
}

// writeAll writes all bytes to w, handling short writes.
//
// io.Writer.Write may return n < len(p) with a nil error (short write).
// This function loops until all bytes are written or an error occurs,
// ensuring complete JSONL lines are emitted.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// Compile-time check that JSONLWriter implements Writer.
var _ Writer = (*JSONLWriter)(nil)
