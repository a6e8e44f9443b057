// Package results owns the exercise's files on disk: the data and result
// directories, the generated text files and the CSV log of reading times.
package results

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
)

// EnsureLayout creates dataDir and the directory holding resultPath, and
// creates resultPath with a header row if it does not exist yet. Existing
// files are never rewritten.
func EnsureLayout(dataDir, resultPath string, header []string) error {
	for _, dir := range []string{dataDir, filepath.Dir(resultPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	_, err := os.Stat(resultPath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat result file: %w", err)
	}

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	if err = w.Write(header); err != nil {
		return err
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return err
	}
	if err = atomic.WriteFile(resultPath, strings.NewReader(buf.String())); err != nil {
		return fmt.Errorf("failed to create result file: %w", err)
	}
	return nil
}

// WriteBlob writes text to a new file with a random name in dir and returns
// its path.
func WriteBlob(dir, text string) (string, error) {
	path := filepath.Join(dir, uuid.NewString()+".txt")
	if err := atomic.WriteFile(path, strings.NewReader(text)); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}
	return path, nil
}

// Entry is one timed reading of a generated text.
type Entry struct {
	Author              string
	FilePath            string
	Start               time.Time
	End                 time.Time
	LanguageProficiency float64
}

// Row renders the entry in RESULT_ENTRIES column order. Timestamps are Unix
// seconds with microsecond precision.
func (e Entry) Row() []string {
	return []string{
		e.Author,
		e.FilePath,
		unixSeconds(e.Start),
		unixSeconds(e.End),
		strconv.FormatFloat(e.LanguageProficiency, 'f', -1, 64),
	}
}

// Duration is the time spent reading.
func (e Entry) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

func unixSeconds(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', 6, 64)
}

// Recorder appends entries to the CSV results file. It is safe for
// concurrent use.
type Recorder struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewRecorder returns a Recorder appending to path. By default, all logs are
// discarded.
func NewRecorder(path string) *Recorder {
	return &Recorder{
		path:   path,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the Recorder.
func (r *Recorder) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Record appends one row for e.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open result file: %w", err)
	}

	w := csv.NewWriter(f)
	if err = w.Write(e.Row()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write result row: %w", err)
	}
	w.Flush()
	if err = w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write result row: %w", err)
	}
	if err = f.Close(); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Reading recorded",
		slog.String("author", e.Author),
		slog.String("file_path", e.FilePath),
		slog.Duration("duration", e.Duration()),
	)
	return nil
}
