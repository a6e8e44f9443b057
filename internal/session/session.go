// Package session runs the interactive reading exercise: it shows a generated
// text, times how long the reader takes, and records the result.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/CTAG07/readspeed/internal/results"
)

// ErrInputClosed is returned when the reader's input ends before the session
// is complete.
var ErrInputClosed = errors.New("input closed before the reading was finished")

var (
	promptColor  = color.New(color.FgCyan, color.Bold)
	summaryColor = color.New(color.FgGreen)
)

// Recorder stores a finished reading.
type Recorder interface {
	Record(ctx context.Context, e results.Entry) error
}

// Session is one interactive reading run.
type Session struct {
	in          *bufio.Reader
	out         io.Writer
	now         func() time.Time
	recorder    Recorder
	author      string
	proficiency float64
	logger      *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithReader sets the author name and language proficiency written with
// every result.
func WithReader(author string, proficiency float64) Option {
	return func(s *Session) {
		s.author = author
		s.proficiency = proficiency
	}
}

// WithLogger sets the logger. By default, all logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a Session reading keystrokes from in and writing to out.
func New(in io.Reader, out io.Writer, recorder Recorder, opts ...Option) *Session {
	s := &Session{
		in:       bufio.NewReader(in),
		out:      out,
		now:      time.Now,
		recorder: recorder,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run shows text, timing the reader between two presses of Enter, and
// records the reading against filePath.
func (s *Session) Run(ctx context.Context, filePath, text string) (results.Entry, error) {
	_, _ = promptColor.Fprintln(s.out, "Press Enter to start reading.")
	if err := s.waitForEnter(ctx); err != nil {
		return results.Entry{}, err
	}
	start := s.now()

	_, _ = fmt.Fprintf(s.out, "\n%s\n\n", text)
	_, _ = promptColor.Fprintln(s.out, "Press Enter when you have finished.")
	if err := s.waitForEnter(ctx); err != nil {
		return results.Entry{}, err
	}
	end := s.now()

	entry := results.Entry{
		Author:              s.author,
		FilePath:            filePath,
		Start:               start,
		End:                 end,
		LanguageProficiency: s.proficiency,
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		return entry, err
	}

	words := CountWords(text)
	_, _ = summaryColor.Fprintf(s.out, "Read %d words in %s (%.0f words per minute).\n",
		words, entry.Duration().Round(time.Millisecond), WordsPerMinute(words, entry.Duration()))

	s.logger.DebugContext(ctx, "Session finished",
		slog.String("file_path", filePath),
		slog.Int("words", words),
	)
	return entry, nil
}

func (s *Session) waitForEnter(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.in.ReadString('\n')
	if errors.Is(err, io.EOF) {
		return ErrInputClosed
	}
	return err
}

// CountWords counts whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// WordsPerMinute returns the reading speed, or 0 for a non-positive duration.
func WordsPerMinute(words int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(words) / d.Minutes()
}
