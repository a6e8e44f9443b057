package markov

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
)

const (
	// maxLineSize bounds the run of text without whitespace or line break
	// that the stream tokenizer holds in memory.
	maxLineSize = 4 * 1024 * 1024
	// chunkSize is the line length above which the stream tokenizer cuts a
	// line at its last whitespace.
	chunkSize = 64 * 1024
)

// defaultTokenizer backs the package-level Tokenize and Generate helpers.
var defaultTokenizer = NewDefaultTokenizer()

// DefaultTokenizer is a default implementation of the Tokenizer interface.
// It uses regular expressions to split text into words and sentence-ending
// punctuation, and identifies the punctuation as End-Of-Chain (EOC) tokens.
// Its behavior can be customized with functional options.
type DefaultTokenizer struct {
	separator         string
	eoc               string
	separatorRegex    *regexp.Regexp
	eocRegex          *regexp.Regexp
	separatorExcRegex *regexp.Regexp
	eocExcRegex       *regexp.Regexp
}

// Option Is a function that configures a DefaultTokenizer.
type Option func(*DefaultTokenizer)

// WithSeparator Sets the string used for joining tokens during rendering.
// Default: " "
func WithSeparator(sep string) Option {
	return func(t *DefaultTokenizer) {
		t.separator = sep
	}
}

// WithEOC Sets the token appended to a sentence cut off by its length ceiling.
// Default: "."
func WithEOC(eoc string) Option {
	return func(t *DefaultTokenizer) {
		t.eoc = eoc
	}
}

// WithSeparatorRegex sets the regex string to use when splitting input text.
// Default: `[\p{L}\p{N}_]+|[.!?]`
func WithSeparatorRegex(splitRegex string) Option {
	return func(t *DefaultTokenizer) {
		t.separatorRegex = regexp.MustCompile(splitRegex)
	}
}

// WithEOCRegex sets the regex string to use when deciding whether a token is an EOC token or not.
// Default: `^[.!?]$`
func WithEOCRegex(eocRegex string) Option {
	return func(t *DefaultTokenizer) {
		t.eocRegex = regexp.MustCompile(eocRegex)
	}
}

// WithSeparatorExcRegex sets the regex string to use when deciding whether to add a separator before a token.
// Default: `^[.!?]$`
func WithSeparatorExcRegex(splitExcRegex string) Option {
	return func(t *DefaultTokenizer) {
		t.separatorExcRegex = regexp.MustCompile(splitExcRegex)
	}
}

// WithEOCExcRegex sets the regex string to use when deciding whether a forced EOC may follow the last token.
// Default: unset, a cut-off sentence always receives the EOC token.
func WithEOCExcRegex(eocRegex string) Option {
	return func(t *DefaultTokenizer) {
		t.eocExcRegex = regexp.MustCompile(eocRegex)
	}
}

// NewDefaultTokenizer creates a new tokenizer with default settings, which can be
// overridden by providing one or more Option functions.
func NewDefaultTokenizer(opts ...Option) *DefaultTokenizer {
	t := &DefaultTokenizer{
		separator: " ",
		eoc:       ".",
		// Runs of word characters (Unicode letters, digits, underscore)
		// OR a single sentence-ending punctuation mark.
		separatorRegex: regexp.MustCompile(`[\p{L}\p{N}_]+|[.!?]`),
		eocRegex:       regexp.MustCompile(`^[.!?]$`),
		// Punctuation attaches to the preceding word.
		separatorExcRegex: regexp.MustCompile(`^[.!?]$`),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Separator Returns the configured separator, or nothing before punctuation.
func (t *DefaultTokenizer) Separator(_, next string) string {
	if t.separatorExcRegex.MatchString(next) {
		return ""
	}
	return t.separator
}

// EOC Returns the configured end-of-chain token.
func (t *DefaultTokenizer) EOC(last string) string {
	if t.eocExcRegex != nil && t.eocExcRegex.MatchString(last) {
		return ""
	}
	return t.eoc
}

// IsEOC reports whether token matches the EOC regex.
func (t *DefaultTokenizer) IsEOC(token string) bool {
	return t.eocRegex.MatchString(token)
}

// Tokens splits the whole text at once. Unlike a stream it has no line length
// limit. It never returns nil.
func (t *DefaultTokenizer) Tokens(text string) []string {
	tokens := t.separatorRegex.FindAllString(text, -1)
	if tokens == nil {
		return []string{}
	}
	return tokens
}

// NewStream Returns the stream processor.
func (t *DefaultTokenizer) NewStream(r io.Reader) StreamTokenizer {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, chunkSize), maxLineSize)
	scanner.Split(scanChunks)
	return &DefaultStreamTokenizer{
		scanner:    scanner,
		buffer:     []string{},
		splitRegex: t.separatorRegex,
		isEOC:      t.IsEOC,
	}
}

// scanChunks splits like bufio.ScanLines, but cuts a line longer than
// chunkSize after its last whitespace so a single-line corpus is read in
// pieces. Tokens never contain whitespace, so no token is split.
func scanChunks(data []byte, atEOF bool) (int, []byte, error) {
	advance, token, err := bufio.ScanLines(data, atEOF)
	if advance > 0 || token != nil || err != nil || len(data) < chunkSize {
		return advance, token, err
	}
	if i := bytes.LastIndexAny(data, " \t\r\f\v"); i >= 0 {
		return i + 1, data[:i], nil
	}
	return 0, nil, nil
}

// DefaultStreamTokenizer is the default implementation of the StreamTokenizer interface.
// It uses a bufio.Scanner and regular expressions to read and tokenize a stream
// line by line, or in whitespace-bounded chunks for very long lines. Word runs
// never span whitespace, so the token sequence is the same as tokenizing the
// whole text at once.
type DefaultStreamTokenizer struct {
	scanner    *bufio.Scanner
	buffer     []string
	splitRegex *regexp.Regexp
	isEOC      func(string) bool
}

// Next returns the next token from the stream. It returns a Token and a nil error on
// success. When the stream is exhausted, it returns a nil Token and io.EOF.
// Any other error indicates a problem reading from the underlying stream.
func (s *DefaultStreamTokenizer) Next() (*Token, error) {
	for len(s.buffer) == 0 { // Loop until we have tokens
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		s.buffer = s.splitRegex.FindAllString(s.scanner.Text(), -1)
	}

	word := s.buffer[0]
	s.buffer = s.buffer[1:]

	return &Token{Text: word, EOC: s.isEOC(word)}, nil
}
