package markov

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Token represents a single tokenized unit of text. It contains the text itself
// and a boolean flag indicating if it ends a sentence.
type Token struct {
	Text string
	EOC  bool
}

// Tokenizer is an interface that defines the contract for splitting corpus
// text into tokens and for joining generated tokens back into prose. This
// allows the chain and generator logic to be independent of the specific
// tokenization strategy.
type Tokenizer interface {
	// NewStream returns a stateful StreamTokenizer for processing an io.Reader.
	NewStream(io.Reader) StreamTokenizer
	// Separator returns the string that should be placed between the previous
	// and the next token when rendering generated text.
	Separator(prev, next string) string
	// EOC returns the token appended when a sentence has to be cut short,
	// given the last token in the sentence. An empty string means nothing is
	// appended.
	EOC(last string) string
	// IsEOC reports whether token ends a sentence.
	IsEOC(token string) bool
}

// StreamTokenizer is an interface for a stateful tokenizer that processes a
// stream of data, returning one token at a time.
type StreamTokenizer interface {
	// Next returns the next token from the stream. It returns io.EOF as the
	// error when the stream is fully consumed.
	Next() (*Token, error)
}

// ReadTokens drains a stream produced by t over r and returns the token texts
// in corpus order.
func ReadTokens(t Tokenizer, r io.Reader) ([]string, error) {
	stream := t.NewStream(r)
	var tokens []string
	for {
		token, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return tokens, nil
		}
		if err != nil {
			return nil, fmt.Errorf("tokenizer error: %w", err)
		}
		tokens = append(tokens, token.Text)
	}
}

// TextTokenizer is implemented by tokenizers that can split a whole text held
// in memory. Corpus helpers prefer it over a stream, which has to hold each
// line in a bounded buffer.
type TextTokenizer interface {
	Tokens(text string) []string
}

// tokenizeText splits text with t, without a stream when t supports it.
func tokenizeText(t Tokenizer, text string) ([]string, error) {
	if tt, ok := t.(TextTokenizer); ok {
		return tt.Tokens(text), nil
	}
	return ReadTokens(t, strings.NewReader(text))
}

// Tokenize splits text with the default tokenizer. An empty corpus yields an
// empty slice.
func Tokenize(text string) []string {
	return defaultTokenizer.Tokens(text)
}

// Render joins tokens into text using the tokenizer's separator rules.
func Render(t Tokenizer, tokens []string) string {
	var builder strings.Builder
	for i, tok := range tokens {
		if i > 0 {
			builder.WriteString(t.Separator(tokens[i-1], tok))
		}
		builder.WriteString(tok)
	}
	return builder.String()
}
