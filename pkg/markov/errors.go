package markov

import (
	"errors"
	"fmt"
)

var (
	// ErrBadCorpus is matched by every error caused by the corpus content
	// rather than by the parameters.
	ErrBadCorpus = errors.New("bad corpus")
	// ErrInsufficientTokens means the corpus produced fewer than order+1
	// tokens, so the chain has no transitions.
	ErrInsufficientTokens = errors.New("insufficient tokens")
	// ErrEmptyCorpus is the zero-token case of ErrInsufficientTokens.
	ErrEmptyCorpus = fmt.Errorf("empty corpus: %w", ErrInsufficientTokens)
	// ErrNoStartCandidate means no chain key begins with an uppercase token,
	// so no sentence can be seeded.
	ErrNoStartCandidate = errors.New("no sentence start candidate")
	// ErrInvalidConfiguration is matched by every *ConfigError.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrChainNotCached is returned by Store.LoadChain on a cache miss.
	ErrChainNotCached = errors.New("chain not cached")
)

// CorpusError reports a corpus that cannot drive generation. It matches its
// Kind and ErrBadCorpus with errors.Is. Tokens is -1 when the error was raised
// from an already built chain.
type CorpusError struct {
	Kind   error
	Tokens int
	Order  int
}

func (e *CorpusError) Error() string {
	if errors.Is(e.Kind, ErrInsufficientTokens) {
		if e.Tokens < 0 {
			return fmt.Sprintf("%v: chain of order %d has no transitions", e.Kind, e.Order)
		}
		return fmt.Sprintf("%v: corpus has %d tokens, order %d needs at least %d", e.Kind, e.Tokens, e.Order, e.Order+1)
	}
	return fmt.Sprintf("%v: no key of order %d starts with an uppercase token", e.Kind, e.Order)
}

func (e *CorpusError) Unwrap() []error {
	return []error{e.Kind, ErrBadCorpus}
}

// ConfigError reports a parameter rejected before any generation work starts.
type ConfigError struct {
	Field string
	Rule  string
	Value any
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s=%v violates %s", ErrInvalidConfiguration, e.Field, e.Value, e.Rule)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

func insufficientTokens(n, order int) error {
	kind := ErrInsufficientTokens
	if n == 0 {
		kind = ErrEmptyCorpus
	}
	return &CorpusError{Kind: kind, Tokens: n, Order: order}
}
