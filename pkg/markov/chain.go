package markov

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// keySep joins key tokens into a map key. Tokens never contain it.
const keySep = "\x1f"

// Chain maps every k-token key seen in a corpus to the tokens observed after
// it. Successors keep duplicates in corpus order, so a uniform pick among them
// is weighted by frequency.
//
// A Chain is built once and never mutated afterwards; it is safe for any
// number of concurrent readers.
type Chain struct {
	order  int
	next   map[string][]string
	keys   [][]string // first-seen order
	starts [][]string // keys whose first token is capitalized, first-seen order
	links  int
}

// ExportedChain is the serializable representation of a chain, used for
// JSON-based import and export.
type ExportedChain struct {
	Order   int             `json:"order"`
	Entries []ExportedEntry `json:"entries"`
}

// ExportedEntry is one key and its successors, in first-seen order.
type ExportedEntry struct {
	Key        []string `json:"key"`
	Successors []string `json:"successors"`
}

func newChain(order int) (*Chain, error) {
	if order < 1 {
		return nil, &ConfigError{Field: "Order", Rule: "gte=1", Value: order}
	}
	return &Chain{
		order: order,
		next:  make(map[string][]string),
	}, nil
}

// BuildChain windows tokens into a chain of the given order. Every window
// tokens[i:i+order] with a following token contributes one link. A sequence of
// order tokens or fewer produces an empty chain, which generation rejects.
func BuildChain(tokens []string, order int) (*Chain, error) {
	c, err := newChain(order)
	if err != nil {
		return nil, err
	}
	for i := 0; i+order < len(tokens); i++ {
		c.add(tokens[i:i+order], tokens[i+order])
	}
	return c, nil
}

// BuildCorpusChain tokenizes corpus with t and builds a chain of the given
// order. Unlike BuildChain, a corpus with fewer than order+1 tokens is an
// error matching ErrInsufficientTokens.
func BuildCorpusChain(corpus string, order int, t Tokenizer) (*Chain, error) {
	if order < 1 {
		return nil, &ConfigError{Field: "Order", Rule: "gte=1", Value: order}
	}
	tokens, err := tokenizeText(t, corpus)
	if err != nil {
		return nil, err
	}
	if len(tokens) < order+1 {
		return nil, insufficientTokens(len(tokens), order)
	}
	return BuildChain(tokens, order)
}

// add appends next to key's successors. Only used while a chain is being
// constructed.
func (c *Chain) add(key []string, next string) {
	k := joinKey(key)
	if _, ok := c.next[k]; !ok {
		owned := slices.Clone(key)
		c.keys = append(c.keys, owned)
		if startsUpper(owned[0]) {
			c.starts = append(c.starts, owned)
		}
	}
	c.next[k] = append(c.next[k], next)
	c.links++
}

// Order returns the window size k.
func (c *Chain) Order() int { return c.order }

// Len returns the number of distinct keys.
func (c *Chain) Len() int { return len(c.keys) }

// Empty reports whether the chain has no transitions.
func (c *Chain) Empty() bool { return c.links == 0 }

// Successors returns a copy of the successors recorded for key, or nil if the
// key was never seen.
func (c *Chain) Successors(key []string) []string {
	if len(key) != c.order {
		return nil
	}
	return slices.Clone(c.next[joinKey(key)])
}

// Keys returns every key in first-seen order.
func (c *Chain) Keys() [][]string {
	return cloneKeys(c.keys)
}

// Starts returns the sentence start candidates: keys whose first token begins
// with an uppercase letter, in first-seen order.
func (c *Chain) Starts() [][]string {
	return cloneKeys(c.starts)
}

// Export serializes the chain as JSON to w. Entries are written in first-seen
// key order so that ImportChain reproduces an identical chain.
func (c *Chain) Export(w io.Writer) error {
	exported := ExportedChain{
		Order:   c.order,
		Entries: make([]ExportedEntry, 0, len(c.keys)),
	}
	for _, key := range c.keys {
		exported.Entries = append(exported.Entries, ExportedEntry{
			Key:        key,
			Successors: c.next[joinKey(key)],
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// ImportChain reads a chain previously written by Export.
func ImportChain(r io.Reader) (*Chain, error) {
	var imported ExportedChain
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return nil, fmt.Errorf("failed to decode json chain: %w", err)
	}

	c, err := newChain(imported.Order)
	if err != nil {
		return nil, err
	}
	for i, entry := range imported.Entries {
		if len(entry.Key) != imported.Order {
			return nil, fmt.Errorf("import consistency error: entry %d has %d key tokens, want %d", i, len(entry.Key), imported.Order)
		}
		for _, next := range entry.Successors {
			c.add(entry.Key, next)
		}
	}
	return c, nil
}

func joinKey(key []string) string {
	return strings.Join(key, keySep)
}

func startsUpper(tok string) bool {
	r, _ := utf8.DecodeRuneInString(tok)
	return unicode.IsUpper(r)
}

func cloneKeys(keys [][]string) [][]string {
	out := make([][]string, len(keys))
	for i, key := range keys {
		out[i] = slices.Clone(key)
	}
	return out
}
