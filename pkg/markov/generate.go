package markov

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
)

// Generator walks a Chain to produce sentences, paragraphs and whole blobs of
// text. It owns its random source and is therefore not safe for concurrent
// use; create one Generator per goroutine over a shared Chain instead.
type Generator struct {
	chain     *Chain
	params    Params
	tokenizer Tokenizer
	rng       *rand.Rand
	logger    *slog.Logger
}

// GeneratorOption configures a Generator. It's used as a variadic argument in
// NewGenerator and Generate.
type GeneratorOption func(*Generator)

// WithRand sets the random source. All randomness used by the Generator is
// drawn from r, so a seeded source yields reproducible output.
func WithRand(r *rand.Rand) GeneratorOption {
	return func(g *Generator) {
		if r != nil {
			g.rng = r
		}
	}
}

// WithSeed is shorthand for WithRand with a PCG source seeded from seed.
func WithSeed(seed uint64) GeneratorOption {
	return func(g *Generator) { g.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithTokenizer sets the tokenizer used to split the corpus in Generate and to
// render generated sentences. Default: NewDefaultTokenizer().
func WithTokenizer(t Tokenizer) GeneratorOption {
	return func(g *Generator) {
		if t != nil {
			g.tokenizer = t
		}
	}
}

// WithLogger sets the logger. By default, all logs are discarded.
func WithLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) { g.SetLogger(logger) }
}

func newGenerator(params Params, opts []GeneratorOption) *Generator {
	g := &Generator{
		params:    params,
		tokenizer: defaultTokenizer,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return g
}

// NewGenerator returns a Generator over chain. It fails with a *ConfigError if
// params are invalid or do not match the chain's order, and with a
// *CorpusError if the chain has no transitions or no sentence start candidate.
func NewGenerator(chain *Chain, params Params, opts ...GeneratorOption) (*Generator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	g := newGenerator(params, opts)
	if err := g.attach(chain); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Generator) attach(chain *Chain) error {
	if chain == nil {
		return fmt.Errorf("markov: nil chain")
	}
	if chain.Order() != g.params.Order {
		return &ConfigError{Field: "Order", Rule: fmt.Sprintf("eq=%d (chain order)", chain.Order()), Value: g.params.Order}
	}
	if chain.Empty() {
		return &CorpusError{Kind: ErrInsufficientTokens, Tokens: -1, Order: chain.Order()}
	}
	if len(chain.starts) == 0 {
		return &CorpusError{Kind: ErrNoStartCandidate, Order: chain.Order()}
	}
	g.chain = chain
	return nil
}

// SetLogger sets the logger for the Generator. A nil logger is ignored.
func (g *Generator) SetLogger(logger *slog.Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// Chain returns the chain the Generator walks.
func (g *Generator) Chain() *Chain { return g.chain }

// Generate is the engine's single entry point: it tokenizes corpus, builds a
// chain of params.Order, and returns params.NumParagraphs paragraphs joined by
// blank lines.
//
// Parameter problems are reported before the corpus is touched, as a
// *ConfigError. A corpus with fewer than Order+1 tokens, or without a
// capitalized key to start from, fails with a *CorpusError.
func Generate(ctx context.Context, corpus string, params Params, opts ...GeneratorOption) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}
	g := newGenerator(params, opts)

	chain, err := BuildCorpusChain(corpus, params.Order, g.tokenizer)
	if err != nil {
		return "", err
	}
	g.logger.DebugContext(ctx, "Chain built",
		slog.Int("order", params.Order),
		slog.Int("keys", chain.Len()),
		slog.Int("start_keys", len(chain.starts)),
	)

	if err = g.attach(chain); err != nil {
		return "", err
	}
	return g.Blob(ctx)
}

// SentenceTokens generates one sentence and returns its tokens. The sentence
// starts from a uniformly chosen capitalized key and grows one successor at a
// time until the tokenizer classifies the drawn token as EOC, the walk reaches
// a key with no successors, or the length ceiling is hit, in which case the
// tokenizer's EOC token is appended.
func (g *Generator) SentenceTokens() []string {
	order := g.chain.order
	start := g.chain.starts[g.rng.IntN(len(g.chain.starts))]

	sentence := make([]string, 0, g.params.MaxSentenceLen+1)
	sentence = append(sentence, start...)

	perSentence := g.params.ceilingPolicy() == CeilingPerSentence
	ceiling := 0
	if perSentence {
		ceiling = g.drawCeiling()
	}

	for {
		choices := g.chain.next[joinKey(sentence[len(sentence)-order:])]
		if len(choices) == 0 {
			g.logger.Debug("Sentence terminated due to dead-end",
				slog.Int("generated_length", len(sentence)),
			)
			break
		}

		next := choices[g.rng.IntN(len(choices))]
		sentence = append(sentence, next)
		if g.tokenizer.IsEOC(next) {
			break
		}

		if !perSentence {
			ceiling = g.drawCeiling()
		}
		if len(sentence) >= ceiling {
			if eoc := g.tokenizer.EOC(next); eoc != "" {
				sentence = append(sentence, eoc)
			}
			g.logger.Debug("Sentence terminated by length ceiling",
				slog.Int("ceiling", ceiling),
				slog.Int("generated_length", len(sentence)),
			)
			break
		}
	}

	return sentence
}

// Sentence generates one rendered sentence.
func (g *Generator) Sentence() string {
	return Render(g.tokenizer, g.SentenceTokens())
}

// SentenceCount draws the number of sentences for the next paragraph:
// NumSentences plus a uniform offset in [-Variation, Variation], never less
// than one.
func (g *Generator) SentenceCount() int {
	v := g.params.Variation
	return max(1, g.params.NumSentences+g.rng.IntN(2*v+1)-v)
}

// Paragraph generates SentenceCount() sentences joined by single spaces.
func (g *Generator) Paragraph(ctx context.Context) (string, error) {
	count := g.SentenceCount()
	sentences := make([]string, 0, count)
	for range count {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		sentences = append(sentences, g.Sentence())
	}
	return strings.Join(sentences, " "), nil
}

// Blob generates NumParagraphs paragraphs joined by blank lines.
func (g *Generator) Blob(ctx context.Context) (string, error) {
	paragraphs := make([]string, 0, g.params.NumParagraphs)
	for range g.params.NumParagraphs {
		p, err := g.Paragraph(ctx)
		if err != nil {
			return "", err
		}
		paragraphs = append(paragraphs, p)
	}
	blob := strings.Join(paragraphs, "\n\n")

	g.logger.InfoContext(ctx, "Text generated",
		slog.Int("order", g.params.Order),
		slog.Int("paragraphs", len(paragraphs)),
		slog.Int("length", len(blob)),
	)
	return blob, nil
}

// drawCeiling returns a length ceiling uniform in [MinSentenceLen, MaxSentenceLen].
// A sentence is cut once its length reaches the ceiling rather than when it
// exceeds it, so no cut sentence holds more than MaxSentenceLen tokens before
// the EOC token. With MaxSentenceLen <= Order the seed key and one successor
// are always kept.
func (g *Generator) drawCeiling() int {
	return g.params.MinSentenceLen + g.rng.IntN(g.params.MaxSentenceLen-g.params.MinSentenceLen+1)
}
