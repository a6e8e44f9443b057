/*
Package markov generates synthetic prose from a text corpus using an order-k
Markov chain.

A corpus is split into words and sentence-ending punctuation by a Tokenizer,
windowed into a Chain that maps every k-token key to the tokens observed after
it, and walked by a Generator that emits sentences of bounded, randomized
length and assembles them into paragraphs. Chains are immutable once built
and may be cached in SQLite through a Store.

Most callers only need Generate:

	text, err := markov.Generate(ctx, corpus, markov.DefaultParams(), markov.WithSeed(42))

Errors distinguish a bad corpus (ErrBadCorpus) from bad parameters
(ErrInvalidConfiguration).
*/
package markov
