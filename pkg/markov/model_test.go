package markov

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
)

func TestSaveAndLoadChain(t *testing.T) {
	ctx, s, chain := setupTestDBWithChain(t)

	loaded, err := s.LoadChain(ctx, "foo", CorpusDigest(fooCorpus))
	if err != nil {
		t.Fatalf("LoadChain() failed: %v", err)
	}
	if loaded.Order() != chain.Order() {
		t.Errorf("expected order %d, got %d", chain.Order(), loaded.Order())
	}
	if !reflect.DeepEqual(loaded.Keys(), chain.Keys()) {
		t.Errorf("expected keys %q, got %q", chain.Keys(), loaded.Keys())
	}
	for _, key := range chain.Keys() {
		if !reflect.DeepEqual(loaded.Successors(key), chain.Successors(key)) {
			t.Errorf("successors for %q differ after load", key)
		}
	}
	if !reflect.DeepEqual(loaded.Starts(), chain.Starts()) {
		t.Errorf("expected starts %q, got %q", chain.Starts(), loaded.Starts())
	}
}

func TestLoadChainMisses(t *testing.T) {
	ctx, s, _ := setupTestDBWithChain(t)

	if _, err := s.LoadChain(ctx, "nonexistent", CorpusDigest(fooCorpus)); !errors.Is(err, ErrChainNotCached) {
		t.Errorf("expected ErrChainNotCached for an unknown name, got %v", err)
	}
	if _, err := s.LoadChain(ctx, "foo", CorpusDigest("a different corpus")); !errors.Is(err, ErrChainNotCached) {
		t.Errorf("expected ErrChainNotCached for a stale digest, got %v", err)
	}
}

func TestSaveChainReplaces(t *testing.T) {
	ctx, s, _ := setupTestDBWithChain(t)

	corpus := "Red fish blue fish. One fish two fish."
	replacement := mustBuild(t, corpus, 1)
	if err := s.SaveChain(ctx, "foo", CorpusDigest(corpus), replacement); err != nil {
		t.Fatalf("SaveChain() failed: %v", err)
	}

	infos, err := s.ListChains(ctx)
	if err != nil {
		t.Fatalf("ListChains failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 cached chain, got %d", len(infos))
	}
	if infos["foo"].Order != 1 {
		t.Errorf("expected replaced chain to have order 1, got %d", infos["foo"].Order)
	}

	loaded, err := s.LoadChain(ctx, "foo", CorpusDigest(corpus))
	if err != nil {
		t.Fatalf("LoadChain() failed: %v", err)
	}
	if got := loaded.Successors([]string{"fish"}); !reflect.DeepEqual(got, []string{"blue", ".", "two", "."}) {
		t.Errorf("unexpected successors for 'fish': %q", got)
	}
}

func TestLoadOrBuild(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	built, err := s.LoadOrBuild(ctx, "foo#2", fooCorpus, 2, NewDefaultTokenizer())
	if err != nil {
		t.Fatalf("LoadOrBuild() failed: %v", err)
	}
	if _, err = s.GetChainInfo(ctx, "foo#2"); err != nil {
		t.Fatalf("expected chain to be cached after build: %v", err)
	}

	loaded, err := s.LoadOrBuild(ctx, "foo#2", fooCorpus, 2, NewDefaultTokenizer())
	if err != nil {
		t.Fatalf("second LoadOrBuild() failed: %v", err)
	}
	if !reflect.DeepEqual(loaded.Keys(), built.Keys()) {
		t.Error("expected the cached chain to match the built one")
	}

	// A different order under the same name rebuilds instead of reusing.
	rebuilt, err := s.LoadOrBuild(ctx, "foo#2", fooCorpus, 3, NewDefaultTokenizer())
	if err != nil {
		t.Fatalf("LoadOrBuild() with a new order failed: %v", err)
	}
	if rebuilt.Order() != 3 {
		t.Errorf("expected order 3, got %d", rebuilt.Order())
	}
}

func TestLoadOrBuildShortCorpus(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	_, err := s.LoadOrBuild(ctx, "short", "Hi.", 3, NewDefaultTokenizer())
	if !errors.Is(err, ErrInsufficientTokens) {
		t.Fatalf("expected ErrInsufficientTokens, got %v", err)
	}
	if _, err = s.GetChainInfo(ctx, "short"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected a short corpus not to be cached, got %v", err)
	}
}

func TestRemoveChain(t *testing.T) {
	ctx, s, _ := setupTestDBWithChain(t)

	if err := s.RemoveChain(ctx, "foo"); err != nil {
		t.Fatalf("RemoveChain() failed: %v", err)
	}
	if _, err := s.GetChainInfo(ctx, "foo"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows after removal, got %v", err)
	}
	if err := s.RemoveChain(ctx, "foo"); err != nil {
		t.Errorf("expected removing a missing chain to succeed, got %v", err)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}
	if len(stats.Chains) != 0 {
		t.Errorf("expected no chains, got %d", len(stats.Chains))
	}
	if stats.VocabSize != 0 || stats.PrefixSize != 0 {
		t.Errorf("expected vocabulary and prefixes to be pruned, got %d tokens and %d prefixes", stats.VocabSize, stats.PrefixSize)
	}
}

func TestRemoveChainKeepsSharedRows(t *testing.T) {
	ctx, s, chain := setupTestDBWithChain(t)

	other := "Foo bar baz. Foo bar qux. Qux quux."
	if err := s.SaveChain(ctx, "other", CorpusDigest(other), mustBuild(t, other, 1)); err != nil {
		t.Fatalf("SaveChain() failed: %v", err)
	}
	if err := s.RemoveChain(ctx, "other"); err != nil {
		t.Fatalf("RemoveChain() failed: %v", err)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}
	if stats.VocabSize != chain.Stats().Vocabulary {
		t.Errorf("expected vocabulary of %d after pruning, got %d", chain.Stats().Vocabulary, stats.VocabSize)
	}
	if stats.PrefixSize != chain.Len() {
		t.Errorf("expected %d prefixes after pruning, got %d", chain.Len(), stats.PrefixSize)
	}

	loaded, err := s.LoadChain(ctx, "foo", CorpusDigest(fooCorpus))
	if err != nil {
		t.Fatalf("LoadChain() failed after pruning: %v", err)
	}
	if !reflect.DeepEqual(loaded.Keys(), chain.Keys()) {
		t.Errorf("expected keys %q, got %q", chain.Keys(), loaded.Keys())
	}
}

func TestSaveChainReplacePrunesOldRows(t *testing.T) {
	ctx, s, _ := setupTestDBWithChain(t)

	corpus := "Red fish blue fish."
	replacement := mustBuild(t, corpus, 2)
	if err := s.SaveChain(ctx, "foo", CorpusDigest(corpus), replacement); err != nil {
		t.Fatalf("SaveChain() failed: %v", err)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}
	if stats.VocabSize != replacement.Stats().Vocabulary {
		t.Errorf("expected vocabulary of %d, got %d", replacement.Stats().Vocabulary, stats.VocabSize)
	}
	if stats.PrefixSize != replacement.Len() {
		t.Errorf("expected %d prefixes, got %d", replacement.Len(), stats.PrefixSize)
	}
}

func TestGetStats(t *testing.T) {
	ctx, s, chain := setupTestDBWithChain(t)

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}
	if len(stats.Chains) != 1 {
		t.Fatalf("expected 1 chain, got %d", len(stats.Chains))
	}
	id := stats.Chains[0].Id
	if stats.Links[id] != chain.Stats().Transitions {
		t.Errorf("expected %d links, got %d", chain.Stats().Transitions, stats.Links[id])
	}
	if stats.VocabSize != chain.Stats().Vocabulary {
		t.Errorf("expected vocabulary of %d, got %d", chain.Stats().Vocabulary, stats.VocabSize)
	}
	if stats.PrefixSize != chain.Len() {
		t.Errorf("expected %d prefixes, got %d", chain.Len(), stats.PrefixSize)
	}
}

func TestGenerateFromCachedChain(t *testing.T) {
	ctx, s, chain := setupTestDBWithChain(t)

	loaded, err := s.LoadChain(ctx, "foo", CorpusDigest(fooCorpus))
	if err != nil {
		t.Fatalf("LoadChain() failed: %v", err)
	}

	fromBuilt, _ := NewGenerator(chain, testParams(2), WithSeed(8))
	fromCache, err := NewGenerator(loaded, testParams(2), WithSeed(8))
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	a, _ := fromBuilt.Blob(ctx)
	b, _ := fromCache.Blob(ctx)
	if a != b {
		t.Errorf("expected identical output from built and cached chains, got %q and %q", a, b)
	}
}

func BenchmarkSaveChain(b *testing.B) {
	corpus := createBenchmarkCorpus()
	chain := mustBuild(b, corpus, 2)
	ctx := context.Background()

	dbFile := b.TempDir() + "/bench.db"
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=OFF&_cache_size=-16000")
	if err != nil {
		b.Fatalf("failed to open database: %v", err)
	}
	b.Cleanup(func() { _ = db.Close() })
	if err = SetupSchema(db); err != nil {
		b.Fatal(err)
	}
	s, err := NewStore(db)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(s.Close)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.SaveChain(ctx, "bench", CorpusDigest(corpus), chain); err != nil {
			b.Fatalf("SaveChain() failed: %v", err)
		}
	}
}
