package markov

import (
	"context"
	"database/sql"
	"go/build"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

const fooCorpus = "Foo bar baz. Foo bar qux."

// cycleCorpus has no terminal punctuation and no dead ends at order 1, so
// every sentence has to be cut by the length ceiling.
const cycleCorpus = "The cat sat on the mat and The cat"

// setupTestDB creates a new SQLite database and a Store for testing.
// It uses t.Cleanup to ensure resources are released.
func setupTestDB(t *testing.T) (*sql.DB, *Store) {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-4000")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(s.Close)

	return db, s
}

// setupTestDBWithChain is a convenience helper that also caches the foo chain.
func setupTestDBWithChain(t *testing.T) (context.Context, *Store, *Chain) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	chain := mustBuild(t, fooCorpus, 2)
	if err := s.SaveChain(ctx, "foo", CorpusDigest(fooCorpus), chain); err != nil {
		t.Fatalf("setup: SaveChain() failed: %v", err)
	}
	return ctx, s, chain
}

// mustBuild tokenizes corpus and builds a chain of the given order.
func mustBuild(t testing.TB, corpus string, order int) *Chain {
	t.Helper()
	chain, err := BuildChain(Tokenize(corpus), order)
	if err != nil {
		t.Fatalf("BuildChain() failed: %v", err)
	}
	return chain
}

// testParams returns valid parameters for the given order.
func testParams(order int) Params {
	p := DefaultParams()
	p.Order = order
	return p
}

var (
	benchmarkCorpus string
	corpusOnce      sync.Once
)

// createBenchmarkCorpus reads Go source files to create a corpus for benchmarking.
func createBenchmarkCorpus() string {
	corpusOnce.Do(func() {
		var sb strings.Builder
		goRoot := build.Default.GOROOT
		filesToRead := []string{
			filepath.Join(goRoot, "src/net/http/server.go"),
			filepath.Join(goRoot, "src/go/parser/parser.go"),
			filepath.Join(goRoot, "src/encoding/json/encode.go"),
		}

		for _, file := range filesToRead {
			content, err := os.ReadFile(file)
			if err != nil {
				benchmarkCorpus = "This is a fallback corpus for benchmarking. It is not very long but will prevent a crash. "
				return
			}
			sb.Write(content)
			sb.WriteString("\n")
		}
		benchmarkCorpus = sb.String()
	})
	return benchmarkCorpus
}
