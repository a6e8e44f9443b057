package cli

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CTAG07/readspeed/pkg/markov"
)

// chainCache pairs the cache database with its Store.
type chainCache struct {
	db    *sql.DB
	store *markov.Store
}

// openCache opens (creating if needed) the SQLite database at dataSource and
// prepares a Store on it.
func openCache(dataSource string) (*chainCache, error) {
	path, _, _ := strings.Cut(dataSource, "?")
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := initDB(dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err = markov.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup cache schema: %w", err)
	}
	store, err := markov.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error creating chain store: %w", err)
	}
	store.SetLogger(logger)
	return &chainCache{db: db, store: store}, nil
}

func (c *chainCache) Close() {
	c.store.Close()
	if err := c.db.Close(); err != nil {
		logger.Error("Failed to close cache database", "error", err)
	}
}
