package markov

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// SetupSchema initializes the tables used to cache chains in the provided
// database. It is idempotent and safe to call on an already-initialized
// database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaVocab = `
CREATE TABLE IF NOT EXISTS markov_vocabulary (
    token_id INTEGER PRIMARY KEY,
    token_text TEXT NOT NULL UNIQUE
);
`
		schemaPrefixes = `
CREATE TABLE IF NOT EXISTS markov_prefixes (
	prefix_id INTEGER PRIMARY KEY,
	prefix_text TEXT NOT NULL UNIQUE
);
`
		schemaModels = `
CREATE TABLE IF NOT EXISTS markov_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    model_order INTEGER NOT NULL,
    corpus_digest TEXT NOT NULL
);
`
		schemaLinks = `
CREATE TABLE IF NOT EXISTS markov_links (
    model_id INTEGER NOT NULL,
    link_seq INTEGER NOT NULL,
    prefix_id INTEGER NOT NULL,
    next_token_id INTEGER NOT NULL,
    PRIMARY KEY (model_id, link_seq)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// If the transaction succeeds, tx.Commit() will be called first, and the rollback will do nothing. If it fails, this will clean up.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, stmt := range []string{schemaVocab, schemaPrefixes, schemaModels, schemaLinks} {
		if _, err = tx.Exec(stmt); err != nil {
			return fmt.Errorf("could not create schema: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// CorpusDigest returns the hex SHA-256 of a corpus. A cached chain is only
// reused while the digest it was saved with still matches.
func CorpusDigest(corpus string) string {
	sum := sha256.Sum256([]byte(corpus))
	return hex.EncodeToString(sum[:])
}

// Store caches built chains in a SQLite database so that large corpora are
// not re-tokenized on every run. It holds prepared SQL statements for
// efficient database interaction.
type Store struct {
	db                    *sql.DB
	stmtGetModelInfo      *sql.Stmt
	stmtGetModels         *sql.Stmt
	stmtAddModel          *sql.Stmt
	stmtModelLinks        *sql.Stmt
	stmtGetLinks          *sql.Stmt
	stmtGetTokenText      *sql.Stmt
	stmtGetVocabLen       *sql.Stmt
	stmtGetPrefixLen      *sql.Stmt
	stmtInsertVocab       *sql.Stmt
	stmtGetOrInsertPrefix *sql.Stmt
	logger                *slog.Logger
}

// NewStore creates and returns a new Store. It pre-compiles all necessary SQL
// statements, returning an error if any preparation fails. SetupSchema must
// have been called on db first.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	statements := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.stmtGetModelInfo, `SELECT model_id, model_order, corpus_digest FROM markov_models WHERE model_name = ?;`},
		{&s.stmtGetModels, `SELECT model_id, model_name, model_order, corpus_digest FROM markov_models;`},
		{&s.stmtAddModel, `INSERT INTO markov_models (model_name, model_order, corpus_digest) VALUES (?, ?, ?) RETURNING model_id;`},
		{&s.stmtModelLinks, `SELECT COUNT(*) FROM markov_links WHERE model_id = ?;`},
		{&s.stmtGetLinks, `SELECT p.prefix_text, l.next_token_id FROM markov_links l JOIN markov_prefixes p ON p.prefix_id = l.prefix_id WHERE l.model_id = ? ORDER BY l.link_seq;`},
		{&s.stmtGetTokenText, `SELECT token_text FROM markov_vocabulary WHERE token_id = ?;`},
		{&s.stmtGetVocabLen, `SELECT COUNT(*) FROM markov_vocabulary;`},
		{&s.stmtGetPrefixLen, `SELECT COUNT(*) FROM markov_prefixes;`},
		{&s.stmtInsertVocab, `INSERT INTO markov_vocabulary (token_text) VALUES (?) ON CONFLICT(token_text) DO UPDATE SET token_text=excluded.token_text RETURNING token_id;`},
		{&s.stmtGetOrInsertPrefix, `INSERT INTO markov_prefixes (prefix_text) VALUES (?) ON CONFLICT(prefix_text) DO UPDATE SET prefix_text=excluded.prefix_text RETURNING prefix_id;`},
	}

	for _, st := range statements {
		stmt, err := db.Prepare(st.query)
		if err != nil {
			s.Close()
			return nil, err
		}
		*st.dst = stmt
	}

	return s, nil
}

// Close releases all prepared SQL statements held by the Store. It does not
// close the underlying database.
func (s *Store) Close() {
	for _, stmt := range []*sql.Stmt{
		s.stmtGetModelInfo,
		s.stmtGetModels,
		s.stmtAddModel,
		s.stmtModelLinks,
		s.stmtGetLinks,
		s.stmtGetTokenText,
		s.stmtGetVocabLen,
		s.stmtGetPrefixLen,
		s.stmtInsertVocab,
		s.stmtGetOrInsertPrefix,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SaveChain stores chain under name, replacing any chain previously saved
// under the same name. Links are written in build order so that LoadChain
// reproduces an identical chain. The entire operation is performed within a
// single database transaction.
func (s *Store) SaveChain(ctx context.Context, name, digest string, chain *Chain) error {
	// linkBatchSize determines how many links are buffered in memory before being written in a single batch.
	const linkBatchSize = 1000

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if err = deleteModel(ctx, tx, name); err != nil {
		return err
	}

	var modelID int
	if err = tx.StmtContext(ctx, s.stmtAddModel).QueryRowContext(ctx, name, chain.Order(), digest).Scan(&modelID); err != nil {
		return fmt.Errorf("failed to insert model '%s': %w", name, err)
	}

	stmtInsertVocab := tx.StmtContext(ctx, s.stmtInsertVocab)
	stmtGetOrInsertPrefix := tx.StmtContext(ctx, s.stmtGetOrInsertPrefix)
	stmtInsertLink, err := tx.PrepareContext(ctx, `INSERT INTO markov_links (model_id, link_seq, prefix_id, next_token_id) VALUES (?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("failed to prepare link insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsertLink)

	vocabCache := make(map[string]int)
	tokenID := func(text string) (int, error) {
		if id, ok := vocabCache[text]; ok {
			return id, nil
		}
		var id int
		if err := stmtInsertVocab.QueryRowContext(ctx, text).Scan(&id); err != nil {
			return 0, fmt.Errorf("sql insert vocabulary error for token '%s': %w", text, err)
		}
		vocabCache[text] = id
		return id, nil
	}

	type link struct{ prefixID, nextTokenID int }
	batch := make([]link, 0, linkBatchSize)
	seq := 0
	commitBatch := func() error {
		for _, l := range batch {
			if _, err := stmtInsertLink.ExecContext(ctx, modelID, seq, l.prefixID, l.nextTokenID); err != nil {
				return fmt.Errorf("failed during batch insert of link (%d -> %d): %w", l.prefixID, l.nextTokenID, err)
			}
			seq++
		}
		batch = batch[:0]
		return nil
	}

	var keyBuf []byte
	for _, key := range chain.keys {
		keyBuf = keyBuf[:0]
		for j, tok := range key {
			id, err := tokenID(tok)
			if err != nil {
				return err
			}
			if j > 0 {
				keyBuf = append(keyBuf, ' ')
			}
			keyBuf = strconv.AppendInt(keyBuf, int64(id), 10)
		}
		prefixKey := string(keyBuf)

		var prefixID int
		if err = stmtGetOrInsertPrefix.QueryRowContext(ctx, prefixKey).Scan(&prefixID); err != nil {
			return fmt.Errorf("failed to get or insert prefix '%s': %w", prefixKey, err)
		}

		for _, next := range chain.next[joinKey(key)] {
			id, err := tokenID(next)
			if err != nil {
				return err
			}
			batch = append(batch, link{prefixID: prefixID, nextTokenID: id})
			if len(batch) >= linkBatchSize {
				if err = commitBatch(); err != nil {
					return err
				}
			}
		}
	}
	if err = commitBatch(); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Chain cached",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
		slog.Int("order", chain.Order()),
		slog.Int("keys", chain.Len()),
		slog.Int("links_saved", seq),
	)

	return tx.Commit()
}

// LoadChain rebuilds the chain saved under name. It returns an error matching
// ErrChainNotCached if no chain has that name or if it was saved from a corpus
// with a different digest.
func (s *Store) LoadChain(ctx context.Context, name, digest string) (*Chain, error) {
	info, err := s.GetChainInfo(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no chain named '%s'", ErrChainNotCached, name)
	}
	if err != nil {
		return nil, err
	}
	if info.Digest != digest {
		return nil, fmt.Errorf("%w: chain '%s' was built from a different corpus", ErrChainNotCached, name)
	}

	chain, err := newChain(info.Order)
	if err != nil {
		return nil, err
	}

	rows, err := s.stmtGetLinks.QueryContext(ctx, info.Id)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	tokenCache := make(map[int]string)
	key := make([]string, info.Order)
	for rows.Next() {
		var prefixText string
		var nextTokenID int
		if err = rows.Scan(&prefixText, &nextTokenID); err != nil {
			return nil, err
		}

		ids := strings.Split(prefixText, " ")
		if len(ids) != info.Order {
			return nil, fmt.Errorf("consistency error: prefix '%s' has %d tokens, want %d", prefixText, len(ids), info.Order)
		}
		for i, idStr := range ids {
			id, err := strconv.Atoi(idStr)
			if err != nil {
				return nil, fmt.Errorf("consistency error: bad token id '%s' in prefix: %w", idStr, err)
			}
			if key[i], err = s.getTokenTextWithCache(ctx, id, tokenCache); err != nil {
				return nil, err
			}
		}
		next, err := s.getTokenTextWithCache(ctx, nextTokenID, tokenCache)
		if err != nil {
			return nil, err
		}
		chain.add(key, next)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "Chain loaded from cache",
		slog.String("model_name", name),
		slog.Int("model_id", info.Id),
		slog.Int("keys", chain.Len()),
	)
	return chain, nil
}

// LoadOrBuild returns the chain cached under name if it matches corpus and
// order, and otherwise tokenizes corpus with t, builds the chain and caches
// it. A corpus with fewer than order+1 tokens fails with a *CorpusError and is
// never cached.
func (s *Store) LoadOrBuild(ctx context.Context, name, corpus string, order int, t Tokenizer) (*Chain, error) {
	digest := CorpusDigest(corpus)
	chain, err := s.LoadChain(ctx, name, digest)
	if err == nil && chain.Order() == order {
		return chain, nil
	}
	if err != nil && !errors.Is(err, ErrChainNotCached) {
		return nil, err
	}

	if chain, err = BuildCorpusChain(corpus, order, t); err != nil {
		return nil, err
	}
	if err = s.SaveChain(ctx, name, digest, chain); err != nil {
		return nil, fmt.Errorf("failed to cache chain '%s': %w", name, err)
	}
	return chain, nil
}

// getTokenTextWithCache resolves a token id, remembering the answer in cache.
func (s *Store) getTokenTextWithCache(ctx context.Context, id int, cache map[int]string) (string, error) {
	if text, ok := cache[id]; ok {
		return text, nil
	}
	var text string
	if err := s.stmtGetTokenText.QueryRowContext(ctx, id).Scan(&text); err != nil {
		return "", fmt.Errorf("failed to get text for token %d: %w", id, err)
	}
	cache[id] = text
	return text, nil
}
