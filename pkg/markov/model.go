package markov

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ChainInfo holds the metadata of a cached chain: its unique ID, name, order
// and the digest of the corpus it was built from.
type ChainInfo struct {
	Id     int
	Name   string
	Order  int
	Digest string
}

// ListChains retrieves metadata for all chains currently cached, returning
// them in a map keyed by name.
func (s *Store) ListChains(ctx context.Context) (map[string]ChainInfo, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	infos := make(map[string]ChainInfo)
	for rows.Next() {
		var info ChainInfo
		if err = rows.Scan(&info.Id, &info.Name, &info.Order, &info.Digest); err != nil {
			return nil, err
		}
		infos[info.Name] = info
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return infos, nil
}

// GetChainInfo retrieves the metadata for a single cached chain. It returns
// sql.ErrNoRows if no chain has that name.
func (s *Store) GetChainInfo(ctx context.Context, name string) (ChainInfo, error) {
	info := ChainInfo{Name: name}
	err := s.stmtGetModelInfo.QueryRowContext(ctx, name).Scan(&info.Id, &info.Order, &info.Digest)
	if err != nil {
		return ChainInfo{}, err
	}
	return info, nil
}

// RemoveChain deletes a cached chain and all of its links. Removing a chain
// that does not exist is not an error.
func (s *Store) RemoveChain(ctx context.Context, name string) error {
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

	s.logger.InfoContext(ctx, "Chain removed from cache",
		slog.String("model_name", name),
	)

	return tx.Commit()
}

// deleteModel removes the model row and links stored under name, if any,
// along with the prefixes and tokens no other model still uses.
func deleteModel(ctx context.Context, tx *sql.Tx, name string) error {
	var modelID int
	err := tx.QueryRowContext(ctx, "SELECT model_id FROM markov_models WHERE model_name = ?", name).Scan(&modelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to query for model '%s': %w", name, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_links WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to remove links for model %d: %w", modelID, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_models WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", modelID, err)
	}
	return pruneOrphans(ctx, tx)
}

// pruneOrphans deletes prefixes no link starts from, then tokens that are
// neither a link target nor part of a remaining prefix. Prefixes hold their
// token ids as text, so the second step is resolved here rather than in SQL.
func pruneOrphans(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM markov_prefixes WHERE prefix_id NOT IN (SELECT DISTINCT prefix_id FROM markov_links);`); err != nil {
		return fmt.Errorf("failed to prune unused prefixes: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT token_id FROM markov_vocabulary WHERE token_id NOT IN (SELECT DISTINCT next_token_id FROM markov_links);`)
	if err != nil {
		return fmt.Errorf("failed to query unused tokens: %w", err)
	}
	candidates := make(map[int]struct{})
	for rows.Next() {
		var id int
		if err = rows.Scan(&id); err != nil {
			_ = rows.Close()
			return err
		}
		candidates[id] = struct{}{}
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	pRows, err := tx.QueryContext(ctx, `SELECT prefix_text FROM markov_prefixes;`)
	if err != nil {
		return fmt.Errorf("failed to query prefixes: %w", err)
	}
	for pRows.Next() {
		var prefixText string
		if err = pRows.Scan(&prefixText); err != nil {
			_ = pRows.Close()
			return err
		}
		for _, idStr := range strings.Split(prefixText, " ") {
			id, _ := strconv.Atoi(idStr)
			delete(candidates, id)
		}
	}
	_ = pRows.Close()
	if err = pRows.Err(); err != nil {
		return fmt.Errorf("error after iterating prefix rows: %w", err)
	}

	unused := make([]int, 0, len(candidates))
	for id := range candidates {
		unused = append(unused, id)
	}
	if err = batchDelete(ctx, tx, "markov_vocabulary", "token_id", unused); err != nil {
		return fmt.Errorf("failed to prune unused tokens: %w", err)
	}
	return nil
}

// batchDelete deletes the rows whose column is in ids, in batches that stay
// under SQLite's variable limit.
func batchDelete(ctx context.Context, tx *sql.Tx, table, column string, ids []int) error {
	// SQLite's default variable limit is 999, so around half that is good
	const batchSize = 500

	for start := 0; start < len(ids); start += batchSize {
		batch := ids[start:min(start+batchSize, len(ids))]
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (?%s)", table, column, strings.Repeat(",?", len(batch)-1))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}
