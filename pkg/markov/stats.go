package markov

import "context"

// ChainStats holds aggregated statistics for a chain.
type ChainStats struct {
	Keys        int // The number of distinct k-token keys.
	Transitions int // The number of key -> successor links, duplicates included.
	StartKeys   int // The number of keys that can seed a sentence.
	Vocabulary  int // The number of distinct tokens in keys and successors.
}

// Stats returns a snapshot of the chain's size.
func (c *Chain) Stats() ChainStats {
	vocab := make(map[string]struct{})
	for _, key := range c.keys {
		for _, tok := range key {
			vocab[tok] = struct{}{}
		}
		for _, tok := range c.next[joinKey(key)] {
			vocab[tok] = struct{}{}
		}
	}
	return ChainStats{
		Keys:        len(c.keys),
		Transitions: c.links,
		StartKeys:   len(c.starts),
		Vocabulary:  len(vocab),
	}
}

// StoreStats holds aggregated statistics for the whole cache database.
type StoreStats struct {
	Chains     []ChainInfo // The cached chains
	Links      map[int]int // A mapping of chain ids to their stored link counts
	VocabSize  int         // The number of unique tokens shared by all chains
	PrefixSize int         // The number of unique prefixes shared by all chains
}

// GetStats returns a snapshot of statistics for the cache database.
func (s *Store) GetStats(ctx context.Context) (*StoreStats, error) {
	infos, err := s.ListChains(ctx)
	if err != nil {
		return nil, err
	}

	stats := &StoreStats{
		Chains: make([]ChainInfo, 0, len(infos)),
		Links:  make(map[int]int, len(infos)),
	}
	if err = s.stmtGetVocabLen.QueryRowContext(ctx).Scan(&stats.VocabSize); err != nil {
		return nil, err
	}
	if err = s.stmtGetPrefixLen.QueryRowContext(ctx).Scan(&stats.PrefixSize); err != nil {
		return nil, err
	}

	for _, info := range infos {
		stats.Chains = append(stats.Chains, info)
		var links int
		if err = s.stmtModelLinks.QueryRowContext(ctx, info.Id).Scan(&links); err != nil {
			return nil, err
		}
		stats.Links[info.Id] = links
	}
	return stats, nil
}
