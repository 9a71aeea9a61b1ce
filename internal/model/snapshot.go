package model

import (
	"fmt"
	"strings"
)

// Snapshot is one consistent read of every pool's reserves for a single token pair.
// Pools keeps the order in which the pools were captured.
type Snapshot struct {
	ChainID     uint64      `json:"chain_id,omitempty"`
	BlockNumber uint64      `json:"block_number,omitempty"`
	TokenIn     TokenMeta   `json:"token_in"`
	TokenOut    TokenMeta   `json:"token_out"`
	CapturedAt  string      `json:"captured_at,omitempty"`
	Pools       []PoolState `json:"pools"`
}

// Validate checks that the snapshot can be scanned.
func (s Snapshot) Validate() error {
	if len(s.Pools) < 2 {
		return fmt.Errorf("%w: got %d", ErrEmptySnapshot, len(s.Pools))
	}
	seen := make(map[string]struct{}, len(s.Pools))
	for _, pool := range s.Pools {
		key := strings.ToLower(pool.ID())
		if key == "" {
			return fmt.Errorf("pool id is required")
		}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicatePool, pool.ID())
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Pool looks a pool up by id.
func (s Snapshot) Pool(id string) (PoolState, bool) {
	for _, pool := range s.Pools {
		if strings.EqualFold(pool.ID(), id) {
			return pool, true
		}
	}
	return PoolState{}, false
}
