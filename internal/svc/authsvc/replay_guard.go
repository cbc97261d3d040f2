package authsvc

import (
	"fmt"
	"strconv"

	lru "github.com/hashicorp/golang-lru"
)

// ReplayGuard remembers consumed (user, time step) pairs so that a TOTP code is
// accepted at most once per user.
type ReplayGuard struct {
	seen *lru.Cache
}

// NewReplayGuard keeps up to size consumed pairs.
func NewReplayGuard(size int) (*ReplayGuard, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("new lru: %w", err)
	}

	return &ReplayGuard{seen: cache}, nil
}

// Seen reports whether userID already consumed step.
func (g *ReplayGuard) Seen(userID string, step uint64) bool {
	return g.seen.Contains(replayKey(userID, step))
}

// Consume marks the step as used by userID and reports whether it was unused.
func (g *ReplayGuard) Consume(userID string, step uint64) bool {
	found, _ := g.seen.ContainsOrAdd(replayKey(userID, step), struct{}{})

	return !found
}

func replayKey(userID string, step uint64) string {
	return userID + ":" + strconv.FormatUint(step, 10)
}
