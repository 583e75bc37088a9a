package storage

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of identities whose newest card is cached.
const DefaultCacheSize = 4096

// Cached fronts a Store with an LRU cache of newest cards. A publish through
// the cache evicts the identity and bumps its generation; a lookup that read
// the backing store before that publish does not fill the cache, so readers
// of the same Cached never see a superseded card once the publish returns.
// Entries are not cached.
type Cached struct {
	Store
	cards *lru.Cache[string, Card]

	mu   sync.Mutex
	gens map[string]uint64 // publishes per identity
}

// NewCached wraps store. A size of zero selects DefaultCacheSize.
func NewCached(store Store, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, Card](size)
	if err != nil {
		return nil, fmt.Errorf("create card cache: %w", err)
	}
	return &Cached{Store: store, cards: cache, gens: make(map[string]uint64)}, nil
}

func (c *Cached) PublishCard(ctx context.Context, card Card) (Card, error) {
	published, err := c.Store.PublishCard(ctx, card)
	c.mu.Lock()
	c.gens[card.Identity]++
	c.cards.Remove(card.Identity)
	c.mu.Unlock()
	return published, err
}

func (c *Cached) LatestCards(ctx context.Context, identities []string) (map[string]Card, error) {
	out := make(map[string]Card, len(identities))
	var missing []string
	for _, id := range identities {
		if card, ok := c.cards.Get(id); ok {
			out[id] = cloneCard(card)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	c.mu.Lock()
	before := make(map[string]uint64, len(missing))
	for _, id := range missing {
		before[id] = c.gens[id]
	}
	c.mu.Unlock()

	found, err := c.Store.LatestCards(ctx, missing)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, card := range found {
		if c.gens[id] == before[id] {
			c.cards.Add(id, cloneCard(card))
		}
		out[id] = card
	}
	return out, nil
}

// Len reports the number of cached identities.
func (c *Cached) Len() int {
	return c.cards.Len()
}
