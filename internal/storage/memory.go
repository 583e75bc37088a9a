package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entryKey struct {
	identity string
	name     string
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	cards   map[string]Card
	latest  map[string]string
	entries map[entryKey]Entry
	now     func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		cards:   make(map[string]Card),
		latest:  make(map[string]string),
		entries: make(map[entryKey]Entry),
		now:     time.Now,
	}
}

func (m *Memory) PublishCard(ctx context.Context, card Card) (Card, error) {
	if err := ctx.Err(); err != nil {
		return Card{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.cards[card.ID]; ok {
		return cloneCard(existing), nil
	}
	if card.PreviousCardID != "" && m.latest[card.Identity] != card.PreviousCardID {
		return Card{}, fmt.Errorf("%w: %s is not the newest card of %q", ErrConflict, card.PreviousCardID, card.Identity)
	}

	card = cloneCard(card)
	card.CreatedAt = m.now().UTC()
	m.cards[card.ID] = card
	m.latest[card.Identity] = card.ID
	return cloneCard(card), nil
}

func (m *Memory) LatestCards(ctx context.Context, identities []string) (map[string]Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Card, len(identities))
	for _, id := range identities {
		if cardID, ok := m.latest[id]; ok {
			out[id] = cloneCard(m.cards[cardID])
		}
	}
	return out, nil
}

func (m *Memory) GetEntry(ctx context.Context, identity, name string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[entryKey{identity, name}]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return cloneEntry(e), nil
}

func (m *Memory) PutEntry(ctx context.Context, identity, name string, data []byte, expectedVersion string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := entryKey{identity, name}
	current, exists := m.entries[key]
	switch {
	case expectedVersion == "" && exists:
		return Entry{}, fmt.Errorf("%w: entry exists", ErrConflict)
	case expectedVersion != "" && !exists:
		return Entry{}, ErrNotFound
	case expectedVersion != "" && current.Version != expectedVersion:
		return Entry{}, fmt.Errorf("%w: version mismatch", ErrConflict)
	}

	e := Entry{
		Identity:  identity,
		Name:      name,
		Data:      append([]byte(nil), data...),
		Version:   uuid.NewString(),
		UpdatedAt: m.now().UTC(),
	}
	m.entries[key] = e
	return cloneEntry(e), nil
}

func (m *Memory) DeleteEntry(ctx context.Context, identity, name, version string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := entryKey{identity, name}
	current, ok := m.entries[key]
	if !ok {
		return ErrNotFound
	}
	if current.Version != version {
		return fmt.Errorf("%w: version mismatch", ErrConflict)
	}
	delete(m.entries, key)
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func cloneCard(c Card) Card {
	c.PublicKey = append([]byte(nil), c.PublicKey...)
	return c
}

func cloneEntry(e Entry) Entry {
	e.Data = append([]byte(nil), e.Data...)
	return e
}
