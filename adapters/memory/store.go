package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/widyatma/lantang/domain/entities"
	"github.com/widyatma/lantang/domain/repositories"
)

// maxPerOwner bounds history per owner so a long-lived process does
// not grow without limit.
const maxPerOwner = 200

// Store is an in-memory SessionStore for development and tests.
type Store struct {
	mu        sync.RWMutex
	exchanges map[string][]entities.Exchange
}

var _ repositories.SessionStore = (*Store)(nil)

// NewStore creates an empty in-memory exchange store
func NewStore() *Store {
	return &Store{
		exchanges: make(map[string][]entities.Exchange),
	}
}

// SaveExchange implements repositories.SessionStore
func (s *Store) SaveExchange(ctx context.Context, exchange *entities.Exchange) error {
	if exchange == nil {
		return errors.New("exchange cannot be nil")
	}
	if err := exchange.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if exchange.ID == "" {
		exchange.ID = uuid.NewString()
	}
	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	owned := append(s.exchanges[exchange.OwnerID], *exchange)
	if len(owned) > maxPerOwner {
		owned = owned[len(owned)-maxPerOwner:]
	}
	s.exchanges[exchange.OwnerID] = owned
	return nil
}

// RecentExchanges implements repositories.SessionStore. Results come
// back newest first to match the MongoDB adapter.
func (s *Store) RecentExchanges(ctx context.Context, ownerID string, limit int) ([]entities.Exchange, error) {
	if ownerID == "" {
		return nil, errors.New("owner ID cannot be empty")
	}
	if limit <= 0 {
		limit = 10
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	owned := s.exchanges[ownerID]
	if len(owned) == 0 {
		return nil, nil
	}
	if limit > len(owned) {
		limit = len(owned)
	}

	out := make([]entities.Exchange, 0, limit)
	for i := len(owned) - 1; i >= len(owned)-limit; i-- {
		out = append(out, owned[i])
	}
	return out, nil
}
