package repositories

import (
	"context"

	"github.com/widyatma/lantang/domain/entities"
)

// SessionStore persists finalized transcript/response exchanges.
// Writes are fire-and-forget from the live pipeline's perspective; a
// failed save must never block or break an active stream.
type SessionStore interface {
	SaveExchange(ctx context.Context, exchange *entities.Exchange) error
	// RecentExchanges returns the newest exchanges for an owner,
	// most recent first, bounded by limit.
	RecentExchanges(ctx context.Context, ownerID string, limit int) ([]entities.Exchange, error)
}
