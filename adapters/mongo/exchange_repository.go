package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/widyatma/lantang/domain/entities"
	"github.com/widyatma/lantang/domain/repositories"
)

type ExchangeRepository struct {
	collection *mongo.Collection
}

// NewExchangeRepository creates a new MongoDB exchange store
func NewExchangeRepository(db *mongo.Database) repositories.SessionStore {
	return &ExchangeRepository{
		collection: db.Collection("exchanges"),
	}
}

// SaveExchange implements repositories.SessionStore
func (r *ExchangeRepository) SaveExchange(ctx context.Context, exchange *entities.Exchange) error {
	if exchange == nil {
		return errors.New("exchange cannot be nil")
	}
	if err := exchange.Validate(); err != nil {
		return err
	}
	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = time.Now()
	}

	doc := bson.M{
		"owner_id":   exchange.OwnerID,
		"session_id": exchange.SessionID,
		"transcript": exchange.Transcript,
		"confidence": exchange.Confidence,
		"response":   exchange.Response,
		"latency_ms": exchange.LatencyMs,
		"created_at": exchange.CreatedAt,
	}
	if exchange.Emotion != "" {
		doc["emotion"] = exchange.Emotion
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to save exchange: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		exchange.ID = oid.Hex()
	}
	return nil
}

// RecentExchanges implements repositories.SessionStore. Results come
// back newest first.
func (r *ExchangeRepository) RecentExchanges(ctx context.Context, ownerID string, limit int) ([]entities.Exchange, error) {
	if ownerID == "" {
		return nil, errors.New("owner ID cannot be empty")
	}
	if limit <= 0 {
		limit = 10
	}

	filter := bson.M{"owner_id": ownerID}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchanges for owner %s: %w", ownerID, err)
	}
	defer cursor.Close(ctx)

	var exchanges []entities.Exchange
	if err := cursor.All(ctx, &exchanges); err != nil {
		return nil, fmt.Errorf("failed to decode exchanges: %w", err)
	}
	return exchanges, nil
}
