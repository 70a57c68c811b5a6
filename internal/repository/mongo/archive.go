// Package mongo archives turns into a MongoDB collection
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Rrens/chat-bridge/internal/config"
	"github.com/Rrens/chat-bridge/internal/domain"
)

const collectionName = "chat_turns"

// TurnArchive writes archived turns to a collection
type TurnArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ domain.TurnArchive = (*TurnArchive)(nil)

// OpenArchive connects using cfg.DSN as the MongoDB URI
func OpenArchive(ctx context.Context, cfg config.ArchiveConfig) (domain.TurnArchive, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.DSN).
		SetConnectTimeout(10 * time.Second)
	if cfg.MaxConns > 0 {
		clientOpts.SetMaxPoolSize(uint64(cfg.MaxConns))
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	collection := client.Database(cfg.Database).Collection(collectionName)

	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "instance_id", Value: 1},
			{Key: "session_key", Value: 1},
			{Key: "created_at", Value: 1},
		},
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &TurnArchive{client: client, collection: collection}, nil
}

// Record inserts one turn
func (a *TurnArchive) Record(ctx context.Context, turn *domain.ArchivedTurn) error {
	if _, err := a.collection.InsertOne(ctx, toDocument(turn)); err != nil {
		return fmt.Errorf("failed to archive turn: %w", err)
	}
	return nil
}

// Close disconnects the client
func (a *TurnArchive) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.client.Disconnect(ctx)
}

// toDocument stores ids as strings so they stay readable in the shell
func toDocument(turn *domain.ArchivedTurn) bson.D {
	return bson.D{
		{Key: "_id", Value: turn.ID.String()},
		{Key: "instance_id", Value: turn.InstanceID.String()},
		{Key: "transport", Value: string(turn.Transport)},
		{Key: "session_key", Value: turn.SessionKey},
		{Key: "role", Value: string(turn.Role)},
		{Key: "content", Value: turn.Content},
		{Key: "created_at", Value: turn.CreatedAt},
	}
}
