package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/Rrens/chat-bridge/internal/config"
	"github.com/Rrens/chat-bridge/internal/domain"
)

func TestToDocument(t *testing.T) {
	turn := &domain.ArchivedTurn{
		ID:         uuid.New(),
		InstanceID: uuid.New(),
		Transport:  domain.TransportStream,
		SessionKey: "127.0.0.1:5000",
		Role:       domain.RoleUser,
		Content:    "Hello",
		CreatedAt:  time.Now(),
	}

	raw, err := bson.Marshal(toDocument(turn))
	require.NoError(t, err)

	var got bson.M
	require.NoError(t, bson.Unmarshal(raw, &got))
	assert.Equal(t, turn.ID.String(), got["_id"])
	assert.Equal(t, "tcp", got["transport"])
	assert.Equal(t, "user", got["role"])
	assert.Equal(t, "Hello", got["content"])
}

func TestTurnArchive_Record(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()

	archive, err := OpenArchive(ctx, config.ArchiveConfig{DSN: uri, Database: "chatbridge_test"})
	require.NoError(t, err)
	defer archive.Close()

	turn := &domain.ArchivedTurn{
		ID:         uuid.New(),
		InstanceID: uuid.New(),
		Transport:  domain.TransportDatagram,
		SessionKey: "127.0.0.1:6000",
		Role:       domain.RoleAssistant,
		Content:    "Hi",
		CreatedAt:  time.Now(),
	}
	require.NoError(t, archive.Record(ctx, turn))

	var got bson.M
	err = archive.(*TurnArchive).collection.FindOne(ctx, bson.M{"_id": turn.ID.String()}).Decode(&got)
	require.NoError(t, err)
	assert.Equal(t, "Hi", got["content"])
}
