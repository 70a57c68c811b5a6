package postgres

import (
	"context"
	"fmt"

	"github.com/Rrens/chat-bridge/internal/config"
	"github.com/Rrens/chat-bridge/internal/domain"
)

// TurnArchive writes archived turns to the chat_turns table
type TurnArchive struct {
	db *DB
}

var _ domain.TurnArchive = (*TurnArchive)(nil)

// NewTurnArchive creates an archive on an open pool
func NewTurnArchive(db *DB) *TurnArchive {
	return &TurnArchive{db: db}
}

// OpenArchive connects to postgres, applying migrations when configured
func OpenArchive(ctx context.Context, cfg config.ArchiveConfig) (domain.TurnArchive, error) {
	if cfg.AutoMigrate {
		if err := RunMigrations(cfg.DSN); err != nil {
			return nil, err
		}
	}

	db, err := NewDB(ctx, cfg.DSN, cfg.MaxConns)
	if err != nil {
		return nil, err
	}
	return NewTurnArchive(db), nil
}

// Record inserts one turn
func (a *TurnArchive) Record(ctx context.Context, turn *domain.ArchivedTurn) error {
	query := `
		INSERT INTO chat_turns (id, instance_id, transport, session_key, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := a.db.Pool.Exec(ctx, query,
		turn.ID,
		turn.InstanceID,
		string(turn.Transport),
		turn.SessionKey,
		string(turn.Role),
		turn.Content,
		turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive turn: %w", err)
	}

	return nil
}

// Close closes the pool
func (a *TurnArchive) Close() error {
	a.db.Close()
	return nil
}
