// Package sqldb archives turns through database/sql for MySQL and SQLite
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/Rrens/chat-bridge/internal/config"
	"github.com/Rrens/chat-bridge/internal/domain"
)

// dialect holds what differs between the supported engines
type dialect struct {
	driver       string
	schema       []string
	maxOpenConns int
	dsn          func(string) (string, error)
}

var mysqlDialect = dialect{
	driver: "mysql",
	schema: []string{`
		CREATE TABLE IF NOT EXISTS chat_turns (
			id          CHAR(36)    NOT NULL PRIMARY KEY,
			instance_id CHAR(36)    NOT NULL,
			transport   VARCHAR(8)  NOT NULL,
			session_key VARCHAR(64) NOT NULL,
			role        VARCHAR(16) NOT NULL,
			content     MEDIUMTEXT  NOT NULL,
			created_at  DATETIME(6) NOT NULL,
			INDEX idx_chat_turns_session (instance_id, session_key, created_at)
		)`,
	},
	maxOpenConns: 5,
	dsn:          mysqlDSN,
}

var sqliteDialect = dialect{
	driver: "sqlite",
	schema: []string{`
		CREATE TABLE IF NOT EXISTS chat_turns (
			id          TEXT     NOT NULL PRIMARY KEY,
			instance_id TEXT     NOT NULL,
			transport   TEXT     NOT NULL,
			session_key TEXT     NOT NULL,
			role        TEXT     NOT NULL,
			content     TEXT     NOT NULL,
			created_at  DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_turns_session ON chat_turns (instance_id, session_key, created_at)`,
	},
	// SQLite only supports one writer
	maxOpenConns: 1,
	dsn:          sqliteDSN,
}

// mysqlDSN forces parseTime so DATETIME columns round-trip as time.Time
func mysqlDSN(raw string) (string, error) {
	cfg, err := mysql.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// sqliteDSN turns a file path into a DSN with WAL and a busy timeout
func sqliteDSN(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("database file path is required")
	}
	if strings.HasPrefix(raw, "file:") || raw == ":memory:" {
		return raw, nil
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", raw), nil
}

// TurnArchive writes archived turns through database/sql
type TurnArchive struct {
	db *sql.DB
}

var _ domain.TurnArchive = (*TurnArchive)(nil)

// OpenMySQL opens a MySQL archive and creates its table
func OpenMySQL(ctx context.Context, cfg config.ArchiveConfig) (domain.TurnArchive, error) {
	return open(ctx, mysqlDialect, cfg.DSN)
}

// OpenSQLite opens a SQLite archive file and creates its table
func OpenSQLite(ctx context.Context, cfg config.ArchiveConfig) (domain.TurnArchive, error) {
	return open(ctx, sqliteDialect, cfg.DSN)
}

func open(ctx context.Context, d dialect, raw string) (*TurnArchive, error) {
	dsn, err := d.dsn(raw)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(d.maxOpenConns)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create archive schema: %w", err)
		}
	}

	return &TurnArchive{db: db}, nil
}

// Record inserts one turn
func (a *TurnArchive) Record(ctx context.Context, turn *domain.ArchivedTurn) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO chat_turns (id, instance_id, transport, session_key, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		turn.ID.String(),
		turn.InstanceID.String(),
		string(turn.Transport),
		turn.SessionKey,
		string(turn.Role),
		turn.Content,
		turn.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to archive turn: %w", err)
	}
	return nil
}

// Close closes the connection
func (a *TurnArchive) Close() error {
	return a.db.Close()
}
