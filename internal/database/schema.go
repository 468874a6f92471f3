package database

import (
	"database/sql"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS participants (
		id VARCHAR(64) PRIMARY KEY,
		username VARCHAR(64) NOT NULL UNIQUE,
		display_name VARCHAR(255) NOT NULL,
		avatar_url TEXT NULL,
		created_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS messages (
		id VARCHAR(64) PRIMARY KEY,
		sender_id VARCHAR(64) NOT NULL,
		content TEXT NULL,
		reply_to_id VARCHAR(64) NULL,
		attachment_url TEXT NULL,
		attachment_type VARCHAR(255) NULL,
		attachment_name VARCHAR(255) NULL,
		attachment_size BIGINT NULL,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_messages_created (created_at, id),
		FOREIGN KEY (sender_id) REFERENCES participants(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS message_states (
		id VARCHAR(64) PRIMARY KEY,
		message_id VARCHAR(64) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		is_important BOOLEAN NOT NULL DEFAULT FALSE,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_message_states (message_id, user_id),
		FOREIGN KEY (message_id) REFERENCES messages(id),
		FOREIGN KEY (user_id) REFERENCES participants(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS reactions (
		id VARCHAR(64) PRIMARY KEY,
		message_id VARCHAR(64) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		emoji VARCHAR(32) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_reactions (message_id, user_id, emoji),
		FOREIGN KEY (message_id) REFERENCES messages(id),
		FOREIGN KEY (user_id) REFERENCES participants(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS participants (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		avatar_url TEXT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL REFERENCES participants(id),
		content TEXT NULL,
		reply_to_id TEXT NULL,
		attachment_url TEXT NULL,
		attachment_type TEXT NULL,
		attachment_name TEXT NULL,
		attachment_size INTEGER NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_created ON messages (created_at, id)`,
	`CREATE TABLE IF NOT EXISTS message_states (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL REFERENCES messages(id),
		user_id TEXT NOT NULL REFERENCES participants(id),
		is_important INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		UNIQUE (message_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reactions (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL REFERENCES messages(id),
		user_id TEXT NOT NULL REFERENCES participants(id),
		emoji TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (message_id, user_id, emoji)
	)`,
}

// Migrate creates the chat tables if they do not exist.
func Migrate(db *sql.DB, dialect string) error {
	var stmts []string
	switch dialect {
	case DialectMySQL:
		stmts = mysqlSchema
	case DialectSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unsupported dialect: %s", dialect)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
