package db

import (
	"database/sql"
	"fmt"
	"time"
)

func InitDB(databaseName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", databaseName+"?_foreign_keys=1")
	if err != nil {
		return nil, err
	}

	var enabled int
	err = db.QueryRow("PRAGMA foreign_keys").Scan(&enabled)
	if err != nil {
		return nil, fmt.Errorf("error checking foreign keys: %v", err)
	}
	if enabled != 1 {
		return nil, fmt.Errorf("foreign keys are not enabled")
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func CloseDB(databaseInstance *sql.DB) {
	if databaseInstance != nil {
		databaseInstance.Close()
	}
}

// Migrate creates the chat tables. Channels and messages are stored one
// row per document; the embedded collections (members, edit history) live
// in JSON columns.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS chat_channels (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'private',
			archived INTEGER NOT NULL DEFAULT 0,
			users TEXT NOT NULL DEFAULT '[]',
			last_msg TEXT,
			version INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_channels_type ON chat_channels (type, archived)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL,
			sender TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT 'message',
			removed INTEGER NOT NULL DEFAULT 0,
			versions TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_channel ON chat_messages (channel_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS chat_users (
			id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT ''
		)`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("error creating schema: %v", err)
		}
	}
	return nil
}

// Timestamps are stored as fixed-width UTC strings so that string
// comparison in ORDER BY matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func timeToDB(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func timeFromDB(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func timePtrToDB(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: timeToDB(*t), Valid: true}
}

func timePtrFromDB(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := timeFromDB(s.String)
	return &t
}
