package db

import (
	"database/sql"
	"log/slog"
	"strings"

	"chatfm/model"
)

// UserRepo reads the minimal user directory used for name expansion.
// Rows are written by the surrounding application, not by this module.
type UserRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewUserRepo(db *sql.DB, log *slog.Logger) *UserRepo {
	return &UserRepo{db: db, log: log}
}

// Names resolves the given user ids to directory rows. Unknown ids are
// simply absent from the result.
func (r *UserRepo) Names(ids []string) (map[string]model.User, error) {
	out := make(map[string]model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.Query(`SELECT id, first_name, last_name FROM chat_users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

// Upsert writes a directory row. Used by tests and by host applications
// that sync their user base into the module's store.
func (r *UserRepo) Upsert(u model.User) error {
	_, err := r.db.Exec(
		`INSERT INTO chat_users (id, first_name, last_name) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET first_name = excluded.first_name, last_name = excluded.last_name`,
		u.ID, u.FirstName, u.LastName)
	return err
}
