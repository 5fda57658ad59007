package db

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chatfm/model"
)

type MessageRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewMessageRepo(db *sql.DB, log *slog.Logger) *MessageRepo {
	return &MessageRepo{db: db, log: log}
}

const messageCols = `id, channel_id, sender, text, type, removed, versions, created_at, updated_at`

func scanMessage(row interface{ Scan(...any) error }) (*model.Message, error) {
	var (
		m         model.Message
		removed   int
		versions  string
		createdAt string
		updatedAt string
	)
	err := row.Scan(&m.ID, &m.Channel, &m.Sender, &m.Text, &m.Type, &removed, &versions, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	m.Removed = removed != 0
	if err := json.Unmarshal([]byte(versions), &m.Versions); err != nil {
		return nil, err
	}
	m.CreatedAt = timeFromDB(createdAt)
	m.UpdatedAt = timeFromDB(updatedAt)
	return &m, nil
}

func (r *MessageRepo) Insert(m *model.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Type == "" {
		m.Type = model.MessageTypeMessage
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	versions, err := json.Marshal(m.Versions)
	if err != nil {
		return err
	}

	query := `INSERT INTO chat_messages (` + messageCols + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.Exec(query,
		m.ID, m.Channel, m.Sender, m.Text, m.Type, boolToDB(m.Removed),
		string(versions), timeToDB(m.CreatedAt), timeToDB(m.UpdatedAt))
	return err
}

func (r *MessageRepo) Update(m *model.Message) error {
	m.UpdatedAt = time.Now().UTC()

	versions, err := json.Marshal(m.Versions)
	if err != nil {
		return err
	}

	query := `UPDATE chat_messages SET text = ?, type = ?, removed = ?, versions = ?, updated_at = ? WHERE id = ?`
	_, err = r.db.Exec(query,
		m.Text, m.Type, boolToDB(m.Removed), string(versions), timeToDB(m.UpdatedAt), m.ID)
	return err
}

// FindByID returns the message or nil when no row exists.
func (r *MessageRepo) FindByID(id string) (*model.Message, error) {
	row := r.db.QueryRow(`SELECT `+messageCols+` FROM chat_messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// ListByChannel returns a channel's messages newest first.
func (r *MessageRepo) ListByChannel(channelID string, top, skip int) ([]*model.Message, error) {
	if top < 0 {
		top = -1 // sqlite: LIMIT -1 means no limit
	}
	if skip < 0 {
		skip = 0
	}
	rows, err := r.db.Query(
		`SELECT `+messageCols+` FROM chat_messages WHERE channel_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		channelID, top, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Latest returns the most recent non-removed message of type `message`
// for the channel, or nil. Previews only consider conversational
// messages, never info/warning/danger banners.
func (r *MessageRepo) Latest(channelID string) (*model.Message, error) {
	row := r.db.QueryRow(
		`SELECT `+messageCols+` FROM chat_messages WHERE channel_id = ? AND removed = 0 AND type = ? ORDER BY created_at DESC LIMIT 1`,
		channelID, model.MessageTypeMessage)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

func (r *MessageRepo) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM chat_messages WHERE id = ?`, id)
	return err
}

// CountByChannel reports how many messages reference the channel.
func (r *MessageRepo) CountByChannel(channelID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM chat_messages WHERE channel_id = ?`, channelID).Scan(&n)
	return n, err
}
