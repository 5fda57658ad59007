package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chatfm/model"
)

// ChannelFilter is a plain-data predicate for channel lookups. Type is
// matched in SQL; membership conditions run over the decoded documents so
// the store can be swapped without a query builder.
type ChannelFilter struct {
	Type string
	// OwnerIn matches the owner against any listed id. Empty means any owner.
	OwnerIn []string
	// MemberAny requires at least one listed user among the members.
	// Empty skips the condition.
	MemberAny []string
	// MinMembers / MaxMembers bound the membership size. -1 skips a bound.
	MinMembers int
	MaxMembers int
}

type ChannelRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewChannelRepo(db *sql.DB, log *slog.Logger) *ChannelRepo {
	return &ChannelRepo{db: db, log: log}
}

const channelCols = `id, name, owner, type, archived, users, last_msg, version, created_at, updated_at`

func scanChannel(row interface{ Scan(...any) error }) (*model.Channel, error) {
	var (
		c         model.Channel
		archived  int
		users     string
		lastMsg   sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(&c.ID, &c.Name, &c.Owner, &c.Type, &archived, &users, &lastMsg, &c.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.Archived = archived != 0
	if err := json.Unmarshal([]byte(users), &c.Users); err != nil {
		return nil, fmt.Errorf("error decoding channel members: %v", err)
	}
	c.LastMessageAt = timePtrFromDB(lastMsg)
	c.CreatedAt = timeFromDB(createdAt)
	c.UpdatedAt = timeFromDB(updatedAt)
	return &c, nil
}

// Insert persists a new channel, assigning its id and timestamps.
func (r *ChannelRepo) Insert(c *model.Channel) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Type == "" {
		c.Type = model.ChannelPrivate
	}
	c.DedupUsers()
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	users, err := json.Marshal(c.Users)
	if err != nil {
		return err
	}

	query := `INSERT INTO chat_channels (` + channelCols + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.Exec(query,
		c.ID, c.Name, c.Owner, c.Type, boolToDB(c.Archived), string(users),
		timePtrToDB(c.LastMessageAt), c.Version, timeToDB(c.CreatedAt), timeToDB(c.UpdatedAt))
	return err
}

// Update saves a mutated channel. Members are deduplicated and the
// optimistic concurrency counter incremented before every persist.
func (r *ChannelRepo) Update(c *model.Channel) error {
	c.DedupUsers()
	c.Version++
	c.UpdatedAt = time.Now().UTC()

	users, err := json.Marshal(c.Users)
	if err != nil {
		return err
	}

	query := `UPDATE chat_channels SET name = ?, owner = ?, type = ?, archived = ?, users = ?, last_msg = ?, version = ?, updated_at = ? WHERE id = ?`
	_, err = r.db.Exec(query,
		c.Name, c.Owner, c.Type, boolToDB(c.Archived), string(users),
		timePtrToDB(c.LastMessageAt), c.Version, timeToDB(c.UpdatedAt), c.ID)
	return err
}

// FindByID returns the channel or nil when no row exists.
func (r *ChannelRepo) FindByID(id string) (*model.Channel, error) {
	row := r.db.QueryRow(`SELECT `+channelCols+` FROM chat_channels WHERE id = ?`, id)
	c, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// FindOne returns the first channel matching the filter, or nil.
func (r *ChannelRepo) FindOne(f ChannelFilter) (*model.Channel, error) {
	rows, err := r.db.Query(`SELECT `+channelCols+` FROM chat_channels WHERE type = ?`, f.Type)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		if matchesFilter(c, f) {
			return c, rows.Err()
		}
	}
	return nil, rows.Err()
}

func matchesFilter(c *model.Channel, f ChannelFilter) bool {
	if len(f.OwnerIn) > 0 && !lo.Contains(f.OwnerIn, c.Owner) {
		return false
	}
	if f.MinMembers >= 0 && len(c.Users) < f.MinMembers {
		return false
	}
	if f.MaxMembers >= 0 && len(c.Users) > f.MaxMembers {
		return false
	}
	if len(f.MemberAny) > 0 {
		found := lo.SomeBy(c.Users, func(m model.Member) bool {
			return lo.Contains(f.MemberAny, m.User)
		})
		if !found {
			return false
		}
	}
	return true
}

// ListVisible returns the caller's channels ordered by last message date
// descending: public channels for everyone, plus internal channels and
// owned or joined channels for authenticated users. Archived channels are
// excluded.
func (r *ChannelRepo) ListVisible(userID string, top, skip int) ([]*model.Channel, error) {
	rows, err := r.db.Query(`SELECT ` + channelCols + ` FROM chat_channels WHERE archived = 0 ORDER BY last_msg IS NULL, last_msg DESC, created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visible []*model.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		if channelVisible(c, userID) {
			visible = append(visible, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return paginate(visible, top, skip), nil
}

func channelVisible(c *model.Channel, userID string) bool {
	if c.Type == model.ChannelPublic {
		return true
	}
	if userID == "" {
		return false
	}
	if c.Type == model.ChannelInternal || c.Owner == userID {
		return true
	}
	return c.FindMember(userID) != nil
}

// paginate never returns a nil slice: list endpoints serialize their
// page as a JSON array even when empty.
func paginate[T any](list []T, top, skip int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(list) {
		return []T{}
	}
	list = list[skip:]
	if top >= 0 && top < len(list) {
		list = list[:top]
	}
	return list
}

// Delete removes the channel and cascades to its messages. The cascade is
// best-effort: a failure is logged, never returned.
func (r *ChannelRepo) Delete(id string) error {
	if _, err := r.db.Exec(`DELETE FROM chat_channels WHERE id = ?`, id); err != nil {
		return err
	}
	if _, err := r.db.Exec(`DELETE FROM chat_messages WHERE channel_id = ?`, id); err != nil {
		r.log.Error("cascade delete of channel messages failed", "channel", id, "err", err)
	}
	return nil
}

func boolToDB(b bool) int {
	if b {
		return 1
	}
	return 0
}
