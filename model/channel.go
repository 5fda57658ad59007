package model

import (
	"time"
)

const (
	ChannelPrivate  = "private"
	ChannelInternal = "internal"
	ChannelPublic   = "public"
	ChannelP2P      = "p2p"
)

// Member is a channel-embedded membership record. It is owned by its
// channel and never referenced on its own.
type Member struct {
	User     string     `json:"user"`
	IsAdmin  bool       `json:"isAdmin"`
	Mute     bool       `json:"mute"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

type Channel struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	Owner         string     `json:"owner"`
	Type          string     `json:"type"`
	Archived      bool       `json:"archived"`
	Users         []Member   `json:"users"`
	LastMessageAt *time.Time `json:"last_msg,omitempty"`
	Version       int64      `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func ValidChannelType(t string) bool {
	switch t {
	case ChannelPrivate, ChannelInternal, ChannelPublic, ChannelP2P:
		return true
	}
	return false
}

// memberIndex maps user id to position in Users, keeping the first
// occurrence when duplicates slipped in.
func (c *Channel) memberIndex() map[string]int {
	idx := make(map[string]int, len(c.Users))
	for i, m := range c.Users {
		if _, ok := idx[m.User]; !ok {
			idx[m.User] = i
		}
	}
	return idx
}

// FindMember returns a pointer into Users for the given user, or nil.
func (c *Channel) FindMember(userID string) *Member {
	if userID == "" {
		return nil
	}
	if i, ok := c.memberIndex()[userID]; ok {
		return &c.Users[i]
	}
	return nil
}

// EnsureMember locates the membership record for userID. The owner is an
// implicit admin member: when absent from Users a record is synthesized and
// appended. Returns nil for anonymous callers and non-members.
func (c *Channel) EnsureMember(userID string) *Member {
	if userID == "" {
		return nil
	}
	if m := c.FindMember(userID); m != nil {
		return m
	}
	if userID != c.Owner {
		return nil
	}
	c.Users = append(c.Users, Member{User: userID, IsAdmin: true})
	return &c.Users[len(c.Users)-1]
}

// Touch updates the last message timestamp.
func (c *Channel) Touch() {
	now := time.Now().UTC()
	c.LastMessageAt = &now
}

// Saw records that userID has seen the channel now. Reports whether a
// membership record was found or synthesized.
func (c *Channel) Saw(userID string) bool {
	m := c.EnsureMember(userID)
	if m == nil {
		return false
	}
	now := time.Now().UTC()
	m.LastSeen = &now
	return true
}

// MuteFor mutes the channel for userID. Reports whether a membership
// record was found or synthesized.
func (c *Channel) MuteFor(userID string) bool {
	m := c.EnsureMember(userID)
	if m == nil {
		return false
	}
	m.Mute = true
	return true
}

// InviteEntry is one row of an invite request body.
type InviteEntry struct {
	User    string `json:"user" binding:"required"`
	IsAdmin bool   `json:"isAdmin"`
}

// Invite upserts membership records: existing members get their admin flag
// updated, new users are appended.
func (c *Channel) Invite(entries []InviteEntry) {
	for _, e := range entries {
		if e.User == "" {
			continue
		}
		if m := c.FindMember(e.User); m != nil {
			m.IsAdmin = e.IsAdmin
			continue
		}
		c.Users = append(c.Users, Member{User: e.User, IsAdmin: e.IsAdmin})
	}
}

// Leave removes userID's membership record. The owner and anonymous
// callers cannot leave.
func (c *Channel) Leave(userID string) bool {
	if userID == "" || userID == c.Owner {
		return false
	}
	kept := c.Users[:0]
	for _, m := range c.Users {
		if m.User != userID {
			kept = append(kept, m)
		}
	}
	c.Users = kept
	return true
}

// DedupUsers drops duplicate membership records, keeping the first
// occurrence of each user. Applied before every persist.
func (c *Channel) DedupUsers() {
	seen := make(map[string]bool, len(c.Users))
	kept := c.Users[:0]
	for _, m := range c.Users {
		if seen[m.User] {
			continue
		}
		seen[m.User] = true
		kept = append(kept, m)
	}
	c.Users = kept
}

// CanAccess tells whether user (empty string = anonymous) may see the
// channel. Public channels are open to anyone, internal channels to any
// authenticated user, direct channels to the owner and listed members.
func (c *Channel) CanAccess(userID string) bool {
	if userID == "" {
		return c.Type == ChannelPublic
	}
	if c.Type == ChannelPublic || c.Type == ChannelInternal {
		return true
	}
	if userID == c.Owner {
		return true
	}
	return c.FindMember(userID) != nil
}

// IsAdmin tells whether user may administrate the channel: the owner
// always can, members only with the admin flag.
func (c *Channel) IsAdmin(userID string) bool {
	if userID == "" {
		return false
	}
	if userID == c.Owner {
		return true
	}
	m := c.FindMember(userID)
	return m != nil && m.IsAdmin
}

func (c *Channel) IsOwner(userID string) bool {
	return userID != "" && userID == c.Owner
}
