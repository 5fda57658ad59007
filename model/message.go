package model

import (
	"strings"
	"time"
)

const (
	MessageTypeMessage = "message"
	MessageTypeInfo    = "info"
	MessageTypeWarning = "warning"
	MessageTypeDanger  = "danger"
)

// MessageVersion is one archived edit, most recent first.
type MessageVersion struct {
	Text string    `json:"text"`
	Date time.Time `json:"date"`
}

type Message struct {
	ID        string           `json:"id"`
	Text      string           `json:"text"`
	Type      string           `json:"type"`
	Sender    string           `json:"sender,omitempty"`
	Channel   string           `json:"channel"`
	Removed   bool             `json:"removed"`
	Versions  []MessageVersion `json:"versions"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeMessage, MessageTypeInfo, MessageTypeWarning, MessageTypeDanger:
		return true
	}
	return false
}

// VersionConfig controls edit history capture on existing messages.
type VersionConfig struct {
	Enabled bool
	// Max bounds the retained history. Negative disables the bound; zero
	// empties the history on the next edit.
	Max int
}

// ApplyEdit replaces the message text. When versioning is enabled and the
// text actually changes, the previous text together with the previous
// update timestamp is pushed to the front of Versions, and the list is
// truncated to the configured bound.
func (m *Message) ApplyEdit(text string, cfg VersionConfig) {
	text = strings.TrimSpace(text)
	if text == m.Text {
		return
	}
	if cfg.Enabled {
		m.Versions = append([]MessageVersion{{Text: m.Text, Date: m.UpdatedAt}}, m.Versions...)
		if cfg.Max >= 0 && cfg.Max <= len(m.Versions) {
			m.Versions = m.Versions[:cfg.Max]
		}
	}
	m.Text = text
}

// SoftRemove clears the text and flags the message removed, keeping the
// row so clients can render a tombstone.
func (m *Message) SoftRemove() {
	m.Text = ""
	m.Removed = true
}
