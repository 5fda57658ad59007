package chat

import (
	"strings"

	"github.com/samber/lo"

	"chatfm/model"
)

// Preview summarizes a channel from one viewer's perspective. Message
// carries the last conversational message, or the string "Not available"
// on a degraded preview.
type Preview struct {
	ID    string `json:"id"`
	Type  string `json:"type,omitempty"`
	Name  string `json:"name"`
	Read  bool   `json:"read"`
	Muted bool   `json:"muted"`
	Message any  `json:"message"`
}

// BuildPreview computes the viewer's preview of a channel: resolved
// display name, last message, and read/mute state.
func (a *API) BuildPreview(channel *model.Channel, viewer string) (*Preview, error) {
	member := channel.EnsureMember(viewer)

	preview := &Preview{
		ID:   channel.ID,
		Type: channel.Type,
		Name: channel.Name,
	}
	if member != nil {
		preview.Muted = member.Mute
	}

	if preview.Name == "" {
		name, err := a.channelDisplayName(channel, viewer)
		if err != nil {
			return nil, err
		}
		preview.Name = name
	}

	message, err := a.messages.Latest(channel.ID)
	if err != nil {
		return nil, err
	}
	if message != nil {
		senderNames, err := a.users.Names([]string{message.Sender})
		if err != nil {
			return nil, err
		}
		preview.Message = messageBody(message, senderNames)
	}

	if member != nil {
		preview.Read = message == nil ||
			(member.LastSeen != nil && message.CreatedAt.Before(*member.LastSeen))
	}

	return preview, nil
}

// channelDisplayName derives a title for an unnamed channel. Public and
// internal channels are simply named after their type. Direct channels
// take up to three other members' first names joined with " & ", with an
// ellipsis when more named members exist, falling back to "Untitled".
func (a *API) channelDisplayName(channel *model.Channel, viewer string) (string, error) {
	if channel.Type == model.ChannelPublic || channel.Type == model.ChannelInternal {
		return channel.Type, nil
	}

	others := lo.FilterMap(channel.Users, func(m model.Member, _ int) (string, bool) {
		return m.User, m.User != viewer
	})
	names, err := a.users.Names(others)
	if err != nil {
		return "", err
	}

	firstNames := lo.FilterMap(others, func(id string, _ int) (string, bool) {
		u, ok := names[id]
		return u.FirstName, ok && u.FirstName != ""
	})

	if len(firstNames) == 0 {
		return "Untitled", nil
	}

	shown := firstNames
	suffix := ""
	if len(firstNames) > 3 {
		shown = firstNames[:3]
		suffix = "..."
	}
	return strings.Join(shown, " & ") + suffix, nil
}

// degradedPreview is substituted when preview computation fails for one
// channel, so a single bad channel never aborts the whole listing.
func degradedPreview(channel *model.Channel) *Preview {
	return &Preview{
		ID:      channel.ID,
		Name:    channel.Name,
		Message: "Not available",
	}
}

// messageBody shapes a message for preview and push payloads, expanding
// the sender when the directory knows it.
func messageBody(m *model.Message, names map[string]model.User) map[string]any {
	body := map[string]any{
		"id":         m.ID,
		"text":       m.Text,
		"created_at": m.CreatedAt,
	}
	if u, ok := names[m.Sender]; ok {
		body["sender"] = u
	} else if m.Sender != "" {
		body["sender"] = m.Sender
	}
	return body
}
