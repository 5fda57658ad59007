package chat

import (
	"github.com/samber/lo"

	"chatfm/model"
	"chatfm/realtime"
)

// FanoutRecipients computes the user ids a direct-channel message is
// pushed to: every non-muted member plus the owner, deduplicated. Muted
// members can still pull the message from the list endpoint.
func FanoutRecipients(c *model.Channel) []string {
	ids := lo.FilterMap(c.Users, func(m model.Member, _ int) (string, bool) {
		return m.User, !m.Mute
	})
	if c.Owner != "" {
		ids = append(ids, c.Owner)
	}
	return lo.Uniq(ids)
}

// notify pushes the populated message to the channel's realtime topics.
// Public and internal channels broadcast once to the topic keyed by their
// type; direct channels publish once per recipient. Publish-only, no
// acknowledgement.
func (a *API) notify(channel *model.Channel, payload any) {
	event := realtime.Event{Type: realtime.EventMessage, Data: payload}

	switch channel.Type {
	case model.ChannelPublic, model.ChannelInternal:
		a.hub.Publish(channel.Type, event)
	default:
		for _, userID := range FanoutRecipients(channel) {
			a.hub.Publish(realtime.UserTopic(userID), event)
		}
	}
}
