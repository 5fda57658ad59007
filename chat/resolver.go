package chat

import (
	"github.com/samber/lo"

	"chatfm/apperrors"
	"chatfm/db"
	"chatfm/model"
)

// ResolveChannel finds or creates the channel for a direct send from
// sender (empty = anonymous guest) to the given recipients.
//
// Recipients are normalized first: blanks, duplicates and the sender's
// own id are dropped. One remaining recipient with a known sender reuses
// an existing p2p channel between the two when one exists; several
// recipients reuse a private channel owned by the sender whose membership
// has the same size and overlaps the request. An anonymous guest always
// gets a fresh private channel owned by the single recipient, without
// being added as a member.
func (a *API) ResolveChannel(sender string, recipients []string) (*model.Channel, error) {
	to := lo.Uniq(lo.Filter(recipients, func(u string, _ int) bool {
		return u != "" && u != sender
	}))

	if len(to) == 0 {
		return nil, apperrors.InvalidArg("Empty recipients")
	}
	if sender == "" && len(to) > 1 {
		return nil, apperrors.InvalidArg("A guest cannot message multiple recipients")
	}

	if sender == "" {
		channel := &model.Channel{
			Owner: to[0],
			Type:  model.ChannelPrivate,
			Users: []model.Member{},
		}
		if err := a.channels.Insert(channel); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err)
		}
		return channel, nil
	}

	var (
		channel *model.Channel
		err     error
	)
	if len(to) == 1 {
		pair := []string{sender, to[0]}
		channel, err = a.channels.FindOne(db.ChannelFilter{
			Type:       model.ChannelP2P,
			OwnerIn:    pair,
			MemberAny:  pair,
			MinMembers: 1,
			MaxMembers: 2,
		})
	} else {
		// Size plus at-least-one-overlap, not exact-set equality. Loose on
		// purpose; see the matching note in DESIGN.md.
		channel, err = a.channels.FindOne(db.ChannelFilter{
			Type:       model.ChannelPrivate,
			OwnerIn:    []string{sender},
			MemberAny:  to,
			MinMembers: len(to),
			MaxMembers: len(to),
		})
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err)
	}
	if channel != nil {
		return channel, nil
	}

	channelType := model.ChannelPrivate
	if len(to) == 1 {
		channelType = model.ChannelP2P
	}
	channel = &model.Channel{
		Type:  channelType,
		Owner: sender,
		Users: lo.Map(to, func(u string, _ int) model.Member {
			return model.Member{User: u}
		}),
	}
	if err := a.channels.Insert(channel); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err)
	}
	return channel, nil
}
