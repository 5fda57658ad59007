package chat

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"chatfm/apperrors"
	"chatfm/auth"
	"chatfm/model"
)

const ctxChannel = "channel"

// ChannelByID resolves the :channelId route param. Malformed ids get a
// 400; unknown channels and channels the caller cannot access both get a
// 404, so existence never leaks.
func (a *API) ChannelByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("channelId")
		if _, err := uuid.Parse(id); err != nil {
			c.JSON(400, gin.H{"error": "Invalid channel id"})
			c.Abort()
			return
		}

		channel, err := a.channels.FindByID(id)
		if err != nil {
			a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
			c.Abort()
			return
		}
		if channel == nil || !channel.CanAccess(auth.UserID(c)) {
			c.JSON(404, gin.H{"error": "Channel not found"})
			c.Abort()
			return
		}

		c.Set(ctxChannel, channel)
		c.Next()
	}
}

func channelFrom(c *gin.Context) *model.Channel {
	return c.MustGet(ctxChannel).(*model.Channel)
}

// RequireAdmin guards admin-only channel operations.
func (a *API) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !channelFrom(c).IsAdmin(auth.UserID(c)) {
			c.JSON(403, gin.H{"error": "Cannot administrate this channel"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireOwner guards owner-only channel operations.
func (a *API) RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !channelFrom(c).IsOwner(auth.UserID(c)) {
			c.JSON(403, gin.H{"error": "Unauthorized action on this channel"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *API) HandleListChannels(c *gin.Context) {
	top, skip := pageParams(c, 10)
	expands := expandParams(c, "users.user")

	list, err := a.channels.ListVisible(auth.UserID(c), top, skip)
	if err != nil {
		a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
		return
	}

	if !lo.Contains(expands, "users.user") {
		c.JSON(200, envelope(list))
		return
	}

	memberIDs := lo.Uniq(lo.FlatMap(list, func(ch *model.Channel, _ int) []string {
		return lo.Map(ch.Users, func(m model.Member, _ int) string { return m.User })
	}))
	names, err := a.users.Names(memberIDs)
	if err != nil {
		a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
		return
	}

	expanded := lo.Map(list, func(ch *model.Channel, _ int) map[string]any {
		return channelBody(ch, names, false)
	})
	c.JSON(200, envelope(expanded))
}

func (a *API) HandleCreateChannel(c *gin.Context) {
	var body struct {
		Name  string              `json:"name"`
		Type  string              `json:"type"`
		Users []model.InviteEntry `json:"users"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if body.Type == "" {
		body.Type = model.ChannelPrivate
	}
	if !model.ValidChannelType(body.Type) {
		c.JSON(400, gin.H{"error": "Invalid channel type"})
		return
	}

	channel := &model.Channel{
		Name:  strings.TrimSpace(body.Name),
		Type:  body.Type,
		Owner: auth.UserID(c),
		Users: lo.Map(body.Users, func(e model.InviteEntry, _ int) model.Member {
			return model.Member{User: e.User, IsAdmin: e.IsAdmin}
		}),
	}
	if err := a.channels.Insert(channel); err != nil {
		a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
		return
	}

	c.JSON(201, channel)
}

func (a *API) HandleGetChannel(c *gin.Context) {
	channel := channelFrom(c)
	expands := expandParams(c, "users.user", "owner")

	if len(expands) == 0 {
		c.JSON(200, channel)
		return
	}

	ids := lo.Map(channel.Users, func(m model.Member, _ int) string { return m.User })
	if lo.Contains(expands, "owner") {
		ids = append(ids, channel.Owner)
	}
	names, err := a.users.Names(lo.Uniq(ids))
	if err != nil {
		a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
		return
	}

	body := channelBody(channel, names, lo.Contains(expands, "owner"))
	if !lo.Contains(expands, "users.user") {
		body["users"] = channel.Users
	}
	c.JSON(200, body)
}

func (a *API) HandleEditChannel(c *gin.Context) {
	var body struct {
		Name *string `json:"name"`
		Type *string `json:"type"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	channel := channelFrom(c)
	if body.Name != nil {
		channel.Name = strings.TrimSpace(*body.Name)
	}
	if body.Type != nil {
		if !model.ValidChannelType(*body.Type) {
			c.JSON(400, gin.H{"error": "Invalid channel type"})
			return
		}
		channel.Type = *body.Type
	}

	if err := a.channels.Update(channel); err != nil {
		a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
		return
	}
	c.JSON(200, channel)
}

func (a *API) HandleRemoveChannel(c *gin.Context) {
	if err := a.channels.Delete(channelFrom(c).ID); err != nil {
		a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
		return
	}
	c.Status(204)
}

func (a *API) HandleArchiveChannel(c *gin.Context) {
	a.setArchived(c, true)
}

func (a *API) HandleUnarchiveChannel(c *gin.Context) {
	a.setArchived(c, false)
}

func (a *API) setArchived(c *gin.Context, archived bool) {
	channel := channelFrom(c)
	channel.Archived = archived
	if err := a.channels.Update(channel); err != nil {
		a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
		return
	}
	c.JSON(200, channel)
}

func (a *API) HandleInvite(c *gin.Context) {
	var entries []model.InviteEntry
	if err := c.ShouldBindJSON(&entries); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	channel := channelFrom(c)
	channel.Invite(entries)
	if err := a.channels.Update(channel); err != nil {
		a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
		return
	}
	c.JSON(200, channel)
}

func (a *API) HandleLeave(c *gin.Context) {
	channel := channelFrom(c)
	if !channel.Leave(auth.UserID(c)) {
		c.JSON(400, gin.H{"error": "Cannot leave this channel"})
		return
	}
	if err := a.channels.Update(channel); err != nil {
		a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
		return
	}
	c.Status(204)
}

func (a *API) HandleMute(c *gin.Context) {
	channel := channelFrom(c)
	if channel.MuteFor(auth.UserID(c)) {
		if err := a.channels.Update(channel); err != nil {
			a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
			return
		}
	}
	c.Status(204)
}

func (a *API) HandleListMessages(c *gin.Context) {
	channel := channelFrom(c)
	top, skip := pageParams(c, 10)

	list, err := a.messages.ListByChannel(channel.ID, top, skip)
	if err != nil {
		a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
		return
	}

	// Reading the first page counts as seeing the channel. Best-effort:
	// a failed bookkeeping write never fails the listing.
	if skip == 0 && channel.Saw(auth.UserID(c)) {
		if err := a.channels.Update(channel); err != nil {
			a.log.Error("mark seen failed", "channel", channel.ID, "err", err)
		}
	}

	c.JSON(200, envelope(list))
}

func (a *API) HandlePreviewChannels(c *gin.Context) {
	userID := auth.UserID(c)

	// Previews are expensive, so top is capped at 100. Garbage or negative
	// input keeps the default.
	top := 10
	if v, err := strconv.Atoi(c.Query("top")); err == nil && v >= 0 {
		top = v
		if top > 100 {
			top = 100
		}
	}
	var skip int
	if v, err := strconv.Atoi(c.Query("skip")); err == nil && v > 0 {
		skip = v
	}

	list, err := a.channels.ListVisible(userID, top, skip)
	if err != nil {
		a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
		return
	}

	previews := make([]*Preview, 0, len(list))
	for _, channel := range list {
		preview, err := a.BuildPreview(channel, userID)
		if err != nil {
			a.log.Warn("preview failed", "channel", channel.ID, "err", err)
			preview = degradedPreview(channel)
		}
		previews = append(previews, preview)
	}

	c.JSON(200, envelope(previews))
}

// channelBody renders a channel with member (and optionally owner)
// references expanded into directory rows.
func channelBody(channel *model.Channel, names map[string]model.User, expandOwner bool) map[string]any {
	users := lo.Map(channel.Users, func(m model.Member, _ int) map[string]any {
		member := map[string]any{
			"user":    any(m.User),
			"isAdmin": m.IsAdmin,
			"mute":    m.Mute,
		}
		if m.LastSeen != nil {
			member["last_seen"] = m.LastSeen
		}
		if u, ok := names[m.User]; ok {
			member["user"] = u
		}
		return member
	})

	body := map[string]any{
		"id":         channel.ID,
		"name":       channel.Name,
		"owner":      any(channel.Owner),
		"type":       channel.Type,
		"archived":   channel.Archived,
		"users":      users,
		"version":    channel.Version,
		"created_at": channel.CreatedAt,
		"updated_at": channel.UpdatedAt,
	}
	if channel.LastMessageAt != nil {
		body["last_msg"] = channel.LastMessageAt
	}
	if expandOwner {
		if u, ok := names[channel.Owner]; ok {
			body["owner"] = u
		}
	}
	return body
}
