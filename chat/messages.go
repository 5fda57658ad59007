package chat

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"chatfm/apperrors"
	"chatfm/auth"
	"chatfm/model"
)

const ctxMessage = "message"

// MessageByID resolves the :messageId route param.
func (a *API) MessageByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("messageId")
		if _, err := uuid.Parse(id); err != nil {
			c.JSON(400, gin.H{"error": "Invalid message id"})
			c.Abort()
			return
		}

		message, err := a.messages.FindByID(id)
		if err != nil {
			a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
			c.Abort()
			return
		}
		if message == nil {
			c.JSON(404, gin.H{"error": "Message not found"})
			c.Abort()
			return
		}

		c.Set(ctxMessage, message)
		c.Next()
	}
}

func messageFrom(c *gin.Context) *model.Message {
	return c.MustGet(ctxMessage).(*model.Message)
}

// RequireAuthor guards edit/remove to the message's sender.
func (a *API) RequireAuthor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if messageFrom(c).Sender != auth.UserID(c) {
			c.JSON(403, gin.H{"error": "Not the author of this message"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// HandleSendToUsers sends a message addressed to user ids, resolving or
// creating the channel first.
func (a *API) HandleSendToUsers(c *gin.Context) {
	var body struct {
		To   []string `json:"to" binding:"required"`
		Text string   `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	sender := auth.UserID(c)
	channel, err := a.ResolveChannel(sender, body.To)
	if err != nil {
		a.respondError(c, err)
		return
	}

	a.deliver(c, channel, sender, body.Text, model.MessageTypeMessage)
}

// HandleSendToChannel sends a message into an existing channel. The
// info/warning/danger system types are reserved for channel admins.
func (a *API) HandleSendToChannel(c *gin.Context) {
	var body struct {
		Text string `json:"text" binding:"required"`
		Type string `json:"type"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	channel := channelFrom(c)
	sender := auth.UserID(c)

	if body.Type == "" {
		body.Type = model.MessageTypeMessage
	}
	if !model.ValidMessageType(body.Type) {
		c.JSON(400, gin.H{"error": "Invalid message type"})
		return
	}
	if body.Type != model.MessageTypeMessage && !channel.IsAdmin(sender) {
		c.JSON(403, gin.H{"error": "Cannot administrate this channel"})
		return
	}

	a.deliver(c, channel, sender, body.Text, body.Type)
}

// deliver persists the message, pushes it to the channel's realtime
// topics, then touches last-message/last-seen bookkeeping in the
// background before responding.
func (a *API) deliver(c *gin.Context, channel *model.Channel, sender, text, messageType string) {
	text = strings.TrimSpace(text)
	if text == "" {
		c.JSON(400, gin.H{"error": "Empty message"})
		return
	}

	message := &model.Message{
		Channel: channel.ID,
		Sender:  sender,
		Text:    text,
		Type:    messageType,
	}
	if err := a.messages.Insert(message); err != nil {
		a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
		return
	}

	expands := expandParams(c, "sender", "users")
	payload, err := a.populateMessage(message, channel, expands)
	if err != nil {
		a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
		return
	}

	a.notify(channel, payload)

	// Fire-and-forget channel bookkeeping: the response never waits on it
	// and a failure is only logged.
	go func() {
		channel.Touch()
		channel.Saw(sender)
		if err := a.channels.Update(channel); err != nil {
			a.log.Error("channel touch failed", "channel", channel.ID, "err", err)
		}
	}()

	c.JSON(200, payload)
}

// populateMessage expands the requested references on a freshly sent
// message: `sender` into a directory row, `users` into the carrying
// channel with named members.
func (a *API) populateMessage(m *model.Message, channel *model.Channel, expands []string) (any, error) {
	if len(expands) == 0 {
		return m, nil
	}

	body := map[string]any{
		"id":         m.ID,
		"text":       m.Text,
		"type":       m.Type,
		"channel":    any(m.Channel),
		"removed":    m.Removed,
		"versions":   m.Versions,
		"created_at": m.CreatedAt,
		"updated_at": m.UpdatedAt,
	}
	if m.Sender != "" {
		body["sender"] = m.Sender
	}

	ids := make([]string, 0, len(channel.Users)+1)
	if lo.Contains(expands, "sender") && m.Sender != "" {
		ids = append(ids, m.Sender)
	}
	if lo.Contains(expands, "users") {
		ids = append(ids, lo.Map(channel.Users, func(mem model.Member, _ int) string { return mem.User })...)
	}
	names, err := a.users.Names(lo.Uniq(ids))
	if err != nil {
		return nil, err
	}

	if lo.Contains(expands, "sender") {
		if u, ok := names[m.Sender]; ok {
			body["sender"] = u
		}
	}
	if lo.Contains(expands, "users") {
		body["channel"] = channelBody(channel, names, false)
	}
	return body, nil
}

func (a *API) HandleEditMessage(c *gin.Context) {
	var body struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	text := strings.TrimSpace(body.Text)
	if text == "" {
		c.JSON(400, gin.H{"error": "Empty message"})
		return
	}

	message := messageFrom(c)
	message.ApplyEdit(text, a.versionConfig())
	if err := a.messages.Update(message); err != nil {
		a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
		return
	}
	c.JSON(200, message)
}

// HandleRemoveMessage hard-deletes or soft-removes depending on the
// process configuration.
func (a *API) HandleRemoveMessage(c *gin.Context) {
	message := messageFrom(c)

	if a.cfg.RemoveMessages {
		if err := a.messages.Delete(message.ID); err != nil {
			a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
			return
		}
		c.Status(204)
		return
	}

	message.SoftRemove()
	if err := a.messages.Update(message); err != nil {
		a.respondError(c, apperrors.Wrap(apperrors.CodeInternal, "Internal error", err))
		return
	}
	c.JSON(200, message)
}
