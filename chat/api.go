package chat

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"chatfm/apperrors"
	"chatfm/config"
	"chatfm/db"
	"chatfm/model"
	"chatfm/realtime"
)

// API bundles the chat handlers with their dependencies. Everything the
// handlers touch is injected so tests can assemble an API around an
// in-memory store.
type API struct {
	cfg      *config.Config
	channels *db.ChannelRepo
	messages *db.MessageRepo
	users    *db.UserRepo
	hub      *realtime.Hub
	log      *slog.Logger
}

func New(cfg *config.Config, channels *db.ChannelRepo, messages *db.MessageRepo, users *db.UserRepo, hub *realtime.Hub, log *slog.Logger) *API {
	return &API{
		cfg:      cfg,
		channels: channels,
		messages: messages,
		users:    users,
		hub:      hub,
		log:      log,
	}
}

func (a *API) versionConfig() model.VersionConfig {
	return model.VersionConfig{Enabled: a.cfg.Versioning, Max: a.cfg.MessageVersions}
}

// respondError maps an application error onto its HTTP status. Store
// errors are logged and answered with a generic body.
func (a *API) respondError(c *gin.Context, err error) {
	status := apperrors.Status(err)
	if status == 500 {
		a.log.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": apperrors.UserMessage(err)})
}

// pageParams reads top/skip pagination from the query string.
func pageParams(c *gin.Context, defaultTop int) (top, skip int) {
	top = defaultTop
	if v, err := strconv.Atoi(c.Query("top")); err == nil && v >= 0 {
		top = v
	}
	if v, err := strconv.Atoi(c.Query("skip")); err == nil && v > 0 {
		skip = v
	}
	return top, skip
}

// expandParams reads the comma-separated expand list, deduplicated and
// filtered to the allowed set.
func expandParams(c *gin.Context, allowed ...string) []string {
	parts := strings.Split(c.Query("expand"), ",")
	return lo.Uniq(lo.Filter(parts, func(p string, _ int) bool {
		return p != "" && lo.Contains(allowed, p)
	}))
}

// envelope is the list response body shape.
func envelope(value any) gin.H {
	return gin.H{"value": value}
}
