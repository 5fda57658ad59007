package routes

import (
	"github.com/gin-gonic/gin"

	"chatfm/auth"
	"chatfm/chat"
	"chatfm/config"
	"chatfm/realtime"
)

// SetupAPIRoutes mounts the chat module under its configured prefix.
func SetupAPIRoutes(r *gin.Engine, cfg *config.Config, api *chat.API, hub *realtime.Hub) {
	root := r.Group(cfg.RoutePrefix, auth.Middleware(cfg))

	channels := root.Group("/channels")
	{
		channels.GET("", api.HandleListChannels)
		channels.POST("", auth.RequireUser(), api.HandleCreateChannel)
		channels.GET("/preview", api.HandlePreviewChannels)

		one := channels.Group("/:channelId", api.ChannelByID())
		{
			one.GET("", api.HandleGetChannel)
			one.POST("", api.RequireAdmin(), api.HandleEditChannel)
			one.DELETE("", api.RequireOwner(), api.HandleRemoveChannel)
			one.POST("/archive", api.RequireAdmin(), api.HandleArchiveChannel)
			one.POST("/unarchive", api.RequireAdmin(), api.HandleUnarchiveChannel)
			one.POST("/invite", api.RequireAdmin(), api.HandleInvite)
			one.POST("/leave", api.HandleLeave)
			one.POST("/mute", api.HandleMute)
			one.GET("/messages", api.HandleListMessages)
			one.POST("/messages", api.HandleSendToChannel)
		}
	}

	messages := root.Group("/messages")
	{
		messages.POST("", api.HandleSendToUsers)

		one := messages.Group("/:messageId", api.MessageByID())
		{
			one.POST("", api.RequireAuthor(), api.HandleEditMessage)
			one.DELETE("", api.RequireAuthor(), api.HandleRemoveMessage)
		}
	}

	root.GET("/ws", realtime.HandleSocket(hub))
}
