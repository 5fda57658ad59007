package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chatfm/auth"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleSocket upgrades the request and joins the caller's topics:
// everyone gets the public feed, authenticated users also get the
// internal feed and their personal topic. The socket is push-only; the
// read loop exists to detect disconnects.
func HandleSocket(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("websocket upgrade failed", "err", err)
			return
		}
		defer conn.Close()

		topics := []string{TopicPublic}
		if userID := auth.UserID(c); userID != "" {
			topics = append(topics, TopicInternal, UserTopic(userID))
		}
		hub.Subscribe(conn, topics...)
		defer hub.Unsubscribe(conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}
