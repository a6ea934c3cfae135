package realtime

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/buconnects/server/utils"
)

// Handler upgrades GET /ws and attaches the connection to hub. The optional
// userId query parameter tags the connection for participant delivery.
func Handler(hub *Hub, db *gorm.DB, allowedOrigins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return func(ctx *gin.Context) {
		conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			utils.Sugar.Debugw("websocket upgrade failed", "err", err)
			return
		}
		client := newClient(hub, db, conn, strings.TrimSpace(ctx.Query("userId")))
		if !hub.join(client) {
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			conn.Close()
			return
		}
		go client.writePump()
		go client.readPump()
	}
}

// originChecker allows requests without an Origin header, any origin when the
// list holds "*", and otherwise only exact matches.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}
