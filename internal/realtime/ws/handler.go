package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"homeservices-platform/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Cross-origin browsers are expected; auth happens in-band.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests to websocket sessions on the realtime core.
type Handler struct {
	svc *realtime.Service
	log *slog.Logger
}

func NewHandler(svc *realtime.Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register mounts the websocket endpoint.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/ws", h.handle)
}

func (h *Handler) handle(c *gin.Context) {
	wsc, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("ws upgrade failed", "err", err, "remote", c.ClientIP())
		return
	}

	conn := newConn(wsc, h.log)
	sess := h.svc.HandleConnect(conn)

	go conn.writePump()

	// A token supplied at upgrade time authenticates immediately, so the
	// client does not need a separate authenticate frame.
	if token := upgradeToken(c); token != "" {
		payload, _ := json.Marshal(realtime.AuthenticatePayload{Token: token})
		sess.HandleEvent(c.Request.Context(), realtime.EventAuthenticate, payload)
	}

	h.readLoop(c, wsc, sess)
}

func (h *Handler) readLoop(c *gin.Context, wsc *websocket.Conn, sess *realtime.Session) {
	defer sess.Close()

	wsc.SetReadLimit(maxFrameSize)
	_ = wsc.SetReadDeadline(time.Now().Add(pongWait))
	wsc.SetPongHandler(func(string) error {
		return wsc.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := wsc.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("ws read failed", "err", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil || f.Event == "" {
			// Frame-level garbage: run it through the event pipeline's
			// validation error path so the client hears about it.
			sess.HandleEvent(c.Request.Context(), "", nil)
			continue
		}
		sess.HandleEvent(c.Request.Context(), f.Event, f.Data)

		if f.Event == realtime.EventDisconnect {
			return
		}
	}
}

// upgradeToken extracts an optional access token from the upgrade request:
// Authorization bearer header or a token query parameter (browser websocket
// clients cannot set headers).
func upgradeToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}
