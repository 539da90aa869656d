package handlers

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/taskflow-dev/taskflow/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type wsFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// wsChannel is one websocket connection registered for a user. gorilla
// connections allow a single concurrent writer, so every write takes mu.
type wsChannel struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	return &wsChannel{id: uuid.NewString(), conn: conn}
}

func (c *wsChannel) ID() string {
	return c.id
}

func (c *wsChannel) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(wsFrame{Event: event, Data: payload})
}

func (c *wsChannel) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Non-browser clients send no Origin.
	return origin == "" || slices.Contains(h.allowedOrigins, origin)
}

// WebSocket upgrades an authenticated request and registers the connection
// as the user's notification channel until it closes.
func (h *Handler) WebSocket(c *gin.Context) {
	user, err := utils.GetCurrentUser(c)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger().WarnContext(c.Request.Context(), "websocket upgrade failed", "user_id", user.ID, "error", err.Error())
		return
	}

	ch := newWSChannel(conn)
	log := logger().With("user_id", user.ID, "channel_id", ch.id)

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Warn("failed to set initial read deadline", "error", err.Error())
		conn.Close()
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	h.registry.Register(user.ID, ch)
	log.Info("websocket connected", "online", h.registry.Count())

	done := make(chan struct{})

	defer func() {
		close(done)
		h.registry.UnregisterByChannel(ch.id)
		conn.Close()
		log.Info("websocket closed", "online", h.registry.Count())
	}()

	if err := ch.Send("connected", gin.H{"userId": user.ID}); err != nil {
		log.Warn("failed to send welcome frame", "error", err.Error())
		return
	}

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := ch.ping(); err != nil {
					log.Debug("websocket ping failed", "error", err.Error())
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("websocket read error", "error", err.Error())
			}
			break
		}
		// Clients have nothing to say; reads only drive pong handling and close detection.
	}
}
