package live

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/vetclinic-platform/internal/http/httpjson"
	"github.com/wolfman30/vetclinic-platform/internal/http/middleware"
	"github.com/wolfman30/vetclinic-platform/internal/tenancy"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Handler upgrades authenticated requests to the live appointment feed.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewHandler builds the feed endpoint. allowedOrigins limits browser
// origins; empty or "*" accepts any origin.
func NewHandler(hub *Hub, allowedOrigins []string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker admits requests without an Origin (non-browser clients)
// and otherwise applies the CORS allowlist. An empty list admits all.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	match := middleware.OriginMatcher(allowed)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || match(origin)
	}
}

// ServeHTTP handles GET /ws/appointments.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Warn("live: upgrade failed", "tenant_id", tenantID, "error", err)
		return
	}
	client := newClient(tenantID)
	h.hub.Register(client)
	h.logger.Info("live: client connected", "tenant_id", tenantID, "client_id", client.ID)

	go h.writePump(client, conn)
	go h.readPump(client, conn)
}

// readPump discards inbound frames; it exists to process control frames
// and notice disconnects.
func (h *Handler) readPump(c *Client, conn *websocket.Conn) {
	defer func() {
		h.hub.Unregister(c)
		_ = conn.Close()
		h.logger.Info("live: client disconnected", "tenant_id", c.TenantID, "client_id", c.ID)
	}()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
