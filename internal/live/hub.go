// Package live streams appointment changes to connected dashboards over
// WebSockets, partitioned by tenant.
package live

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/wolfman30/vetclinic-platform/internal/appointments"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

const sendBuffer = 64

// Message is the frame pushed to clients.
type Message struct {
	Type        appointments.EventKind    `json:"type"`
	Appointment *appointments.Appointment `json:"appointment"`
}

// Client is one connected socket.
type Client struct {
	ID       string
	TenantID string
	Send     chan []byte
}

func newClient(tenantID string) *Client {
	return &Client{ID: uuid.NewString(), TenantID: tenantID, Send: make(chan []byte, sendBuffer)}
}

// Hub tracks clients per tenant and fans out appointment events.
type Hub struct {
	mu      sync.RWMutex
	tenants map[string]map[*Client]struct{}
	logger  *logging.Logger
}

func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{tenants: make(map[string]map[*Client]struct{}), logger: logger}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.tenants[c.TenantID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.tenants[c.TenantID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes the client and closes its Send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.tenants[c.TenantID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.tenants, c.TenantID)
	}
	close(c.Send)
}

// Broadcast sends msg to every client of the tenant. Slow clients whose
// buffer is full miss the frame.
func (h *Hub) Broadcast(tenantID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("live: marshal message", "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.tenants[tenantID] {
		select {
		case c.Send <- data:
		default:
			h.logger.Warn("live: client buffer full, dropping frame", "tenant_id", tenantID, "client_id", c.ID)
		}
	}
}

// AppointmentChanged makes the hub an appointments.Listener.
func (h *Hub) AppointmentChanged(_ context.Context, evt appointments.Event) {
	appt := evt.Appointment
	h.Broadcast(evt.TenantID, Message{Type: evt.Kind, Appointment: &appt})
}

// ClientCount returns the number of connected clients for a tenant.
func (h *Hub) ClientCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tenants[tenantID])
}
