package ws

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/voxwire/voxwire/internal/core/domain"
)

// Hub implements port.RealTimeGateway over a per-user, per-device client
// index. One user may hold several concurrent device sessions; SendToUser
// fans out to all of them. A client whose send fails is closed and evicted;
// the connection handler's disconnect path reconciles call state.
type Hub struct {
	mu      sync.RWMutex
	clients map[domain.UserID]map[domain.DeviceID]Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[domain.UserID]map[domain.DeviceID]Client),
	}
}

func (h *Hub) Register(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	devices, ok := h.clients[c.UserID()]
	if !ok {
		devices = make(map[domain.DeviceID]Client)
		h.clients[c.UserID()] = devices
	}
	devices[c.DeviceID()] = c
	log.Info().
		Str("user_id", c.UserID().String()).
		Str("device_id", c.DeviceID().String()).
		Int("devices", len(devices)).
		Msg("Client registered")
}

func (h *Hub) Unregister(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	devices, ok := h.clients[c.UserID()]
	if !ok {
		return
	}
	if _, ok := devices[c.DeviceID()]; !ok {
		return
	}
	delete(devices, c.DeviceID())
	if len(devices) == 0 {
		delete(h.clients, c.UserID())
	}
	c.Close()
	log.Info().
		Str("user_id", c.UserID().String()).
		Str("device_id", c.DeviceID().String()).
		Msg("Client unregistered")
}

func (h *Hub) SendToUser(ctx context.Context, userID domain.UserID, env domain.Envelope) error {
	for _, c := range h.devicesOf(userID) {
		h.send(c, env)
	}
	return nil
}

func (h *Hub) SendToDevice(ctx context.Context, userID domain.UserID, deviceID domain.DeviceID, env domain.Envelope) error {
	h.mu.RLock()
	c, ok := h.clients[userID][deviceID]
	h.mu.RUnlock()
	if !ok {
		// Device gone; not an error, the disconnect path reconciles.
		return nil
	}
	h.send(c, env)
	return nil
}

func (h *Hub) SendToOtherDevices(ctx context.Context, userID domain.UserID, except domain.DeviceID, env domain.Envelope) error {
	for _, c := range h.devicesOf(userID) {
		if c.DeviceID() == except {
			continue
		}
		h.send(c, env)
	}
	return nil
}

func (h *Hub) Broadcast(ctx context.Context, env domain.Envelope) error {
	h.mu.RLock()
	all := make([]Client, 0, len(h.clients))
	for _, devices := range h.clients {
		for _, c := range devices {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.send(c, env)
	}
	return nil
}

func (h *Hub) OnlineUsers() []domain.UserID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]domain.UserID, 0, len(h.clients))
	for id := range h.clients {
		users = append(users, id)
	}
	return users
}

func (h *Hub) IsOnline(userID domain.UserID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Stop closes every connected client.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, devices := range h.clients {
		for _, c := range devices {
			c.Close()
		}
	}
	h.clients = make(map[domain.UserID]map[domain.DeviceID]Client)
	log.Info().Msg("Hub stopped, all clients disconnected")
}

func (h *Hub) devicesOf(userID domain.UserID) []Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Client, 0, len(h.clients[userID]))
	for _, c := range h.clients[userID] {
		out = append(out, c)
	}
	return out
}

func (h *Hub) send(c Client, env domain.Envelope) {
	if err := c.Send(env); err != nil {
		log.Error().Err(err).
			Str("user_id", c.UserID().String()).
			Str("device_id", c.DeviceID().String()).
			Msg("Error sending envelope, evicting client")
		h.Unregister(c)
	}
}
