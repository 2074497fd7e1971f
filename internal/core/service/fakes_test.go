package service

import (
	"context"
	"sync"

	"github.com/voxwire/voxwire/internal/core/domain"
)

// fakeGateway records every envelope the services emit, keyed by recipient.
type fakeGateway struct {
	mu       sync.Mutex
	offline  map[domain.UserID]bool
	toUser   map[domain.UserID][]domain.Envelope
	toDevice map[domain.DeviceID][]domain.Envelope
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		offline:  make(map[domain.UserID]bool),
		toUser:   make(map[domain.UserID][]domain.Envelope),
		toDevice: make(map[domain.DeviceID][]domain.Envelope),
	}
}

func (g *fakeGateway) SendToUser(ctx context.Context, userID domain.UserID, env domain.Envelope) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.toUser[userID] = append(g.toUser[userID], env)
	return nil
}

func (g *fakeGateway) SendToDevice(ctx context.Context, userID domain.UserID, deviceID domain.DeviceID, env domain.Envelope) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.toDevice[deviceID] = append(g.toDevice[deviceID], env)
	return nil
}

func (g *fakeGateway) SendToOtherDevices(ctx context.Context, userID domain.UserID, except domain.DeviceID, env domain.Envelope) error {
	// Device fan-out is the hub's concern; record it against the user so
	// tests can assert a dismissal went out.
	g.mu.Lock()
	defer g.mu.Unlock()
	g.toUser[userID] = append(g.toUser[userID], env)
	return nil
}

func (g *fakeGateway) Broadcast(ctx context.Context, env domain.Envelope) error {
	return nil
}

func (g *fakeGateway) OnlineUsers() []domain.UserID {
	return nil
}

func (g *fakeGateway) IsOnline(userID domain.UserID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.offline[userID]
}

func (g *fakeGateway) setOffline(userID domain.UserID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.offline[userID] = true
}

// userGot returns the envelopes of the given type delivered to any device of
// the user, including SendToOtherDevices dismissals.
func (g *fakeGateway) userGot(userID domain.UserID, t domain.EventType) []domain.Envelope {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []domain.Envelope
	for _, env := range g.toUser[userID] {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

func (g *fakeGateway) deviceGot(deviceID domain.DeviceID, t domain.EventType) []domain.Envelope {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []domain.Envelope
	for _, env := range g.toDevice[deviceID] {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

// fakeClient is a device session carrying identity only.
type fakeClient struct {
	user   domain.UserID
	device domain.DeviceID
	name   string
}

func newFakeClient(user domain.UserID, name string) *fakeClient {
	return &fakeClient{user: user, device: domain.NewDeviceID(), name: name}
}

func (c *fakeClient) UserID() domain.UserID     { return c.user }
func (c *fakeClient) DeviceID() domain.DeviceID { return c.device }
func (c *fakeClient) DisplayName() string       { return c.name }
func (c *fakeClient) Avatar() string            { return "" }
func (c *fakeClient) Send(domain.Envelope) error {
	return nil
}
func (c *fakeClient) Close() error { return nil }
