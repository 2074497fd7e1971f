package port

import (
	"context"

	"github.com/voxwire/voxwire/internal/core/domain"
)

// RealTimeGateway delivers envelopes to connected clients. A user may hold
// several concurrent device sessions; SendToUser fans out to all of them.
// Delivery to a disconnected user is not an error: the disconnect path
// reconciles call state, so sends are best-effort.
type RealTimeGateway interface {
	SendToUser(ctx context.Context, userID domain.UserID, env domain.Envelope) error
	SendToDevice(ctx context.Context, userID domain.UserID, deviceID domain.DeviceID, env domain.Envelope) error
	// SendToOtherDevices delivers to every device of userID except the one given.
	SendToOtherDevices(ctx context.Context, userID domain.UserID, except domain.DeviceID, env domain.Envelope) error
	Broadcast(ctx context.Context, env domain.Envelope) error
	OnlineUsers() []domain.UserID
	IsOnline(userID domain.UserID) bool
}
