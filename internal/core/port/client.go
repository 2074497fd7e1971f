package port

import "github.com/voxwire/voxwire/internal/core/domain"

// Client is one connected device session.
type Client interface {
	UserID() domain.UserID
	DeviceID() domain.DeviceID
	DisplayName() string
	Avatar() string
	Send(env domain.Envelope) error
	Close() error
}
