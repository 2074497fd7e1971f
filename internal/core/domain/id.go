package domain

import (
	"github.com/google/uuid"
)

// UserID is an opaque identity supplied by the external auth layer.
// The relay never mints or interprets one.
type UserID string

func (id UserID) String() string {
	return string(id)
}

// CallID identifies a single CallSession, minted at call-request time.
type CallID string

func NewCallID() CallID {
	return CallID(uuid.New().String())
}

func (id CallID) String() string {
	return string(id)
}

// DeviceID distinguishes concurrent connections of the same user.
type DeviceID string

func NewDeviceID() DeviceID {
	return DeviceID(uuid.New().String())
}

func (id DeviceID) String() string {
	return string(id)
}
