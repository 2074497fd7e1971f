package ws

import "github.com/voxwire/voxwire/internal/core/port"

// Client is the device session the Hub tracks; satisfied by the WebSocket
// adapter's connection wrapper.
type Client = port.Client
