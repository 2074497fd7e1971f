package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/voxwire/voxwire/internal/core/domain"
	"github.com/voxwire/voxwire/internal/core/port"
)

// Presence broadcasts the online-users snapshot on every connect and
// disconnect. Informational only; the registry, not this list, decides who
// is busy.
type Presence struct {
	gateway port.RealTimeGateway
}

func NewPresence(gateway port.RealTimeGateway) *Presence {
	return &Presence{gateway: gateway}
}

func (p *Presence) Connected(ctx context.Context, userID domain.UserID) {
	log.Debug().Str("user_id", userID.String()).Msg("User online")
	p.broadcast(ctx)
}

func (p *Presence) Disconnected(ctx context.Context, userID domain.UserID) {
	log.Debug().Str("user_id", userID.String()).Msg("User offline")
	p.broadcast(ctx)
}

func (p *Presence) broadcast(ctx context.Context) {
	if err := p.gateway.Broadcast(ctx, domain.Envelope{
		Type:  domain.EventOnlineUsers,
		Users: p.gateway.OnlineUsers(),
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to broadcast online users")
	}
}
