package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/voxwire/voxwire/internal/core/domain"
	"github.com/voxwire/voxwire/internal/core/port"
)

// meshLinksForJoin computes the PeerLinks a join creates: exactly one per
// existing member, never between existing members. The existing member is
// always the offerer and the joiner always answers, so the direction is a
// pure function of join order and two sides can never offer at once.
func meshLinksForJoin(existing []domain.Participant, joiner domain.UserID) []domain.PeerLink {
	links := make([]domain.PeerLink, 0, len(existing))
	for _, p := range existing {
		links = append(links, domain.PeerLink{Offerer: p.UserID, Answerer: joiner})
	}
	return links
}

// RoomCoordinator announces mesh membership changes. The joiner learns the
// full peer list and waits for offers; each existing member learns the new
// peer and initiates one.
type RoomCoordinator struct {
	gateway port.RealTimeGateway
	cfg     Config
}

func NewRoomCoordinator(gateway port.RealTimeGateway, cfg Config) *RoomCoordinator {
	return &RoomCoordinator{
		gateway: gateway,
		cfg:     cfg,
	}
}

// AnnounceJoin tells the joining device who is already in the room and each
// existing member that it should offer to the joiner.
func (c *RoomCoordinator) AnnounceJoin(ctx context.Context, sess *Session, joiner domain.Participant, device domain.DeviceID, existing []domain.Participant) {
	peers := make([]domain.PeerInfo, 0, len(existing))
	for _, p := range existing {
		peers = append(peers, domain.PeerInfo{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Avatar:      p.Avatar,
		})
	}

	if err := c.gateway.SendToDevice(ctx, joiner.UserID, device, domain.Envelope{
		Type:       domain.EventRoomJoined,
		CallID:     sess.ID,
		CallType:   sess.Kind,
		Peers:      peers,
		ICEServers: c.cfg.ICEServers,
	}); err != nil {
		log.Warn().Err(err).Str("call_id", sess.ID.String()).Str("user_id", joiner.UserID.String()).Msg("Failed to deliver room-joined")
	}

	for _, p := range existing {
		if err := c.gateway.SendToUser(ctx, p.UserID, domain.Envelope{
			Type:       domain.EventRoomPeerJoined,
			CallID:     sess.ID,
			PeerID:     joiner.UserID,
			PeerName:   joiner.DisplayName,
			PeerAvatar: joiner.Avatar,
		}); err != nil {
			log.Warn().Err(err).Str("call_id", sess.ID.String()).Str("user_id", p.UserID.String()).Msg("Failed to deliver room-peer-joined")
		}
	}

	log.Info().
		Str("call_id", sess.ID.String()).
		Str("user_id", joiner.UserID.String()).
		Int("peers", len(existing)).
		Msg("Peer joined room")
}

// AnnounceLeave tells the remaining members to tear down their link to the
// leaver. Delivery failures are logged only; disconnect detection reconciles.
func (c *RoomCoordinator) AnnounceLeave(ctx context.Context, callID domain.CallID, leaver domain.UserID, remaining []domain.Participant) {
	for _, p := range remaining {
		if err := c.gateway.SendToUser(ctx, p.UserID, domain.Envelope{
			Type:   domain.EventRoomPeerLeft,
			CallID: callID,
			PeerID: leaver,
		}); err != nil {
			log.Warn().Err(err).Str("call_id", callID.String()).Str("user_id", p.UserID.String()).Msg("Failed to deliver room-peer-left")
		}
	}

	log.Info().
		Str("call_id", callID.String()).
		Str("user_id", leaver.String()).
		Int("remaining", len(remaining)).
		Msg("Peer left room")
}
