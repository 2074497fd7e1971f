package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/voxwire/voxwire/internal/core/domain"
	"github.com/voxwire/voxwire/internal/core/port"
)

// Router is the authorization and forwarding layer for negotiation traffic.
// It checks that sender and target are participants of the same live call,
// then forwards the envelope verbatim; SDP and ICE payloads are never
// parsed. Failures are logged and swallowed so nothing about session
// membership leaks back to an unauthorized sender.
type Router struct {
	registry *Registry
	gateway  port.RealTimeGateway
}

func NewRouter(registry *Registry, gateway port.RealTimeGateway) *Router {
	return &Router{
		registry: registry,
		gateway:  gateway,
	}
}

// Relay forwards a webrtc-offer, webrtc-answer, or webrtc-ice envelope to
// the declared target. The From field is overwritten with the authenticated
// sender, so a client cannot spoof another participant.
func (r *Router) Relay(ctx context.Context, from domain.UserID, env domain.Envelope) {
	l := log.With().
		Str("call_id", env.CallID.String()).
		Str("type", string(env.Type)).
		Str("from", from.String()).
		Str("target", env.Target.String()).
		Logger()

	switch env.Type {
	case domain.EventWebRTCOffer, domain.EventWebRTCAnswer, domain.EventWebRTCICE:
	default:
		l.Warn().Msg("Envelope type not relayable, dropped")
		return
	}

	sess, err := r.registry.Authorize(env.CallID, from, env.Target)
	if err != nil {
		// Late envelopes for ended calls land here too; non-fatal.
		l.Debug().Err(err).Msg("Envelope dropped")
		return
	}

	env.From = from
	if err := r.gateway.SendToUser(ctx, env.Target, env); err != nil {
		// Target gone; disconnect detection will reconcile membership.
		l.Debug().Err(err).Msg("Target unreachable, envelope dropped")
		return
	}

	// The first completed offer/answer round makes the call active.
	if env.Type == domain.EventWebRTCAnswer && sess.MarkNegotiated() {
		l.Info().Str("event", "first-answer").Msg("Call active")
	}
}

// ToggleMedia processes call-toggle-media: records the sender's new media
// flag and fans out call-media-toggled to every other participant. The
// track owner stays the offerer for any renegotiation this triggers.
func (r *Router) ToggleMedia(ctx context.Context, from domain.UserID, env domain.Envelope) {
	l := log.With().Str("call_id", env.CallID.String()).Str("from", from.String()).Logger()

	if env.Enabled == nil {
		l.Warn().Msg("Media toggle without enabled flag dropped")
		return
	}

	sess, err := r.registry.Lookup(env.CallID)
	if err != nil {
		l.Debug().Msg("Media toggle for unknown call dropped")
		return
	}
	if err := sess.SetMediaFlag(from, env.MediaKind, *env.Enabled); err != nil {
		l.Warn().Err(err).Msg("Media toggle dropped")
		return
	}

	out := domain.Envelope{
		Type:      domain.EventMediaToggled,
		CallID:    env.CallID,
		PeerID:    from,
		MediaKind: env.MediaKind,
		Enabled:   env.Enabled,
	}
	for _, p := range sess.Participants() {
		if p.UserID == from {
			continue
		}
		if err := r.gateway.SendToUser(ctx, p.UserID, out); err != nil {
			l.Debug().Err(err).Str("target", p.UserID.String()).Msg("Media toggle delivery failed")
		}
	}

	l.Info().Str("kind", env.MediaKind).Bool("enabled", *env.Enabled).Msg("Media toggled")
}
