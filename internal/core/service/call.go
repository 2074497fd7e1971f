package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxwire/voxwire/internal/core/domain"
	"github.com/voxwire/voxwire/internal/core/port"
)

// CallService drives the call lifecycle: ringing, accept/reject, membership
// changes, timers, and the notifications each transition emits. Per-call
// serialization comes from the session lock inside the registry; the service
// itself holds no mutable state.
type CallService struct {
	registry *Registry
	rooms    *RoomCoordinator
	gateway  port.RealTimeGateway
	cfg      Config
}

func NewCallService(registry *Registry, rooms *RoomCoordinator, gateway port.RealTimeGateway, cfg Config) *CallService {
	return &CallService{
		registry: registry,
		rooms:    rooms,
		gateway:  gateway,
		cfg:      cfg,
	}
}

// HandleRequest processes call-request: creates the session, starts the ring
// timer, and notifies both ends. A busy target is answered immediately; the
// callee never sees the attempt.
func (s *CallService) HandleRequest(ctx context.Context, caller port.Client, target domain.UserID, kind domain.CallKind) {
	l := log.With().Str("user_id", caller.UserID().String()).Str("target_id", target.String()).Logger()

	if target == "" || target == caller.UserID() {
		s.sendError(ctx, caller, "", "invalid call target")
		return
	}
	if kind != domain.KindVoice && kind != domain.KindVideo {
		s.sendError(ctx, caller, "", "unknown call type")
		return
	}

	sess, err := s.registry.CreateSession(newParticipant(caller, kind), target, kind, s.cfg.RingTimeout)
	if err != nil {
		if _, inCall := s.registry.CallOf(caller.UserID()); inCall {
			s.sendError(ctx, caller, "", "already in a call")
		} else {
			s.sendError(ctx, caller, "", "busy")
		}
		l.Info().Err(err).Msg("Call request refused")
		return
	}

	sess.setRingTimer(time.AfterFunc(s.cfg.RingTimeout, func() {
		s.handleRingTimeout(sess.ID)
	}))

	if err := s.gateway.SendToDevice(ctx, caller.UserID(), caller.DeviceID(), domain.Envelope{
		Type:   domain.EventCallRinging,
		CallID: sess.ID,
	}); err != nil {
		l.Warn().Err(err).Msg("Failed to deliver call-ringing")
	}

	if err := s.gateway.SendToUser(ctx, target, domain.Envelope{
		Type:       domain.EventCallIncoming,
		CallID:     sess.ID,
		CallType:   kind,
		PeerID:     caller.UserID(),
		PeerName:   caller.DisplayName(),
		PeerAvatar: caller.Avatar(),
		ICEServers: s.cfg.ICEServers,
	}); err != nil {
		l.Warn().Err(err).Msg("Failed to deliver call-incoming")
	}

	l.Info().Str("call_id", sess.ID.String()).Str("call_type", string(kind)).Msg("Call ringing")
}

// HandleAccept processes call-accept. The first device of the callee to
// accept wins; every other device of the same user is dismissed without
// notifying the remote party.
func (s *CallService) HandleAccept(ctx context.Context, client port.Client, callID domain.CallID) {
	l := log.With().Str("call_id", callID.String()).Str("user_id", client.UserID().String()).Logger()

	sess, err := s.registry.Lookup(callID)
	if err != nil {
		s.sendError(ctx, client, callID, "call not found")
		return
	}

	won, err := sess.Accept(client.UserID(), client.DeviceID())
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			l.Warn().Msg("Accept from non-callee dropped")
			return
		}
		s.sendError(ctx, client, callID, "call has ended")
		return
	}
	if !won {
		// Answered elsewhere first.
		_ = s.gateway.SendToDevice(ctx, client.UserID(), client.DeviceID(), domain.Envelope{
			Type:   domain.EventCallDismissed,
			CallID: callID,
		})
		return
	}

	existing, err := s.registry.AddParticipant(callID, newParticipant(client, sess.Kind))
	if err != nil {
		// The session died between Accept and AddParticipant.
		l.Error().Err(err).Msg("Failed to attach accepting callee")
		s.sendError(ctx, client, callID, "call has ended")
		return
	}

	if err := s.gateway.SendToOtherDevices(ctx, client.UserID(), client.DeviceID(), domain.Envelope{
		Type:   domain.EventCallDismissed,
		CallID: callID,
	}); err != nil {
		l.Warn().Err(err).Msg("Failed to dismiss other devices")
	}

	// Everyone present before the callee offers to them; the caller gets
	// call-accepted, anyone who joined during the ring gets the room event.
	for _, p := range existing {
		env := domain.Envelope{
			Type:       domain.EventRoomPeerJoined,
			CallID:     callID,
			PeerID:     client.UserID(),
			PeerName:   client.DisplayName(),
			PeerAvatar: client.Avatar(),
		}
		if p.UserID == sess.Initiator {
			env.Type = domain.EventCallAccepted
			env.ICEServers = s.cfg.ICEServers
		}
		if err := s.gateway.SendToUser(ctx, p.UserID, env); err != nil {
			l.Warn().Err(err).Str("target", p.UserID.String()).Msg("Failed to deliver acceptance")
		}
	}

	l.Info().Str("event", "call-accept").Msg("Call connecting")
}

// HandleReject processes call-reject. On a ringing session the callee ends
// it; on a live session the sender leaves, which is hangup in all but name.
// Reason distinguishes a user rejection from a media-acquisition failure.
func (s *CallService) HandleReject(ctx context.Context, client port.Client, callID domain.CallID, reason string) {
	l := log.With().Str("call_id", callID.String()).Str("user_id", client.UserID().String()).Logger()

	sess, err := s.registry.Lookup(callID)
	if err != nil {
		l.Debug().Msg("Reject for unknown call ignored")
		return
	}
	if reason == "" {
		reason = "rejected"
	}

	if sess.Reject(client.UserID()) {
		if _, err := s.registry.EndSession(callID); err != nil {
			l.Error().Err(err).Msg("Failed to release rejected session")
		}
		_ = s.gateway.SendToUser(ctx, sess.Initiator, domain.Envelope{
			Type:   domain.EventCallRejected,
			CallID: callID,
			Reason: reason,
		})
		if err := s.gateway.SendToOtherDevices(ctx, client.UserID(), client.DeviceID(), domain.Envelope{
			Type:   domain.EventCallDismissed,
			CallID: callID,
		}); err != nil {
			l.Warn().Err(err).Msg("Failed to dismiss other devices")
		}
		l.Info().Str("event", "call-reject").Str("reason", reason).Msg("Call ended")
		return
	}

	// Not a ringing rejection; a participant backing out mid-call leaves.
	res, err := s.registry.RemoveParticipant(callID, client.UserID())
	if err != nil || !res.Removed {
		l.Warn().Msg("Reject from non-participant dropped")
		return
	}
	if res.Ended {
		for _, p := range res.Remaining {
			_ = s.gateway.SendToUser(ctx, p.UserID, domain.Envelope{
				Type:   domain.EventCallRejected,
				CallID: callID,
				Reason: reason,
			})
		}
	} else {
		s.rooms.AnnounceLeave(ctx, callID, client.UserID(), res.Remaining)
	}
	l.Info().Str("event", "call-reject").Str("reason", reason).Msg("Participant rejected mid-call")
}

// HandleHangup processes call-hangup: the sender leaves the call. Idempotent;
// a second hangup for the same user finds nothing to remove.
func (s *CallService) HandleHangup(ctx context.Context, userID domain.UserID, callID domain.CallID) {
	l := log.With().Str("call_id", callID.String()).Str("user_id", userID.String()).Logger()

	sess, err := s.registry.Lookup(callID)
	if err != nil {
		l.Debug().Msg("Hangup for unknown call ignored")
		return
	}

	// A callee hanging up while still ringing is a rejection.
	if sess.Reject(userID) {
		if _, err := s.registry.EndSession(callID); err != nil {
			l.Error().Err(err).Msg("Failed to release rejected session")
		}
		_ = s.gateway.SendToUser(ctx, sess.Initiator, domain.Envelope{
			Type:   domain.EventCallRejected,
			CallID: callID,
			Reason: "rejected",
		})
		_ = s.gateway.SendToOtherDevices(ctx, userID, "", domain.Envelope{
			Type:   domain.EventCallDismissed,
			CallID: callID,
		})
		l.Info().Str("event", "call-hangup").Msg("Ringing call rejected by callee")
		return
	}

	ringing := sess.State() == domain.StateRinging

	res, err := s.registry.RemoveParticipant(callID, userID)
	if err != nil || !res.Removed {
		l.Debug().Msg("Hangup had no effect")
		return
	}

	// The caller abandoning a still-ringing call cancels the callee's ring.
	if ringing && userID == sess.Initiator {
		_ = s.gateway.SendToUser(ctx, sess.Callee, domain.Envelope{
			Type:   domain.EventCallCancelled,
			CallID: callID,
		})
		l.Info().Str("event", "call-hangup").Msg("Ringing call cancelled by caller")
	}

	s.rooms.AnnounceLeave(ctx, callID, userID, res.Remaining)
	l.Info().Str("event", "call-hangup").Bool("ended", res.Ended).Msg("Participant hung up")
}

// HandleJoin processes call-join: group-call entry into an existing session.
func (s *CallService) HandleJoin(ctx context.Context, client port.Client, callID domain.CallID) {
	l := log.With().Str("call_id", callID.String()).Str("user_id", client.UserID().String()).Logger()

	sess, err := s.registry.Lookup(callID)
	if err != nil {
		s.sendError(ctx, client, callID, "call not found")
		return
	}

	existing, err := s.registry.AddParticipant(callID, newParticipant(client, sess.Kind))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyInCall):
			s.sendError(ctx, client, callID, "already in a call")
		case errors.Is(err, domain.ErrRoomFull):
			s.sendError(ctx, client, callID, "call is full")
		case errors.Is(err, domain.ErrCallEnded), errors.Is(err, domain.ErrNotFound):
			s.sendError(ctx, client, callID, "call has ended")
		default:
			s.sendError(ctx, client, callID, "join failed")
		}
		l.Info().Err(err).Msg("Join refused")
		return
	}

	s.rooms.AnnounceJoin(ctx, sess, newParticipant(client, sess.Kind), client.DeviceID(), existing)
}

// HandleDisconnect reconciles call state when a device connection drops. If
// the user still has another device online nothing happens; otherwise they
// leave whatever call they were attached to.
func (s *CallService) HandleDisconnect(ctx context.Context, userID domain.UserID) {
	if s.gateway.IsOnline(userID) {
		return
	}
	callID, ok := s.registry.CallOf(userID)
	if !ok {
		return
	}
	log.Info().Str("call_id", callID.String()).Str("user_id", userID.String()).Msg("Participant disconnected, leaving call")
	s.HandleHangup(ctx, userID, callID)
}

// HandleClientError processes an inbound call-error, the client's report of
// a local failure (media denied, peer connection failed). The reporter is
// removed from the call; everyone else continues.
func (s *CallService) HandleClientError(ctx context.Context, client port.Client, env domain.Envelope) {
	log.Warn().
		Str("call_id", env.CallID.String()).
		Str("user_id", client.UserID().String()).
		Str("message", env.Message).
		Msg("Client reported call error")

	if env.CallID == "" {
		return
	}
	s.HandleHangup(ctx, client.UserID(), env.CallID)
}

// handleRingTimeout fires when a call rings past its deadline. Both sides
// get call-timeout; a session that was accepted or rejected in the meantime
// is left alone.
func (s *CallService) handleRingTimeout(callID domain.CallID) {
	sess, err := s.registry.Lookup(callID)
	if err != nil {
		return
	}
	if !sess.ExpireRing() {
		return
	}
	if _, err := s.registry.EndSession(callID); err != nil {
		log.Error().Err(err).Str("call_id", callID.String()).Msg("Failed to release timed-out session")
	}

	ctx := context.Background()
	env := domain.Envelope{
		Type:   domain.EventCallTimeout,
		CallID: callID,
	}
	_ = s.gateway.SendToUser(ctx, sess.Initiator, env)
	_ = s.gateway.SendToUser(ctx, sess.Callee, env)

	log.Info().Str("call_id", callID.String()).Str("event", "ring-timeout").Msg("Call timed out")
}

func (s *CallService) sendError(ctx context.Context, client port.Client, callID domain.CallID, msg string) {
	if err := s.gateway.SendToDevice(ctx, client.UserID(), client.DeviceID(), domain.Envelope{
		Type:    domain.EventCallError,
		CallID:  callID,
		Message: msg,
	}); err != nil {
		log.Warn().Err(err).Str("user_id", client.UserID().String()).Msg("Failed to deliver call-error")
	}
}

// newParticipant builds the participant record for a connecting client.
// Audio starts enabled; video starts enabled only on video calls.
func newParticipant(c port.Client, kind domain.CallKind) domain.Participant {
	return domain.Participant{
		UserID:       c.UserID(),
		DisplayName:  c.DisplayName(),
		Avatar:       c.Avatar(),
		JoinedAt:     time.Now(),
		AudioEnabled: true,
		VideoEnabled: kind == domain.KindVideo,
	}
}
