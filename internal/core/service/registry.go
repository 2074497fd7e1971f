package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxwire/voxwire/internal/core/domain"
)

// pairKey normalizes an unordered participant pair.
type pairKey struct {
	a, b domain.UserID
}

func newPairKey(x, y domain.UserID) pairKey {
	if x < y {
		return pairKey{x, y}
	}
	return pairKey{y, x}
}

// Session is the authoritative state of one call. All mutations go through
// its mutex; the registry lock is always taken before a session lock.
type Session struct {
	ID        domain.CallID
	Kind      domain.CallKind
	Initiator domain.UserID
	// Callee is the user being rung on the 1:1 request path. Immutable;
	// they become a participant only on accept.
	Callee          domain.UserID
	CreatedAt       time.Time
	RingingDeadline time.Time

	mu           sync.Mutex
	state        domain.CallState
	participants map[domain.UserID]*domain.Participant
	links        map[pairKey]domain.PeerLink
	ringTimer    *time.Timer
	answeredBy   domain.DeviceID
}

// State returns the current lifecycle state.
func (s *Session) State() domain.CallState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Participants returns a snapshot of the current participant set.
func (s *Session) Participants() []domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participantsLocked()
}

func (s *Session) participantsLocked() []domain.Participant {
	out := make([]domain.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, *p)
	}
	return out
}

// HasParticipant reports whether userID currently belongs to the call.
func (s *Session) HasParticipant(userID domain.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.participants[userID]
	return ok
}

// Links returns a snapshot of the current PeerLinks.
func (s *Session) Links() []domain.PeerLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PeerLink, 0, len(s.links))
	for _, l := range s.links {
		out = append(out, l)
	}
	return out
}

// Accept claims the ringing session for one device of the callee. The first
// device to arrive wins; a losing device gets won=false so the caller can
// dismiss it. Only the rung callee may accept.
func (s *Session) Accept(userID domain.UserID, deviceID domain.DeviceID) (won bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.StateEnded {
		return false, domain.ErrCallEnded
	}
	if userID != s.Callee {
		return false, domain.ErrUnauthorized
	}
	if s.state != domain.StateRinging {
		// Already answered; a same-user accept from another device loses.
		return false, nil
	}

	s.state = domain.StateConnecting
	s.answeredBy = deviceID
	s.stopRingTimerLocked()
	return true, nil
}

// Reject ends a ringing session on behalf of the callee. Returns false if
// the session is no longer ringing (accepted, timed out, or ended), which
// makes concurrent accept/reject races resolve to whichever came first.
func (s *Session) Reject(userID domain.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateRinging || userID != s.Callee {
		return false
	}
	s.state = domain.StateEnded
	s.stopRingTimerLocked()
	return true
}

// ExpireRing fires on ring-timer expiry. It is a no-op unless the session is
// still ringing, so a late timer after accept or reject does nothing.
func (s *Session) ExpireRing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateRinging {
		return false
	}
	s.state = domain.StateEnded
	return true
}

// MarkNegotiated moves the session to active once the first answer has been
// relayed, meaning one PeerLink completed its offer/answer round.
func (s *Session) MarkNegotiated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateConnecting {
		return false
	}
	s.state = domain.StateActive
	return true
}

// SetMediaFlag records an audio/video toggle for one participant.
func (s *Session) SetMediaFlag(userID domain.UserID, kind string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[userID]
	if !ok {
		return domain.ErrUnauthorized
	}
	switch kind {
	case "audio":
		p.AudioEnabled = enabled
	case "video":
		p.VideoEnabled = enabled
	default:
		return fmt.Errorf("unknown media kind %q", kind)
	}
	return nil
}

func (s *Session) setRingTimer(t *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ringTimer = t
}

func (s *Session) stopRingTimerLocked() {
	if s.ringTimer != nil {
		s.ringTimer.Stop()
		s.ringTimer = nil
	}
}

// Registry is the authoritative callId -> session map plus the per-user
// index enforcing the one-active-call-per-user invariant. The ringing callee
// is reserved in the index from call-request on, so a user being rung is
// busy to everyone else.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.CallID]*Session
	byUser   map[domain.UserID]domain.CallID
	maxPeers int
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		sessions: make(map[domain.CallID]*Session),
		byUser:   make(map[domain.UserID]domain.CallID),
		maxPeers: cfg.MaxPeers,
	}
}

// CreateSession starts a ringing session between the initiator and callee.
// Fails with ErrAlreadyInCall if either user is attached to a live call.
func (r *Registry) CreateSession(initiator domain.Participant, callee domain.UserID, kind domain.CallKind, ringTimeout time.Duration) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if other, ok := r.byUser[initiator.UserID]; ok {
		return nil, fmt.Errorf("initiator busy in call %s: %w", other, domain.ErrAlreadyInCall)
	}
	if other, ok := r.byUser[callee]; ok {
		return nil, fmt.Errorf("callee busy in call %s: %w", other, domain.ErrAlreadyInCall)
	}

	now := time.Now()
	sess := &Session{
		ID:              domain.NewCallID(),
		Kind:            kind,
		Initiator:       initiator.UserID,
		Callee:          callee,
		CreatedAt:       now,
		RingingDeadline: now.Add(ringTimeout),
		state:           domain.StateRinging,
		participants:    map[domain.UserID]*domain.Participant{initiator.UserID: &initiator},
		links:           make(map[pairKey]domain.PeerLink),
	}
	r.sessions[sess.ID] = sess
	r.byUser[initiator.UserID] = sess.ID
	r.byUser[callee] = sess.ID
	return sess, nil
}

// Lookup returns the session for callID.
func (r *Registry) Lookup(callID domain.CallID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[callID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

// CallOf returns the live call a user is attached to, if any.
func (r *Registry) CallOf(userID domain.UserID) (domain.CallID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUser[userID]
	return id, ok
}

// SessionCount returns the number of live sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// AddParticipant inserts userID into the call and records one PeerLink per
// existing member, each with the existing member as offerer. It returns the
// participants that were already present, in no particular order.
func (r *Registry) AddParticipant(callID domain.CallID, p domain.Participant) ([]domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[callID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if other, busy := r.byUser[p.UserID]; busy && other != callID {
		return nil, fmt.Errorf("user busy in call %s: %w", other, domain.ErrAlreadyInCall)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state == domain.StateEnded {
		return nil, domain.ErrCallEnded
	}
	if _, dup := sess.participants[p.UserID]; dup {
		return nil, fmt.Errorf("user %s: %w", p.UserID, domain.ErrAlreadyInCall)
	}
	if r.maxPeers > 0 && len(sess.participants) >= r.maxPeers {
		return nil, domain.ErrRoomFull
	}

	existing := sess.participantsLocked()
	for _, link := range meshLinksForJoin(existing, p.UserID) {
		sess.links[newPairKey(link.Offerer, link.Answerer)] = link
	}
	sess.participants[p.UserID] = &p
	r.byUser[p.UserID] = callID
	return existing, nil
}

// RemoveResult describes the outcome of RemoveParticipant.
type RemoveResult struct {
	Removed   bool
	Remaining []domain.Participant
	Ended     bool
}

// RemoveParticipant detaches userID from the call and tears down every
// PeerLink touching them. Idempotent: removing an absent user is a no-op.
// The session ends when fewer than two participants remain; nobody holds a
// call open alone.
func (r *Registry) RemoveParticipant(callID domain.CallID, userID domain.UserID) (RemoveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[callID]
	if !ok {
		return RemoveResult{}, domain.ErrNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, present := sess.participants[userID]; !present {
		return RemoveResult{Remaining: sess.participantsLocked()}, nil
	}

	delete(sess.participants, userID)
	if r.byUser[userID] == callID {
		delete(r.byUser, userID)
	}
	for key := range sess.links {
		if key.a == userID || key.b == userID {
			delete(sess.links, key)
		}
	}

	res := RemoveResult{Removed: true, Remaining: sess.participantsLocked()}
	if len(sess.participants) < 2 {
		res.Ended = true
		r.endLocked(sess)
	}
	return res, nil
}

// EndSession force-terminates a call (reject, timeout) and returns the users
// that were attached to it.
func (r *Registry) EndSession(callID domain.CallID) ([]domain.UserID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[callID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	attached := make([]domain.UserID, 0, len(sess.participants))
	for id := range sess.participants {
		attached = append(attached, id)
	}
	r.endLocked(sess)
	return attached, nil
}

// endLocked finalizes a session. Caller holds r.mu and sess.mu.
func (r *Registry) endLocked(sess *Session) {
	sess.state = domain.StateEnded
	sess.stopRingTimerLocked()
	delete(r.sessions, sess.ID)
	for id := range sess.participants {
		if r.byUser[id] == sess.ID {
			delete(r.byUser, id)
		}
	}
	if r.byUser[sess.Callee] == sess.ID {
		delete(r.byUser, sess.Callee)
	}
	log.Debug().Str("call_id", sess.ID.String()).Msg("Session released")
}

// Authorize verifies that both sender and target are current participants of
// a live call. Used by the router before relaying an envelope.
func (r *Registry) Authorize(callID domain.CallID, from, target domain.UserID) (*Session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[callID]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state == domain.StateEnded {
		return nil, domain.ErrCallEnded
	}
	if _, ok := sess.participants[from]; !ok {
		return nil, fmt.Errorf("sender %s: %w", from, domain.ErrUnauthorized)
	}
	if _, ok := sess.participants[target]; !ok {
		return nil, fmt.Errorf("target %s: %w", target, domain.ErrUnauthorized)
	}
	return sess, nil
}
