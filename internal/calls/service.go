package calls

import (
	"errors"

	"go.uber.org/zap"
)

// Notifier delivers outbound events. Implemented by the realtime hub; tests
// substitute a recording fake, which keeps the whole state machine runnable
// without a live transport.
type Notifier interface {
	// SendToClient delivers one event to one endpoint, fire-and-forget.
	SendToClient(clientID, event string, payload any)
	// SendToCall delivers one event to every endpoint in the call's room.
	SendToCall(sessionKey, event string, payload any)
	// JoinCall and LeaveCall maintain room membership, keyed by the
	// session's room key, never its code.
	JoinCall(sessionKey, clientID string)
	LeaveCall(sessionKey, clientID string)
}

// AdmissionPolicy selects how a second endpoint gets into a call.
type AdmissionPolicy string

const (
	// PolicyOpen admits any endpoint presenting a valid, non-full code.
	PolicyOpen AdmissionPolicy = "open"
	// PolicyWaitingRoom parks the joiner until the creator approves.
	PolicyWaitingRoom AdmissionPolicy = "waiting_room"
)

// CreatorLeavePolicy selects what happens to an active call when the
// creator departs.
type CreatorLeavePolicy string

const (
	// CreatorLeaveDelete tears the whole session down.
	CreatorLeaveDelete CreatorLeavePolicy = "delete"
	// CreatorLeaveTransfer hands creator rights to the remaining member.
	CreatorLeaveTransfer CreatorLeavePolicy = "transfer"
)

// Options configure the session state machine.
type Options struct {
	Admission    AdmissionPolicy
	CreatorLeave CreatorLeavePolicy
}

func (o Options) withDefaults() Options {
	if o.Admission != PolicyOpen {
		o.Admission = PolicyWaitingRoom
	}
	if o.CreatorLeave != CreatorLeaveDelete {
		o.CreatorLeave = CreatorLeaveTransfer
	}
	return o
}

// Service is the call-session state machine: creation, admission, approval,
// departure and staleness eviction all funnel through here. It owns no
// transport; everything outbound goes through the Notifier.
type Service struct {
	store    *Store
	notifier Notifier
	opts     Options
	logger   *zap.Logger
}

// NewService wires the state machine to its table and notifier.
func NewService(store *Store, notifier Notifier, opts Options, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// Create allocates a new call with clientID as creator and sole member.
// An endpoint belongs to at most one call, so any prior membership is
// dissolved first, through the same path a voluntary leave takes.
func (s *Service) Create(clientID string) {
	s.Disconnect(clientID)

	code, key, err := s.store.Create(clientID)
	if err != nil {
		s.logger.Error("create call", zap.Error(err))
		s.notifier.SendToClient(clientID, EventCallError, ErrorPayload{Op: "create-call", Reason: reasonTag(err)})
		return
	}

	s.notifier.JoinCall(key, clientID)
	s.notifier.SendToClient(clientID, EventCallCreated, CallCreatedPayload{
		Code:             code,
		SessionKey:       key,
		ParticipantCount: 1,
	})
	s.logger.Info("call created", zap.String("code", code), zap.String("creator", clientID))
}

// Join admits clientID into the call for code, or parks it in the waiting
// room, depending on the admission policy. Every failure is answered with
// its own event so clients can tell "full" from "busy" from "not found".
//
// Occupancy is reserved up front through the store's index, which is what
// holds the one-session-per-endpoint invariant: two racing joins to
// different codes, or a join while parked in another call's waiting room,
// lose the reservation and are refused. The reservation is returned on any
// admission failure.
func (s *Service) Join(clientID, code string) {
	other, ok := s.store.Bind(clientID, code)
	if !ok {
		s.notifier.SendToClient(clientID, EventAlreadyInCall, CodePayload{Code: other})
		return
	}

	var (
		key      string
		creator  string
		count    int
		admitted bool
		pending  bool
	)
	err := s.store.With(code, func(sess *Session) error {
		sess.touch(s.store.Now())
		if sess.isMember(clientID) {
			return ErrAlreadyMember
		}
		if len(sess.Members) >= maxMembers {
			return ErrFull
		}

		if s.opts.Admission == PolicyOpen {
			sess.Members = append(sess.Members, clientID)
			if sess.PendingJoiner == clientID {
				sess.PendingJoiner = ""
			}
			key, count = sess.Key, len(sess.Members)
			admitted = true
			return nil
		}

		// Waiting room: a repeated request from the parked joiner is an
		// idempotent retry, anyone else while a join is pending gets busy.
		if sess.PendingJoiner == clientID {
			pending = true
			creator = sess.CreatorID
			return nil
		}
		if sess.PendingJoiner != "" {
			return ErrBusy
		}
		sess.PendingJoiner = clientID
		pending = true
		creator = sess.CreatorID
		return nil
	})

	switch {
	case errors.Is(err, ErrNotFound):
		s.store.Release(clientID, code)
		s.notifier.SendToClient(clientID, EventCallNotFound, CodePayload{Code: code})
	case errors.Is(err, ErrAlreadyMember):
		s.notifier.SendToClient(clientID, EventAlreadyInCall, CodePayload{Code: code})
	case errors.Is(err, ErrFull):
		s.store.Release(clientID, code)
		s.notifier.SendToClient(clientID, EventCallFull, CodePayload{Code: code})
	case errors.Is(err, ErrBusy):
		s.store.Release(clientID, code)
		s.notifier.SendToClient(clientID, EventCallBusy, CodePayload{Code: code})
	case admitted:
		s.notifier.JoinCall(key, clientID)
		s.notifier.SendToClient(clientID, EventCallJoined, CallJoinedPayload{
			Code:             code,
			SessionKey:       key,
			ParticipantCount: count,
		})
		s.notifier.SendToCall(key, EventParticipantJoined, ParticipantPayload{
			Code:             code,
			ParticipantID:    clientID,
			ParticipantCount: count,
		})
		s.logger.Info("call joined", zap.String("code", code), zap.String("participant", clientID))
	case pending:
		s.notifier.SendToClient(clientID, EventWaitingForApproval, CodePayload{Code: code})
		s.notifier.SendToClient(creator, EventParticipantWaiting, ParticipantPayload{
			Code:          code,
			ParticipantID: clientID,
		})
		s.logger.Info("join pending approval", zap.String("code", code), zap.String("participant", clientID))
	}
}

// Accept promotes the pending joiner to member. Creator-only; the target
// must be the currently recorded pending joiner.
func (s *Service) Accept(clientID, code, participantID string) {
	var (
		key   string
		count int
	)
	err := s.store.With(code, func(sess *Session) error {
		sess.touch(s.store.Now())
		if sess.CreatorID != clientID {
			return ErrForbidden
		}
		if sess.PendingJoiner == "" || sess.PendingJoiner != participantID {
			return ErrInvalidTarget
		}
		// The occupancy index must agree before the promotion; a pending
		// joiner that slipped into another session is never admitted twice.
		if bound, ok := s.store.BoundTo(participantID); !ok || bound != sess.Code {
			return ErrInvalidTarget
		}
		if len(sess.Members) >= maxMembers {
			return ErrFull
		}
		sess.PendingJoiner = ""
		sess.Members = append(sess.Members, participantID)
		key, count = sess.Key, len(sess.Members)
		return nil
	})
	if err != nil {
		s.notifier.SendToClient(clientID, EventCallError, ErrorPayload{Op: "accept-participant", Code: code, Reason: reasonTag(err)})
		return
	}

	s.notifier.JoinCall(key, participantID)
	s.notifier.SendToCall(key, EventParticipantAccepted, ParticipantPayload{
		Code:             code,
		ParticipantID:    participantID,
		ParticipantCount: count,
	})
	s.logger.Info("participant accepted", zap.String("code", code), zap.String("participant", participantID))
}

// Reject clears the pending joiner and tells it so. Creator-only, same
// target rule as Accept.
func (s *Service) Reject(clientID, code, participantID string) {
	err := s.store.With(code, func(sess *Session) error {
		sess.touch(s.store.Now())
		if sess.CreatorID != clientID {
			return ErrForbidden
		}
		if sess.PendingJoiner == "" || sess.PendingJoiner != participantID {
			return ErrInvalidTarget
		}
		sess.PendingJoiner = ""
		return nil
	})
	if err != nil {
		s.notifier.SendToClient(clientID, EventCallError, ErrorPayload{Op: "reject-participant", Code: code, Reason: reasonTag(err)})
		return
	}

	s.notifier.SendToClient(participantID, EventCallRejected, CodePayload{Code: code})
	s.notifier.SendToClient(clientID, EventParticipantRejected, ParticipantPayload{
		Code:          code,
		ParticipantID: participantID,
	})
	s.logger.Info("participant rejected", zap.String("code", code), zap.String("participant", participantID))
}

// Leave removes clientID from the call. Voluntary leave, transport
// disconnect and janitor eviction all converge here, so the notifications
// downstream are identical regardless of the trigger. Leaving a call the
// endpoint is not part of is a no-op.
func (s *Service) Leave(clientID, code string) {
	var (
		key        string
		count      int
		empty      bool
		left       bool
		wasPending bool
		creator    string
		dissolved  []string
	)
	err := s.store.With(code, func(sess *Session) error {
		if sess.PendingJoiner == clientID {
			sess.PendingJoiner = ""
			wasPending = true
			creator = sess.CreatorID
			sess.touch(s.store.Now())
			return nil
		}
		if !sess.removeMember(clientID) {
			return nil
		}
		left = true
		key = sess.Key
		count = len(sess.Members)

		if count == 0 {
			sess.closed = true
			empty = true
			return nil
		}
		if clientID == sess.CreatorID && s.opts.CreatorLeave == CreatorLeaveDelete {
			dissolved = append(dissolved, sess.Members...)
			sess.Members = nil
			sess.PendingJoiner = ""
			sess.closed = true
			empty = true
			return nil
		}
		if clientID == sess.CreatorID {
			sess.CreatorID = sess.Members[0]
		}
		sess.touch(s.store.Now())
		return nil
	})
	if err != nil {
		s.store.Release(clientID, code)
		return // unknown code: leave is idempotent
	}
	if empty {
		s.store.Delete(code)
	}
	s.store.Release(clientID, code)

	switch {
	case wasPending:
		s.notifier.SendToClient(creator, EventParticipantLeft, ParticipantPayload{
			Code:             code,
			ParticipantID:    clientID,
			ParticipantCount: 1,
		})
	case left:
		s.notifier.LeaveCall(key, clientID)
		for _, m := range dissolved {
			s.notifier.SendToClient(m, EventParticipantLeft, ParticipantPayload{
				Code:          code,
				ParticipantID: clientID,
			})
			s.notifier.LeaveCall(key, m)
		}
		if !empty {
			s.notifier.SendToCall(key, EventParticipantLeft, ParticipantPayload{
				Code:             code,
				ParticipantID:    clientID,
				ParticipantCount: count,
			})
		}
		s.logger.Info("participant left", zap.String("code", code), zap.String("participant", clientID), zap.Bool("deleted", empty))
	}
}

// Heartbeat refreshes the call's activity clock with no other side effect.
func (s *Service) Heartbeat(clientID, code string) {
	_ = s.store.With(code, func(sess *Session) error {
		if sess.isMember(clientID) || sess.PendingJoiner == clientID {
			sess.touch(s.store.Now())
		}
		return nil
	})
}

// Disconnect is the non-cooperative departure path: the endpoint is removed
// from the session it occupies, as member or pending joiner.
func (s *Service) Disconnect(clientID string) {
	code, ok := s.store.BoundTo(clientID)
	if !ok {
		return
	}
	s.Leave(clientID, code)
}

// Evict dissolves a stale session on behalf of the janitor, routing every
// occupant through the regular removal path. The pending joiner goes first,
// before the last member's departure deletes the session under it, and is
// told its join died with the call. Returns ErrNotFound when the session
// vanished between sweep and eviction.
func (s *Service) Evict(code string) error {
	var ids []string
	var pending string
	err := s.store.With(code, func(sess *Session) error {
		if pending = sess.PendingJoiner; pending != "" {
			ids = append(ids, pending)
		}
		ids = append(ids, sess.Members...)
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range ids {
		s.Leave(id, code)
	}
	if pending != "" {
		s.notifier.SendToClient(pending, EventCallRejected, CodePayload{Code: code})
	}
	// Backstop for a leaked zero-member session.
	s.store.Delete(code)
	return nil
}
