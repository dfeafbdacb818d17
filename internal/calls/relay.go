package calls

import "encoding/json"

// The relay half of the service: offers, answers and ICE candidates share
// one contract. The payload is an opaque blob; it is forwarded verbatim to
// the other member, tagged with the sender. A missing or not-yet-full
// session is an expected race during call setup, so the message is dropped
// without a word to the sender.

// RelayOffer forwards an SDP offer to the other member of the call.
func (s *Service) RelayOffer(clientID, code string, payload json.RawMessage) {
	s.relay(clientID, code, EventReceiveOffer, payload)
}

// RelayAnswer forwards an SDP answer to the other member of the call.
func (s *Service) RelayAnswer(clientID, code string, payload json.RawMessage) {
	s.relay(clientID, code, EventReceiveAnswer, payload)
}

// RelayICECandidate forwards a network-path candidate to the other member.
func (s *Service) RelayICECandidate(clientID, code string, payload json.RawMessage) {
	s.relay(clientID, code, EventReceiveICECandidate, payload)
}

func (s *Service) relay(clientID, code, event string, payload json.RawMessage) {
	var target string
	err := s.store.With(code, func(sess *Session) error {
		if len(sess.Members) < maxMembers || !sess.isMember(clientID) {
			return nil
		}
		if other, ok := sess.otherMember(clientID); ok {
			target = other
			sess.touch(s.store.Now())
		}
		return nil
	})
	if err != nil || target == "" {
		return
	}
	s.notifier.SendToClient(target, event, SignalPayload{From: clientID, Payload: payload})
}
