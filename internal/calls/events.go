package calls

import "encoding/json"

// Outbound event names. The transport delivers each one wrapped in the
// {event, data} envelope.
const (
	EventCallCreated         = "call-created"
	EventCallJoined          = "call-joined"
	EventCallNotFound        = "call-not-found"
	EventCallFull            = "call-full"
	EventCallBusy            = "call-busy"
	EventAlreadyInCall       = "already-in-call"
	EventWaitingForApproval  = "waiting-for-approval"
	EventParticipantWaiting  = "participant-waiting"
	EventParticipantAccepted = "participant-accepted"
	EventParticipantRejected = "participant-rejected"
	EventCallRejected        = "call-rejected"
	EventParticipantJoined   = "participant-joined"
	EventParticipantLeft     = "participant-left"
	EventReceiveOffer        = "receive-offer"
	EventReceiveAnswer       = "receive-answer"
	EventReceiveICECandidate = "receive-ice-candidate"
	EventCallError           = "call-error"
)

// CallCreatedPayload answers a successful create-call.
type CallCreatedPayload struct {
	Code             string `json:"code"`
	SessionKey       string `json:"session_key"`
	ParticipantCount int    `json:"participant_count"`
}

// CallJoinedPayload answers the joiner after admission.
type CallJoinedPayload struct {
	Code             string `json:"code"`
	SessionKey       string `json:"session_key"`
	ParticipantCount int    `json:"participant_count"`
}

// ParticipantPayload carries membership changes to the other side of a call.
type ParticipantPayload struct {
	Code             string `json:"code"`
	ParticipantID    string `json:"participant_id"`
	ParticipantCount int    `json:"participant_count"`
}

// CodePayload is the minimal reply naming only the call.
type CodePayload struct {
	Code string `json:"code"`
}

// ErrorPayload reports a rejected admission operation with a
// machine-readable reason.
type ErrorPayload struct {
	Op     string `json:"op"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason"`
}

// SignalPayload forwards an opaque offer/answer/candidate blob verbatim,
// tagged with the sender.
type SignalPayload struct {
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}
