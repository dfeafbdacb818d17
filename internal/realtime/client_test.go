package realtime

import (
	"encoding/json"
	"testing"
)

type call struct {
	op, client, code, participant string
	payload                       string
}

// fakeService records which state-machine operation each inbound frame
// dispatched to.
type fakeService struct {
	calls []call
}

func (f *fakeService) Create(clientID string) {
	f.calls = append(f.calls, call{op: "create", client: clientID})
}
func (f *fakeService) Join(clientID, code string) {
	f.calls = append(f.calls, call{op: "join", client: clientID, code: code})
}
func (f *fakeService) Accept(clientID, code, participantID string) {
	f.calls = append(f.calls, call{op: "accept", client: clientID, code: code, participant: participantID})
}
func (f *fakeService) Reject(clientID, code, participantID string) {
	f.calls = append(f.calls, call{op: "reject", client: clientID, code: code, participant: participantID})
}
func (f *fakeService) RelayOffer(clientID, code string, payload json.RawMessage) {
	f.calls = append(f.calls, call{op: "offer", client: clientID, code: code, payload: string(payload)})
}
func (f *fakeService) RelayAnswer(clientID, code string, payload json.RawMessage) {
	f.calls = append(f.calls, call{op: "answer", client: clientID, code: code, payload: string(payload)})
}
func (f *fakeService) RelayICECandidate(clientID, code string, payload json.RawMessage) {
	f.calls = append(f.calls, call{op: "candidate", client: clientID, code: code, payload: string(payload)})
}
func (f *fakeService) Leave(clientID, code string) {
	f.calls = append(f.calls, call{op: "leave", client: clientID, code: code})
}
func (f *fakeService) Heartbeat(clientID, code string) {
	f.calls = append(f.calls, call{op: "heartbeat", client: clientID, code: code})
}
func (f *fakeService) Disconnect(clientID string) {
	f.calls = append(f.calls, call{op: "disconnect", client: clientID})
}

func dispatchOne(t *testing.T, event, data string) *fakeService {
	t.Helper()
	svc := &fakeService{}
	c := &Client{ID: "peer-1"}
	c.dispatch(svc, WSMessage{Event: event, Data: json.RawMessage(data)})
	return svc
}

func TestDispatch_RoutesEveryEvent(t *testing.T) {
	tests := []struct {
		event string
		data  string
		want  call
	}{
		{"create-call", `{}`, call{op: "create", client: "peer-1"}},
		{"join-call", `{"code":"ab12cd"}`, call{op: "join", client: "peer-1", code: "AB12CD"}},
		{"accept-participant", `{"code":"AB12CD","participant_id":"peer-2"}`, call{op: "accept", client: "peer-1", code: "AB12CD", participant: "peer-2"}},
		{"reject-participant", `{"code":"AB12CD","participant_id":"peer-2"}`, call{op: "reject", client: "peer-1", code: "AB12CD", participant: "peer-2"}},
		{"send-offer", `{"code":"AB12CD","payload":{"sdp":"x"}}`, call{op: "offer", client: "peer-1", code: "AB12CD", payload: `{"sdp":"x"}`}},
		{"send-answer", `{"code":"AB12CD","payload":{"sdp":"y"}}`, call{op: "answer", client: "peer-1", code: "AB12CD", payload: `{"sdp":"y"}`}},
		{"send-ice-candidate", `{"code":"AB12CD","payload":{"candidate":"z"}}`, call{op: "candidate", client: "peer-1", code: "AB12CD", payload: `{"candidate":"z"}`}},
		{"leave-call", `{"code":"AB12CD"}`, call{op: "leave", client: "peer-1", code: "AB12CD"}},
		{"heartbeat", `{"code":"AB12CD"}`, call{op: "heartbeat", client: "peer-1", code: "AB12CD"}},
	}
	for _, tc := range tests {
		svc := dispatchOne(t, tc.event, tc.data)
		if len(svc.calls) != 1 {
			t.Fatalf("%s: dispatched %d calls, want 1", tc.event, len(svc.calls))
		}
		if svc.calls[0] != tc.want {
			t.Fatalf("%s: got %+v, want %+v", tc.event, svc.calls[0], tc.want)
		}
	}
}

func TestDispatch_CodeIsNormalized(t *testing.T) {
	svc := dispatchOne(t, "join-call", `{"code":"  ab12cd "}`)
	if svc.calls[0].code != "AB12CD" {
		t.Fatalf("code = %q, want AB12CD", svc.calls[0].code)
	}
}

func TestDispatch_IgnoresUnknownAndMalformed(t *testing.T) {
	for _, tc := range []struct{ event, data string }{
		{"unknown-event", `{}`},
		{"join-call", `not json`},
		{"join-call", `{}`},   // missing code
		{"send-offer", `{}`},  // missing code
		{"heartbeat", `nope`}, // malformed
	} {
		svc := dispatchOne(t, tc.event, tc.data)
		if len(svc.calls) != 0 {
			t.Fatalf("%s %q: dispatched %+v, want nothing", tc.event, tc.data, svc.calls)
		}
	}
}
