package call

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Medium is the call medium.
type Medium string

const (
	MediumVoice Medium = "voice"
	MediumVideo Medium = "video"
)

// Role is this client's role in a call.
type Role string

const (
	RoleCaller   Role = "caller"
	RoleReceiver Role = "receiver"
)

// Phase is the lifecycle phase of a call session.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseOutgoingPending Phase = "outgoing_pending"
	PhaseOutgoingRinging Phase = "outgoing_ringing"
	PhaseIncomingRinging Phase = "incoming_ringing"
	PhaseActive          Phase = "active"
	PhaseEnded           Phase = "ended"
)

// ProvisionalCallID marks an outgoing session whose server-assigned id is not
// known yet, so the UI can render the outgoing indicator before the creation
// round trip completes.
const ProvisionalCallID = "pending"

// Session is one call attempt from this client's perspective. The machine
// owns it exclusively; consumers only ever read copies.
type Session struct {
	ID             string
	Role           Role
	PeerID         string
	PeerName       string
	Medium         Medium
	ConversationID string
	Phase          Phase
	StartedAt      time.Time
}

// Snapshot is the observable call state. At most one field is non-nil at a
// time: the machine tracks a single session and the populated slot follows
// its phase.
type Snapshot struct {
	Incoming *Session
	Outgoing *Session
	Active   *Session
}

// EndInfo reports a finished call. Duration is zero unless the call reached
// the active phase; it is computed once at end, not polled.
type EndInfo struct {
	CallID   string
	Duration time.Duration
}

var (
	// ErrCallInProgress is returned when initiating while a call is tracked.
	ErrCallInProgress = errors.New("call: another call is in progress")

	// ErrCallCancelled is returned when the local session was torn down while
	// the creation round trip was in flight.
	ErrCallCancelled = errors.New("call: cancelled before setup completed")

	// ErrNoIncomingCall is returned when answering with nothing ringing.
	ErrNoIncomingCall = errors.New("call: no incoming call to answer")
)

// PeerEngine is the WebRTC collaborator driven by the machine. Engines send
// their local SDP and ICE through the shared connection themselves.
// ReceiveOfferSDP must tolerate duplicate delivery of the same offer.
type PeerEngine interface {
	InitiateCall(ctx context.Context, callID, peerID string, medium Medium) error
	AnswerCall(ctx context.Context, callID string) error
	RejectCall(callID string)
	EndCall()
	ReceiveOfferSDP(callID string, sdp SessionDescription) error
	ReceiveAnswerSDP(callID string, sdp SessionDescription) error
	ReceiveICECandidate(callID string, candidate json.RawMessage) error
	IsCallActive() bool
}

// Creator creates the call resource server-side and returns its identifiers.
type Creator interface {
	CreateCall(ctx context.Context, receiverID string, medium Medium, conversationID string) (CreatedCall, error)
}

// CreatedCall is the server's view of a freshly created call.
type CreatedCall struct {
	ID             string
	ConversationID string
}

// Sender delivers outbound signaling frames. Satisfied by *wsconn.Handle.
type Sender interface {
	Send(v any) error
}

// noopEngine lets the machine run without media, e.g. a listen-only consumer.
type noopEngine struct{}

func (noopEngine) InitiateCall(context.Context, string, string, Medium) error { return nil }
func (noopEngine) AnswerCall(context.Context, string) error                   { return nil }
func (noopEngine) RejectCall(string)                                          {}
func (noopEngine) EndCall()                                                   {}
func (noopEngine) ReceiveOfferSDP(string, SessionDescription) error           { return nil }
func (noopEngine) ReceiveAnswerSDP(string, SessionDescription) error          { return nil }
func (noopEngine) ReceiveICECandidate(string, json.RawMessage) error          { return nil }
func (noopEngine) IsCallActive() bool                                         { return false }
