package call

import "encoding/json"

// Gateway event types for call signaling. Inbound and outbound frames are
// flat JSON objects with a "type" discriminator.
const (
	EventTypeCallIncoming     = "call.incoming"
	EventTypeCallOffer        = "call.offer"
	EventTypeCallAnswer       = "call.answer"
	EventTypeCallAccepted     = "call.accepted"
	EventTypeCallEnded        = "call.ended"
	EventTypeCallEnd          = "call.end"
	EventTypeCallReject       = "call.reject"
	EventTypeCallICECandidate = "call.ice_candidate"
)

// SessionDescription is an SDP payload exchanged during call setup.
type SessionDescription struct {
	Type string `json:"type"` // "offer" or "answer"
	SDP  string `json:"sdp"`
}

// ============================================================================
// Gateway -> Client Payloads
// ============================================================================

// IncomingPayload announces a call to the receiver.
type IncomingPayload struct {
	CallID         string `json:"call_id"`
	CallerID       string `json:"caller_id"`
	CallerName     string `json:"caller_name,omitempty"`
	CallType       string `json:"call_type"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// OfferPayload carries the caller's SDP offer. It may arrive before, after,
// or instead of call.incoming; neither ordering is guaranteed.
type OfferPayload struct {
	CallID         string              `json:"call_id"`
	CallerID       string              `json:"caller_id"`
	CallerName     string              `json:"caller_name,omitempty"`
	CallType       string              `json:"call_type,omitempty"`
	ConversationID string              `json:"conversation_id,omitempty"`
	Offer          *SessionDescription `json:"offer,omitempty"`
}

// AnswerPayload carries the receiver's SDP answer. ReceiverID identifies the
// client that generated the answer, so a client seeing its own answer echoed
// back over the shared connection can ignore it.
type AnswerPayload struct {
	CallID     string              `json:"call_id"`
	ReceiverID string              `json:"receiver_id"`
	Answer     *SessionDescription `json:"answer,omitempty"`
}

// AcceptedPayload signals the receiver accepted the call.
type AcceptedPayload struct {
	CallID     string `json:"call_id"`
	ReceiverID string `json:"receiver_id,omitempty"`
}

// EndedPayload signals the call is over. Treated as authoritative even when
// the call id does not match the locally tracked one.
type EndedPayload struct {
	CallID  string `json:"call_id"`
	EndedBy string `json:"ended_by,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ICECandidatePayload relays a trickled ICE candidate.
type ICECandidatePayload struct {
	CallID    string          `json:"call_id"`
	FromID    string          `json:"from_id,omitempty"`
	Candidate json.RawMessage `json:"candidate"`
}

// ============================================================================
// Client -> Gateway Frames
// ============================================================================

// OfferFrame is sent by the caller's peer engine with its local offer.
type OfferFrame struct {
	Type       string             `json:"type"` // EventTypeCallOffer
	CallID     string             `json:"call_id"`
	CallerID   string             `json:"caller_id"`
	ReceiverID string             `json:"receiver_id"`
	CallType   string             `json:"call_type"`
	Offer      SessionDescription `json:"offer"`
}

// AnswerFrame is sent by the receiver's peer engine with its local answer.
type AnswerFrame struct {
	Type       string             `json:"type"` // EventTypeCallAnswer
	CallID     string             `json:"call_id"`
	ReceiverID string             `json:"receiver_id"`
	Answer     SessionDescription `json:"answer"`
}

// ICECandidateFrame relays a local ICE candidate to the peer.
type ICECandidateFrame struct {
	Type      string          `json:"type"` // EventTypeCallICECandidate
	CallID    string          `json:"call_id"`
	FromID    string          `json:"from_id"`
	Candidate json.RawMessage `json:"candidate"`
}

// EndFrame asks the gateway to end the call.
type EndFrame struct {
	Type   string `json:"type"` // EventTypeCallEnd
	CallID string `json:"call_id"`
}

// RejectFrame declines an incoming call.
type RejectFrame struct {
	Type   string `json:"type"` // EventTypeCallReject
	CallID string `json:"call_id"`
}
