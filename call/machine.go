// Package call maintains the authoritative call state for this client,
// reconciling locally-initiated actions with asynchronously-arriving
// signaling events from the shared connection.
package call

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/carnage999-max/liberty-realtime/events"
)

// MachineConfig configures a Machine.
type MachineConfig struct {
	// SelfID is the local user's id, used to ignore self-echoed signaling.
	SelfID string

	// Engine is the WebRTC peer collaborator. Nil runs without media.
	Engine PeerEngine

	// Creator creates the call resource server-side.
	Creator Creator

	// Sender delivers outbound signaling frames.
	Sender Sender

	// OnChange is invoked with a fresh snapshot after every state change.
	OnChange func(Snapshot)

	// OnEnded is invoked once per finished call with its elapsed duration.
	OnEnded func(EndInfo)

	Logger *slog.Logger
}

// Machine is the call state machine. It tracks at most one session at a time;
// a second call cannot start until the current one reaches a terminal phase.
type Machine struct {
	selfID  string
	engine  PeerEngine
	creator Creator
	sender  Sender
	logger  *slog.Logger

	onChange func(Snapshot)
	onEnded  func(EndInfo)

	mu      sync.Mutex
	session *Session
}

// NewMachine creates a call state machine.
func NewMachine(cfg MachineConfig) *Machine {
	if cfg.Engine == nil {
		cfg.Engine = noopEngine{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Machine{
		selfID:   cfg.SelfID,
		engine:   cfg.Engine,
		creator:  cfg.Creator,
		sender:   cfg.Sender,
		onChange: cfg.OnChange,
		onEnded:  cfg.OnEnded,
		logger:   cfg.Logger.With("component", "call"),
	}
}

// Snapshot returns the current observable state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// snapshotLocked derives the snapshot. Exactly one slot is populated per
// non-terminal phase, so the mutual-exclusion invariant holds by construction.
func (m *Machine) snapshotLocked() Snapshot {
	if m.session == nil {
		return Snapshot{}
	}
	s := *m.session
	switch s.Phase {
	case PhaseIncomingRinging:
		return Snapshot{Incoming: &s}
	case PhaseOutgoingPending, PhaseOutgoingRinging:
		return Snapshot{Outgoing: &s}
	case PhaseActive:
		return Snapshot{Active: &s}
	}
	return Snapshot{}
}

func (m *Machine) notify(snap Snapshot) {
	if m.onChange != nil {
		m.onChange(snap)
	}
}

// Initiate starts an outgoing call. A provisional session is published
// immediately so the UI can render the outgoing indicator; the id is replaced
// with the server-assigned one once creation resolves. Returns once the call
// exists server-side, not once it is answered.
func (m *Machine) Initiate(ctx context.Context, receiverID string, medium Medium, conversationID string) error {
	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		return ErrCallInProgress
	}
	s := &Session{
		ID:             ProvisionalCallID,
		Role:           RoleCaller,
		PeerID:         receiverID,
		Medium:         medium,
		ConversationID: conversationID,
		Phase:          PhaseOutgoingPending,
	}
	m.session = s
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)

	created, err := m.creator.CreateCall(ctx, receiverID, medium, conversationID)
	if err != nil {
		m.clearIfCurrent(s)
		return fmt.Errorf("create call: %w", err)
	}

	m.mu.Lock()
	if m.session != s {
		// Torn down while the round trip was in flight (user dismissed the
		// outgoing UI, or a remote end arrived). End the server-side call so
		// it is not left dangling.
		m.mu.Unlock()
		m.send(EndFrame{Type: EventTypeCallEnd, CallID: created.ID})
		return ErrCallCancelled
	}
	s.ID = created.ID
	if s.ConversationID == "" {
		s.ConversationID = created.ConversationID
	}
	if s.Phase == PhaseOutgoingPending {
		// An answer that rode the socket may have activated the call while
		// the creation round trip was in flight; only a still-pending call
		// advances to ringing.
		s.Phase = PhaseOutgoingRinging
	}
	snap = m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)

	m.logger.Info("call created", "call_id", created.ID, "receiver_id", receiverID, "medium", medium)

	if err := m.engine.InitiateCall(ctx, created.ID, receiverID, medium); err != nil {
		// Media acquisition failed; roll back so the UI is not left showing
		// a phantom call.
		m.send(EndFrame{Type: EventTypeCallEnd, CallID: created.ID})
		m.clearIfCurrent(s)
		return fmt.Errorf("peer engine: %w", err)
	}

	m.mu.Lock()
	current := m.session == s
	m.mu.Unlock()
	if !current {
		// A remote end arrived while the engine was acquiring media. The
		// teardown already ran, so the connection the engine just built
		// would leak without an explicit release.
		m.engine.EndCall()
		return ErrCallCancelled
	}
	return nil
}

// Answer accepts the ringing incoming call. A no-op when a call is already
// active (double-answer races from duplicate offer delivery).
func (m *Machine) Answer(ctx context.Context) error {
	m.mu.Lock()
	s := m.session
	if s != nil && s.Phase == PhaseActive {
		m.mu.Unlock()
		return nil
	}
	if s == nil || s.Phase != PhaseIncomingRinging {
		m.mu.Unlock()
		return ErrNoIncomingCall
	}
	m.mu.Unlock()

	if m.engine.IsCallActive() {
		return nil
	}

	if err := m.engine.AnswerCall(ctx, s.ID); err != nil {
		m.clearIfCurrent(s)
		return fmt.Errorf("peer engine: %w", err)
	}

	m.mu.Lock()
	var snap Snapshot
	answered := m.session == s
	if answered {
		s.Phase = PhaseActive
		s.StartedAt = time.Now()
		snap = m.snapshotLocked()
	}
	m.mu.Unlock()
	if !answered {
		// The call was torn down (remote end, typically) while the engine
		// was acquiring media; release the connection it just built or the
		// engine stays active and blocks the next call.
		m.engine.EndCall()
		return ErrCallCancelled
	}
	m.logger.Info("call answered", "call_id", s.ID)
	m.notify(snap)
	return nil
}

// Reject declines the ringing incoming call. Local state clears immediately
// without waiting for acknowledgment.
func (m *Machine) Reject() {
	m.mu.Lock()
	s := m.session
	if s == nil || s.Phase != PhaseIncomingRinging {
		m.mu.Unlock()
		return
	}
	m.session = nil
	m.mu.Unlock()

	m.send(RejectFrame{Type: EventTypeCallReject, CallID: s.ID})
	m.engine.RejectCall(s.ID)
	m.logger.Info("call rejected", "call_id", s.ID)
	m.notify(Snapshot{})
}

// End hangs up the tracked call, whatever phase it is in.
func (m *Machine) End() {
	m.finish(true, "")
}

// finish tears down media and clears all bookkeeping unconditionally. An end
// signal is authoritative even when nothing (or a different call) is tracked:
// stale ids after a reconnection must not leave the UI stuck showing a call.
func (m *Machine) finish(sendEnd bool, reason string) {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.mu.Unlock()

	m.engine.EndCall()

	if s == nil {
		return
	}
	if sendEnd && s.ID != ProvisionalCallID {
		m.send(EndFrame{Type: EventTypeCallEnd, CallID: s.ID})
	}

	var d time.Duration
	if s.Phase == PhaseActive && !s.StartedAt.IsZero() {
		d = time.Since(s.StartedAt)
	}
	m.logger.Info("call ended", "call_id", s.ID, "duration", d, "reason", reason)
	m.notify(Snapshot{})
	if m.onEnded != nil {
		m.onEnded(EndInfo{CallID: s.ID, Duration: d})
	}
}

// clearIfCurrent rolls back the session if it is still the tracked one.
func (m *Machine) clearIfCurrent(s *Session) {
	m.mu.Lock()
	cleared := m.session == s
	if cleared {
		m.session = nil
	}
	m.mu.Unlock()
	if cleared {
		m.notify(Snapshot{})
	}
}

func (m *Machine) send(v any) {
	if m.sender == nil {
		return
	}
	if err := m.sender.Send(v); err != nil {
		m.logger.Warn("signaling send failed", "error", err)
	}
}

// HandleEvent applies one inbound signaling event. Wired as a bus handler
// for the "call." prefix.
func (m *Machine) HandleEvent(evt events.Event) {
	switch evt.Type {
	case EventTypeCallIncoming:
		m.handleIncoming(evt.Raw)
	case EventTypeCallOffer:
		m.handleOffer(evt.Raw)
	case EventTypeCallAnswer:
		m.handleAnswer(evt.Raw)
	case EventTypeCallAccepted:
		m.handleAccepted(evt.Raw)
	case EventTypeCallEnded, EventTypeCallEnd:
		m.finish(false, "remote")
	case EventTypeCallICECandidate:
		m.handleICECandidate(evt.Raw)
	default:
		m.logger.Debug("unhandled call event", "type", evt.Type)
	}
}

func (m *Machine) handleIncoming(raw json.RawMessage) {
	var p IncomingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		m.logger.Warn("bad call.incoming payload", "error", err)
		return
	}
	if p.CallerID == m.selfID {
		return // our own call echoed back over the shared connection
	}

	m.mu.Lock()
	if m.session != nil {
		dup := m.session.ID == p.CallID
		m.mu.Unlock()
		if !dup {
			m.logger.Info("ignoring incoming call while busy", "call_id", p.CallID)
		}
		return
	}
	m.session = &Session{
		ID:             p.CallID,
		Role:           RoleReceiver,
		PeerID:         p.CallerID,
		PeerName:       p.CallerName,
		Medium:         mediumOrVoice(p.CallType),
		ConversationID: p.ConversationID,
		Phase:          PhaseIncomingRinging,
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("incoming call", "call_id", p.CallID, "caller_id", p.CallerID)
	m.notify(snap)
}

// handleOffer covers three cases: first signal of an incoming call (incoming
// and offer are neither mutually exclusive nor ordered), duplicate delivery
// after a reconnect, and renegotiation on the active call. The SDP, when
// present, is forwarded in every case; a session is created at most once.
func (m *Machine) handleOffer(raw json.RawMessage) {
	var p OfferPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		m.logger.Warn("bad call.offer payload", "error", err)
		return
	}
	if p.CallerID == m.selfID {
		return
	}

	m.mu.Lock()
	var snap Snapshot
	created := false
	switch {
	case m.session == nil:
		m.session = &Session{
			ID:             p.CallID,
			Role:           RoleReceiver,
			PeerID:         p.CallerID,
			PeerName:       p.CallerName,
			Medium:         mediumOrVoice(p.CallType),
			ConversationID: p.ConversationID,
			Phase:          PhaseIncomingRinging,
		}
		snap = m.snapshotLocked()
		created = true
	case m.session.ID == p.CallID:
		// duplicate or renegotiation; no phase change
	default:
		m.mu.Unlock()
		m.logger.Info("ignoring offer for unrelated call", "call_id", p.CallID)
		return
	}
	m.mu.Unlock()

	if created {
		m.logger.Info("incoming offer", "call_id", p.CallID, "caller_id", p.CallerID)
		m.notify(snap)
	}
	if p.Offer != nil {
		if err := m.engine.ReceiveOfferSDP(p.CallID, *p.Offer); err != nil {
			m.logger.Warn("peer engine rejected offer", "call_id", p.CallID, "error", err)
		}
	}
}

// handleAnswer applies an answer only when this client is the caller. The
// tie-break is role-based: an answer whose declared receiver is this client
// is our own answer echoing back and must never be self-applied.
func (m *Machine) handleAnswer(raw json.RawMessage) {
	var p AnswerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		m.logger.Warn("bad call.answer payload", "error", err)
		return
	}
	if p.ReceiverID == m.selfID {
		m.logger.Debug("ignoring self-echoed answer", "call_id", p.CallID)
		return
	}

	m.mu.Lock()
	s := m.session
	if s == nil || s.Role != RoleCaller {
		m.mu.Unlock()
		return
	}
	matches := s.ID == p.CallID || s.ID == ProvisionalCallID
	var snap Snapshot
	activated := false
	if matches && (s.Phase == PhaseOutgoingPending || s.Phase == PhaseOutgoingRinging) {
		s.Phase = PhaseActive
		s.StartedAt = time.Now()
		snap = m.snapshotLocked()
		activated = true
	}
	m.mu.Unlock()

	if matches && p.Answer != nil {
		if err := m.engine.ReceiveAnswerSDP(p.CallID, *p.Answer); err != nil {
			m.logger.Warn("peer engine rejected answer", "call_id", p.CallID, "error", err)
		}
	}
	if activated {
		m.logger.Info("call answered by peer", "call_id", p.CallID)
		m.notify(snap)
	}
}

func (m *Machine) handleAccepted(raw json.RawMessage) {
	var p AcceptedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		m.logger.Warn("bad call.accepted payload", "error", err)
		return
	}

	m.mu.Lock()
	s := m.session
	var snap Snapshot
	activated := false
	if s != nil && s.Role == RoleCaller &&
		(s.Phase == PhaseOutgoingPending || s.Phase == PhaseOutgoingRinging) {
		s.Phase = PhaseActive
		s.StartedAt = time.Now()
		snap = m.snapshotLocked()
		activated = true
	}
	m.mu.Unlock()

	if activated {
		m.logger.Info("call accepted", "call_id", p.CallID)
		m.notify(snap)
	}
}

func (m *Machine) handleICECandidate(raw json.RawMessage) {
	var p ICECandidatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		m.logger.Warn("bad call.ice_candidate payload", "error", err)
		return
	}
	if p.FromID == m.selfID {
		return
	}

	m.mu.Lock()
	matches := m.session != nil && m.session.ID == p.CallID
	m.mu.Unlock()
	if !matches {
		return
	}
	if err := m.engine.ReceiveICECandidate(p.CallID, p.Candidate); err != nil {
		m.logger.Warn("peer engine rejected ICE candidate", "call_id", p.CallID, "error", err)
	}
}

func mediumOrVoice(callType string) Medium {
	if callType == string(MediumVideo) {
		return MediumVideo
	}
	return MediumVoice
}
