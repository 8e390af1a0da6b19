package call

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/carnage999-max/liberty-realtime/events"
	"github.com/carnage999-max/liberty-realtime/identity"
	"github.com/carnage999-max/liberty-realtime/wsconn"
)

// OrchestratorConfig wires the orchestrator to the shared connection stack.
type OrchestratorConfig struct {
	// Manager owns the shared connection; the orchestrator acquires one
	// reference for the lifetime of the orchestrator.
	Manager *wsconn.Manager

	// Router's bus delivers the call signaling events.
	Router *events.Router

	// Token is the bearer credential. The local user id for self-echo
	// filtering is derived from it unless SelfID is set.
	Token  string
	SelfID string

	// Engine is the WebRTC collaborator. Nil runs signaling-only.
	Engine PeerEngine

	// Creator creates calls server-side, typically *api.Client.
	Creator Creator

	// OnChange fires with a fresh snapshot after every state change.
	OnChange func(Snapshot)

	// OnEnded fires once per finished call with the elapsed duration.
	OnEnded func(EndInfo)

	Logger *slog.Logger
}

// Orchestrator is the façade the application consumes: initiate, answer,
// reject and end a call, plus the observable state for rendering. It holds
// one reference on the shared connection and releases it on Close.
type Orchestrator struct {
	handle  *wsconn.Handle
	sub     events.Subscription
	machine *Machine
	logger  *slog.Logger
}

// NewOrchestrator acquires the shared connection and starts listening for
// call signaling. Callers must Close it when done.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	selfID := cfg.SelfID
	if selfID == "" {
		claims, err := identity.FromToken(cfg.Token)
		if err != nil {
			return nil, fmt.Errorf("resolve local user: %w", err)
		}
		selfID = claims.UserID
	}

	handle := cfg.Manager.Acquire(cfg.Token)
	machine := NewMachine(MachineConfig{
		SelfID:   selfID,
		Engine:   cfg.Engine,
		Creator:  cfg.Creator,
		Sender:   handle,
		OnChange: cfg.OnChange,
		OnEnded:  cfg.OnEnded,
		Logger:   cfg.Logger,
	})

	sub, err := cfg.Router.Bus().Subscribe("call.", machine.HandleEvent)
	if err != nil {
		handle.Release()
		return nil, fmt.Errorf("subscribe call events: %w", err)
	}

	return &Orchestrator{
		handle:  handle,
		sub:     sub,
		machine: machine,
		logger:  cfg.Logger.With("component", "call"),
	}, nil
}

// Close stops listening and releases the connection reference. Any tracked
// call is ended first.
func (o *Orchestrator) Close() {
	o.machine.End()
	_ = o.sub.Unsubscribe()
	o.handle.Release()
}

// InitiateCall starts an outgoing call to receiverID. It returns once the
// call has been created server-side, not once it is answered.
func (o *Orchestrator) InitiateCall(ctx context.Context, receiverID string, medium Medium, conversationID string) error {
	return o.machine.Initiate(ctx, receiverID, medium, conversationID)
}

// AnswerCall accepts the ringing incoming call.
func (o *Orchestrator) AnswerCall(ctx context.Context) error {
	return o.machine.Answer(ctx)
}

// RejectCall declines the ringing incoming call.
func (o *Orchestrator) RejectCall() {
	o.machine.Reject()
}

// EndCall hangs up the tracked call.
func (o *Orchestrator) EndCall() {
	o.machine.End()
}

// Snapshot returns the observable call state; at most one of its slots is
// populated.
func (o *Orchestrator) Snapshot() Snapshot {
	return o.machine.Snapshot()
}

// IncomingCall returns the ringing incoming session, if any.
func (o *Orchestrator) IncomingCall() *Session { return o.machine.Snapshot().Incoming }

// OutgoingCall returns the pending/ringing outgoing session, if any.
func (o *Orchestrator) OutgoingCall() *Session { return o.machine.Snapshot().Outgoing }

// ActiveCall returns the active session, if any.
func (o *Orchestrator) ActiveCall() *Session { return o.machine.Snapshot().Active }

// Connected reports whether the shared connection is currently open.
// Connectivity loss is background-recovered, never surfaced as an error.
func (o *Orchestrator) Connected() bool {
	return o.handle.Connected()
}
