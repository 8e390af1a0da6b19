// Package peer implements the call.PeerEngine contract on Pion WebRTC. The
// engine owns the peer connection for the current call and emits its local
// SDP and ICE candidates through the shared connection.
package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/carnage999-max/liberty-realtime/call"
)

var (
	ErrNoPendingOffer = errors.New("peer: no offer received for this call yet")
	ErrNoConnection   = errors.New("peer: no active peer connection")
)

// Config configures an Engine.
type Config struct {
	// SelfID identifies this client in outbound signaling frames.
	SelfID string

	// ICEServers are the STUN/TURN servers for the peer connection.
	ICEServers []webrtc.ICEServer

	// Sender delivers signaling frames, typically the shared connection handle.
	Sender call.Sender

	Logger *slog.Logger
}

// ICEServers builds the Pion ICE server list from STUN/TURN settings.
func ICEServers(stunURLs, turnURLs []string, turnUsername, turnPassword string) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, 2)
	if len(stunURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: stunURLs})
	}
	if len(turnURLs) > 0 && turnUsername != "" {
		servers = append(servers, webrtc.ICEServer{
			URLs:       turnURLs,
			Username:   turnUsername,
			Credential: turnPassword,
		})
	}
	return servers
}

// Engine drives one peer connection at a time (the product has no concurrent
// calls). Safe for concurrent use.
type Engine struct {
	selfID string
	config webrtc.Configuration
	sender call.Sender
	logger *slog.Logger

	mu                sync.Mutex
	pc                *webrtc.PeerConnection
	callID            string
	peerID            string
	active            bool
	pendingOffer      *call.SessionDescription
	pendingCandidates []json.RawMessage
	onRemoteTrack     func(*webrtc.TrackRemote, *webrtc.RTPReceiver)
}

// NewEngine creates an idle engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		selfID: cfg.SelfID,
		config: webrtc.Configuration{ICEServers: cfg.ICEServers},
		sender: cfg.Sender,
		logger: cfg.Logger.With("component", "peer"),
	}
}

// OnRemoteTrack registers the callback for inbound media tracks. The
// embedding application attaches playback to it.
func (e *Engine) OnRemoteTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onRemoteTrack = fn
}

// AddLocalTrack attaches a local media track (microphone/camera capture is
// the application's concern) to the current peer connection.
func (e *Engine) AddLocalTrack(track webrtc.TrackLocal) error {
	e.mu.Lock()
	pc := e.pc
	e.mu.Unlock()
	if pc == nil {
		return ErrNoConnection
	}
	_, err := pc.AddTrack(track)
	return err
}

// IsCallActive reports whether a peer connection is up for a call.
func (e *Engine) IsCallActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// InitiateCall creates the peer connection for an outgoing call, generates
// the offer, and sends it to the receiver.
func (e *Engine) InitiateCall(ctx context.Context, callID, peerID string, medium call.Medium) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pc != nil {
		e.closeLocked()
	}

	pc, err := e.newPeerConnectionLocked(callID)
	if err != nil {
		return err
	}

	// The caller declares the media it wants; the receiver's transceivers
	// are derived from this offer.
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio); err != nil {
		e.closeLocked()
		return fmt.Errorf("add audio transceiver: %w", err)
	}
	if medium == call.MediumVideo {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo); err != nil {
			e.closeLocked()
			return fmt.Errorf("add video transceiver: %w", err)
		}
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		e.closeLocked()
		return fmt.Errorf("create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		e.closeLocked()
		return fmt.Errorf("set local description: %w", err)
	}

	e.callID = callID
	e.peerID = peerID
	e.active = true

	e.sendFrame(call.OfferFrame{
		Type:       call.EventTypeCallOffer,
		CallID:     callID,
		CallerID:   e.selfID,
		ReceiverID: peerID,
		CallType:   string(medium),
		Offer:      call.SessionDescription{Type: offer.Type.String(), SDP: offer.SDP},
	})
	return nil
}

// ReceiveOfferSDP takes the caller's offer. Before AnswerCall it is only
// buffered, so duplicate delivery is harmless; on an established connection
// it is applied as a renegotiation and answered immediately.
func (e *Engine) ReceiveOfferSDP(callID string, sdp call.SessionDescription) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pc == nil || e.callID != callID {
		offer := sdp
		e.pendingOffer = &offer
		return nil
	}

	if err := e.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp.SDP,
	}); err != nil {
		return fmt.Errorf("set remote offer: %w", err)
	}
	return e.answerLocked(callID)
}

// AnswerCall builds the peer connection for the ringing call from the
// buffered offer and sends the answer.
func (e *Engine) AnswerCall(ctx context.Context, callID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	offer := e.pendingOffer
	if offer == nil {
		return ErrNoPendingOffer
	}

	if e.pc != nil {
		e.closeLocked()
	}
	pc, err := e.newPeerConnectionLocked(callID)
	if err != nil {
		return err
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer.SDP,
	}); err != nil {
		e.closeLocked()
		return fmt.Errorf("set remote offer: %w", err)
	}

	e.callID = callID
	e.active = true
	e.pendingOffer = nil
	e.drainCandidatesLocked()

	if err := e.answerLocked(callID); err != nil {
		e.closeLocked()
		return err
	}
	return nil
}

// answerLocked generates and sends the local answer. Caller holds e.mu and
// has set the remote description.
func (e *Engine) answerLocked(callID string) error {
	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := e.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	e.sendFrame(call.AnswerFrame{
		Type:       call.EventTypeCallAnswer,
		CallID:     callID,
		ReceiverID: e.selfID,
		Answer:     call.SessionDescription{Type: answer.Type.String(), SDP: answer.SDP},
	})
	return nil
}

// ReceiveAnswerSDP applies the receiver's answer on the caller's connection.
func (e *Engine) ReceiveAnswerSDP(callID string, sdp call.SessionDescription) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pc == nil {
		return ErrNoConnection
	}
	if err := e.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp.SDP,
	}); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	e.drainCandidatesLocked()
	return nil
}

// ReceiveICECandidate applies a remote candidate, buffering it until the
// remote description is in place.
func (e *Engine) ReceiveICECandidate(callID string, candidate json.RawMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pc == nil || e.pc.RemoteDescription() == nil {
		e.pendingCandidates = append(e.pendingCandidates, candidate)
		return nil
	}
	return e.addCandidateLocked(candidate)
}

// RejectCall drops any buffered setup state for the declined call.
func (e *Engine) RejectCall(callID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingOffer = nil
	e.pendingCandidates = nil
	if e.pc != nil && e.callID == callID {
		e.closeLocked()
	}
}

// EndCall releases the peer connection and all media resources,
// unconditionally.
func (e *Engine) EndCall() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
}

func (e *Engine) closeLocked() {
	if e.pc != nil {
		if err := e.pc.Close(); err != nil {
			e.logger.Warn("closing peer connection", "error", err)
		}
		e.pc = nil
	}
	e.callID = ""
	e.peerID = ""
	e.active = false
	e.pendingOffer = nil
	e.pendingCandidates = nil
}

func (e *Engine) newPeerConnectionLocked(callID string) (*webrtc.PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(e.config)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		payload, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		e.sendFrame(call.ICECandidateFrame{
			Type:      call.EventTypeCallICECandidate,
			CallID:    callID,
			FromID:    e.selfID,
			Candidate: payload,
		})
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		e.mu.Lock()
		fn := e.onRemoteTrack
		e.mu.Unlock()
		e.logger.Info("remote track", "call_id", callID, "kind", track.Kind().String())
		if fn != nil {
			fn(track, receiver)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		e.logger.Info("peer connection state", "call_id", callID, "state", state.String())
	})

	e.pc = pc
	return pc, nil
}

func (e *Engine) drainCandidatesLocked() {
	for _, raw := range e.pendingCandidates {
		if err := e.addCandidateLocked(raw); err != nil {
			e.logger.Warn("applying buffered candidate", "error", err)
		}
	}
	e.pendingCandidates = nil
}

func (e *Engine) addCandidateLocked(raw json.RawMessage) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &init); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}
	return e.pc.AddICECandidate(init)
}

func (e *Engine) sendFrame(v any) {
	if e.sender == nil {
		return
	}
	if err := e.sender.Send(v); err != nil {
		e.logger.Warn("signaling send failed", "error", err)
	}
}
