package peer

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnage999-max/liberty-realtime/call"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []any
}

func (r *frameRecorder) Send(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, v)
	return nil
}

func (r *frameRecorder) offer(t *testing.T) call.OfferFrame {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.frames {
		if offer, ok := f.(call.OfferFrame); ok {
			return offer
		}
	}
	t.Fatal("no offer frame sent")
	return call.OfferFrame{}
}

func (r *frameRecorder) answer(t *testing.T) call.AnswerFrame {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.frames {
		if answer, ok := f.(call.AnswerFrame); ok {
			return answer
		}
	}
	t.Fatal("no answer frame sent")
	return call.AnswerFrame{}
}

func newEngine(selfID string, sender call.Sender) *Engine {
	return NewEngine(Config{SelfID: selfID, Sender: sender, Logger: testLogger()})
}

func TestEngine_OfferAnswerExchange(t *testing.T) {
	callerOut := &frameRecorder{}
	receiverOut := &frameRecorder{}
	caller := newEngine("u-caller", callerOut)
	receiver := newEngine("u-receiver", receiverOut)
	defer caller.EndCall()
	defer receiver.EndCall()

	require.NoError(t, caller.InitiateCall(context.Background(), "call-1", "u-receiver", call.MediumVoice))
	assert.True(t, caller.IsCallActive())

	offer := callerOut.offer(t)
	assert.Equal(t, call.EventTypeCallOffer, offer.Type)
	assert.Equal(t, "call-1", offer.CallID)
	assert.Equal(t, "u-caller", offer.CallerID)
	assert.Equal(t, "u-receiver", offer.ReceiverID)
	assert.Equal(t, "voice", offer.CallType)
	assert.NotEmpty(t, offer.Offer.SDP)

	require.NoError(t, receiver.ReceiveOfferSDP("call-1", offer.Offer))
	require.NoError(t, receiver.AnswerCall(context.Background(), "call-1"))
	assert.True(t, receiver.IsCallActive())

	answer := receiverOut.answer(t)
	assert.Equal(t, "call-1", answer.CallID)
	assert.Equal(t, "u-receiver", answer.ReceiverID)
	assert.NotEmpty(t, answer.Answer.SDP)

	require.NoError(t, caller.ReceiveAnswerSDP("call-1", answer.Answer))
}

func TestEngine_AnswerWithoutOffer(t *testing.T) {
	e := newEngine("u1", &frameRecorder{})
	assert.ErrorIs(t, e.AnswerCall(context.Background(), "call-1"), ErrNoPendingOffer)
}

func TestEngine_DuplicateOfferBuffered(t *testing.T) {
	e := newEngine("u1", &frameRecorder{})
	defer e.EndCall()

	sdp := call.SessionDescription{Type: "offer", SDP: "v=0\r\n"}
	require.NoError(t, e.ReceiveOfferSDP("call-1", sdp))
	require.NoError(t, e.ReceiveOfferSDP("call-1", sdp), "re-delivered offers must be harmless before answering")
}

func TestEngine_CandidatesBufferedUntilRemoteDescription(t *testing.T) {
	e := newEngine("u1", &frameRecorder{})
	defer e.EndCall()

	cand := json.RawMessage(`{"candidate":"candidate:1 1 udp 2130706431 127.0.0.1 54321 typ host","sdpMid":"0","sdpMLineIndex":0}`)
	require.NoError(t, e.ReceiveICECandidate("call-1", cand), "early candidates buffer instead of failing")
}

func TestEngine_RejectDropsBufferedSetup(t *testing.T) {
	e := newEngine("u1", &frameRecorder{})

	require.NoError(t, e.ReceiveOfferSDP("call-1", call.SessionDescription{Type: "offer", SDP: "v=0\r\n"}))
	e.RejectCall("call-1")

	assert.ErrorIs(t, e.AnswerCall(context.Background(), "call-1"), ErrNoPendingOffer)
}

func TestEngine_EndCallResets(t *testing.T) {
	out := &frameRecorder{}
	e := newEngine("u1", out)

	require.NoError(t, e.InitiateCall(context.Background(), "call-1", "u2", call.MediumVideo))
	require.True(t, e.IsCallActive())

	e.EndCall()
	assert.False(t, e.IsCallActive())

	// A fresh call works after teardown.
	require.NoError(t, e.InitiateCall(context.Background(), "call-2", "u3", call.MediumVoice))
	e.EndCall()
}

func TestICEServers(t *testing.T) {
	servers := ICEServers(
		[]string{"stun:stun.example.com:3478"},
		[]string{"turn:turn.example.com:3478"},
		"user", "pass",
	)
	require.Len(t, servers, 2)
	assert.Equal(t, []string{"stun:stun.example.com:3478"}, servers[0].URLs)
	assert.Equal(t, "user", servers[1].Username)

	assert.Empty(t, ICEServers(nil, nil, "", ""))
	assert.Len(t, ICEServers([]string{"stun:s"}, []string{"turn:t"}, "", ""), 1,
		"turn without credentials is skipped")
}
