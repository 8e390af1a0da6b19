package cli

import (
	"github.com/carnage999-max/liberty-realtime/api"
	"github.com/carnage999-max/liberty-realtime/call"
	"github.com/carnage999-max/liberty-realtime/events"
	"github.com/carnage999-max/liberty-realtime/notify"
	"github.com/carnage999-max/liberty-realtime/wsconn"
)

// stackOptions configures optional collaborators for newStack.
type stackOptions struct {
	selfID string

	// engineFor builds the WebRTC engine from a sender bound to the shared
	// socket. Nil runs signaling-only.
	engineFor func(call.Sender) call.PeerEngine

	onChange func(call.Snapshot)
	onEnded  func(call.EndInfo)
}

// stack bundles the shared-connection components a command needs. Every
// piece rides the same socket; the manager refcounts the acquisitions.
type stack struct {
	manager      *wsconn.Manager
	router       *events.Router
	orchestrator *call.Orchestrator
	center       *notify.Center

	engineHandle *wsconn.Handle
}

// newStack wires the manager, router, notification center and call
// orchestrator together.
func newStack(token string, client *api.Client, opts stackOptions) (*stack, error) {
	router := events.NewRouter(events.NewBus(), logger)
	manager := wsconn.NewManager(wsconn.Options{
		SocketURL: cfg.SocketURL,
		OnFrame:   router.HandleFrame,
		Logger:    logger,
	})

	center := notify.NewCenter(manager, router, client, token, logger)

	var engine call.PeerEngine
	var engineHandle *wsconn.Handle
	if opts.engineFor != nil {
		engineHandle = manager.Acquire(token)
		engine = opts.engineFor(engineHandle)
	}

	orch, err := call.NewOrchestrator(call.OrchestratorConfig{
		Manager:  manager,
		Router:   router,
		Token:    token,
		SelfID:   opts.selfID,
		Engine:   engine,
		Creator:  client,
		OnChange: opts.onChange,
		OnEnded:  opts.onEnded,
		Logger:   logger,
	})
	if err != nil {
		if engineHandle != nil {
			engineHandle.Release()
		}
		center.Close()
		manager.Close()
		return nil, err
	}

	return &stack{
		manager:      manager,
		router:       router,
		orchestrator: orch,
		center:       center,
		engineHandle: engineHandle,
	}, nil
}

func (s *stack) Close() {
	s.orchestrator.Close()
	if s.engineHandle != nil {
		s.engineHandle.Release()
	}
	s.center.Close()
	s.manager.Close()
}
