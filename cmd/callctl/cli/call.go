package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/carnage999-max/liberty-realtime/api"
	"github.com/carnage999-max/liberty-realtime/call"
	"github.com/carnage999-max/liberty-realtime/identity"
	"github.com/carnage999-max/liberty-realtime/peer"
)

var callVideo bool

var callCmd = &cobra.Command{
	Use:   "call <receiver-id>",
	Short: "Place a call and stay on the line until it ends",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := requireToken()
		if err != nil {
			return err
		}
		claims, err := identity.FromToken(token)
		if err != nil {
			return fmt.Errorf("resolve local user: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client := api.NewClient(cfg.APIBaseURL, token, logger)

		ended := make(chan call.EndInfo, 1)
		stack, err := newStack(token, client, stackOptions{
			selfID: claims.UserID,
			engineFor: func(sender call.Sender) call.PeerEngine {
				return peer.NewEngine(peer.Config{
					SelfID: claims.UserID,
					ICEServers: peer.ICEServers(
						cfg.STUNURLs, cfg.TURNURLs, cfg.TURNUsername, cfg.TURNPassword),
					Sender: sender,
					Logger: logger,
				})
			},
			onChange: printCallState(cmd),
			onEnded: func(info call.EndInfo) {
				select {
				case ended <- info:
				default:
				}
			},
		})
		if err != nil {
			return err
		}
		defer stack.Close()

		medium := call.MediumVoice
		if callVideo {
			medium = call.MediumVideo
		}
		if err := stack.orchestrator.InitiateCall(ctx, args[0], medium, ""); err != nil {
			return err
		}

		select {
		case info := <-ended:
			fmt.Fprintf(cmd.OutOrStdout(), "call %s ended after %s\n", info.CallID, info.Duration)
		case <-ctx.Done():
			stack.orchestrator.EndCall()
		}
		return nil
	},
}

func init() {
	callCmd.Flags().BoolVar(&callVideo, "video", false, "place a video call instead of voice")
}
