package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/carnage999-max/liberty-realtime/api"
	"github.com/carnage999-max/liberty-realtime/call"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Stay connected and print incoming calls and notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := requireToken()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client := api.NewClient(cfg.APIBaseURL, token, logger)
		stack, err := newStack(token, client, stackOptions{
			onChange: printCallState(cmd),
			onEnded: func(info call.EndInfo) {
				fmt.Fprintf(cmd.OutOrStdout(), "call %s ended after %s\n", info.CallID, info.Duration)
			},
		})
		if err != nil {
			return err
		}
		defer stack.Close()

		unwatch := stack.manager.OnConnectivityChange(func(connected bool) {
			if connected {
				fmt.Fprintln(cmd.OutOrStdout(), "connected")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "disconnected, reconnecting...")
			}
		})
		defer unwatch()

		unsub := stack.center.OnNotification(func(n api.Notification) {
			fmt.Fprintf(cmd.OutOrStdout(), "notification: [%s] %s (unread: %d)\n",
				n.Kind, n.Body, stack.center.Unread())
		})
		defer unsub()

		if err := stack.center.Refresh(ctx); err != nil {
			logger.Warn("could not fetch unread count", "error", err)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "unread notifications: %d\n", stack.center.Unread())
		}

		fmt.Fprintln(cmd.OutOrStdout(), "listening, Ctrl-C to stop")
		<-ctx.Done()
		return nil
	},
}

// printCallState reports call-state transitions on the terminal.
func printCallState(cmd *cobra.Command) func(call.Snapshot) {
	return func(snap call.Snapshot) {
		switch {
		case snap.Incoming != nil:
			fmt.Fprintf(cmd.OutOrStdout(), "incoming %s call %s from %s\n",
				snap.Incoming.Medium, snap.Incoming.ID, snap.Incoming.PeerID)
		case snap.Outgoing != nil:
			fmt.Fprintf(cmd.OutOrStdout(), "calling %s (%s, call %s)...\n",
				snap.Outgoing.PeerID, snap.Outgoing.Medium, snap.Outgoing.ID)
		case snap.Active != nil:
			fmt.Fprintf(cmd.OutOrStdout(), "call %s active\n", snap.Active.ID)
		}
	}
}
