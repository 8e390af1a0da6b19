package cli

import (
	"fmt"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/carnage999-max/liberty-realtime/config"
)

var (
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "callctl",
	Short: "Liberty realtime client - calls and notifications from the terminal",
	Long: `callctl talks to the Liberty realtime gateway: it maintains the shared
WebSocket session, listens for call signaling and notifications, and can
place voice or video calls.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		level := charmlog.WarnLevel
		if verbose {
			level = charmlog.DebugLevel
		}
		handler := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
			Level:           level,
			ReportTimestamp: true,
		})
		logger = slog.New(handler)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(historyCmd)
}

// requireToken resolves the bearer credential for authenticated commands.
func requireToken() (string, error) {
	if cfg.Token == "" {
		return "", fmt.Errorf("no credential: set LIBERTY_TOKEN or run 'callctl login'")
	}
	return cfg.Token, nil
}
