package cli

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/carnage999-max/liberty-realtime/api"
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Authenticate and print the bearer token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		client := api.NewClient(cfg.APIBaseURL, "", logger)
		resp, err := client.Login(cmd.Context(), args[0], string(password))
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", resp.User.Username, resp.User.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "export LIBERTY_TOKEN=%s\n", resp.Token)
		return nil
	},
}
