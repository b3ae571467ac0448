package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/evotags/evotags/internal/auth"
	"github.com/evotags/evotags/internal/domain"
	"github.com/evotags/evotags/pkg/validator"
)

func signCmd() *cobra.Command {
	var (
		identity domain.PlatformIdentity
		token    string
		authDate int64
	)

	cmd := &cobra.Command{
		Use:   "sign-init-data",
		Short: "Print a signed mini-app init data string",
		Long: `Print an init data string signed with the bot token, for calling the API
without the Telegram client. The token defaults to TELEGRAM_BOT_TOKEN.

Example:
  evotagsctl sign-init-data --id 42 --first-name Anna`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("TELEGRAM_BOT_TOKEN")
			}
			if token == "" {
				return errors.New("a bot token is required: pass --token or set TELEGRAM_BOT_TOKEN")
			}
			if err := validator.Validate(identity); err != nil {
				return fmt.Errorf("invalid identity: %w", err)
			}

			at := time.Now()
			if authDate > 0 {
				at = time.Unix(authDate, 0)
			}
			payload, err := auth.SignIdentity(token, &identity, at)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), payload)
			return nil
		},
	}

	cmd.Flags().Int64Var(&identity.ID, "id", 0, "Telegram user id")
	cmd.Flags().StringVar(&identity.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&identity.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&identity.Username, "username", "", "username")
	cmd.Flags().StringVar(&token, "token", "", "bot token (default $TELEGRAM_BOT_TOKEN)")
	cmd.Flags().Int64Var(&authDate, "auth-date", 0, "auth_date as unix seconds (default now)")
	return cmd
}
