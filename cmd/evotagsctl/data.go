package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/evotags/evotags/migrations"
	"github.com/evotags/evotags/pkg/database"
)

func migrateCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			pending, err := database.PendingMigrations(cmd.Context(), s.pool, migrations.FS)
			if err != nil {
				return fmt.Errorf("list pending migrations: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "schema is up to date")
				return nil
			}
			for _, name := range pending {
				fmt.Fprintf(out, "pending: %s\n", name)
			}
			if dryRun {
				return nil
			}

			if err := database.RunMigrations(cmd.Context(), s.pool, migrations.FS, s.logger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			fmt.Fprintf(out, "applied %d migration(s)\n", len(pending))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending migrations without applying them")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the synthetic test accounts and sample reviews",
		Long: `Create four synthetic accounts (platform ids 999999001-999999004) and
three sample reviews. Running it again changes nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.adminService(cmd.Context()).Seed(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-test-data",
		Short: "Delete every synthetic account and its reviews",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.adminService(cmd.Context()).Purge(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
