package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"crewhub.dev/internal/migrate"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, func(m *migrate.Manager) error {
				applied, err := m.Up(cmd.Context())
				for _, name := range applied {
					fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
				}
				if err == nil && len(applied) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to apply")
				}
				return err
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, func(m *migrate.Manager) error {
				name, err := m.Down(cmd.Context())
				if err == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "rolled back", name)
				}
				return err
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, func(m *migrate.Manager) error {
				applied, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				pending, err := m.Pending(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range applied {
					fmt.Fprintln(cmd.OutOrStdout(), "applied ", name)
				}
				for _, name := range pending {
					fmt.Fprintln(cmd.OutOrStdout(), "pending ", name)
				}
				return nil
			})
		},
	})
	return cmd
}

func withManager(cmd *cobra.Command, fn func(*migrate.Manager) error) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(migrate.NewManager(a.DB, nil))
}
