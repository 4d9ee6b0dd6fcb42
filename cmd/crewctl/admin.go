package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"crewhub.dev/internal/auth"
	"crewhub.dev/internal/employee"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	var email, password, firstName, lastName string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an approved administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(firstName) == "" || strings.TrimSpace(lastName) == "" {
				return errors.New("--first-name and --last-name are required")
			}
			if err := auth.CheckStrength(password); err != nil {
				return err
			}
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			profile := employee.Profile{
				FirstName: strings.TrimSpace(firstName),
				LastName:  strings.TrimSpace(lastName),
				Email:     auth.NormalizeEmail(email),
			}
			id, err := a.Accounts.CreateAccount(ctx, profile.Email, password, profile.DisplayName(), false)
			if err != nil {
				return fmt.Errorf("create account: %w", err)
			}
			if _, err := a.Records.Create(ctx, employee.Record{
				ID:      id,
				Profile: profile,
				Role:    employee.RoleAdmin,
				Status:  employee.StatusApproved,
			}); err != nil {
				if delErr := a.Accounts.DeleteAccount(ctx, id); delErr != nil {
					return errors.Join(fmt.Errorf("create record: %w", err), fmt.Errorf("remove account %s: %w", id, delErr))
				}
				return fmt.Errorf("create record: %w", err)
			}
			_ = a.Audit.LogEvent(ctx, "admin.created", map[string]any{"employee_id": id, "email": profile.Email})
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "login email")
	create.Flags().StringVar(&password, "password", "", "initial password")
	create.Flags().StringVar(&firstName, "first-name", "", "first name")
	create.Flags().StringVar(&lastName, "last-name", "", "last name")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}
