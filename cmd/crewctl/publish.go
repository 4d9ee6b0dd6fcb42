package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"crewhub.dev/internal/deploy"
	"crewhub.dev/internal/employee"
)

func resyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resync <employee-id>",
		Short: "Publish an approved employee or withdraw any other one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecord(cmd, args[0], func(ctx context.Context, s *deploy.Synchronizer, rec employee.Record) (deploy.Result, error) {
				if rec.Status == employee.StatusApproved {
					return s.Publish(ctx, rec)
				}
				return s.Withdraw(ctx, rec)
			})
		},
	}
}

func unpublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpublish <employee-id>",
		Short: "Remove an employee from the published manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecord(cmd, args[0], func(ctx context.Context, s *deploy.Synchronizer, rec employee.Record) (deploy.Result, error) {
				return s.Withdraw(ctx, rec)
			})
		},
	}
}

func withRecord(cmd *cobra.Command, id string, fn func(context.Context, *deploy.Synchronizer, employee.Record) (deploy.Result, error)) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Repo.Available(); err != nil {
		return err
	}
	rec, err := a.Records.Get(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("load %s: %w", id, err)
	}
	res, err := fn(cmd.Context(), a.Sync, rec)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
