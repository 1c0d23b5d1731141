package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rudi77/taskforge/internal/ids"
)

func newSessionsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage persisted sessions",
	}
	cmd.AddCommand(newSessionsListCmd(configPath), newSessionsShowCmd(configPath), newSessionsDeleteCmd(configPath))
	return cmd
}

func newSessionsListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all session ids with stored state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, *configPath)
			if err != nil {
				return err
			}
			sessionIDs, err := rt.sessions.List(ctx)
			if err != nil {
				return err
			}
			for _, id := range sessionIDs {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newSessionsShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show [session-id]",
		Short: "Print a session's persisted state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, *configPath)
			if err != nil {
				return err
			}
			state, err := rt.sessions.Load(ctx, ids.SessionID(args[0]))
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newSessionsDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [session-id]",
		Short: "Delete a session's persisted state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, *configPath)
			if err != nil {
				return err
			}
			return rt.sessions.Delete(ctx, ids.SessionID(args[0]))
		},
	}
}
