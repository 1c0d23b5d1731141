package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newWorkflowsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "Resume paused workflow runs from the command line",
	}
	cmd.AddCommand(newWorkflowsResumeCmd(configPath))
	return cmd
}

func newWorkflowsResumeCmd(configPath *string) *cobra.Command {
	var (
		payload   string
		messageID string
	)
	cmd := &cobra.Command{
		Use:   "resume [run-id]",
		Short: "Ingest a resume event for a paused run (ingest_resume_event only, no re-entry)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, *configPath)
			if err != nil {
				return err
			}
			result, followUp, err := rt.workflow.IngestResumeEvent(ctx, args[0], messageID, json.RawMessage(payload), nil)
			if err != nil {
				return err
			}
			if followUp != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "rejected: %s (missing: %v)\n", followUp.Reason, followUp.Missing)
				return nil
			}
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "{}", "JSON payload merged into the checkpoint's state")
	cmd.Flags().StringVar(&messageID, "message-id", "", "Idempotency key for this resume event")
	return cmd
}
