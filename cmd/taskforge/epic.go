package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rudi77/taskforge/internal/epic"
)

func newEpicCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epic",
		Short: "Run and inspect epic orchestrator runs",
	}
	cmd.AddCommand(newEpicRunCmd(configPath))
	return cmd
}

func newEpicRunCmd(configPath *string) *cobra.Command {
	var (
		scope   string
		workers int
		rounds  int
	)
	cmd := &cobra.Command{
		Use:   "run [mission]",
		Short: "Run the epic orchestrator directly against a mission, bypassing profile routing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := buildRuntime(ctx, *configPath)
			if err != nil {
				return err
			}
			var allowed []string
			if scope != "" {
				allowed = strings.Split(scope, ",")
			}
			result, err := rt.executor.RunEpic(ctx, args[0], allowed, epic.Config{
				WorkerCount: workers,
				MaxRounds:   rounds,
			})
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Comma-separated task types workers may claim (blank allows any)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker count override (0 uses the configured default)")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "Max round count override (0 uses the configured default)")
	return cmd
}
