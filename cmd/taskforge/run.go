package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rudi77/taskforge/internal/executor"
	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/loop"
)

func newRunCmd(configPath *string) *cobra.Command {
	var (
		profile    string
		sessionID  string
		stream     bool
		autoEpic   bool
		noAutoEpic bool
	)

	cmd := &cobra.Command{
		Use:   "run [mission]",
		Short: "Execute a mission against a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if autoEpic && noAutoEpic {
				return fmt.Errorf("--auto-epic and --no-auto-epic are mutually exclusive")
			}
			force := executor.ForceModeNone
			switch {
			case autoEpic:
				force = executor.ForceModeEpic
			case noAutoEpic:
				force = executor.ForceModeSimple
			}
			return runMission(cmd, *configPath, args[0], profile, sessionID, force, stream)
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "default", "Agent profile to run")
	cmd.Flags().StringVar(&sessionID, "session", "", "Existing session id to continue (blank mints a new one)")
	cmd.Flags().BoolVar(&stream, "stream", false, "Print StreamEvents as they are emitted")
	cmd.Flags().BoolVar(&autoEpic, "auto-epic", false, "Force routing this mission to the epic orchestrator")
	cmd.Flags().BoolVar(&noAutoEpic, "no-auto-epic", false, "Force the single-agent pipeline, skipping classification")
	return cmd
}

func runMission(cmd *cobra.Command, configPath, mission, profileName, sessionID string, force executor.ForceMode, stream bool) error {
	ctx := cmd.Context()
	rt, err := buildRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	prof, err := profileFor(rt.cfg, profileName)
	if err != nil {
		return err
	}

	if !stream {
		result, err := rt.executor.ExecuteMission(ctx, mission, prof, ids.SessionID(sessionID), force)
		if err != nil {
			return err
		}
		return printResult(cmd, result)
	}

	events, outcome := rt.executor.ExecuteMissionStreaming(ctx, mission, prof, ids.SessionID(sessionID), force)
	for evt := range events {
		data, _ := json.Marshal(evt)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", evt.Type, data)
	}
	out := <-outcome
	if out.Err != nil {
		return out.Err
	}
	return printResult(cmd, out.Result)
}

func printResult(cmd *cobra.Command, result loop.ExecutionResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
