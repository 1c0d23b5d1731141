// Command taskforge is the CLI and HTTP entry point for the agent
// orchestration runtime (spec §6): `run`, `epic`, `sessions`, `workflows`,
// and `serve` under one cobra command tree, grounded on the pack's
// haasonsaas-nexus cmd/nexus (a single root cobra.Command with one
// sub-command-builder function per command group, each taking a
// --config flag resolved against a default path).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "taskforge.yaml"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "taskforge",
		Short: "Multi-agent LLM orchestration runtime",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")

	cmd.AddCommand(
		newServeCmd(&configPath),
		newRunCmd(&configPath),
		newEpicCmd(&configPath),
		newSessionsCmd(&configPath),
		newWorkflowsCmd(&configPath),
	)
	return cmd
}
