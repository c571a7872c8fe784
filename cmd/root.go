package main

import (
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	workspace  string
	assignment string
	provider   string
	model      string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "clippy",
		Short: "Clippy - a coding companion for students",
		Long: `Clippy watches the code you are writing and explains concepts, reviews changes and
helps you debug, adapting its persona to what you are doing. It knows the libraries and
concepts in your workspace and the assignment you are working on.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.workspace, "workspace", "w", ".", "Workspace directory to scan for code and the assignment")
	pf.StringVar(&flags.assignment, "assignment", "", "Assignment file (detected in the workspace when empty)")
	pf.StringVar(&flags.provider, "provider", "", "Completion provider: openai, ollama or anthropic")
	pf.StringVar(&flags.model, "model", "", "Chat model (provider default when empty)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(
		newChatCmd(flags),
		newWatchCmd(flags),
		newAnalyzeCmd(flags),
		newAskCmd(flags),
		newScanCmd(flags),
		newServeCmd(flags),
		newKeyCmd(flags),
		newModeCmd(),
	)
	return root
}
