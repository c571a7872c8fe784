package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kevensen/gollama-clippy/internal/credentials"
	"github.com/kevensen/gollama-clippy/internal/knowledge"
	"github.com/kevensen/gollama-clippy/internal/mode"
	"github.com/kevensen/gollama-clippy/internal/orchestrator"
	"github.com/kevensen/gollama-clippy/internal/persona"
	"github.com/kevensen/gollama-clippy/internal/tui"
	"github.com/kevensen/gollama-clippy/internal/watcher"
	"github.com/kevensen/gollama-clippy/internal/webserver"
)

func newChatCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the chat panel",
		Long:  `Open a persistent chat panel in the terminal. Messages are answered conversationally.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}

			prompter := credentials.NewChanPrompter()
			feed := tui.NewFeed(16)
			orch, err := a.newOrchestrator(ctx, prompter, feed)
			if err != nil {
				return err
			}

			return tui.Run(ctx, orch, tui.Options{
				Prompts: prompter.Requests(),
				Notices: feed.Notices(),
				Title:   fmt.Sprintf("Clippy · %s/%s", a.config.Provider, a.config.ChatModel),
			})
		},
	}
}

func newWatchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <file>",
		Short: "Analyze a file as it changes",
		Long: `Analyze the file now, then again on every scan interval and after each save.
Only what changed since the previous analysis is sent. Suggestions are printed as toasts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}

			printer := tui.NewPrinter(cmd.OutOrStdout())
			orch, err := a.newOrchestrator(ctx, credentials.NewTerminalPrompter(), printer)
			if err != nil {
				return err
			}

			w := watcher.New(watcher.Config{
				Path:     args[0],
				Interval: a.config.ScanInterval(),
			}, orch, a.scanner, printer)

			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func newAnalyzeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a file once",
		Long: `Send the file for analysis once and print the suggestion as a toast.
The whole file is sent, since nothing has been analyzed before in this run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}

			printer := tui.NewPrinter(cmd.OutOrStdout())
			orch, err := a.newOrchestrator(ctx, credentials.NewTerminalPrompter(), printer)
			if err != nil {
				return err
			}

			w := watcher.New(watcher.Config{Path: args[0]}, orch, a.scanner, printer)
			res, sent, err := w.Analyze(ctx)
			if err != nil {
				return err
			}
			if !sent {
				return nil
			}
			switch res.Outcome {
			case orchestrator.Displayed, orchestrator.Replied:
				return nil
			default:
				return fmt.Errorf("analysis of %s did not complete: %s", args[0], res.Outcome)
			}
		},
	}
}

func newAskCmd(flags *globalFlags) *cobra.Command {
	var modeName string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question",
		Long:  `Ask one question and print the reply. The persona is detected from the question unless --mode is given.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var override *mode.Mode
			if modeName != "" {
				m, err := mode.Parse(modeName)
				if err != nil {
					return err
				}
				override = mode.Ptr(m)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}

			orch, err := a.newOrchestrator(ctx, credentials.NewTerminalPrompter(), tui.NewPrinter(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			result := orch.Send(ctx, strings.Join(args, " "), orchestrator.TargetCaller, override)
			if result.Outcome != orchestrator.Replied {
				return errors.New(result.Text)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&modeName, "mode", "m", "", "Force a persona: tutor, assistant, debugger or chat")
	return cmd
}

func newScanCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [dir]",
		Short: "Print what Clippy knows about a workspace",
		Long: `Scan the workspace and print the libraries, functions and concepts found, as YAML.
The assignment summary is printed first as YAML comments.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				flags.workspace = args[0]
			}
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}

			out, err := knowledge.Report(a.store)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, line := range strings.Split(a.assignment.Summary(), "\n") {
				fmt.Fprintln(w, "# "+line)
			}
			_, err = w.Write(out)
			return err
		},
	}
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat panel in a browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}

			prompter := credentials.NewChanPrompter()
			var server *webserver.WebServer
			display := orchestrator.DisplayFunc(func(ctx context.Context, target orchestrator.DisplayTarget, text string) {
				server.Show(ctx, target, text)
			})

			orch, err := a.newOrchestrator(ctx, prompter, display)
			if err != nil {
				return err
			}
			server = webserver.New(port, orch, prompter.Requests())
			return server.Start(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	return cmd
}

func newKeyCmd(flags *globalFlags) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the API key for the configured provider",
	}

	var apiKey string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store an API key",
		Long:  `Store an API key in the encrypted credentials file. Reads from the terminal if --api-key is not given.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(flags)
			if err != nil {
				return err
			}

			key := strings.TrimSpace(apiKey)
			if key == "" {
				var ok bool
				key, ok = credentials.NewTerminalPrompter().Ask(cmd.Context(), fmt.Sprintf("Enter your %s API key", config.Provider))
				if !ok {
					return errors.New(orchestrator.SetupCanceledText)
				}
			}

			store, err := credentials.NewEncryptedFileStore(credentials.DefaultDir(), config.Provider)
			if err != nil {
				return err
			}
			if err := store.Set(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key for %s saved\n", config.Provider)
			return nil
		},
	}
	setCmd.Flags().StringVar(&apiKey, "api-key", "", "API key (prompted for when empty)")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(flags)
			if err != nil {
				return err
			}
			store, err := credentials.NewEncryptedFileStore(credentials.DefaultDir(), config.Provider)
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key for %s removed\n", config.Provider)
			return nil
		},
	}

	keyCmd.AddCommand(setCmd, clearCmd)
	return keyCmd
}

func newModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mode",
		Short: "List the personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, m := range mode.All {
				first, _, _ := strings.Cut(persona.Prompt(m), "\n")
				fmt.Fprintf(out, "%-10s %s\n", m.Title(), first)
			}
			return nil
		},
	}
}
