package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kevensen/gollama-clippy/internal/assignment"
	"github.com/kevensen/gollama-clippy/internal/configuration"
	"github.com/kevensen/gollama-clippy/internal/credentials"
	"github.com/kevensen/gollama-clippy/internal/knowledge"
	"github.com/kevensen/gollama-clippy/internal/llm"
	"github.com/kevensen/gollama-clippy/internal/logging"
	"github.com/kevensen/gollama-clippy/internal/mode"
	"github.com/kevensen/gollama-clippy/internal/orchestrator"
	"github.com/kevensen/gollama-clippy/internal/rag"
	"github.com/kevensen/gollama-clippy/internal/retry"
	"github.com/kevensen/gollama-clippy/internal/session"
)

// app holds what every command shares: configuration, the workspace knowledge and the
// loaded assignment
type app struct {
	config     *configuration.Config
	workspace  string
	store      *knowledge.Store
	scanner    *knowledge.Scanner
	assignment *assignment.File
	logger     *logging.Logger
}

// loadConfig reads .env files, the settings file, the environment and the flags, in that
// order of increasing precedence
func loadConfig(flags *globalFlags) (*configuration.Config, error) {
	if err := credentials.LoadDotEnv(filepath.Join(flags.workspace, ".env")); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config, err := configuration.Load()
	if config == nil {
		return nil, err
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	config.ApplyEnv()
	config.SetProvider(flags.provider)
	if flags.model != "" {
		config.ChatModel = flags.model
	}
	if flags.logLevel != "" {
		config.LogLevel = flags.logLevel
	}
	if flags.assignment != "" {
		config.AssignmentPath = flags.assignment
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// newApp loads the configuration, starts logging and scans the workspace
func newApp(ctx context.Context, flags *globalFlags) (*app, error) {
	config, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	// Logs go to the file only; the terminal belongs to the panel and the replies.
	// Reconfigure closes any log file opened before the settings were known.
	if err := logging.Reconfigure(&logging.Config{
		Level:      config.GetLogLevel(),
		EnableFile: config.EnableFileLogging,
		LogDir:     logging.DefaultDir(),
	}); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: failed to initialize logging:", err)
	}
	logger := logging.WithComponent("app")

	workspace, err := filepath.Abs(flags.workspace)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace %s: %w", flags.workspace, err)
	}

	a := &app{
		config:    config,
		workspace: workspace,
		store:     knowledge.NewStore(),
		logger:    logger,
	}

	if err := a.scan(ctx); err != nil {
		return nil, err
	}
	a.loadAssignment()

	logger.Info("Application ready",
		"workspace", workspace,
		"provider", config.Provider,
		"model", config.ChatModel,
		"files", a.store.Len(),
		"assignment_loaded", a.assignment != nil,
	)
	return a, nil
}

func (a *app) scan(ctx context.Context) error {
	scanConfig := knowledge.DefaultScanConfig(a.workspace)
	if len(a.config.WorkspaceIncludes) > 0 {
		scanConfig.Include = a.config.WorkspaceIncludes
	}
	scanConfig.Exclude = append(scanConfig.Exclude, a.config.WorkspaceExcludes...)

	scanner, err := knowledge.NewScanner(a.store, scanConfig)
	if err != nil {
		return fmt.Errorf("invalid workspace patterns: %w", err)
	}
	a.scanner = scanner

	if _, err := scanner.Scan(ctx); err != nil {
		return fmt.Errorf("failed to scan workspace: %w", err)
	}
	return nil
}

// loadAssignment applies the configured or detected assignment. Failures are logged;
// Clippy works without an assignment.
func (a *app) loadAssignment() {
	detector := assignment.NewDetector(a.config.DetectAssignment)

	var (
		file *assignment.File
		err  error
	)
	if a.config.AssignmentPath != "" {
		file, err = detector.Load(a.config.AssignmentPath)
	} else {
		file, err = detector.DetectInDirectory(a.workspace)
	}
	if err != nil {
		a.logger.Warn("Assignment not loaded", "error", err)
		return
	}
	if file.Apply(a.store) {
		a.assignment = file
	}
}

// credentialStore returns where the API key for the configured provider lives. Providers
// that work without a key get NoneStore unless a key is available anyway.
func (a *app) credentialStore() credentials.Store {
	var inner credentials.Store
	file, err := credentials.NewEncryptedFileStore(credentials.DefaultDir(), a.config.Provider)
	if err != nil {
		a.logger.Warn("Encrypted credential store unavailable, keys will not persist", "error", err)
		inner = credentials.NewMemoryStore("")
	} else {
		inner = file
	}

	store := credentials.NewEnvStore(inner, a.config.APIKeyEnv)
	if !llm.RequiresKey(a.config.Provider) {
		if _, ok := store.Get(); !ok {
			return credentials.NoneStore{}
		}
	}
	return store
}

// retriever connects the reference material service when RAG is enabled
func (a *app) retriever(ctx context.Context) orchestrator.ContextRetriever {
	if !a.config.RAGEnabled {
		return nil
	}
	service := rag.NewService(a.config)
	if err := service.Initialize(ctx); err != nil {
		a.logger.Warn("Reference material unavailable", "error", err)
		return nil
	}
	return service
}

// newOrchestrator builds a session and an orchestrator answering through display
func (a *app) newOrchestrator(ctx context.Context, prompter credentials.Prompter, display orchestrator.Display) (*orchestrator.Orchestrator, error) {
	completer, err := llm.New(a.config.LLM())
	if err != nil {
		return nil, err
	}

	selector := mode.NewSelector(a.config.Mode(),
		mode.WithConcepts(a.store.ConceptTags),
		mode.WithChangeFunc(func(previous, current mode.Mode) {
			a.logger.Info("Mode changed", "from", previous.String(), "to", current.String())
			if display != nil {
				display.Show(ctx, orchestrator.TargetToast, fmt.Sprintf("Switched to %s mode", current.Title()))
			}
		}),
	)
	sess := session.New(selector, a.store)

	opts := []orchestrator.Option{
		orchestrator.WithTemperature(a.config.Temperature),
		orchestrator.WithPolicy(retry.Policy{MaxRetries: a.config.MaxRetries}),
		orchestrator.WithDisplay(display),
		orchestrator.WithKeyPrompt(fmt.Sprintf("Enter your %s API key", a.config.Provider)),
	}
	if r := a.retriever(ctx); r != nil {
		opts = append(opts, orchestrator.WithRetriever(r))
	}

	return orchestrator.New(sess, completer, a.credentialStore(), prompter, opts...), nil
}
