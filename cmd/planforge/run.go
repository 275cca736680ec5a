package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"planforge/internal/agents"
	"planforge/internal/bridge"
	"planforge/internal/knowledge"
	"planforge/internal/llm"
	"planforge/internal/orchestrator"
	"planforge/internal/prompt"
	"planforge/internal/session"
	"planforge/internal/tools"
	"planforge/internal/tools/core"
	"planforge/internal/tools/shell"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	interactive     bool
	requirementFile string
	constraintPairs []string
)

// errWorkflowFailed marks a run whose printed result JSON already describes
// the failure. The process exits nonzero, but only after deferred cleanup
// (sessions, knowledge store, log sinks) has run, and without printing a
// second error message.
var errWorkflowFailed = errors.New("workflow failed")

var runCmd = &cobra.Command{
	Use:   "run [requirement]",
	Short: "Clarify a requirement into a plan and execute it stage by stage",
	Long: `Runs the full workflow:
  1. Clarify: the requirement analyst asks blocking questions (bounded
     rounds); with --interactive you answer them, otherwise each question's
     fallback assumption is adopted.
  2. Plan: the analyst emits a staged plan with explicit assumptions.
  3. Execute: each stage goes to the developer agent with bounded retry.

The result is printed as JSON: either an execution summary per stage or an
error with the raw model output attached.

Examples:
  planforge run "add a /healthz endpoint to the API server"
  planforge run --file requirement.md --interactive
  planforge run "migrate the cache to redis" --constraint timeout_hint=10m`,
	Args: cobra.ArbitraryArgs,
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Answer clarification questions on stdin")
	runCmd.Flags().StringVarP(&requirementFile, "file", "f", "", "Read the requirement from a file")
	runCmd.Flags().StringArrayVar(&constraintPairs, "constraint", nil, "Stage constraint as key=value (repeatable)")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	requirement, err := loadRequirement(args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := llm.New(cfg.LLM)
	if err != nil {
		return err
	}

	registry := tools.NewRegistry()

	sandboxRoot := cfg.Session.SandboxRoot
	if sandboxRoot == "" {
		sandboxRoot = workspace
	}
	mgr, err := session.NewManager(session.Options{
		SandboxRoot:    sandboxRoot,
		ReadTimeout:    cfg.GetReadTimeout(),
		StartGrace:     cfg.GetStartGrace(),
		MaxOutputBytes: cfg.Session.MaxOutputBytes,
	})
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}
	defer mgr.CloseAll()
	if err := session.RegisterAll(registry, mgr); err != nil {
		return err
	}

	toolset, err := core.NewToolset(workspace)
	if err != nil {
		return fmt.Errorf("workspace toolset: %w", err)
	}
	if err := toolset.RegisterAll(registry); err != nil {
		return err
	}
	if err := registry.Register(shell.RunCommandTool(sandboxRoot)); err != nil {
		return err
	}
	if err := agents.RegisterPlanUpdateTool(registry, workspace); err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	if err := knowledge.RegisterSearchTool(registry, store); err != nil {
		return err
	}

	loader := prompt.NewLoader(workspace)
	reqPrompt, err := loader.Load("requirement")
	if err != nil {
		return err
	}
	devPrompt, err := loader.Load("dev")
	if err != nil {
		return err
	}

	requirementAgent := agents.NewAgent("requirement", reqPrompt, client, registry, []string{
		"knowledge_search", "read_file", "list_files", "grep", "plan_update",
	})
	devAgent := agents.NewAgent("dev", devPrompt, client, registry, []string{
		"read_file", "write_file", "edit_file", "list_files", "grep",
		"run_command", "session_start", "session_send", "session_read",
		"session_close", "session_list", "knowledge_search", "plan_update",
	})
	if cfg.Limits.MaxToolTurns > 0 {
		requirementAgent.MaxToolTurns = cfg.Limits.MaxToolTurns
		devAgent.MaxToolTurns = cfg.Limits.MaxToolTurns
	}
	if err := agents.RegisterAnalyzeTool(registry, requirementAgent); err != nil {
		return err
	}
	if err := agents.RegisterStageRunTool(registry, devAgent); err != nil {
		return err
	}

	opts := []orchestrator.Option{
		orchestrator.WithLimits(cfg.Limits.MaxClarifyRounds, cfg.Limits.MaxStageAttempts),
	}
	if constraints := parseConstraints(constraintPairs); len(constraints) > 0 {
		opts = append(opts, orchestrator.WithConstraints(constraints))
	}
	if interactive {
		opts = append(opts, orchestrator.WithAskUser(promptAnswers))
	}

	logger.Info("starting workflow",
		zap.String("workspace", workspace),
		zap.Int("tools", registry.Count()),
		zap.Bool("interactive", interactive))

	result := orchestrator.New(bridge.New(registry), opts...).Run(ctx, requirement)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))

	return exitError(result)
}

// exitError maps a workflow result onto the command's error return: a
// failed run becomes errWorkflowFailed so the exit code is nonzero.
func exitError(result *orchestrator.Result) error {
	if result.Error != "" {
		return errWorkflowFailed
	}
	return nil
}

// loadRequirement takes the requirement from --file when set, otherwise
// from the joined positional arguments.
func loadRequirement(args []string) (string, error) {
	if requirementFile != "" {
		data, err := os.ReadFile(requirementFile)
		if err != nil {
			return "", fmt.Errorf("read requirement file: %w", err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return "", fmt.Errorf("requirement file %s is empty", requirementFile)
		}
		return text, nil
	}
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return "", fmt.Errorf("no requirement given (pass it as an argument or via --file)")
	}
	return text, nil
}

// promptAnswers asks clarification questions on the terminal. An empty
// answer skips the question, leaving its fallback assumption in force.
func promptAnswers(questions []orchestrator.Question) (orchestrator.AnswerSet, error) {
	reader := bufio.NewReader(os.Stdin)
	set := orchestrator.AnswerSet{Policy: orchestrator.PolicyMergeAnswers}

	fmt.Printf("\n%d clarification question(s); empty answer accepts the fallback.\n", len(questions))
	for i, q := range questions {
		fmt.Printf("\n[%d/%d] %s\n", i+1, len(questions), q.Text)
		if q.Fallback != "" {
			fmt.Printf("      fallback: %s\n", q.Fallback)
		}
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return set, fmt.Errorf("read answer: %w", err)
		}
		answer := strings.TrimSpace(line)
		if answer == "" {
			continue
		}
		set.Answers = append(set.Answers, orchestrator.Answer{ID: q.ID, Answer: answer})
	}
	return set, nil
}

// parseConstraints turns repeated key=value flags into a constraint map.
// Malformed pairs are skipped with a warning.
func parseConstraints(pairs []string) map[string]any {
	if len(pairs) == 0 {
		return nil
	}
	constraints := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			logger.Warn("skipping malformed constraint", zap.String("pair", pair))
			continue
		}
		constraints[key] = strings.TrimSpace(value)
	}
	if len(constraints) == 0 {
		return nil
	}
	return constraints
}

// openStore opens the knowledge store and attaches the configured embedding
// engine. Without an engine the store still serves keyword recall.
func openStore() (*knowledge.Store, error) {
	dbPath := cfg.Knowledge.DatabasePath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(workspace, ".planforge", dbPath)
	}
	store, err := knowledge.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open knowledge store: %w", err)
	}
	engine, err := knowledge.NewEngine(knowledge.EngineConfig{
		Provider: cfg.Knowledge.Embedding.Provider,
		APIKey:   cfg.Knowledge.Embedding.APIKey,
		Model:    cfg.Knowledge.Embedding.Model,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("embedding engine: %w", err)
	}
	if engine != nil {
		store.SetEngine(engine)
	}
	return store, nil
}
