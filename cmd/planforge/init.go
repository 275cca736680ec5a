package main

import (
	"fmt"
	"os"
	"path/filepath"

	"planforge/internal/config"
	"planforge/internal/prompt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize planforge in the workspace",
	Long: `Creates the .planforge/ directory with a default config file and the
prompt override directory, plus the docs directory for the knowledge corpus.
Existing files are left alone.`,
	RunE: runInitWorkspace,
}

func runInitWorkspace(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
	} else if os.IsNotExist(err) {
		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", configPath)
	} else {
		return err
	}

	for _, dir := range []string{
		filepath.Join(workspace, prompt.OverrideDir),
		filepath.Join(workspace, cfg.Knowledge.DocsPath),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	fmt.Printf("Prompt overrides: %s (defaults: %v)\n",
		filepath.Join(workspace, prompt.OverrideDir), prompt.Names())
	fmt.Printf("Docs directory:   %s\n", filepath.Join(workspace, cfg.Knowledge.DocsPath))
	fmt.Println("Set OPENAI_API_KEY, ANTHROPIC_API_KEY, or ZAI_API_KEY, then try:")
	fmt.Println("  planforge run \"describe what you want built\"")
	return nil
}
