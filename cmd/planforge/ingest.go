package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"planforge/internal/knowledge"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchDocs bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Ingest markdown documents into the knowledge corpus",
	Long: `Chunks every .md file under the directory (default: the configured
docs path) and stores the chunks for retrieval by the knowledge_search tool.
Re-ingesting a file replaces its previous chunks.

With --watch the command keeps running and re-ingests files as they change.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&watchDocs, "watch", false, "Keep watching the directory for changes")
}

func runIngest(cmd *cobra.Command, args []string) error {
	dir := cfg.Knowledge.DocsPath
	if len(args) > 0 {
		dir = args[0]
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(workspace, dir)
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("docs directory: %w", err)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stats, err := knowledge.IngestDir(ctx, store, dir)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", dir, err)
	}
	total, _ := store.Count()
	logger.Info("ingest complete",
		zap.Int("files", stats.Files),
		zap.Int("chunks", stats.Chunks),
		zap.Int("corpus_chunks", total))
	fmt.Printf("Ingested %d file(s), %d chunk(s); corpus now holds %d chunk(s).\n",
		stats.Files, stats.Chunks, total)

	if !watchDocs && !cfg.Knowledge.Watch {
		return nil
	}

	watcher, err := knowledge.NewWatcher(store, dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Printf("Watching %s for changes (Ctrl-C to stop)...\n", dir)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}
