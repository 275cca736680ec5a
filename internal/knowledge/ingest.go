package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"planforge/internal/logging"

	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is the target chunk length in bytes. Sections larger than
// this split on paragraph boundaries.
const DefaultChunkSize = 1500

// ingestWorkers bounds concurrent file ingestion.
const ingestWorkers = 4

// IngestStats summarizes one ingest pass.
type IngestStats struct {
	Files  int
	Chunks int
}

// IngestDir walks dir for markdown files and (re)ingests each into the
// store. Files are processed concurrently; chunks from one file land in one
// transaction. Sources are recorded relative to dir so re-ingest after a
// move of the corpus root still replaces the right rows.
func IngestDir(ctx context.Context, store *Store, dir string) (IngestStats, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return IngestStats{}, fmt.Errorf("walk corpus dir: %w", err)
	}

	var chunkCount atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestWorkers)
	for _, path := range files {
		g.Go(func() error {
			n, err := IngestFile(gctx, store, dir, path)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", path, err)
			}
			chunkCount.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return IngestStats{}, err
	}

	stats := IngestStats{Files: len(files), Chunks: int(chunkCount.Load())}
	logging.Knowledge("ingested %d file(s), %d chunk(s) from %s", stats.Files, stats.Chunks, dir)
	return stats, nil
}

// IngestFile chunks one markdown file and replaces its rows in the store.
// Returns the number of chunks stored.
func IngestFile(ctx context.Context, store *Store, root, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	source := path
	if rel, err := filepath.Rel(root, path); err == nil {
		source = filepath.ToSlash(rel)
	}

	chunks := ChunkMarkdown(string(data), DefaultChunkSize)
	if err := store.DeleteSource(source); err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	meta := map[string]any{"path": source}
	if err := store.AddBatch(ctx, source, chunks, meta); err != nil {
		return 0, err
	}

	logging.KnowledgeDebug("%s: %d chunk(s)", source, len(chunks))
	return len(chunks), nil
}

// ChunkMarkdown splits markdown into retrieval chunks: one per heading
// section, with oversized sections split again on paragraph boundaries.
// Whitespace-only chunks are dropped.
func ChunkMarkdown(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}

	var chunks []string
	for _, section := range splitSections(text) {
		if len(section) <= maxSize {
			chunks = appendChunk(chunks, section)
			continue
		}

		var buf strings.Builder
		for _, para := range strings.Split(section, "\n\n") {
			if buf.Len() > 0 && buf.Len()+len(para) > maxSize {
				chunks = appendChunk(chunks, buf.String())
				buf.Reset()
			}
			if buf.Len() > 0 {
				buf.WriteString("\n\n")
			}
			buf.WriteString(para)
		}
		chunks = appendChunk(chunks, buf.String())
	}
	return chunks
}

// splitSections cuts markdown at heading lines, keeping each heading with
// the text below it.
func splitSections(text string) []string {
	lines := strings.Split(text, "\n")

	var sections []string
	var current []string
	for _, line := range lines {
		if strings.HasPrefix(line, "#") && len(current) > 0 {
			sections = append(sections, strings.Join(current, "\n"))
			current = current[:0]
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}
	return sections
}

func appendChunk(chunks []string, chunk string) []string {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return chunks
	}
	return append(chunks, chunk)
}
