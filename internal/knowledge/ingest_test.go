package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestChunkMarkdownByHeadings(t *testing.T) {
	text := "# Title\n\nintro text\n\n## Section A\n\nbody a\n\n## Section B\n\nbody b\n"

	chunks := ChunkMarkdown(text, DefaultChunkSize)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %q", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[0], "# Title") {
		t.Errorf("chunk 0 = %q", chunks[0])
	}
	if !strings.HasPrefix(chunks[1], "## Section A") || !strings.Contains(chunks[1], "body a") {
		t.Errorf("chunk 1 = %q", chunks[1])
	}
}

func TestChunkMarkdownSplitsOversizedSections(t *testing.T) {
	para := strings.Repeat("word ", 60) // ~300 bytes
	text := "# Big\n\n" + para + "\n\n" + para + "\n\n" + para

	chunks := ChunkMarkdown(text, 400)

	if len(chunks) < 2 {
		t.Fatalf("oversized section should split, got %d chunk(s)", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 400+len(para) {
			t.Errorf("chunk %d is oversized: %d bytes", i, len(c))
		}
	}
}

func TestChunkMarkdownDropsWhitespace(t *testing.T) {
	if got := ChunkMarkdown("\n\n   \n\n", 100); len(got) != 0 {
		t.Errorf("expected no chunks, got %q", got)
	}
}

func TestIngestDir(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "guide.md", "# Guide\n\nuse the session tools\n")
	writeCorpusFile(t, dir, "nested/api.md", "# API\n\ncall stage_run with a goal\n")
	writeCorpusFile(t, dir, "ignore.txt", "not markdown")

	s := newTestStore(t)

	stats, err := IngestDir(context.Background(), s, dir)
	if err != nil {
		t.Fatalf("IngestDir failed: %v", err)
	}
	if stats.Files != 2 {
		t.Errorf("expected 2 files, got %d", stats.Files)
	}
	if stats.Chunks != 2 {
		t.Errorf("expected 2 chunks, got %d", stats.Chunks)
	}

	results, err := s.Search(context.Background(), "stage_run", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Source != "nested/api.md" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestIngestFileReplacesPreviousChunks(t *testing.T) {
	dir := t.TempDir()
	path := writeCorpusFile(t, dir, "doc.md", "# One\n\nfirst\n\n# Two\n\nsecond\n")

	s := newTestStore(t)
	ctx := context.Background()

	if _, err := IngestFile(ctx, s, dir, path); err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if n, _ := s.Count(); n != 2 {
		t.Fatalf("expected 2 chunks, got %d", n)
	}

	if err := os.WriteFile(path, []byte("# Only\n\nrewritten\n"), 0o644); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if _, err := IngestFile(ctx, s, dir, path); err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}

	if n, _ := s.Count(); n != 1 {
		t.Errorf("re-ingest should replace chunks, got %d", n)
	}
}

func writeCorpusFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	return path
}
