package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"planforge/internal/logging"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one retrieved corpus chunk.
type Entry struct {
	ID         int64          `json:"id"`
	Source     string         `json:"source"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	Similarity float64        `json:"similarity,omitempty"`
}

// Store holds corpus chunks in SQLite. With an embedding engine configured,
// search is semantic (cosine similarity over stored embeddings); without
// one, storage and recall degrade to keyword matching.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	engine Engine
}

// NewStore opens (creating if needed) the corpus database at path.
func NewStore(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewStore")
	defer timer.Stop()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set journal_mode=WAL: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Corpus store ready at %s", path)
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chunks (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			source     TEXT NOT NULL,
			content    TEXT NOT NULL,
			embedding  TEXT,
			metadata   TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SetEngine configures the embedding engine. Call before Add for semantic
// storage; a nil engine keeps the store in keyword mode.
func (s *Store) SetEngine(engine Engine) {
	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()
}

// Add stores one chunk, embedding it when an engine is configured.
func (s *Store) Add(ctx context.Context, source, content string, metadata map[string]any) error {
	return s.AddBatch(ctx, source, []string{content}, metadata)
}

// AddBatch stores several chunks from one source in a single transaction,
// embedding them in one batch call.
func (s *Store) AddBatch(ctx context.Context, source string, contents []string, metadata map[string]any) error {
	if len(contents) == 0 {
		return nil
	}

	timer := logging.StartTimer(logging.CategoryStore, "AddBatch")
	defer timer.Stop()

	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	// Embedding is a network call; keep it outside the write lock so
	// concurrent ingest workers embed in parallel.
	var embeddings [][]float32
	if engine != nil {
		var err error
		embeddings, err = engine.EmbedBatch(ctx, contents)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	metaJSON, _ := json.Marshal(metadata)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO chunks (source, content, embedding, metadata) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, content := range contents {
		var embJSON any
		if embeddings != nil {
			data, err := json.Marshal(embeddings[i])
			if err != nil {
				return fmt.Errorf("failed to serialize embedding: %w", err)
			}
			embJSON = string(data)
		}
		if _, err := stmt.Exec(source, content, embJSON, string(metaJSON)); err != nil {
			return err
		}
	}

	logging.StoreDebug("stored %d chunk(s) from %s", len(contents), source)
	return tx.Commit()
}

// DeleteSource removes every chunk ingested from the given source. Used
// before re-ingesting a changed file.
func (s *Store) DeleteSource(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM chunks WHERE source = ?", source)
	return err
}

// Search returns the best-matching chunks for the query: by cosine
// similarity when an engine is configured, by keyword match otherwise.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Search")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 5
	}
	if s.engine == nil {
		return s.keywordSearch(query, limit)
	}
	return s.semanticSearch(ctx, query, limit)
}

func (s *Store) semanticSearch(ctx context.Context, query string, limit int) ([]Entry, error) {
	queryVec, err := s.queryEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.db.Query("SELECT id, source, content, embedding, metadata, created_at FROM chunks WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Entry
	for rows.Next() {
		var entry Entry
		var embJSON, metaJSON string
		if err := rows.Scan(&entry.ID, &entry.Source, &entry.Content, &embJSON, &metaJSON, &entry.CreatedAt); err != nil {
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(embJSON), &vec); err != nil {
			continue
		}
		sim, err := CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}
		entry.Similarity = sim
		if metaJSON != "" {
			json.Unmarshal([]byte(metaJSON), &entry.Metadata)
		}
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}

	logging.StoreDebug("semantic search %q: %d result(s)", query, len(results))
	return results, nil
}

// queryEmbedding prefers the engine's query-side task type when it offers
// one (retrieval engines embed queries and documents differently).
func (s *Store) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if qe, ok := s.engine.(interface {
		EmbedQuery(ctx context.Context, text string) ([]float32, error)
	}); ok {
		return qe.EmbedQuery(ctx, query)
	}
	return s.engine.Embed(ctx, query)
}

func (s *Store) keywordSearch(query string, limit int) ([]Entry, error) {
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 {
		return nil, nil
	}

	conditions := make([]string, 0, len(keywords))
	args := make([]any, 0, len(keywords)+1)
	for _, kw := range keywords {
		conditions = append(conditions, "LOWER(content) LIKE ?")
		args = append(args, "%"+kw+"%")
	}
	args = append(args, limit)

	rows, err := s.db.Query(fmt.Sprintf(
		"SELECT id, source, content, metadata, created_at FROM chunks WHERE %s ORDER BY created_at DESC LIMIT ?",
		strings.Join(conditions, " OR "),
	), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Entry
	for rows.Next() {
		var entry Entry
		var metaJSON string
		if err := rows.Scan(&entry.ID, &entry.Source, &entry.Content, &metaJSON, &entry.CreatedAt); err != nil {
			continue
		}
		if metaJSON != "" {
			json.Unmarshal([]byte(metaJSON), &entry.Metadata)
		}
		results = append(results, entry)
	}

	logging.StoreDebug("keyword search %q: %d result(s)", query, len(results))
	return results, rows.Err()
}

// Count returns the number of stored chunks.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
