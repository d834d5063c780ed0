package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"gas-assistant/internal/config"
	"gas-assistant/internal/models"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db             *chromem.DB
	embed          chromem.EmbeddingFunc
	collectionName string
	dbPath         string
	compress       bool
	encryptionKey  string
	filePath       string

	mu         sync.Mutex
	collection *chromem.Collection
}

// NewVectorDBManager opens (or creates) the database at cfg.VectorDBPath.
// The collection itself is only created on the first add.
func NewVectorDBManager(cfg config.RAGConfig, embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.VectorDBPath, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}
	return newManager(db, cfg, embed), nil
}

func newManager(db *chromem.DB, cfg config.RAGConfig, embed chromem.EmbeddingFunc) *VectorDBManager {
	return &VectorDBManager{
		db:             db,
		embed:          embed,
		collectionName: cfg.Collection,
		dbPath:         cfg.VectorDBPath,
		compress:       cfg.Compress,
		encryptionKey:  cfg.EncryptionKey,
		filePath:       filepath.Join(cfg.VectorDBPath, cfg.Collection+".chromem"),
	}
}

// existing returns the collection if it exists, without creating it.
func (m *VectorDBManager) existing() *chromem.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collection == nil {
		m.collection = m.db.GetCollection(m.collectionName, m.embed)
	}
	return m.collection
}

// create or read collection
func (m *VectorDBManager) getOrCreateCollection() (*chromem.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collection != nil {
		return m.collection, nil
	}
	c, err := m.db.GetOrCreateCollection(m.collectionName, nil, m.embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}
	m.collection = c
	return c, nil
}

// AddChunks embeds and stores chunks
func (m *VectorDBManager) AddChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	c, err := m.getOrCreateCollection()
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, chunk := range chunks {
		meta := make(map[string]string, len(chunk.Metadata)+1)
		for k, v := range chunk.Metadata {
			meta[k] = v
		}
		meta[models.MetaChunkIndex] = strconv.Itoa(chunk.Index)
		docs = append(docs, chromem.Document{
			ID:       chunk.ID,
			Content:  chunk.Content,
			Metadata: meta,
		})
	}

	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	log.Debug().Int("chunks", len(docs)).Str("collection", m.collectionName).Msg("Added chunks")
	return nil
}

// Search returns at most limit chunks ordered by cosine distance. A missing
// or empty collection yields no results.
func (m *VectorDBManager) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	c := m.existing()
	if c == nil || limit <= 0 || query == "" {
		return nil, nil
	}
	count := c.Count()
	if count == 0 {
		return nil, nil
	}
	limit = min(limit, count)

	results, err := c.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryText: query,
		NResults:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, models.SearchResult{
			Content:  r.Content,
			Metadata: r.Metadata,
			Score:    1 - float64(r.Similarity),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out, nil
}

// DeleteDocument removes every chunk of docID.
func (m *VectorDBManager) DeleteDocument(ctx context.Context, docID string) error {
	c := m.existing()
	if c == nil {
		return nil
	}
	if err := c.Delete(ctx, map[string]string{models.MetaDocID: docID}, nil); err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", docID, err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (m *VectorDBManager) Count() int {
	c := m.existing()
	if c == nil {
		return 0
	}
	return c.Count()
}

// delete collection
func (m *VectorDBManager) DeleteCollection() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	m.collection = nil
	return nil
}

// Export writes the collection to <vector_db_path>/<collection>.chromem,
// encrypted with the configured key.
func (m *VectorDBManager) Export(ctx context.Context) (string, error) {
	if m.encryptionKey == "" {
		return "", errors.New("encryption key is required")
	}
	if m.existing() == nil {
		return "", errors.New("collection does not exist")
	}

	log.Debug().
		Str("collection", m.collectionName).
		Str("file", m.filePath).
		Bool("compress", m.compress).
		Msg("Exporting collection")
	if err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.collectionName); err != nil {
		return "", fmt.Errorf("failed to export database: %v", err)
	}
	return m.filePath, nil
}

// Import loads the collection from a file written by Export.
func (m *VectorDBManager) Import(ctx context.Context, path string) error {
	if path == "" {
		path = m.filePath
	}
	if err := m.db.ImportFromFile(path, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to import database: %v", err)
	}
	m.mu.Lock()
	m.collection = nil
	m.mu.Unlock()
	return nil
}
