package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"gas-assistant/internal/config"
	"gas-assistant/internal/docstore"
	"gas-assistant/internal/models"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// Document is the row form of models.DocumentRecord. Seq keeps insertion
// order for listings.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string `bun:"id,pk"`
	Seq           int64  `bun:"seq,autoincrement"`
	Filename      string `bun:"filename,notnull"`
	Title         string `bun:"title"`
	DocumentType  string `bun:"document_type"`
	Description   string `bun:"description"`
	UploadDate    string `bun:"upload_date"`
	StoragePath   string `bun:"storage_path"`
	Indexed       bool   `bun:"indexed,notnull"`
}

// Chunk is an embedded chunk stored in a pgvector column.
type Chunk struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`
	ID            string            `bun:"id,pk"`
	DocumentID    string            `bun:"document_id,notnull"`
	ChunkIndex    int               `bun:"chunk_index,notnull"`
	Content       string            `bun:"content,notnull"`
	Metadata      map[string]string `bun:"metadata,type:jsonb"`
	Embedding     pgvector.Vector   `bun:"embedding,notnull,type:vector"`
	Distance      float64           `bun:"distance,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with the configured driver: the bun pgdriver
// (default) or lib/pq.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}
	switch cfg.Driver {
	case "pq", "postgres":
		return sql.Open("postgres", cfg.DSN)
	case "pgdriver", "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// InitDB creates the pgvector extension and both tables.
func InitDB(ctx context.Context, db *bun.DB, vectorSize int) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*Chunk)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create chunks table: %w", err)
	}
	if vectorSize > 0 {
		if _, err := db.ExecContext(ctx, "ALTER TABLE chunks ALTER COLUMN embedding TYPE vector(?)", vectorSize); err != nil {
			return fmt.Errorf("size embedding column: %w", err)
		}
	}
	_, err := db.NewCreateIndex().Model((*Chunk)(nil)).Index("chunks_document_id_idx").Column("document_id").IfNotExists().Exec(ctx)
	return err
}

// drop tables documents and chunks
func DropTables(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewDropTable().Model((*Chunk)(nil)).IfExists().Exec(ctx); err != nil {
		return err
	}
	_, err := db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx)
	return err
}

// DocumentStore is a docstore.Store backed by the documents table.
type DocumentStore struct {
	db *bun.DB
}

var _ docstore.Store = (*DocumentStore)(nil)

func NewDocumentStore(db *bun.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func toRow(rec models.DocumentRecord) *Document {
	return &Document{
		ID:           rec.ID,
		Filename:     rec.Filename,
		Title:        rec.Title,
		DocumentType: rec.DocumentType,
		Description:  rec.Description,
		UploadDate:   rec.UploadDate,
		StoragePath:  rec.StoragePath,
		Indexed:      rec.Indexed,
	}
}

func (d *Document) record() models.DocumentRecord {
	return models.DocumentRecord{
		ID:           d.ID,
		Filename:     d.Filename,
		Title:        d.Title,
		DocumentType: d.DocumentType,
		Description:  d.Description,
		UploadDate:   d.UploadDate,
		StoragePath:  d.StoragePath,
		Indexed:      d.Indexed,
	}
}

func (s *DocumentStore) upsertQuery(rec models.DocumentRecord) *bun.InsertQuery {
	return s.db.NewInsert().
		Model(toRow(rec)).
		On("CONFLICT (id) DO UPDATE").
		Set("filename = EXCLUDED.filename").
		Set("title = EXCLUDED.title").
		Set("document_type = EXCLUDED.document_type").
		Set("description = EXCLUDED.description").
		Set("upload_date = EXCLUDED.upload_date").
		Set("storage_path = EXCLUDED.storage_path").
		Set("indexed = EXCLUDED.indexed")
}

func (s *DocumentStore) Save(ctx context.Context, rec models.DocumentRecord) error {
	_, err := s.upsertQuery(rec).Exec(ctx)
	return err
}

func (s *DocumentStore) Get(ctx context.Context, id string) (models.DocumentRecord, error) {
	row := new(Document)
	err := s.db.NewSelect().Model(row).Where("d.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DocumentRecord{}, fmt.Errorf("%w: %s", docstore.ErrNotFound, id)
	}
	if err != nil {
		return models.DocumentRecord{}, err
	}
	return row.record(), nil
}

func (s *DocumentStore) List(ctx context.Context) ([]models.DocumentRecord, error) {
	var rows []Document
	if err := s.db.NewSelect().Model(&rows).OrderExpr("d.seq ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]models.DocumentRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].record())
	}
	return out, nil
}

func (s *DocumentStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.NewDelete().Model((*Document)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// VectorIndex is a similarity index over the chunks table using pgvector
// cosine distance.
type VectorIndex struct {
	db       *bun.DB
	embedder embeddings.Embedder
}

func NewVectorIndex(db *bun.DB, embedder embeddings.Embedder) *VectorIndex {
	return &VectorIndex{db: db, embedder: embedder}
}

func (v *VectorIndex) AddChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := v.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	rows := make([]Chunk, len(chunks))
	for i, c := range chunks {
		meta := make(map[string]string, len(c.Metadata)+1)
		for k, val := range c.Metadata {
			meta[k] = val
		}
		meta[models.MetaChunkIndex] = strconv.Itoa(c.Index)
		rows[i] = Chunk{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Metadata:   meta,
			Embedding:  pgvector.NewVector(vectors[i]),
		}
	}
	_, err = v.db.NewInsert().Model(&rows).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	return err
}

func (v *VectorIndex) searchQuery(query pgvector.Vector, limit int) *bun.SelectQuery {
	return v.db.NewSelect().
		Model((*Chunk)(nil)).
		Column("id", "document_id", "chunk_index", "content", "metadata").
		ColumnExpr("c.embedding <=> ? AS distance", query).
		OrderExpr("distance ASC").
		Limit(limit)
}

func (v *VectorIndex) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	if limit <= 0 || query == "" {
		return nil, nil
	}
	vec, err := v.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var rows []Chunk
	if err := v.searchQuery(pgvector.NewVector(vec), limit).Scan(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]models.SearchResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.SearchResult{
			Content:  r.Content,
			Metadata: r.Metadata,
			Score:    r.Distance,
		})
	}
	return out, nil
}

func (v *VectorIndex) DeleteDocument(ctx context.Context, docID string) error {
	_, err := v.db.NewDelete().Model((*Chunk)(nil)).Where("document_id = ?", docID).Exec(ctx)
	return err
}
