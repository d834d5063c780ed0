package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gas-assistant/internal/docstore"
	"gas-assistant/internal/helper"
	"gas-assistant/internal/metrics"
	"gas-assistant/internal/models"
	"gas-assistant/internal/parser"
	"gas-assistant/internal/rag"

	"github.com/rs/zerolog/log"
)

// Extractor turns a stored file into text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Pipeline stores uploaded files, records them and feeds their chunks to
// the similarity index.
type Pipeline struct {
	store     docstore.Store
	index     rag.Index
	extractor Extractor
	splitter  *parser.Splitter
	uploadDir string
	now       func() time.Time
}

func New(store docstore.Store, index rag.Index, extractor Extractor, splitter *parser.Splitter, uploadDir string) *Pipeline {
	return &Pipeline{
		store:     store,
		index:     index,
		extractor: extractor,
		splitter:  splitter,
		uploadDir: uploadDir,
		now:       time.Now,
	}
}

// Ingest copies the file at path into the upload directory, records it and
// indexes it. An indexing failure is logged and leaves the record with
// Indexed=false; only an unsupported format, a failed copy or a failed save
// are returned as errors.
func (p *Pipeline) Ingest(ctx context.Context, path, title, documentType, description string) (models.DocumentRecord, error) {
	if !parser.IsSupported(path) {
		metrics.Documents.WithLabelValues("rejected").Inc()
		return models.DocumentRecord{}, fmt.Errorf("%w: %s", parser.ErrUnsupportedFormat, filepath.Ext(path))
	}

	id, err := helper.GenerateUUID()
	if err != nil {
		return models.DocumentRecord{}, err
	}
	filename := filepath.Base(path)
	dest := filepath.Join(p.uploadDir, id+"_"+filename)
	if err := helper.CopyFile(path, dest); err != nil {
		return models.DocumentRecord{}, fmt.Errorf("copy %s: %w", filename, err)
	}

	rec := models.DocumentRecord{
		ID:           id,
		Filename:     filename,
		Title:        title,
		DocumentType: documentType,
		Description:  description,
		UploadDate:   p.now().Format(time.RFC3339),
		StoragePath:  dest,
		Indexed:      false,
	}
	if err := p.store.Save(ctx, rec); err != nil {
		os.Remove(dest)
		return models.DocumentRecord{}, fmt.Errorf("save record %s: %w", id, err)
	}
	metrics.Documents.WithLabelValues("stored").Inc()
	log.Info().Str("doc_id", id).Str("file", filename).Msg("Document stored")

	indexed, err := p.IndexDocument(ctx, rec)
	if err != nil {
		log.Error().Err(err).Str("doc_id", id).Msg("Indexing failed, document kept unindexed")
		return rec, nil
	}
	return indexed, nil
}

// IndexDocument extracts, splits and indexes the stored file of rec, then
// marks the record indexed. The record is left untouched on failure.
func (p *Pipeline) IndexDocument(ctx context.Context, rec models.DocumentRecord) (models.DocumentRecord, error) {
	if p.index == nil {
		return rec, rag.ErrIndexUnavailable
	}
	text, err := p.extractor.Extract(ctx, rec.StoragePath)
	if err != nil {
		return rec, err
	}
	chunks, err := p.splitter.Chunks(rec, text)
	if err != nil {
		return rec, fmt.Errorf("%w: %v", parser.ErrExtraction, err)
	}
	if len(chunks) == 0 {
		return rec, fmt.Errorf("%w: %s: no chunks", parser.ErrExtraction, rec.Filename)
	}
	if err := p.index.AddChunks(ctx, chunks); err != nil {
		return rec, fmt.Errorf("index %s: %w", rec.ID, err)
	}

	rec.Indexed = true
	if err := p.store.Save(ctx, rec); err != nil {
		return rec, fmt.Errorf("mark %s indexed: %w", rec.ID, err)
	}
	metrics.Documents.WithLabelValues("indexed").Inc()
	log.Info().Str("doc_id", rec.ID).Int("chunks", len(chunks)).Msg("Document indexed")
	return rec, nil
}

// ReindexReport summarizes a reconciliation run.
type ReindexReport struct {
	Attempted int      `json:"attempted"`
	Indexed   int      `json:"indexed"`
	Failed    int      `json:"failed"`
	Missing   []string `json:"missing,omitempty"`
}

// Reindex retries the index step for every record still marked unindexed
// whose stored file exists.
func (p *Pipeline) Reindex(ctx context.Context) (ReindexReport, error) {
	var report ReindexReport
	records, err := p.store.List(ctx)
	if err != nil {
		return report, err
	}
	for _, rec := range records {
		if rec.Indexed {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !helper.FileExists(rec.StoragePath) {
			report.Missing = append(report.Missing, rec.ID)
			log.Warn().Str("doc_id", rec.ID).Str("path", rec.StoragePath).Msg("Stored file missing, cannot reindex")
			continue
		}
		report.Attempted++
		if _, err := p.IndexDocument(ctx, rec); err != nil {
			report.Failed++
			log.Error().Err(err).Str("doc_id", rec.ID).Msg("Reindex failed")
			continue
		}
		report.Indexed++
	}
	log.Info().Int("attempted", report.Attempted).Int("indexed", report.Indexed).Int("failed", report.Failed).Msg("Reindex done")
	return report, nil
}

// Delete removes the record, then its stored file and its chunks. The
// record goes first so a failed store write leaves everything in place.
// It reports false for an unknown id.
func (p *Pipeline) Delete(ctx context.Context, id string) (bool, error) {
	rec, err := p.store.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ok, err := p.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := os.Remove(rec.StoragePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("doc_id", id).Msg("Could not remove stored file")
	}
	if p.index != nil {
		if err := p.index.DeleteDocument(ctx, id); err != nil {
			log.Warn().Err(err).Str("doc_id", id).Msg("Could not remove chunks from index")
		}
	}
	log.Info().Str("doc_id", id).Msg("Document deleted")
	return true, nil
}

// Get returns the record with id.
func (p *Pipeline) Get(ctx context.Context, id string) (models.DocumentRecord, error) {
	return p.store.Get(ctx, id)
}

// List returns every record in storage order.
func (p *Pipeline) List(ctx context.Context) ([]models.DocumentRecord, error) {
	return p.store.List(ctx)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
