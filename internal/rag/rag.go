package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gas-assistant/internal/metrics"
	"gas-assistant/internal/models"

	"github.com/rs/zerolog/log"
)

// ErrIndexUnavailable marks a search that could not reach the index.
var ErrIndexUnavailable = errors.New("similarity index unavailable")

const DefaultLimit = 5

// Index is a similarity index over document chunks. Score is a cosine
// distance, results are ordered ascending.
type Index interface {
	AddChunks(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
	DeleteDocument(ctx context.Context, docID string) error
}

// Service answers similarity queries for the agents. It never fails: an
// unreachable index degrades to an empty result.
type Service struct {
	index        Index
	defaultLimit int
}

func NewService(index Index, defaultLimit int) *Service {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return &Service{index: index, defaultLimit: defaultLimit}
}

func (s *Service) Search(ctx context.Context, query string, limit int) []models.SearchResult {
	if s == nil || s.index == nil {
		log.Warn().Err(ErrIndexUnavailable).Str("query", query).Msg("No index configured")
		return []models.SearchResult{}
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}

	start := time.Now()
	results, err := s.index.Search(ctx, query, limit)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(fmt.Errorf("%w: %v", ErrIndexUnavailable, err)).Str("query", query).Msg("Search failed")
		return []models.SearchResult{}
	}
	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	log.Debug().Str("query", query).Int("results", len(results)).Msg("Search done")
	return results
}

// FormatContext renders search results for inclusion in a prompt.
func FormatContext(results []models.SearchResult) string {
	if len(results) == 0 {
		return models.NoContextFound
	}

	blocks := make([]string, 0, len(results))
	for i, r := range results {
		title := r.Metadata[models.MetaTitle]
		if title == "" {
			title = "Document sans titre"
		}
		docType := r.Metadata[models.MetaDocumentType]
		if docType == "" {
			docType = "Type inconnu"
		}
		blocks = append(blocks, fmt.Sprintf("Document %d (%s): %s\n%s\n", i+1, docType, title, r.Content))
	}
	return strings.Join(blocks, "\n")
}
