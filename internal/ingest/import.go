package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gas-assistant/internal/parser"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type ImportOptions struct {
	// Max caps the number of files imported; 0 means all.
	Max         int
	Concurrency int
	// Interval is the minimum delay between two imports.
	Interval time.Duration
}

type ImportFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type ImportReport struct {
	Found       int             `json:"found"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	ByExtension map[string]int  `json:"by_extension"`
	Failures    []ImportFailure `json:"failures,omitempty"`
}

// FindDocuments walks dir recursively and returns the supported files in
// lexical order.
func FindDocuments(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && parser.IsSupported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// ImportDir ingests every supported file below dir. The title is the file
// stem, the type comes from the extension and the description records the
// relative path. A failing file never aborts the batch.
func (p *Pipeline) ImportDir(ctx context.Context, dir string, opts ImportOptions) (ImportReport, error) {
	report := ImportReport{ByExtension: map[string]int{}}

	files, err := FindDocuments(dir)
	if err != nil {
		return report, err
	}
	report.Found = len(files)
	if opts.Max > 0 && opts.Max < len(files) {
		log.Info().Int("found", len(files)).Int("max", opts.Max).Msg("Limiting import")
		files = files[:opts.Max]
	}

	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))

	var mu sync.Mutex
	for i, path := range files {
		if err := limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			ext := strings.ToLower(filepath.Ext(path))
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				rel = filepath.Base(path)
			}
			description := "Document importé du dossier " + filepath.Base(dir) + " - Chemin: " + filepath.ToSlash(rel)

			log.Info().Int("n", i+1).Int("total", len(files)).Str("file", rel).Msg("Importing")
			rec, err := p.Ingest(gctx, path, stem(path), parser.DocumentType(path), description)

			mu.Lock()
			defer mu.Unlock()
			report.ByExtension[ext]++
			if err != nil {
				report.Failed++
				report.Failures = append(report.Failures, ImportFailure{Path: rel, Error: err.Error()})
				log.Error().Err(err).Str("file", rel).Msg("Import failed")
				return nil
			}
			report.Succeeded++
			log.Debug().Str("doc_id", rec.ID).Bool("indexed", rec.Indexed).Msg("Imported")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}
