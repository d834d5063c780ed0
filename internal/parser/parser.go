package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gas-assistant/internal/config"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrExtraction        = errors.New("text extraction failed")
)

// SupportedExtensions maps every accepted extension to the document type
// used by batch imports.
var SupportedExtensions = map[string]string{
	".txt":  "texte",
	".pdf":  "pdf",
	".doc":  "word",
	".docx": "word",
	".ppt":  "powerpoint",
	".pptx": "powerpoint",
}

// IsSupported reports whether path has an accepted extension (case-insensitive).
func IsSupported(path string) bool {
	_, ok := SupportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// DocumentType returns the document type derived from the extension of path.
func DocumentType(path string) string {
	return SupportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Extractor turns a stored file into plain text. Office formats go through
// an external converter first.
type Extractor struct {
	sofficePath    string
	convertTimeout time.Duration
	pollInterval   time.Duration
}

func NewExtractor(cfg config.OfficeConfig) *Extractor {
	timeout := cfg.ConvertTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Extractor{
		sofficePath:    cfg.SofficePath,
		convertTimeout: timeout,
		pollInterval:   500 * time.Millisecond,
	}
}

// Extract returns the text content of path. All failures wrap ErrExtraction,
// except an unknown extension which is ErrUnsupportedFormat.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := SupportedExtensions[ext]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	var text string
	var err error
	switch ext {
	case ".txt":
		text, err = parseText(path)
	case ".pdf":
		text, err = parsePDF(path)
	case ".docx":
		text, err = parseDOCX(path)
	case ".doc":
		text, err = e.convertWithOffice(ctx, path)
	case ".ppt", ".pptx":
		text, err = e.parsePresentation(ctx, path)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExtraction, filepath.Base(path), err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s: no text content", ErrExtraction, filepath.Base(path))
	}
	return text, nil
}

func parseText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parsePDF(filePath string) (text string, err error) {
	// the pdf reader panics on some malformed fonts and xref tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader: %v", r)
		}
	}()

	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", err
	}

	var pages []string
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) != "" {
			pages = append(pages, pageText)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func parseDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	return extractRuns(r.Editable().GetContent(), wordRunRe, "</w:p>"), nil
}

// parsePresentation prefers the external converter and falls back to reading
// slide XML directly.
func (e *Extractor) parsePresentation(ctx context.Context, path string) (string, error) {
	text, err := e.convertWithOffice(ctx, path)
	if err == nil {
		return CleanText(text), nil
	}
	log.Warn().Err(err).Str("file", filepath.Base(path)).Msg("Office conversion failed, reading slides directly")

	text, err = parsePPTX(path)
	if err != nil {
		return "", err
	}
	return CleanText(text), nil
}
