package parser

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// convertWithOffice runs a headless office conversion to plain text and
// waits for the output file to appear.
func (e *Extractor) convertWithOffice(ctx context.Context, path string) (string, error) {
	if e.sofficePath == "" {
		return "", errors.New("no office converter configured")
	}
	outDir, err := os.MkdirTemp("", "gas-convert-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(outDir)

	ctx, cancel := context.WithTimeout(ctx, e.convertTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.sofficePath, "--headless", "--convert-to", "txt", path, "--outdir", outDir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("office conversion: %w: %s", err, strings.TrimSpace(string(out)))
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	converted := filepath.Join(outDir, stem+".txt")
	if err := e.waitForFile(ctx, converted); err != nil {
		return "", err
	}

	data, err := os.ReadFile(converted)
	if err != nil {
		return "", err
	}
	log.Debug().Str("file", filepath.Base(path)).Int("bytes", len(data)).Msg("Office conversion done")
	return strings.ToValidUTF8(string(data), ""), nil
}

func (e *Extractor) waitForFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("converted file not found after %s", e.convertTimeout)
		case <-ticker.C:
			if _, err := os.Stat(path); err == nil {
				return nil
			}
		}
	}
}

// parsePPTX reads the text runs of every slide, in slide order.
func parsePPTX(filePath string) (string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range f.File {
		m := slideNameRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, file: file})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var texts []string
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(extractRuns(string(data), drawingRunRe, "</a:p>")); text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n\n"), nil
}
