package parser

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"gas-assistant/internal/config"
	"gas-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func noOffice() *Extractor {
	return NewExtractor(config.OfficeConfig{SofficePath: "/nonexistent/soffice", ConvertTimeout: time.Second})
}

func TestIsSupported(t *testing.T) {
	for _, name := range []string{"a.txt", "b.PDF", "c.doc", "d.Docx", "e.ppt", "f.pptx"} {
		assert.True(t, IsSupported(name), name)
	}
	for _, name := range []string{"a.xlsx", "b", "c.md", "d.txt.bak"} {
		assert.False(t, IsSupported(name), name)
	}
	assert.Equal(t, "powerpoint", DocumentType("slides.PPTX"))
	assert.Equal(t, "texte", DocumentType("notes.txt"))
}

func TestExtract_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("Le compteur Gazpar est communicant."), 0o600))

	text, err := noOffice().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Le compteur Gazpar est communicant.", text)
}

func TestExtract_EmptyTextIsExtractionError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("  \n\n "), 0o600))

	_, err := noOffice().Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := noOffice().Extract(context.Background(), "report.xlsx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtract_Docx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.docx")
	writeZip(t, path, map[string]string{
		"word/document.xml": `<?xml version="1.0"?><w:document><w:body>` +
			`<w:p><w:r><w:t>Sécurité</w:t></w:r><w:r><w:t xml:space="preserve"> des installations</w:t></w:r></w:p>` +
			`<w:p><w:r><w:t>Gaz &amp; réseau</w:t></w:r></w:p>` +
			`</w:body></w:document>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0"?><Relationships></Relationships>`,
	})

	text, err := noOffice().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Sécurité des installations\nGaz & réseau", text)
}

func TestExtract_PPTXFallbackKeepsSlideOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	writeZip(t, path, map[string]string{
		"ppt/slides/slide10.xml": `<p:sld><a:p><a:r><a:t>Dixième</a:t></a:r></a:p></p:sld>`,
		"ppt/slides/slide2.xml":  `<p:sld><a:p><a:r><a:t>Deuxième</a:t></a:r></a:p></p:sld>`,
		"ppt/slides/slide1.xml":  `<p:sld><a:p><a:r><a:t>Première</a:t></a:r></a:p><a:p><a:r><a:t>Biométhane @ 2030</a:t></a:r></a:p></p:sld>`,

		"ppt/slides/_rels/slide1.xml.rels": `<Relationships/>`,
	})

	text, err := noOffice().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Première\nBiométhane  2030\n\nDeuxième\n\nDixième", text)
}

func TestExtract_PPTAndDocWithoutConverter(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"old.ppt", "old.doc"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("\xd0\xcf\x11\xe0binary"), 0o600))
		_, err := noOffice().Extract(context.Background(), path)
		assert.ErrorIs(t, err, ErrExtraction, name)
	}
}

func TestExtract_CorruptPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o600))
	_, err := noOffice().Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestExtract_OfficeConverter(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script converter")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "soffice")
	require.NoError(t, os.WriteFile(script, []byte(`#!/bin/sh
b=$(basename "$4")
printf 'Texte converti\n\n\n\nFin' > "$6/${b%.*}.txt"
`), 0o755))

	path := filepath.Join(dir, "deck.ppt")
	require.NoError(t, os.WriteFile(path, []byte("binary"), 0o600))

	e := NewExtractor(config.OfficeConfig{SofficePath: script, ConvertTimeout: 5 * time.Second})
	text, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Texte converti\n\nFin", text)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a\n\nb", CleanText("a\n\n\n\n\nb"))
	assert.Equal(t, "Coût: 12 (TTC) - réduit!", CleanText("Coût: 12€ (TTC) - réduit!*"))
}

func TestSplitter_Chunks(t *testing.T) {
	rec := models.DocumentRecord{ID: "doc1", Title: "Guide", DocumentType: "pdf", Description: "d", Filename: "guide.pdf"}
	sentence := "Le réseau de distribution de gaz naturel dessert les communes. "
	text := strings.Repeat(sentence, 60) + "\n\n" + strings.Repeat(sentence, 30)

	chunks, err := NewSplitter(1000, 200).Chunks(rec, text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, fmt.Sprintf("doc1-%d", i), c.ID)
		assert.Equal(t, "doc1", c.DocumentID)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 1000)
		assert.Equal(t, "Guide", c.Metadata[models.MetaTitle])
		assert.Equal(t, "doc1", c.Metadata[models.MetaDocID])
		assert.Equal(t, "pdf", c.Metadata[models.MetaDocumentType])
	}
}

func TestSplitter_ShortText(t *testing.T) {
	chunks, err := NewSplitter(1000, 200).Chunks(models.DocumentRecord{ID: "x"}, "court")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "court", chunks[0].Content)
	assert.Equal(t, "x-0", chunks[0].ID)
}
