package parser

import (
	"fmt"
	"strings"

	"gas-assistant/internal/models"

	"github.com/tmc/langchaingo/textsplitter"
)

// paragraph, line, sentence, word, character
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter cuts extracted text into overlapping chunks, preferring the
// coarsest separator that keeps a chunk under the size limit.
type Splitter struct {
	splitter textsplitter.RecursiveCharacter
}

func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &Splitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(separators),
		),
	}
}

// Chunks splits text and stamps every chunk with the metadata of rec.
func (s *Splitter) Chunks(rec models.DocumentRecord, text string) ([]models.Chunk, error) {
	parts, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", rec.ID, err)
	}

	chunks := make([]models.Chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		idx := len(chunks)
		chunks = append(chunks, models.Chunk{
			ID:         fmt.Sprintf("%s-%d", rec.ID, idx),
			DocumentID: rec.ID,
			Index:      idx,
			Content:    part,
			Metadata:   models.ChunkMetadata(rec),
		})
	}
	return chunks, nil
}
