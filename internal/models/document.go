package models

// DocumentRecord describes one ingested source file.
type DocumentRecord struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	Title        string `json:"title"`
	DocumentType string `json:"document_type"`
	Description  string `json:"description"`
	UploadDate   string `json:"upload_date"`
	StoragePath  string `json:"storage_path"`
	Indexed      bool   `json:"indexed"`
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Content    string
	Metadata   map[string]string
}

// SearchResult is a chunk returned by similarity search. Score is a cosine
// distance: lower means closer.
type SearchResult struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score"`
}

// metadata keys stamped on every chunk
const (
	MetaDocID        = "doc_id"
	MetaTitle        = "title"
	MetaDocumentType = "document_type"
	MetaDescription  = "description"
	MetaFilename     = "filename"
	MetaChunkIndex   = "chunk_index"
)

// ChunkMetadata returns the metadata every chunk of rec carries.
func ChunkMetadata(rec DocumentRecord) map[string]string {
	return map[string]string{
		MetaDocID:        rec.ID,
		MetaTitle:        rec.Title,
		MetaDocumentType: rec.DocumentType,
		MetaDescription:  rec.Description,
		MetaFilename:     rec.Filename,
	}
}
