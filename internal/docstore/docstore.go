package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gas-assistant/internal/models"

	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("document not found")

// Store keeps the document records.
type Store interface {
	// Save inserts rec or replaces the record with the same id in place.
	Save(ctx context.Context, rec models.DocumentRecord) error
	Get(ctx context.Context, id string) (models.DocumentRecord, error)
	List(ctx context.Context) ([]models.DocumentRecord, error)
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, id string) (bool, error)
}

// JSONStore keeps all records in one JSON array, rewritten on every change.
// A missing or undecodable file reads as an empty store.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) load() ([]models.DocumentRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.DocumentRecord{}, nil
		}
		return nil, err
	}
	var records []models.DocumentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Document index is corrupt, reading as empty")
		return []models.DocumentRecord{}, nil
	}
	if records == nil {
		records = []models.DocumentRecord{}
	}
	return records, nil
}

func (s *JSONStore) write(records []models.DocumentRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace document index: %w", err)
	}
	return nil
}

func (s *JSONStore) Save(_ context.Context, rec models.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range records {
		if records[i].ID == rec.ID {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}
	return s.write(records)
}

func (s *JSONStore) Get(_ context.Context, id string) (models.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return models.DocumentRecord{}, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return models.DocumentRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *JSONStore) List(_ context.Context) ([]models.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *JSONStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return false, err
	}
	for i, rec := range records {
		if rec.ID == id {
			records = append(records[:i], records[i+1:]...)
			return true, s.write(records)
		}
	}
	return false, nil
}
