package fairness

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/zulandar/switchboard/internal/models"
)

// documentName is the row key for the fairness document in the database.
const documentName = "fairness"

// MemoryStore is an in-memory Store for tests and single-run tooling.
// Read and Write deep-copy so callers keep whole-document semantics.
type MemoryStore struct {
	doc Document
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{doc: make(Document)}
}

// Read returns a copy of the stored document.
func (s *MemoryStore) Read() (Document, error) {
	return copyDocument(s.doc), nil
}

// Write replaces the stored document with a copy of doc.
func (s *MemoryStore) Write(doc Document) error {
	s.doc = copyDocument(doc)
	return nil
}

func copyDocument(doc Document) Document {
	out := make(Document, len(doc))
	for userID, state := range doc {
		state.Pending = append([]string(nil), state.Pending...)
		out[userID] = state
	}
	return out
}

// GormStore persists the fairness document as a single JSON row, giving
// queue state that survives process restarts. Each Write rewrites the
// whole row inside a transaction.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore and migrates its table.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("fairness: db is required")
	}
	if err := db.AutoMigrate(&models.QueueDocument{}); err != nil {
		return nil, fmt.Errorf("fairness: migrate queue document: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Read loads and unmarshals the document row. A missing row reads as an
// empty document.
func (s *GormStore) Read() (Document, error) {
	var row models.QueueDocument
	err := s.db.Where("name = ?", documentName).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return make(Document), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	doc := make(Document)
	if row.Document != "" {
		if err := json.Unmarshal([]byte(row.Document), &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
	}
	return doc, nil
}

// Write marshals doc and upserts the document row transactionally.
func (s *GormStore) Write(doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var row models.QueueDocument
		err := tx.Where("name = ?", documentName).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = models.QueueDocument{Name: documentName, Document: string(data)}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("create document: %w", err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("load document: %w", err)
		}
		row.Document = string(data)
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("save document: %w", err)
		}
		return nil
	})
}
