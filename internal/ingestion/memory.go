package ingestion

import (
	"context"
	"sync"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
)

// MemoryDocuments is a process-local DocumentStore for dry runs.
type MemoryDocuments struct {
	mu   sync.Mutex
	docs map[string]domain.Document
}

func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{docs: map[string]domain.Document{}}
}

func (m *MemoryDocuments) Create(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; ok {
		return domain.NewDomainError(domain.ErrCodeAlreadyExists, "document already exists")
	}
	m.docs[doc.ID] = *doc
	return nil
}

func (m *MemoryDocuments) GetByID(_ context.Context, id string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return &doc, nil
}

func (m *MemoryDocuments) Update(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; !ok {
		return domain.ErrDocumentNotFound
	}
	m.docs[doc.ID] = *doc
	return nil
}
