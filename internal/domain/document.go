package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// DocumentStatus is the ingestion state of a document.
type DocumentStatus string

const (
	DocumentStatusUploaded     DocumentStatus = "uploaded"
	DocumentStatusOCRExtracted DocumentStatus = "ocr_extracted"
	DocumentStatusChunked      DocumentStatus = "chunked"
	DocumentStatusEmbedded     DocumentStatus = "embedded"
	DocumentStatusIndexed      DocumentStatus = "indexed"
	DocumentStatusFailed       DocumentStatus = "failed"
)

// Stage names a pipeline transition. A failed document records the stage it
// failed in.
type Stage string

const (
	StageOCR   Stage = "ocr"
	StageChunk Stage = "chunk"
	StageEmbed Stage = "embed"
	StageIndex Stage = "index"
)

// Phase is the coarse processing status exposed to callers.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseProcessed Phase = "processed"
	PhaseFailed    Phase = "failed"
)

// Document is an uploaded source file and its OCR text.
type Document struct {
	ID          string
	Name        string
	ContentType string
	SourceKey   string
	Size        int64
	Text        string
	PageOffsets []int
	Status      DocumentStatus
	FailedStage Stage
	Error       string
	ChunkCount  int
	ModelID     string
	Metadata    json.RawMessage
	IngestedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DocumentID derives the stable document identity from its source bytes.
func DocumentID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Phase collapses the pipeline status into pending/processed/failed.
func (d *Document) Phase() Phase {
	switch d.Status {
	case DocumentStatusIndexed:
		return PhaseProcessed
	case DocumentStatusFailed:
		return PhaseFailed
	default:
		return PhasePending
	}
}

// Terminal reports whether the document reached indexed or failed.
func (d *Document) Terminal() bool {
	return d.Status == DocumentStatusIndexed || d.Status == DocumentStatusFailed
}

// PageAt returns the 1-based page holding the rune offset, or 0 when the
// document has no page information.
func (d *Document) PageAt(offset int) int {
	return PageAt(d.PageOffsets, offset)
}

// PageAt returns the 1-based page for a rune offset given page start offsets.
func PageAt(pageOffsets []int, offset int) int {
	if len(pageOffsets) == 0 {
		return 0
	}
	page := 1
	for i, start := range pageOffsets {
		if offset >= start {
			page = i + 1
		} else {
			break
		}
	}
	return page
}

// DocumentStats summarizes the knowledge base.
type DocumentStats struct {
	TotalDocuments       int                    `json:"total_documents"`
	TotalChunks          int                    `json:"total_chunks"`
	AvgChunksPerDocument float64                `json:"avg_chunks_per_document"`
	ByStatus             map[DocumentStatus]int `json:"by_status"`
}

// DocumentListOptions filters and pages a document listing. Zero Limit means
// no limit. A non-empty AfterID continues a keyset listing after the document
// (AfterCreatedAt, AfterID) and excludes Offset.
type DocumentListOptions struct {
	Status         DocumentStatus
	Limit          int
	Offset         int
	AfterID        string
	AfterCreatedAt time.Time
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if d.Name == "" {
		return fmt.Errorf("document Name is required")
	}
	if !IsValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}
	if d.Status == DocumentStatusFailed && d.FailedStage == "" {
		return fmt.Errorf("failed document must record its FailedStage")
	}
	return nil
}

// IsValidDocumentStatus checks if a DocumentStatus is valid
func IsValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusUploaded, DocumentStatusOCRExtracted, DocumentStatusChunked,
		DocumentStatusEmbedded, DocumentStatusIndexed, DocumentStatusFailed:
		return true
	}
	return false
}
