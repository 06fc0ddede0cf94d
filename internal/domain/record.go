package domain

import "time"

// RecordStatus tells whether a structured record passed validation.
type RecordStatus string

const (
	RecordStatusComplete   RecordStatus = "complete"
	RecordStatusIncomplete RecordStatus = "incomplete"
)

// ProblemKind classifies a validation problem.
type ProblemKind string

const (
	ProblemMissing        ProblemKind = "missing"
	ProblemInvalidType    ProblemKind = "invalid_type"
	ProblemReconciliation ProblemKind = "reconciliation"
)

// Problem is one machine-readable validation finding. Field is a path such
// as "line_items[2].amount".
type Problem struct {
	Field   string      `json:"field"`
	Kind    ProblemKind `json:"kind"`
	Message string      `json:"message"`
}

// StructuredRecord is the validated output of an extraction.
type StructuredRecord struct {
	ID          string         `json:"id,omitempty"`
	DocumentID  string         `json:"document_id,omitempty"`
	Schema      string         `json:"schema"`
	Status      RecordStatus   `json:"status"`
	Fields      map[string]any `json:"fields"`
	Problems    []Problem      `json:"problems"`
	Warnings    []string       `json:"warnings"`
	RawResponse string         `json:"raw_response,omitempty"`
	Attempts    int            `json:"attempts"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Complete reports whether the record passed validation.
func (r *StructuredRecord) Complete() bool {
	return r.Status == RecordStatusComplete
}

// AddProblem records a problem and marks the record incomplete.
func (r *StructuredRecord) AddProblem(field string, kind ProblemKind, message string) {
	r.Problems = append(r.Problems, Problem{Field: field, Kind: kind, Message: message})
	r.Status = RecordStatusIncomplete
}

// ProblemFields lists the field paths that have problems, in order.
func (r *StructuredRecord) ProblemFields() []string {
	fields := make([]string, 0, len(r.Problems))
	for _, p := range r.Problems {
		fields = append(fields, p.Field)
	}
	return fields
}
