// Package extraction turns free text into validated structured records with
// an LLM, driven by explicit schemas.
package extraction

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"gopkg.in/yaml.v3"
)

// FieldType is the expected shape of a field value.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeNumber    FieldType = "number"
	TypeDate      FieldType = "date"
	TypeLineItems FieldType = "line_items"
	TypeObject    FieldType = "object"
	TypeList      FieldType = "list"
)

// FieldSpec describes one field. Fields holds the sub-fields of objects and
// of each line item.
type FieldSpec struct {
	Name        string      `yaml:"name" json:"name"`
	Type        FieldType   `yaml:"type" json:"type"`
	Required    bool        `yaml:"required,omitempty" json:"required,omitempty"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Enum        []string    `yaml:"enum,omitempty" json:"enum,omitempty"`
	Fields      []FieldSpec `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Reconcile declares an arithmetic check between line items and a total:
// sum(items) + adjustments - deductions must equal the total.
type Reconcile struct {
	ItemsField     string   `yaml:"items_field" json:"items_field"`
	AmountField    string   `yaml:"amount_field" json:"amount_field"`
	QuantityField  string   `yaml:"quantity_field,omitempty" json:"quantity_field,omitempty"`
	UnitPriceField string   `yaml:"unit_price_field,omitempty" json:"unit_price_field,omitempty"`
	TotalField     string   `yaml:"total_field" json:"total_field"`
	Adjustments    []string `yaml:"adjustments,omitempty" json:"adjustments,omitempty"`
	Deductions     []string `yaml:"deductions,omitempty" json:"deductions,omitempty"`
}

// Schema is the structure an extraction must produce.
type Schema struct {
	Name         string      `yaml:"name" json:"name"`
	Description  string      `yaml:"description,omitempty" json:"description,omitempty"`
	Instructions string      `yaml:"instructions" json:"instructions"`
	SourceLabel  string      `yaml:"source_label,omitempty" json:"source_label,omitempty"`
	Fields       []FieldSpec `yaml:"fields" json:"fields"`
	Reconcile    *Reconcile  `yaml:"reconcile,omitempty" json:"reconcile,omitempty"`
}

// Validate checks that the schema is well formed.
func (s Schema) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return domain.Configurationf("schema name is required")
	}
	if len(s.Fields) == 0 {
		return domain.Configurationf("schema %q declares no fields", s.Name)
	}
	if err := validateFields(s.Name, "", s.Fields); err != nil {
		return err
	}
	if r := s.Reconcile; r != nil {
		items, ok := s.Field(r.ItemsField)
		if !ok || items.Type != TypeLineItems {
			return domain.Configurationf("schema %q: reconcile items_field %q is not a line_items field", s.Name, r.ItemsField)
		}
		if !hasField(items.Fields, r.AmountField) {
			return domain.Configurationf("schema %q: reconcile amount_field %q is not an item field", s.Name, r.AmountField)
		}
		for _, name := range slices.Concat([]string{r.TotalField}, r.Adjustments, r.Deductions) {
			f, ok := s.Field(name)
			if !ok || f.Type != TypeNumber {
				return domain.Configurationf("schema %q: reconcile field %q is not a number field", s.Name, name)
			}
		}
	}
	return nil
}

// Field returns the top-level field with the given name.
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

func hasField(fields []FieldSpec, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func validateFields(schema, prefix string, fields []FieldSpec) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		path := prefix + f.Name
		if strings.TrimSpace(f.Name) == "" {
			return domain.Configurationf("schema %q: field under %q has no name", schema, prefix)
		}
		if seen[f.Name] {
			return domain.Configurationf("schema %q: duplicate field %q", schema, path)
		}
		seen[f.Name] = true

		switch f.Type {
		case TypeString, TypeNumber, TypeDate, TypeList:
			if len(f.Fields) > 0 {
				return domain.Configurationf("schema %q: %s field %q cannot have sub-fields", schema, f.Type, path)
			}
		case TypeObject, TypeLineItems:
			if len(f.Fields) == 0 {
				return domain.Configurationf("schema %q: %s field %q needs sub-fields", schema, f.Type, path)
			}
			if err := validateFields(schema, path+".", f.Fields); err != nil {
				return err
			}
		default:
			return domain.Configurationf("schema %q: field %q has unknown type %q", schema, path, f.Type)
		}
	}
	return nil
}

// ParseSchema decodes a YAML schema definition.
func ParseSchema(data []byte) (Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration, "invalid schema YAML", err)
	}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// Registry holds the schemas available by name.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

// NewRegistry returns a registry preloaded with the built-in schemas.
func NewRegistry() *Registry {
	r := &Registry{schemas: make(map[string]Schema)}
	for _, s := range Builtins() {
		r.schemas[s.Name] = s
	}
	return r
}

// Register adds or replaces a schema.
func (r *Registry) Register(s Schema) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.schemas[s.Name] = s
	r.mu.Unlock()
	return nil
}

func (r *Registry) Get(name string) (Schema, error) {
	r.mu.RLock()
	s, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return Schema{}, domain.ErrSchemaNotFound
	}
	return s, nil
}

// List returns all schemas sorted by name.
func (r *Registry) List() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Schema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Schema) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// LoadDir registers every *.yaml and *.yml schema in dir and returns how many
// were loaded. Schemas in dir override built-ins of the same name.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read schema dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return n, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		s, err := ParseSchema(data)
		if err != nil {
			return n, fmt.Errorf("schema %s: %w", e.Name(), err)
		}
		if err := r.Register(s); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
