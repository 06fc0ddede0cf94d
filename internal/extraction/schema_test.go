package extraction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltins_AreValid(t *testing.T) {
	for _, s := range Builtins() {
		t.Run(s.Name, func(t *testing.T) {
			assert.NoError(t, s.Validate())
		})
	}
}

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name   string
		schema Schema
	}{
		{"no name", Schema{Fields: []FieldSpec{str("a", true)}}},
		{"no fields", Schema{Name: "x"}},
		{"unknown type", Schema{Name: "x", Fields: []FieldSpec{{Name: "a", Type: "money"}}}},
		{"duplicate field", Schema{Name: "x", Fields: []FieldSpec{str("a", true), str("a", false)}}},
		{"object without sub-fields", Schema{Name: "x", Fields: []FieldSpec{{Name: "o", Type: TypeObject}}}},
		{"scalar with sub-fields", Schema{Name: "x", Fields: []FieldSpec{{Name: "s", Type: TypeString, Fields: []FieldSpec{str("a", false)}}}}},
		{
			"reconcile total not a number",
			Schema{
				Name: "x",
				Fields: []FieldSpec{
					{Name: "items", Type: TypeLineItems, Fields: []FieldSpec{num("amount", false)}},
					str("total", true),
				},
				Reconcile: &Reconcile{ItemsField: "items", AmountField: "amount", TotalField: "total"},
			},
		},
		{
			"reconcile unknown amount field",
			Schema{
				Name: "x",
				Fields: []FieldSpec{
					{Name: "items", Type: TypeLineItems, Fields: []FieldSpec{num("price", false)}},
					num("total", true),
				},
				Reconcile: &Reconcile{ItemsField: "items", AmountField: "amount", TotalField: "total"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

const receiptYAML = `
name: receipt
instructions: Extract the receipt.
fields:
  - name: store
    type: string
    required: true
  - name: items
    type: line_items
    fields:
      - name: name
        type: string
      - name: price
        type: number
  - name: total
    type: number
    required: true
reconcile:
  items_field: items
  amount_field: price
  total_field: total
`

func TestParseSchema(t *testing.T) {
	s, err := ParseSchema([]byte(receiptYAML))
	require.NoError(t, err)
	assert.Equal(t, "receipt", s.Name)
	require.Len(t, s.Fields, 3)
	assert.Equal(t, TypeLineItems, s.Fields[1].Type)
	require.NotNil(t, s.Reconcile)
	assert.Equal(t, "price", s.Reconcile.AmountField)

	_, err = ParseSchema([]byte("name: [unterminated"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	s, err := r.Get(SchemaInvoice)
	require.NoError(t, err)
	assert.Equal(t, SchemaInvoice, s.Name)

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, domain.ErrSchemaNotFound)

	names := []string{}
	for _, s := range r.List() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{SchemaClaim, SchemaCoverageAnalysis, SchemaInvoice, SchemaPolicySchedule}, names)

	assert.Error(t, r.Register(Schema{Name: "bad"}))
}

func TestRegistry_LoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "receipt.yaml"), []byte(receiptYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	r := NewRegistry()
	n, err := r.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = r.Get("receipt")
	assert.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("name: broken\n"), 0o600))
	_, err = NewRegistry().LoadDir(dir)
	assert.Error(t, err)
}
