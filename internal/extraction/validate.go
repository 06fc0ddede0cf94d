package extraction

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
)

// DefaultTolerance is the allowed difference between line items and total.
const DefaultTolerance = 0.01

// placeholders models sometimes echo instead of leaving a field null.
var placeholders = []string{"null", "none", "n/a", "na", "string or null", "number or null", "yyyy-mm-dd or null"}

// Validator checks decoded model output against a schema and normalizes the
// values: numbers become float64, dates become YYYY-MM-DD strings.
type Validator struct {
	tolerance float64
}

// NewValidator returns a validator with the given reconciliation tolerance.
// A negative tolerance selects DefaultTolerance.
func NewValidator(tolerance float64) Validator {
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}
	return Validator{tolerance: tolerance}
}

// Validate builds a record from raw. Every problem is listed on the record
// and marks it incomplete; nothing is dropped. Keys the schema does not know
// are kept as they are.
func (v Validator) Validate(schema Schema, raw map[string]any) *domain.StructuredRecord {
	rec := &domain.StructuredRecord{
		Schema:   schema.Name,
		Status:   domain.RecordStatusComplete,
		Problems: []domain.Problem{},
		Warnings: []string{},
	}
	rec.Fields = v.object(rec, "", schema.Fields, raw)
	for k, val := range raw {
		if _, known := rec.Fields[k]; !known {
			rec.Fields[k] = val
		}
	}
	if schema.Reconcile != nil {
		v.reconcile(rec, *schema.Reconcile)
	}
	return rec
}

func (v Validator) object(rec *domain.StructuredRecord, prefix string, specs []FieldSpec, raw map[string]any) map[string]any {
	out := make(map[string]any, len(specs))
	for _, f := range specs {
		path := prefix + f.Name
		val := raw[f.Name]
		if isBlank(f, val) {
			out[f.Name] = emptyValue(f)
			if f.Required {
				rec.AddProblem(path, domain.ProblemMissing, fmt.Sprintf("%s is required", path))
			}
			continue
		}

		norm, err := v.value(rec, path, f, val)
		if err != nil {
			rec.AddProblem(path, domain.ProblemInvalidType, fmt.Sprintf("%s: %v", path, err))
			out[f.Name] = val
			continue
		}
		out[f.Name] = norm
	}
	return out
}

func (v Validator) value(rec *domain.StructuredRecord, path string, f FieldSpec, val any) (any, error) {
	switch f.Type {
	case TypeString:
		s, err := toString(val)
		if err != nil {
			return nil, err
		}
		if len(f.Enum) > 0 {
			upper := strings.ToUpper(s)
			if !slices.Contains(f.Enum, upper) {
				return nil, fmt.Errorf("%q is not one of %s", s, strings.Join(f.Enum, ", "))
			}
			return upper, nil
		}
		return s, nil

	case TypeNumber:
		return toNumber(val)

	case TypeDate:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("expected a date string, got %T", val)
		}
		t, err := ParseDate(s)
		if err != nil {
			return nil, err
		}
		return t.Format(time.DateOnly), nil

	case TypeList:
		items, ok := val.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a list, got %T", val)
		}
		return items, nil

	case TypeObject:
		m, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected an object, got %T", val)
		}
		return v.object(rec, path+".", f.Fields, m), nil

	case TypeLineItems:
		items, ok := val.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a list of items, got %T", val)
		}
		out := make([]any, len(items))
		for i, item := range items {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			m, ok := item.(map[string]any)
			if !ok {
				rec.AddProblem(itemPath, domain.ProblemInvalidType, fmt.Sprintf("%s: expected an object, got %T", itemPath, item))
				out[i] = item
				continue
			}
			out[i] = v.object(rec, itemPath+".", f.Fields, m)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown field type %q", f.Type)
}

func (v Validator) reconcile(rec *domain.StructuredRecord, r Reconcile) {
	items, ok := rec.Fields[r.ItemsField].([]any)
	if !ok || len(items) == 0 {
		return
	}
	total, ok := rec.Fields[r.TotalField].(float64)
	if !ok {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("%s is missing; line items were not reconciled", r.TotalField))
		return
	}

	sum := 0.0
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			rec.Warnings = append(rec.Warnings,
				fmt.Sprintf("%s[%d] is not an object; line items were not reconciled", r.ItemsField, i))
			return
		}
		amount, ok := m[r.AmountField].(float64)
		if !ok {
			qty, okQty := m[r.QuantityField].(float64)
			price, okPrice := m[r.UnitPriceField].(float64)
			if r.QuantityField == "" || r.UnitPriceField == "" || !okQty || !okPrice {
				rec.Warnings = append(rec.Warnings,
					fmt.Sprintf("%s[%d] has no %s; line items were not reconciled", r.ItemsField, i, r.AmountField))
				return
			}
			amount = qty * price
		}
		sum += amount
	}
	for _, name := range r.Adjustments {
		if adj, ok := rec.Fields[name].(float64); ok {
			sum += adj
		}
	}
	for _, name := range r.Deductions {
		if ded, ok := rec.Fields[name].(float64); ok {
			sum -= math.Abs(ded)
		}
	}

	diff := math.Abs(roundCents(sum) - roundCents(total))
	if diff > v.tolerance+1e-9 {
		msg := fmt.Sprintf("%s add up to %.2f but %s is %.2f (difference %.2f)",
			r.ItemsField, roundCents(sum), r.TotalField, roundCents(total), diff)
		rec.AddProblem(r.TotalField, domain.ProblemReconciliation, msg)
		rec.Warnings = append(rec.Warnings, msg)
	}
}

func isBlank(f FieldSpec, val any) bool {
	switch x := val.(type) {
	case nil:
		return true
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		return s == "" || slices.Contains(placeholders, s)
	case []any:
		return f.Type == TypeLineItems && len(x) == 0
	}
	return false
}

func emptyValue(f FieldSpec) any {
	switch f.Type {
	case TypeList, TypeLineItems:
		return []any{}
	}
	return nil
}

func toString(val any) (string, error) {
	switch x := val.(type) {
	case string:
		return strings.TrimSpace(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	}
	return "", fmt.Errorf("expected a string, got %T", val)
}
