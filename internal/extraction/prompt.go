package extraction

import (
	"strings"
)

const defaultSourceLabel = "Document Text"

// BuildPrompt renders the extraction prompt: instructions, the expected JSON
// structure, the source text and the closing request.
func BuildPrompt(schema Schema, sourceText string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(schema.Instructions))
	b.WriteString("\n\nIMPORTANT INSTRUCTIONS:\n")
	b.WriteString("1. Return ONLY the JSON object, no explanations, no markdown, no extra text\n")
	b.WriteString("2. Use these exact field names in your JSON response\n")
	b.WriteString("3. If a field is not found, use null\n")
	b.WriteString("4. Write numbers without currency symbols and dates as YYYY-MM-DD when possible\n")
	b.WriteString("\nRequired JSON structure:\n")
	b.WriteString(RenderStructure(schema.Fields))

	label := schema.SourceLabel
	if label == "" {
		label = defaultSourceLabel
	}
	b.WriteString("\n\n")
	b.WriteString(label)
	b.WriteString(":\n")
	b.WriteString(sourceText)
	b.WriteString("\n\nReturn ONLY the JSON object now:")
	return b.String()
}

// RenderStructure renders fields as a JSON skeleton with type placeholders.
func RenderStructure(fields []FieldSpec) string {
	var b strings.Builder
	renderObject(&b, fields, 0)
	return b.String()
}

func renderObject(b *strings.Builder, fields []FieldSpec, depth int) {
	indent := strings.Repeat("    ", depth)
	b.WriteString("{\n")
	for i, f := range fields {
		b.WriteString(indent)
		b.WriteString("    \"")
		b.WriteString(f.Name)
		b.WriteString("\": ")
		switch f.Type {
		case TypeObject:
			renderObject(b, f.Fields, depth+1)
		case TypeLineItems:
			b.WriteString("[")
			renderObject(b, f.Fields, depth+1)
			b.WriteString("]")
		case TypeList:
			b.WriteString("[]")
		default:
			b.WriteString("\"")
			b.WriteString(placeholder(f))
			b.WriteString("\"")
		}
		if i < len(fields)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(indent)
	b.WriteString("}")
}

func placeholder(f FieldSpec) string {
	if len(f.Enum) > 0 {
		return strings.Join(f.Enum, "/")
	}
	if f.Description != "" {
		return f.Description
	}
	switch f.Type {
	case TypeNumber:
		return "number or null"
	case TypeDate:
		return "YYYY-MM-DD or null"
	}
	return "string or null"
}
