package extraction

const (
	SchemaInvoice          = "invoice"
	SchemaPolicySchedule   = "policy_schedule"
	SchemaClaim            = "claim"
	SchemaCoverageAnalysis = "coverage_analysis"
)

// Builtins returns the schemas shipped with the service.
func Builtins() []Schema {
	return []Schema{invoiceSchema(), policyScheduleSchema(), claimSchema(), coverageAnalysisSchema()}
}

func str(name string, required bool) FieldSpec {
	return FieldSpec{Name: name, Type: TypeString, Required: required}
}

func num(name string, required bool) FieldSpec {
	return FieldSpec{Name: name, Type: TypeNumber, Required: required}
}

func date(name string, required bool) FieldSpec {
	return FieldSpec{Name: name, Type: TypeDate, Required: required}
}

func invoiceSchema() Schema {
	return Schema{
		Name:         SchemaInvoice,
		Description:  "Supplier invoice with line items and totals",
		Instructions: "You are an invoice information extractor. Extract the information from this invoice and return ONLY a valid JSON object.",
		SourceLabel:  "Invoice Text",
		Fields: []FieldSpec{
			str("invoice_number", true),
			date("invoice_date", true),
			date("due_date", false),
			str("vendor_name", true),
			str("vendor_address", false),
			str("vendor_tax_id", false),
			str("customer_name", false),
			str("customer_address", false),
			str("currency", false),
			{
				Name:     "line_items",
				Type:     TypeLineItems,
				Required: true,
				Fields: []FieldSpec{
					str("description", true),
					num("quantity", false),
					num("unit_price", false),
					num("amount", false),
				},
			},
			num("subtotal", false),
			num("tax", false),
			num("shipping", false),
			num("discount", false),
			num("total_amount", true),
			str("payment_terms", false),
		},
		Reconcile: &Reconcile{
			ItemsField:     "line_items",
			AmountField:    "amount",
			QuantityField:  "quantity",
			UnitPriceField: "unit_price",
			TotalField:     "total_amount",
			Adjustments:    []string{"tax", "shipping"},
			Deductions:     []string{"discount"},
		},
	}
}

func policyScheduleSchema() Schema {
	return Schema{
		Name:         SchemaPolicySchedule,
		Description:  "Motor insurance policy schedule",
		Instructions: "Extract information from this insurance policy schedule and return ONLY a valid JSON object.",
		SourceLabel:  "Policy Schedule Text",
		Fields: []FieldSpec{
			str("policy_number", true),
			str("insurer_name", false),
			str("policy_holder_name", true),
			str("policy_holder_address", false),
			{
				Name: "insured_vehicle",
				Type: TypeObject,
				Fields: []FieldSpec{
					str("make", false),
					str("model", false),
					str("year", false),
					str("registration_number", false),
				},
			},
			{
				Name: "coverage_details",
				Type: TypeObject,
				Fields: []FieldSpec{
					str("own_damage", false),
					str("third_party", false),
					str("personal_accident", false),
					{Name: "add_ons", Type: TypeList},
				},
			},
			{
				Name:     "policy_period",
				Type:     TypeObject,
				Required: true,
				Fields: []FieldSpec{
					date("start_date", true),
					date("end_date", true),
				},
			},
			num("premium_amount", false),
			num("sum_insured", false),
			str("terms_summary", false),
		},
	}
}

func claimSchema() Schema {
	return Schema{
		Name:         SchemaClaim,
		Description:  "Motor insurance claim form",
		Instructions: "Extract information from this insurance claim document and return ONLY a valid JSON object.",
		SourceLabel:  "Claim Document Text",
		Fields: []FieldSpec{
			str("claim_number", false),
			str("policy_number", true),
			date("claim_date", false),
			date("incident_date", true),
			str("incident_location", false),
			str("incident_description", true),
			str("claimant_name", true),
			str("claimant_contact", false),
			{
				Name: "vehicle_details",
				Type: TypeObject,
				Fields: []FieldSpec{
					str("registration_number", false),
					str("make", false),
					str("model", false),
				},
			},
			{
				Name: "damage_details",
				Type: TypeObject,
				Fields: []FieldSpec{
					str("damage_type", false),
					str("damage_description", false),
					num("estimated_cost", false),
				},
			},
			num("claim_amount", false),
			str("claim_status", false),
			{Name: "documents_submitted", Type: TypeList},
			str("surveyor_name", false),
			str("remarks", false),
		},
	}
}

func coverageAnalysisSchema() Schema {
	return Schema{
		Name:         SchemaCoverageAnalysis,
		Description:  "Coverage decision for an incident against policy wording",
		Instructions: "You are an insurance policy analyst. Determine if the following incident is covered by the policy.",
		SourceLabel:  "Incident and Policy Sections",
		Fields: []FieldSpec{
			{Name: "is_covered", Type: TypeString, Required: true, Enum: []string{"YES", "NO", "UNCLEAR"}},
			{Name: "confidence", Type: TypeString, Required: true, Enum: []string{"HIGH", "MEDIUM", "LOW"}},
			{Name: "reasoning", Type: TypeString, Required: true, Description: "brief explanation of why it is or isn't covered"},
			{Name: "relevant_policy_text", Type: TypeString, Description: "specific text from policy that supports your decision"},
		},
	}
}
