package domain

// CheckStatus is the outcome of a single validation rule.
type CheckStatus string

const (
	CheckPass    CheckStatus = "PASS"
	CheckFail    CheckStatus = "FAIL"
	CheckWarning CheckStatus = "WARNING"
)

// Severity of a failed rule. Only error-severity failures fail the report.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Check is the result of one rule applied to a policy/claim pair.
type Check struct {
	Rule     string      `json:"rule"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Severity Severity    `json:"severity"`
}

// ValidationReport aggregates rule checks between a policy and a claim.
type ValidationReport struct {
	OverallStatus CheckStatus `json:"overall_status"`
	TotalChecks   int         `json:"total_checks"`
	PassedChecks  int         `json:"passed_checks"`
	FailedChecks  int         `json:"failed_checks"`
	Warnings      int         `json:"warnings"`
	Checks        []Check     `json:"checks"`
}

// NewValidationReport returns an empty passing report.
func NewValidationReport() *ValidationReport {
	return &ValidationReport{OverallStatus: CheckPass, Checks: []Check{}}
}

// Add records a check and updates the totals.
func (r *ValidationReport) Add(rule string, status CheckStatus, message string, severity Severity) {
	r.TotalChecks++
	switch status {
	case CheckPass:
		r.PassedChecks++
	case CheckFail:
		r.FailedChecks++
		if severity == SeverityError {
			r.OverallStatus = CheckFail
		}
	case CheckWarning:
		r.Warnings++
	}
	r.Checks = append(r.Checks, Check{Rule: rule, Status: status, Message: message, Severity: severity})
}

// CoverageAnalysis is the model's judgement on whether an incident is covered.
type CoverageAnalysis struct {
	IsCovered          string            `json:"is_covered"`
	Confidence         string            `json:"confidence"`
	Reasoning          string            `json:"reasoning"`
	RelevantPolicyText string            `json:"relevant_policy_text"`
	Record             *StructuredRecord `json:"record,omitempty"`
	Sources            []ScoredChunk     `json:"-"`
}
