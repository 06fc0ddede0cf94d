package service

import (
	"fmt"
	"strings"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/extraction"
)

const (
	RulePolicyNumber   = "Policy Number Match"
	RuleRegistration   = "Vehicle Registration Match"
	RuleMake           = "Vehicle Make Match"
	RuleModel          = "Vehicle Model Match"
	RuleHolderClaimant = "Policy Holder/Claimant Match"
	RuleIncidentDate   = "Incident Date within Policy Period"
	RuleClaimAmount    = "Claim Amount within Range"

	MinClaimAmount = 0
	MaxClaimAmount = 1_000_000
)

// ValidateClaim cross-checks an extracted policy schedule against an
// extracted claim. Field names follow the policy_schedule and claim schemas.
func ValidateClaim(policy, claim map[string]any) *domain.ValidationReport {
	report := domain.NewValidationReport()

	checkPolicyNumber(report, policy, claim)

	policyVehicle := objectField(policy, "insured_vehicle")
	claimVehicle := objectField(claim, "vehicle_details")
	checkRegistration(report, policyVehicle, claimVehicle)
	checkVehicle(report, policyVehicle, claimVehicle)

	checkNames(report, policy, claim)
	checkIncidentDate(report, policy, claim)
	checkClaimAmount(report, claim)
	return report
}

func checkPolicyNumber(report *domain.ValidationReport, policy, claim map[string]any) {
	p := strings.TrimSpace(stringField(policy, "policy_number"))
	c := strings.TrimSpace(stringField(claim, "policy_number"))
	switch {
	case p == "" || c == "":
		report.Add(RulePolicyNumber, domain.CheckWarning, "Policy number missing in one or both documents", domain.SeverityWarning)
	case p == c:
		report.Add(RulePolicyNumber, domain.CheckPass, "Policy numbers match: "+p, domain.SeverityError)
	default:
		report.Add(RulePolicyNumber, domain.CheckFail,
			fmt.Sprintf("Policy numbers don't match. Policy: %s, Claim: %s", p, c), domain.SeverityError)
	}
}

func normalizeRegistration(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "")
}

func checkRegistration(report *domain.ValidationReport, policyVehicle, claimVehicle map[string]any) {
	p := normalizeRegistration(stringField(policyVehicle, "registration_number"))
	c := normalizeRegistration(stringField(claimVehicle, "registration_number"))
	switch {
	case p == "" || c == "":
		report.Add(RuleRegistration, domain.CheckWarning, "Vehicle registration missing in one or both documents", domain.SeverityWarning)
	case p == c:
		report.Add(RuleRegistration, domain.CheckPass, "Vehicle registration matches: "+p, domain.SeverityError)
	default:
		report.Add(RuleRegistration, domain.CheckFail,
			fmt.Sprintf("Vehicle registration doesn't match. Policy: %s, Claim: %s", p, c), domain.SeverityError)
	}
}

// checkVehicle compares make and model by containment either way. A model
// mismatch only warns. Missing values skip the rule.
func checkVehicle(report *domain.ValidationReport, policyVehicle, claimVehicle map[string]any) {
	upper := func(m map[string]any, key string) string {
		return strings.ToUpper(strings.TrimSpace(stringField(m, key)))
	}
	related := func(a, b string) bool {
		return strings.Contains(a, b) || strings.Contains(b, a)
	}

	if p, c := upper(policyVehicle, "make"), upper(claimVehicle, "make"); p != "" && c != "" {
		if related(p, c) {
			report.Add(RuleMake, domain.CheckPass, "Vehicle make matches: "+p, domain.SeverityError)
		} else {
			report.Add(RuleMake, domain.CheckFail,
				fmt.Sprintf("Vehicle make doesn't match. Policy: %s, Claim: %s", p, c), domain.SeverityError)
		}
	}

	if p, c := upper(policyVehicle, "model"), upper(claimVehicle, "model"); p != "" && c != "" {
		if related(p, c) {
			report.Add(RuleModel, domain.CheckPass, "Vehicle model matches: "+p, domain.SeverityError)
		} else {
			report.Add(RuleModel, domain.CheckWarning,
				fmt.Sprintf("Vehicle model doesn't match. Policy: %s, Claim: %s", p, c), domain.SeverityWarning)
		}
	}
}

// checkNames passes when at least half of the holder's name tokens appear in
// the claimant's name.
func checkNames(report *domain.ValidationReport, policy, claim map[string]any) {
	holder := strings.ToUpper(strings.TrimSpace(stringField(policy, "policy_holder_name")))
	claimant := strings.ToUpper(strings.TrimSpace(stringField(claim, "claimant_name")))
	if holder == "" || claimant == "" {
		report.Add(RuleHolderClaimant, domain.CheckWarning, "Names missing in one or both documents", domain.SeverityWarning)
		return
	}

	holderParts := tokenSet(holder)
	claimantParts := tokenSet(claimant)
	common := 0
	for part := range holderParts {
		if _, ok := claimantParts[part]; ok {
			common++
		}
	}

	if float64(common) >= float64(len(holderParts))*0.5 {
		report.Add(RuleHolderClaimant, domain.CheckPass,
			fmt.Sprintf("Names match reasonably: %s ~ %s", holder, claimant), domain.SeverityError)
		return
	}
	report.Add(RuleHolderClaimant, domain.CheckWarning,
		fmt.Sprintf("Names may not match. Policy Holder: %s, Claimant: %s", holder, claimant), domain.SeverityWarning)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.Fields(s) {
		set[f] = struct{}{}
	}
	return set
}

func checkIncidentDate(report *domain.ValidationReport, policy, claim map[string]any) {
	period := objectField(policy, "policy_period")
	start := strings.TrimSpace(stringField(period, "start_date"))
	end := strings.TrimSpace(stringField(period, "end_date"))
	incident := strings.TrimSpace(stringField(claim, "incident_date"))
	if start == "" || end == "" || incident == "" {
		report.Add(RuleIncidentDate, domain.CheckWarning, "Date information missing", domain.SeverityWarning)
		return
	}

	startAt, err1 := extraction.ParseDate(start)
	endAt, err2 := extraction.ParseDate(end)
	incidentAt, err3 := extraction.ParseDate(incident)
	if err1 != nil || err2 != nil || err3 != nil {
		report.Add(RuleIncidentDate, domain.CheckWarning, "Could not parse dates for validation", domain.SeverityWarning)
		return
	}

	if !incidentAt.Before(startAt) && !incidentAt.After(endAt) {
		report.Add(RuleIncidentDate, domain.CheckPass,
			fmt.Sprintf("Incident date (%s) is within policy period (%s to %s)", incident, start, end), domain.SeverityError)
		return
	}
	report.Add(RuleIncidentDate, domain.CheckFail,
		fmt.Sprintf("Incident date (%s) is outside policy period (%s to %s)", incident, start, end), domain.SeverityError)
}

func checkClaimAmount(report *domain.ValidationReport, claim map[string]any) {
	raw, ok := claim["claim_amount"]
	if !ok || raw == nil || raw == "" {
		report.Add(RuleClaimAmount, domain.CheckWarning, "Claim amount missing", domain.SeverityWarning)
		return
	}

	amount, ok := amountOf(raw)
	if !ok {
		report.Add(RuleClaimAmount, domain.CheckWarning, "Could not validate claim amount", domain.SeverityWarning)
		return
	}
	if amount >= MinClaimAmount && amount <= MaxClaimAmount {
		report.Add(RuleClaimAmount, domain.CheckPass,
			fmt.Sprintf("Claim amount (%.2f) is within acceptable range (%d to %d)", amount, MinClaimAmount, MaxClaimAmount), domain.SeverityError)
		return
	}
	report.Add(RuleClaimAmount, domain.CheckWarning,
		fmt.Sprintf("Claim amount (%.2f) is outside typical range (%d to %d)", amount, MinClaimAmount, MaxClaimAmount), domain.SeverityWarning)
}

func amountOf(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := extraction.ParseMoney(n)
		return f, err == nil
	}
	return 0, false
}

func objectField(m map[string]any, key string) map[string]any {
	if obj, ok := m[key].(map[string]any); ok {
		return obj
	}
	return map[string]any{}
}
