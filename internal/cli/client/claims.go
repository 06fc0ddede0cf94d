package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// ValidationReport mirrors the claim validation response.
type ValidationReport struct {
	OverallStatus string `json:"overall_status"`
	TotalChecks   int    `json:"total_checks"`
	PassedChecks  int    `json:"passed_checks"`
	FailedChecks  int    `json:"failed_checks"`
	Warnings      int    `json:"warnings"`
	Checks        []struct {
		Rule     string `json:"rule"`
		Status   string `json:"status"`
		Message  string `json:"message"`
		Severity string `json:"severity"`
	} `json:"checks"`
}

// CoverageAnalysis mirrors the coverage response.
type CoverageAnalysis struct {
	IsCovered          string `json:"is_covered"`
	Confidence         string `json:"confidence"`
	Reasoning          string `json:"reasoning"`
	RelevantPolicyText string `json:"relevant_policy_text"`
}

// ClaimsCmd creates the claims parent command.
func ClaimsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claims",
		Short: "Insurance claim checks",
		Long:  "Validate claims against extracted policy data and analyze coverage with the indexed policy text",
	}

	cmd.AddCommand(ClaimsValidateCmd())
	cmd.AddCommand(ClaimsCoverageCmd())

	return cmd
}

// ClaimsValidateCmd creates the claims validate command.
func ClaimsValidateCmd() *cobra.Command {
	var policyFile, claimFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run rule-based checks of a claim against a policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := readJSONObject(policyFile)
			if err != nil {
				return err
			}
			claim, err := readJSONObject(claimFile)
			if err != nil {
				return err
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Post(cmd.Context(), "/claims/validate", map[string]any{"policy": policy, "claim": claim})
			if err != nil {
				return fmt.Errorf("validate failed: %w", err)
			}
			if jsonOutput(cmd) {
				return printData(cmd.OutOrStdout(), resp.Data)
			}

			var report ValidationReport
			if err := decodeData(resp, &report); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Overall: %s (%d/%d passed, %d failed, %d warnings)\n",
				report.OverallStatus, report.PassedChecks, report.TotalChecks, report.FailedChecks, report.Warnings)
			for _, c := range report.Checks {
				fmt.Fprintf(out, "  [%s] %s: %s\n", c.Status, c.Rule, c.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&policyFile, "policy", "", "JSON file with extracted policy fields")
	cmd.Flags().StringVar(&claimFile, "claim", "", "JSON file with claim fields")
	_ = cmd.MarkFlagRequired("policy")
	_ = cmd.MarkFlagRequired("claim")

	return cmd
}

// ClaimsCoverageCmd creates the claims coverage command.
func ClaimsCoverageCmd() *cobra.Command {
	var (
		claimFile  string
		documentID string
		topK       int
	)

	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Ask whether a claim is covered by a policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			claim, err := readJSONObject(claimFile)
			if err != nil {
				return err
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Post(cmd.Context(), "/claims/coverage", map[string]any{
				"claim":              claim,
				"policy_document_id": documentID,
				"top_k":              topKOrDefault(cmd, topK),
			})
			if err != nil {
				return fmt.Errorf("coverage failed: %w", err)
			}
			if jsonOutput(cmd) {
				return printData(cmd.OutOrStdout(), resp.Data)
			}

			var analysis CoverageAnalysis
			if err := decodeData(resp, &analysis); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Covered: %s (confidence %s)\n", analysis.IsCovered, analysis.Confidence)
			fmt.Fprintf(out, "Reasoning: %s\n", analysis.Reasoning)
			if analysis.RelevantPolicyText != "" {
				fmt.Fprintf(out, "Policy text: %s\n", truncate(analysis.RelevantPolicyText, 300))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&claimFile, "claim", "", "JSON file with claim fields")
	cmd.Flags().StringVar(&documentID, "policy-document", "", "Restrict retrieval to this policy document")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of policy chunks used as context")
	_ = cmd.MarkFlagRequired("claim")

	return cmd
}

func readJSONObject(path string) (map[string]any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%s is not a JSON object: %w", path, err)
	}
	return obj, nil
}
