package client

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

// Record is a structured extraction result.
type Record struct {
	ID         string         `json:"id,omitempty"`
	DocumentID string         `json:"document_id,omitempty"`
	Schema     string         `json:"schema"`
	Status     string         `json:"status"`
	Fields     map[string]any `json:"fields"`
	Problems   []struct {
		Field   string `json:"field"`
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"problems"`
	Warnings []string `json:"warnings"`
	Attempts int      `json:"attempts"`
}

// ExtractCmd creates the extract command.
func ExtractCmd() *cobra.Command {
	var (
		schema     string
		documentID string
		textFile   string
	)

	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract structured fields with a schema",
		Long: `Extracts a structured record using a named schema (see 'docrag schemas').

The source is one of: a stored document (--document), a text file (--text-file)
or an uploaded PDF or image passed as argument.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := 0
			for _, set := range []bool{documentID != "", textFile != "", len(args) == 1} {
				if set {
					sources++
				}
			}
			if sources != 1 {
				return fmt.Errorf("pass exactly one of a file, --document or --text-file")
			}
			if schema == "" {
				schema = userDefaults().DefaultSchema
			}
			if schema == "" {
				return fmt.Errorf("--schema is required (or save one with 'docrag config set default-schema <name>')")
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var resp *APIResponse
			switch {
			case documentID != "":
				resp, err = api.Post(cmd.Context(), "/documents/"+url.PathEscape(documentID)+"/extract",
					map[string]string{"schema": schema})
			case textFile != "":
				text, rerr := os.ReadFile(textFile)
				if rerr != nil {
					return fmt.Errorf("failed to read text file: %w", rerr)
				}
				resp, err = api.Post(cmd.Context(), "/extract", map[string]string{"schema": schema, "text": string(text)})
			default:
				data, rerr := os.ReadFile(args[0])
				if rerr != nil {
					return fmt.Errorf("failed to read file: %w", rerr)
				}
				resp, err = api.PostMultipart(cmd.Context(), "/extract", map[string]string{"schema": schema}, FilePart{
					Field:       "file",
					Filename:    filepath.Base(args[0]),
					ContentType: mimetype.Detect(data).String(),
					Data:        data,
				}, nil)
			}
			if err != nil {
				return extractError(cmd.ErrOrStderr(), err)
			}

			if jsonOutput(cmd) {
				return printData(cmd.OutOrStdout(), resp.Data)
			}
			var rec Record
			if err := decodeData(resp, &rec); err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), &rec)
			return nil
		},
	}

	cmd.Flags().StringVarP(&schema, "schema", "s", "", "Schema name (defaults to the saved default-schema)")
	cmd.Flags().StringVar(&documentID, "document", "", "Extract from a stored document")
	cmd.Flags().StringVar(&textFile, "text-file", "", "Extract from plain text")
	cmd.MarkFlagsMutuallyExclusive("document", "text-file")

	return cmd
}

// extractError keeps the raw model output of a failed extraction visible.
func extractError(w io.Writer, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RawResponse != "" {
		fmt.Fprintf(w, "Raw model response:\n%s\n", apiErr.RawResponse)
	}
	return fmt.Errorf("extract failed: %w", err)
}

func printRecord(w io.Writer, rec *Record) {
	fmt.Fprintf(w, "Schema: %s\n", rec.Schema)
	fmt.Fprintf(w, "Status: %s\n", rec.Status)
	if rec.ID != "" {
		fmt.Fprintf(w, "Record: %s\n", rec.ID)
	}

	keys := make([]string, 0, len(rec.Fields))
	for k := range rec.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(w, "Fields:")
	for _, k := range keys {
		v := rec.Fields[k]
		if v == nil {
			v = "-"
		}
		fmt.Fprintf(w, "  %s: %v\n", k, v)
	}

	for _, p := range rec.Problems {
		fmt.Fprintf(w, "Problem: %s %s: %s\n", p.Field, p.Kind, p.Message)
	}
	for _, warning := range rec.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
}

// RecordsCmd creates the records command.
func RecordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "records <document-id>",
		Short: "List extraction records of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get(cmd.Context(), "/documents/"+url.PathEscape(args[0])+"/records")
			if err != nil {
				return fmt.Errorf("records failed: %w", err)
			}
			if jsonOutput(cmd) {
				return printData(cmd.OutOrStdout(), resp.Data)
			}
			var recs []Record
			if err := decodeData(resp, &recs); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No records found.")
				return nil
			}
			for i := range recs {
				if i > 0 {
					fmt.Fprintln(out)
				}
				printRecord(out, &recs[i])
			}
			return nil
		},
	}
}

// SchemasCmd creates the schemas command.
func SchemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "List extraction schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get(cmd.Context(), "/schemas")
			if err != nil {
				return fmt.Errorf("schemas failed: %w", err)
			}
			if jsonOutput(cmd) {
				return printData(cmd.OutOrStdout(), resp.Data)
			}
			var schemas []struct {
				Name        string   `json:"name"`
				Description string   `json:"description"`
				Fields      []string `json:"fields"`
			}
			if err := decodeData(resp, &schemas); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range schemas {
				fmt.Fprintf(out, "%s: %s\n", s.Name, s.Description)
				fmt.Fprintf(out, "  fields: %v\n", s.Fields)
			}
			return nil
		},
	}
}
