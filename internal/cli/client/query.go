package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query       string   `json:"query"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	MinPage     int      `json:"min_page,omitempty"`
}

// AskRequest represents the ask API request.
type AskRequest struct {
	Question    string   `json:"question"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
}

// Source is one retrieved chunk with its score.
type Source struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Page       int     `json:"page"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// AskResponse is the grounded answer and the chunks it was built from.
type AskResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		documentIDs []string
		topK        int
		minPage     int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search over indexed chunks",
		Long:  "Ranks indexed chunks by cosine similarity to the query. Use --document to restrict the search.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Post(cmd.Context(), "/search", SearchRequest{
				Query:       strings.Join(args, " "),
				DocumentIDs: documentIDs,
				TopK:        topKOrDefault(cmd, topK),
				MinPage:     minPage,
			})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if jsonOutput(cmd) {
				return printData(cmd.OutOrStdout(), resp.Data)
			}

			var sources []Source
			if err := decodeData(resp, &sources); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sources) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			fmt.Fprintf(out, "Found %d results:\n\n", len(sources))
			printSources(out, sources)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&documentIDs, "document", "d", nil, "Restrict to these document ids")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to return (server default when 0)")
	cmd.Flags().IntVar(&minPage, "min-page", 0, "Only search chunks starting on this page or later")

	return cmd
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var (
		documentIDs []string
		topK        int
		showSources bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Post(cmd.Context(), "/ask", AskRequest{
				Question:    strings.Join(args, " "),
				DocumentIDs: documentIDs,
				TopK:        topKOrDefault(cmd, topK),
			})
			if err != nil {
				return fmt.Errorf("ask failed: %w", err)
			}
			if jsonOutput(cmd) {
				return printData(cmd.OutOrStdout(), resp.Data)
			}

			var answer AskResponse
			if err := decodeData(resp, &answer); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer.Answer)
			if showSources && len(answer.Sources) > 0 {
				fmt.Fprintf(out, "\nSources:\n")
				printSources(out, answer.Sources)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&documentIDs, "document", "d", nil, "Restrict to these document ids")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks used as context (server default when 0)")
	cmd.Flags().BoolVar(&showSources, "sources", false, "Print the chunks the answer is based on")

	return cmd
}

func printSources(w io.Writer, sources []Source) {
	for i, s := range sources {
		fmt.Fprintf(w, "%d. %s chunk %d, page %s (%.3f)\n", i+1, s.DocumentID, s.ChunkIndex, pageLabel(s.Page), s.Score)
		fmt.Fprintf(w, "   %s\n", truncate(s.Text, 100))
		if i < len(sources)-1 {
			fmt.Fprintln(w, strings.Repeat("-", 40))
		}
	}
}
