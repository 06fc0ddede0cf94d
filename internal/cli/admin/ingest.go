package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/ingestion"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/service"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/vectorstore"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest documents synchronously",
		Long:  "Run OCR, chunking, embedding and indexing for local files, bypassing the job queue",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIngest,
	}

	cmd.Flags().Bool("force", false, "Re-process documents that are already indexed")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().Bool("dry-run", false, "Index into a throwaway in-memory store instead of the database")
	cmd.Flags().StringP("query", "q", "", "With --dry-run, search the ingested files and print the best chunks")
	cmd.Flags().IntP("top-k", "k", 0, "Number of chunks printed for --query (DOCRAG_TOP_K when 0)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	outputFormat, _ := cmd.Flags().GetString("output")
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		return runDryIngest(cmd, args)
	}
	if query, _ := cmd.Flags().GetString("query"); query != "" {
		return fmt.Errorf("--query requires --dry-run")
	}

	return withComponents(cmd.Context(), func(ctx context.Context, c *Components) error {
		var errs []error
		var results []*service.UploadResult
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				errs = append(errs, err)
				continue
			}

			res, err := c.Documents.Upload(ctx, service.UploadInput{
				Name:        filepath.Base(path),
				ContentType: mimetype.Detect(data).String(),
				Data:        data,
				Force:       force,
				Sync:        true,
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
				continue
			}
			results = append(results, res)
			if outputFormat != "json" {
				printUpload(cmd.OutOrStdout(), path, res)
			}
		}

		if outputFormat == "json" {
			if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
		}
		return errors.Join(errs...)
	})
}

func runDryIngest(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	topK, _ := cmd.Flags().GetInt("top-k")

	cfg, flush, err := loadConfig()
	if err != nil {
		return err
	}
	defer flush()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := NewPreview(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	if topK == 0 {
		topK = cfg.TopK
	}
	return dryIngest(ctx, cmd.OutOrStdout(), p, args, query, topK, cfg.MaxContextChars)
}

// dryIngest indexes files into the preview store and optionally searches them.
func dryIngest(ctx context.Context, out io.Writer, p *Preview, paths []string, query string, topK, maxContextChars int) error {
	var errs []error
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		doc, err := p.Pipeline.Ingest(ctx, ingestion.IngestRequest{
			Name:        filepath.Base(path),
			ContentType: mimetype.Detect(data).String(),
			Data:        data,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		printUpload(out, path, &service.UploadResult{Document: doc})
	}

	if query != "" {
		hits, err := p.Retriever.Retrieve(ctx, query, topK, maxContextChars, vectorstore.Filter{})
		if err != nil {
			return errors.Join(append(errs, fmt.Errorf("search: %w", err))...)
		}
		for i, h := range hits {
			fmt.Fprintf(out, "%d. %s p.%d (%.3f)\n   %s\n", i+1, h.Chunk.DocumentID, h.Chunk.Page, h.Score, preview(h.Chunk.Text, 160))
		}
	}
	return errors.Join(errs...)
}

func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return text
}

func ReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex [document-id]...",
		Short: "Re-run the pipeline for stored documents",
		Long:  "Re-process stored documents from their source bytes, e.g. after changing the embedding model",
		RunE:  runReindex,
	}

	cmd.Flags().Bool("all", false, "Reindex every stored document")
	cmd.Flags().Bool("async", false, "Queue ingestion jobs instead of processing in this process")

	return cmd
}

func runReindex(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	async, _ := cmd.Flags().GetBool("async")
	if all == (len(args) > 0) {
		return fmt.Errorf("pass document ids or --all")
	}

	return withComponents(cmd.Context(), func(ctx context.Context, c *Components) error {
		if all {
			n, err := c.Documents.ReindexAll(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "Reindexed %d documents\n", n)
			return err
		}

		var errs []error
		for _, id := range args {
			res, err := c.Documents.Reindex(ctx, id, !async)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
				continue
			}
			printUpload(cmd.OutOrStdout(), id, res)
		}
		return errors.Join(errs...)
	})
}

func JobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs <document-id>",
		Short: "List ingestion jobs of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd.Context(), func(ctx context.Context, c *Components) error {
				jobs, err := c.Jobs.ListByDocument(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}
				for _, j := range jobs {
					fmt.Fprintf(out, "%s  %-10s  retries=%d  %s  %s\n",
						j.ID, j.Status, j.Retries, j.CreatedAt.Format("2006-01-02 15:04:05"), j.Error)
				}
				return nil
			})
		},
	}
	return cmd
}

func withComponents(ctx context.Context, fn func(ctx context.Context, c *Components) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, flush, err := loadConfig()
	if err != nil {
		return err
	}
	defer flush()

	c, err := NewComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

func printUpload(w io.Writer, label string, res *service.UploadResult) {
	doc := res.Document
	switch {
	case res.Skipped:
		fmt.Fprintf(w, "%s: already indexed as %s\n", label, doc.ID)
	case res.JobID != "":
		fmt.Fprintf(w, "%s: queued as job %s\n", label, res.JobID)
	case doc.Status == domain.DocumentStatusIndexed:
		fmt.Fprintf(w, "%s: indexed %s (%d chunks, %d pages)\n", label, doc.ID, doc.ChunkCount, len(doc.PageOffsets))
	default:
		fmt.Fprintf(w, "%s: %s is %s\n", label, doc.ID, doc.Status)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
