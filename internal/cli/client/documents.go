package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

// Document mirrors the document representation of the API.
type Document struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ContentType string          `json:"content_type"`
	Size        int64           `json:"size"`
	Status      string          `json:"status"`
	Phase       string          `json:"phase"`
	FailedStage string          `json:"failed_stage,omitempty"`
	Error       string          `json:"error,omitempty"`
	ChunkCount  int             `json:"chunk_count"`
	PageCount   int             `json:"page_count"`
	ModelID     string          `json:"model_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	IngestedAt  string          `json:"ingested_at,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// UploadResult is returned by upload and reingest.
type UploadResult struct {
	Document *Document `json:"document"`
	JobID    string    `json:"job_id,omitempty"`
	Skipped  bool      `json:"skipped"`
}

// Chunk is one indexed chunk of a document.
type Chunk struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Page      int    `json:"page"`
	CharStart int    `json:"char_start"`
	CharEnd   int    `json:"char_end"`
}

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	var (
		name     string
		force    bool
		sync     bool
		metadata string
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document for ingestion",
		Long: `Uploads a PDF or image. The server runs OCR, chunking and embedding.

By default ingestion is queued and the command returns the job id. Use --sync
to wait until the document is indexed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, args[0], name, force, sync, metadata, progress)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Document name (defaults to the file name)")
	cmd.Flags().BoolVar(&force, "force", false, "Re-process even if the same content is already indexed")
	cmd.Flags().BoolVar(&sync, "sync", false, "Wait for ingestion to finish")
	cmd.Flags().StringVar(&metadata, "metadata", "", "JSON object stored with the document")
	cmd.Flags().BoolVar(&progress, "progress", false, "Report upload progress on stderr")

	return cmd
}

func runUpload(cmd *cobra.Command, path, name string, force, sync bool, metadata string, progress bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if name == "" {
		name = filepath.Base(path)
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	fields := map[string]string{
		"name":  name,
		"force": strconv.FormatBool(force),
		"sync":  strconv.FormatBool(sync),
	}
	if metadata != "" {
		if !json.Valid([]byte(metadata)) {
			return fmt.Errorf("--metadata must be valid JSON")
		}
		fields["metadata"] = metadata
	}

	var onProgress ProgressFunc
	if progress {
		errOut := cmd.ErrOrStderr()
		onProgress = func(current, total int64) {
			fmt.Fprintf(errOut, "\ruploading %d/%d bytes", current, total)
			if current == total {
				fmt.Fprintln(errOut)
			}
		}
	}

	resp, err := api.PostMultipart(cmd.Context(), "/documents", fields, FilePart{
		Field:       "file",
		Filename:    filepath.Base(path),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, onProgress)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	if jsonOutput(cmd) {
		return printData(cmd.OutOrStdout(), resp.Data)
	}
	var result UploadResult
	if err := decodeData(resp, &result); err != nil {
		return err
	}
	printUploadResult(cmd.OutOrStdout(), &result)
	return nil
}

func printUploadResult(w io.Writer, res *UploadResult) {
	doc := res.Document
	if doc == nil {
		return
	}
	switch {
	case res.Skipped:
		fmt.Fprintf(w, "Already indexed: %s (%s)\n", doc.ID, doc.Name)
	case res.JobID != "":
		fmt.Fprintf(w, "Queued: %s (%s)\n", doc.ID, doc.Name)
		fmt.Fprintf(w, "Job: %s\n", res.JobID)
	default:
		fmt.Fprintf(w, "Document: %s (%s)\n", doc.ID, doc.Name)
		fmt.Fprintf(w, "Status: %s\n", doc.Status)
		if doc.Error != "" {
			fmt.Fprintf(w, "Error: %s (stage %s)\n", doc.Error, doc.FailedStage)
		} else {
			fmt.Fprintf(w, "Pages: %d  Chunks: %d\n", doc.PageCount, doc.ChunkCount)
		}
	}
}

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	var (
		status string
		limit  int
		offset int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				q.Set("offset", strconv.Itoa(offset))
			}
			if cursor != "" {
				q.Set("cursor", cursor)
			}
			path := "/documents"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			return runList(cmd, path)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (uploaded, ocr_extracted, chunked, embedded, indexed, failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of documents")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of documents to skip")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Continue after the page that returned this cursor")
	cmd.MarkFlagsMutuallyExclusive("offset", "cursor")

	return cmd
}

func runList(cmd *cobra.Command, path string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}
	resp, err := api.Get(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	if jsonOutput(cmd) {
		return printData(cmd.OutOrStdout(), resp.Data)
	}

	var docs []Document
	if err := decodeData(resp, &docs); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents found.")
		return nil
	}
	for _, d := range docs {
		fmt.Fprintf(out, "%s  %-12s  %4d chunks  %s\n", d.ID, d.Status, d.ChunkCount, d.Name)
	}
	if resp.NextCursor != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nMore documents: docrag list --cursor %s\n", resp.NextCursor)
	}
	return nil
}

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	var chunks bool

	cmd := &cobra.Command{
		Use:   "get <document-id>",
		Short: "Show a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			path := "/documents/" + url.PathEscape(args[0])
			if chunks {
				path += "/chunks"
			}
			resp, err := api.Get(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("get failed: %w", err)
			}
			if jsonOutput(cmd) {
				return printData(cmd.OutOrStdout(), resp.Data)
			}
			if chunks {
				return printChunks(cmd.OutOrStdout(), resp)
			}
			var doc Document
			if err := decodeData(resp, &doc); err != nil {
				return err
			}
			printDocument(cmd.OutOrStdout(), &doc)
			return nil
		},
	}

	cmd.Flags().BoolVar(&chunks, "chunks", false, "List the indexed chunks instead")

	return cmd
}

func printDocument(w io.Writer, d *Document) {
	fmt.Fprintf(w, "ID: %s\n", d.ID)
	fmt.Fprintf(w, "Name: %s\n", d.Name)
	fmt.Fprintf(w, "Type: %s (%d bytes)\n", d.ContentType, d.Size)
	fmt.Fprintf(w, "Status: %s (%s)\n", d.Status, d.Phase)
	if d.Error != "" {
		fmt.Fprintf(w, "Error: %s (stage %s)\n", d.Error, d.FailedStage)
	}
	fmt.Fprintf(w, "Pages: %d\n", d.PageCount)
	fmt.Fprintf(w, "Chunks: %d\n", d.ChunkCount)
	if d.ModelID != "" {
		fmt.Fprintf(w, "Model: %s\n", d.ModelID)
	}
	if d.IngestedAt != "" {
		fmt.Fprintf(w, "Ingested: %s\n", d.IngestedAt)
	}
}

func printChunks(w io.Writer, resp *APIResponse) error {
	var chunks []Chunk
	if err := decodeData(resp, &chunks); err != nil {
		return err
	}
	for _, c := range chunks {
		fmt.Fprintf(w, "[%d] page %s, chars %d-%d\n", c.Index, pageLabel(c.Page), c.CharStart, c.CharEnd)
		fmt.Fprintf(w, "    %s\n", truncate(c.Text, 120))
	}
	return nil
}

// DeleteCmd creates the delete command.
func DeleteCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "delete [document-id]",
		Short: "Delete a document and its chunks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("pass a document id or --all")
			}
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if all {
				resp, err := api.Delete(cmd.Context(), "/documents")
				if err != nil {
					return fmt.Errorf("delete failed: %w", err)
				}
				var res struct {
					Deleted int64 `json:"deleted"`
				}
				if err := decodeData(resp, &res); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d documents\n", res.Deleted)
				return nil
			}

			if _, err := api.Delete(cmd.Context(), "/documents/"+url.PathEscape(args[0])); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Delete every document")

	return cmd
}

// ReingestCmd creates the reingest command.
func ReingestCmd() *cobra.Command {
	var sync bool

	cmd := &cobra.Command{
		Use:   "reingest <document-id>",
		Short: "Re-run ingestion for a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			path := "/documents/" + url.PathEscape(args[0]) + "/reingest"
			if sync {
				path += "?sync=true"
			}
			resp, err := api.Post(cmd.Context(), path, nil)
			if err != nil {
				return fmt.Errorf("reingest failed: %w", err)
			}
			if jsonOutput(cmd) {
				return printData(cmd.OutOrStdout(), resp.Data)
			}
			var result UploadResult
			if err := decodeData(resp, &result); err != nil {
				return err
			}
			printUploadResult(cmd.OutOrStdout(), &result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&sync, "sync", false, "Wait for ingestion to finish")

	return cmd
}

// StatsCmd creates the stats command.
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show corpus statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get(cmd.Context(), "/stats")
			if err != nil {
				return fmt.Errorf("stats failed: %w", err)
			}
			if jsonOutput(cmd) {
				return printData(cmd.OutOrStdout(), resp.Data)
			}
			var stats struct {
				TotalDocuments       int            `json:"total_documents"`
				TotalChunks          int            `json:"total_chunks"`
				AvgChunksPerDocument float64        `json:"avg_chunks_per_document"`
				ByStatus             map[string]int `json:"by_status"`
			}
			if err := decodeData(resp, &stats); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Documents: %d\n", stats.TotalDocuments)
			fmt.Fprintf(out, "Chunks: %d\n", stats.TotalChunks)
			fmt.Fprintf(out, "Chunks per document: %.1f\n", stats.AvgChunksPerDocument)
			for _, s := range []string{"uploaded", "ocr_extracted", "chunked", "embedded", "indexed", "failed"} {
				if n := stats.ByStatus[s]; n > 0 {
					fmt.Fprintf(out, "  %s: %d\n", s, n)
				}
			}
			return nil
		},
	}
}
