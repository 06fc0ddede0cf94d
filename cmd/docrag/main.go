package main

import (
	"fmt"
	"os"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/cli"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "docrag",
		Short: "docrag CLI - search and extract from insurance and invoice documents",
		Long: `docrag talks to a docragd server to ingest, search and extract documents.

Environment variables:
  DOCRAG_API_KEY   API key for authentication (when the server requires one)
  DOCRAG_API_URL   API base URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	client.AddPersistentFlags(rootCmd)
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.UploadCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.GetCmd())
	rootCmd.AddCommand(client.DeleteCmd())
	rootCmd.AddCommand(client.ReingestCmd())
	rootCmd.AddCommand(client.StatsCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.ExtractCmd())
	rootCmd.AddCommand(client.RecordsCmd())
	rootCmd.AddCommand(client.SchemasCmd())
	rootCmd.AddCommand(client.ClaimsCmd())
	rootCmd.AddCommand(client.AuthCmd())
	rootCmd.AddCommand(client.ConfigCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
