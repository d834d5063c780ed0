package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"gas-assistant/internal/docstore"
	"gas-assistant/internal/helper"
	"gas-assistant/internal/ingest"
	"gas-assistant/internal/parser"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Add a document to the knowledge base",
	Long: `Add a document to the knowledge base.

Supported formats: .txt, .pdf, .doc, .docx, .ppt, .pptx.

Examples:
  gas-assistant ingest ./guide.pdf --title "Guide sécurité" --description "Guide interne"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		title, _ := cmd.Flags().GetString("title")
		docType, _ := cmd.Flags().GetString("type")
		description, _ := cmd.Flags().GetString("description")
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		if docType == "" {
			docType = parser.DocumentType(path)
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.Pipeline.Ingest(cmd.Context(), path, title, docType, description)
		if err != nil {
			return err
		}
		helper.PrettyPrint(rec)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Import every supported document below a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxFiles, _ := cmd.Flags().GetInt("max")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Pipeline.ImportDir(cmd.Context(), args[0], ingest.ImportOptions{
			Max:         maxFiles,
			Concurrency: a.Config.Import.Concurrency,
			Interval:    a.Config.Import.Interval,
		})
		if err != nil {
			return err
		}
		helper.PrettyPrint(report)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		docs, err := a.Pipeline.List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITRE\tTYPE\tINDEXÉ\tDATE")
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", d.ID, d.Title, d.DocumentType, d.Indexed, d.UploadDate)
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one document record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.Pipeline.Get(cmd.Context(), args[0])
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("document %s not found", args[0])
		}
		if err != nil {
			return err
		}
		helper.PrettyPrint(rec)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document, its stored file and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ok, err := a.Pipeline.Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("document %s not found", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Document %s supprimé.\n", args[0])
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Retry indexing for every unindexed document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Pipeline.Reindex(cmd.Context())
		if err != nil {
			return err
		}
		helper.PrettyPrint(report)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the chromem collection to an encrypted file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Vectors == nil {
			return errors.New("export needs the chromem index backend")
		}
		path, err := a.Vectors.Export(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Collection exportée vers %s (%d chunks).\n", path, a.Vectors.Count())
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("title", "", "document title (default: file name)")
	ingestCmd.Flags().String("type", "", "document type (default: from the extension)")
	ingestCmd.Flags().String("description", "", "document description")
	importCmd.Flags().Int("max", 0, "maximum number of files to import (0 for all)")

	rootCmd.AddCommand(ingestCmd, importCmd, listCmd, showCmd, deleteCmd, reindexCmd, exportCmd)
}
