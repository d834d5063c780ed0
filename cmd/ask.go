package main

import (
	"errors"
	"fmt"
	"strings"

	"gas-assistant/internal/helper"
	"gas-assistant/internal/render"
	"gas-assistant/internal/tabular"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question with the routed agent",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		g, err := a.Graph()
		if err != nil {
			return err
		}
		query := strings.Join(args, " ")
		res := g.Run(cmd.Context(), query)

		asHTML, _ := cmd.Flags().GetBool("html")
		return printAnswer(cmd, query, res.Category.String(), res.Response, asHTML)
	},
}

var visualizeCmd = &cobra.Command{
	Use:   "visualize <request>",
	Short: "Get instructions for a chart, spreadsheet or report",
	Long: `Get instructions for a chart, spreadsheet or report.

Examples:
  gas-assistant visualize "Histogramme de la consommation" --data "Jan: 10, Feb: 20"
  gas-assistant visualize "Tableau de bord mensuel" --data-file ./conso.xlsx`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, _ := cmd.Flags().GetString("data")
		dataFile, _ := cmd.Flags().GetString("data-file")
		if data != "" && dataFile != "" {
			return errors.New("use either --data or --data-file")
		}
		if dataFile != "" {
			var err error
			if data, err = tabular.ReadData(dataFile); err != nil {
				return fmt.Errorf("read data file: %w", err)
			}
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		g, err := a.Graph()
		if err != nil {
			return err
		}
		query := strings.Join(args, " ")
		res := g.Visualize(cmd.Context(), query, data)

		asHTML, _ := cmd.Flags().GetBool("html")
		return printAnswer(cmd, query, res.Category.String(), res.Response, asHTML)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		results := a.Search.Search(cmd.Context(), strings.Join(args, " "), limit)
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Aucun résultat.")
			return nil
		}
		helper.PrettyPrint(results)
		return nil
	},
}

func printAnswer(cmd *cobra.Command, query, category, response string, asHTML bool) error {
	if asHTML {
		page, err := render.Page(query, response)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), page)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[%s]\n%s\n", category, response)
	return nil
}

func init() {
	askCmd.Flags().Bool("html", false, "render the answer as an HTML page")
	visualizeCmd.Flags().Bool("html", false, "render the answer as an HTML page")
	visualizeCmd.Flags().String("data", "", "data to visualize")
	visualizeCmd.Flags().String("data-file", "", "read the data from a text or spreadsheet file")
	searchCmd.Flags().Int("limit", 0, "maximum number of results (default from config)")

	rootCmd.AddCommand(askCmd, visualizeCmd, searchCmd)
}
