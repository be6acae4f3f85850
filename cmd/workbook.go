package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wisher/internal/records"
)

// workbookCmd represents the workbook command
var workbookCmd = &cobra.Command{
	Use:   "workbook",
	Short: "Manage the local SQLite workbook",
}

// importCmd represents the workbook import command
var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Replace a worksheet of the local workbook with a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tab, _ := cmd.Flags().GetString("tab")
		if tab == "" {
			return fmt.Errorf("--tab is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		rows, err := readCSV(args[0])
		if err != nil {
			return err
		}

		book, err := records.OpenSQLite(cfg.Spreadsheet.SQLitePath)
		if err != nil {
			return err
		}
		defer book.Close()

		if err := book.Import(context.Background(), tab, rows); err != nil {
			return err
		}
		fmt.Printf("Imported %d row(s) into %q (%s)\n", len(rows), tab, cfg.Spreadsheet.SQLitePath)
		return nil
	},
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func init() {
	importCmd.Flags().StringP("tab", "t", "", "Worksheet name, e.g. \"Birthday list\"")
	workbookCmd.AddCommand(importCmd)
	rootCmd.AddCommand(workbookCmd)
}
