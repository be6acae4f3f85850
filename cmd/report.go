package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wisher/internal/workfile"
	"wisher/internal/worklist"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the report that would be sent for the current worklist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		lines, err := workfile.New(cfg.Files.ContactFile).ReadLines()
		if err != nil {
			return err
		}

		report := worklist.NewReport(time.Now(), lines)
		fmt.Println(report.String())
		if !worklist.AllProcessed(lines) {
			fmt.Println()
			fmt.Println("Note: the worklist still has pending contacts")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
