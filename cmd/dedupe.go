package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"wisher/internal/logging"
)

// dedupeCmd represents the dedupe command
var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Remove duplicate birthday rows and wishes from the spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logging.Log
		store, err := newRecordStore(cfg, newGuard(cfg, log), log)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		removed, err := store.DedupeBirthdays(ctx)
		if err != nil {
			return err
		}
		wishes, err := store.DedupeWishes(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Removed %d duplicate birthday row(s)\n", removed)
		fmt.Printf("%d unique wish(es)\n", len(wishes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dedupeCmd)
}
