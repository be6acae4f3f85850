package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wisher/internal/config"
	"wisher/internal/logging"
	"wisher/internal/retry"
	"wisher/internal/selectors"
)

// selectorsCmd represents the selectors command
var selectorsCmd = &cobra.Command{
	Use:   "selectors",
	Short: "Fetch and print the WhatsApp locators from the selector directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := newSelectorStore(cfg)
		if err != nil {
			return err
		}

		// One attempt per key; this is an operator check, not a run.
		policy := retry.Policy{Interval: config.SelectorRetryDelay, Attempts: 1, Log: logging.Log}
		directory := selectors.NewDirectory(store, policy, logging.Log)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tPURPOSE\tXPATH")
		var failed int
		for _, key := range selectors.All() {
			xpath, err := directory.Resolve(context.Background(), key)
			if err != nil {
				failed++
				xpath = "ERROR: " + err.Error()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", key, key.Description(), xpath)
		}
		w.Flush()

		if failed > 0 {
			return fmt.Errorf("%d selector(s) unavailable", failed)
		}
		return nil
	},
}

var selectorsPutCmd = &cobra.Command{
	Use:   "put <key> <xpath>",
	Short: "Store a WhatsApp locator in the redis selector directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := newSelectorStore(cfg)
		if err != nil {
			return err
		}
		if err := putSelector(context.Background(), store, args[0], args[1]); err != nil {
			return err
		}
		logging.Log.WithField("selector", args[0]).Info("Selector stored")
		return nil
	},
}

type writableStore interface {
	Put(ctx context.Context, name, value string) error
}

func putSelector(ctx context.Context, store selectors.Store, name, xpath string) error {
	known := false
	for _, key := range selectors.All() {
		if string(key) == name {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("unknown selector %q", name)
	}
	if strings.TrimSpace(xpath) == "" {
		return fmt.Errorf("empty xpath for %s", name)
	}
	w, ok := store.(writableStore)
	if !ok {
		return fmt.Errorf("selector backend %T is read-only", store)
	}
	return w.Put(ctx, name, xpath)
}

func init() {
	selectorsCmd.AddCommand(selectorsPutCmd)
	rootCmd.AddCommand(selectorsCmd)
}
