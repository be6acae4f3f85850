package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"wisher/internal/config"
	"wisher/internal/logging"
	"wisher/internal/pipeline"
	"wisher/internal/retry"
	"wisher/internal/session"
	"wisher/internal/workfile"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Send today's birthday wishes and the summary report",
	Long: `Runs the whole day: de-duplicates the birthday and wishes sheets, builds today's
worklist, greets every contact on WhatsApp Web and sends the report to the
number in the "Report number" file. Re-running on the same day resumes.`,
	Run: func(cmd *cobra.Command, args []string) {
		fresh, _ := cmd.Flags().GetBool("fresh")
		os.Exit(runWisher(fresh))
	},
}

func init() {
	runCmd.Flags().Bool("fresh", false, "Rebuild today's worklist even if it can be resumed")
	rootCmd.AddCommand(runCmd)
}

func runWisher(fresh bool) int {
	cfg, err := loadConfig()
	if err != nil {
		logging.Log.Error(err)
		return pipeline.ExitConfig
	}

	lock := workfile.NewRunLock(cfg.Files.LockFile)
	if err := lock.TryLock(); err != nil {
		logging.Log.Error(err)
		if errors.Is(err, workfile.ErrLocked) {
			return pipeline.ExitConfig
		}
		return pipeline.ExitUnexpected
	}
	defer lock.Unlock()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.Log.WithField("run", uuid.NewString())
	printBanner(cfg)

	guard := newGuard(cfg, log)

	store, err := newRecordStore(cfg, guard, log)
	if err != nil {
		log.Error(err)
		return pipeline.ExitConfig
	}
	defer store.Close()

	directory, err := newDirectory(cfg, guard, log)
	if err != nil {
		log.Error(err)
		return pipeline.ExitConfig
	}

	driver := session.NewRodDriver(session.RodOptions{
		ProfilePath: cfg.BrowserProfilePath,
		Bin:         cfg.BrowserBin,
		Headless:    cfg.Headless,
	}, log)
	manager := session.NewManager(driver, cfg.WhatsAppURL, cfg.Page, guard, retry.SystemClock{}, log)

	deps := pipeline.Deps{
		Config:    cfg,
		Session:   manager,
		Selectors: directory,
		Records:   store,
		Gate:      guard,
		Files: pipeline.Files{
			Worklist:  workfile.New(cfg.Files.ContactFile),
			Wishes:    workfile.New(cfg.Files.WishesFile),
			Report:    workfile.New(cfg.Files.ReportFile),
			Recipient: workfile.New(cfg.Files.ReportNumberFile),
		},
		Required: requiredFiles(cfg),
		Clock:    retry.SystemClock{},
		Log:      log,
	}

	err = pipeline.New(deps, pipeline.Options{Fresh: fresh}).Run(ctx)
	code := pipeline.ExitCode(err)
	if err != nil && code == pipeline.ExitUnexpected {
		log.WithError(err).Error("Run failed")
	}
	return code
}

// requiredFiles lists the access keys the configured backends need.
func requiredFiles(cfg *config.Config) []pipeline.RequiredFile {
	var files []pipeline.RequiredFile
	if cfg.Spreadsheet.Backend == "" || cfg.Spreadsheet.Backend == "sheets" {
		files = append(files, pipeline.RequiredFile{Artifact: "spread sheet access key", Path: cfg.Spreadsheet.CredentialsFile})
	}
	if cfg.Selectors.Backend == "" || cfg.Selectors.Backend == "firebase" {
		files = append(files, pipeline.RequiredFile{Artifact: "database access key", Path: cfg.Selectors.CredentialsFile})
	}
	return files
}

func printBanner(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║              WhatsApp Birthday Wisher                     ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Browser Profile: %s\n", cfg.BrowserProfilePath)
	fmt.Printf("Worklist: %s\n", cfg.Files.ContactFile)
	if cfg.Headless {
		fmt.Println("🕶️  HEADLESS MODE - No browser window")
	}
	if cfg.DebugMode {
		fmt.Println("🔍 DEBUG MODE - Detailed logging enabled")
	}
	fmt.Println()
}
