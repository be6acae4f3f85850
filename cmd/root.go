package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wisher/internal/config"
	"wisher/internal/locale"
	"wisher/internal/logging"
	"wisher/internal/pipeline"
)

const (
	LOGO = `
  __      __ _      _
  \ \    / /(_) ___| |__   ___  _ _
   \ \/\/ / | |(_-<| '_ \ / -_)| '_|
    \_/\_/  |_|/__/|_.__/ \___||_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wisher",
	Short: "Sends today's birthday wishes through WhatsApp Web.",
	Long: LOGO + `wisher reads today's birthdays from a spreadsheet, greets every contact on
WhatsApp Web with a random wish and reports the result to an admin number.
A crashed or interrupted run picks up where it stopped.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(pipeline.ExitUnexpected)
	}
}

func init() {
	cobra.OnInitialize(initEnv)

	rootCmd.PersistentFlags().String("config", "", "config file (default is $HOME/.wisher/config.yaml)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable detailed debug logging")
	rootCmd.PersistentFlags().Bool("headless", false, "Run the browser without a window")

	viper.BindPFlags(rootCmd.PersistentFlags())
}

// initEnv loads .env and maps WISHER_* variables onto the flag keys.
func initEnv() {
	_ = godotenv.Load()

	viper.SetEnvPrefix("wisher")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	level := viper.GetString("loglevel")
	if viper.GetBool("debug") {
		level = "debug"
	}
	if err := logging.SetLogLevel(level); err != nil {
		logging.Log.Warn(err)
	}
}

// loadConfig reads the YAML file and lays flag and environment
// overrides on top of it.
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	if viper.IsSet("headless") {
		cfg.Headless = viper.GetBool("headless")
	}
	if viper.GetBool("debug") {
		cfg.DebugMode = true
	}
	if v := viper.GetString("profile"); v != "" {
		cfg.BrowserProfilePath = v
	}
	if v := viper.GetString("spreadsheet_id"); v != "" {
		cfg.Spreadsheet.SpreadsheetID = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Selectors.RedisPassword = v
	}
	if cfg.DebugMode {
		logging.SetLogLevel("debug")
	}

	code, err := locale.InitLocale(cfg.DataDir)
	if err != nil {
		logging.Log.Warnf("Locale initialization failed, using default English: %v", err)
	}
	logging.Log.Debugf("Using locale %s", code)

	return cfg, nil
}
