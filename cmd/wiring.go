package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"wisher/internal/config"
	"wisher/internal/connectivity"
	"wisher/internal/records"
	"wisher/internal/retry"
	"wisher/internal/selectors"
)

func newGuard(cfg *config.Config, log logrus.FieldLogger) *connectivity.Guard {
	prober := connectivity.NewProber(cfg.Connectivity.Method, cfg.Connectivity.Host, cfg.Connectivity.URL, cfg.ConnectivityTimeout())
	return connectivity.NewGuard(prober, retry.SystemClock{}, log)
}

func newWorkbook(cfg *config.Config) (records.Workbook, error) {
	switch cfg.Spreadsheet.Backend {
	case "", "sheets":
		if cfg.Spreadsheet.SpreadsheetID == "" {
			return nil, fmt.Errorf("spreadsheet.spreadsheet_id is not set")
		}
		return records.NewSheetsWorkbook(cfg.Spreadsheet.SpreadsheetID, cfg.Spreadsheet.CredentialsFile), nil
	case "sqlite":
		return records.OpenSQLite(cfg.Spreadsheet.SQLitePath)
	}
	return nil, fmt.Errorf("unknown spreadsheet backend %q", cfg.Spreadsheet.Backend)
}

func newRecordStore(cfg *config.Config, gate retry.Gate, log logrus.FieldLogger) (*records.Store, error) {
	book, err := newWorkbook(cfg)
	if err != nil {
		return nil, err
	}
	tabs := records.Tabs{
		Birthdays: cfg.Spreadsheet.BirthdayTab,
		Wishes:    cfg.Spreadsheet.WishesTab,
		SentLog:   cfg.Spreadsheet.SentLogTab,
	}
	policy := retry.Policy{
		Interval: config.SheetRetryDelay,
		Gate:     gate,
		Log:      log,
	}
	return records.NewStore(book, tabs, policy, log), nil
}

func newSelectorStore(cfg *config.Config) (selectors.Store, error) {
	switch cfg.Selectors.Backend {
	case "", "firebase":
		return selectors.NewFirebaseStore(cfg.Selectors.DatabaseURL, cfg.Selectors.Namespace, cfg.Selectors.CredentialsFile), nil
	case "redis":
		client := selectors.NewRedisClient(cfg.Selectors.RedisAddr, cfg.Selectors.RedisPassword, cfg.Selectors.RedisDB)
		return selectors.NewRedisStore(client, cfg.Selectors.Namespace), nil
	}
	return nil, fmt.Errorf("unknown selector backend %q", cfg.Selectors.Backend)
}

func newDirectory(cfg *config.Config, gate retry.Gate, log logrus.FieldLogger) (*selectors.Directory, error) {
	store, err := newSelectorStore(cfg)
	if err != nil {
		return nil, err
	}
	policy := retry.Policy{
		Interval: config.SelectorRetryDelay,
		Gate:     gate,
		Log:      log,
	}
	return selectors.NewDirectory(store, policy, log), nil
}
