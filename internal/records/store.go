package records

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"wisher/internal/retry"
	"wisher/internal/worklist"
)

// Tabs names the three worksheets.
type Tabs struct {
	Birthdays string
	Wishes    string
	SentLog   string
}

// Store runs every workbook operation under an unbounded, connectivity
// gated retry so a flaky network never fails a run.
type Store struct {
	book   Workbook
	tabs   Tabs
	policy retry.Policy
	log    logrus.FieldLogger
}

func NewStore(book Workbook, tabs Tabs, policy retry.Policy, log logrus.FieldLogger) *Store {
	return &Store{book: book, tabs: tabs, policy: policy, log: log}
}

func (s *Store) withTable(ctx context.Context, tab, action string, op func(ctx context.Context, t Table) error) error {
	p := s.policy
	p.Name = action
	return p.Do(ctx, func(ctx context.Context) error {
		t, err := s.book.Table(ctx, tab)
		if err != nil {
			return fmt.Errorf("open %s: %w", tab, err)
		}
		return op(ctx, t)
	})
}

// DedupeBirthdays keeps the first row of every country code and number
// pair and deletes the rest, bottom row first.
func (s *Store) DedupeBirthdays(ctx context.Context) (int, error) {
	var deleted int
	err := s.withTable(ctx, s.tabs.Birthdays, "remove duplicate birthdays", func(ctx context.Context, t Table) error {
		deleted = 0
		values, err := t.Values(ctx)
		if err != nil {
			return err
		}

		seen := make(map[string]bool)
		var duplicates []int
		for _, rec := range Records(values) {
			if rec.CountryCode() == "" && rec.Number() == "" {
				continue
			}
			key := rec.IdentityKey()
			if seen[key] {
				duplicates = append(duplicates, rec.Row)
				continue
			}
			seen[key] = true
		}

		if len(duplicates) == 0 {
			s.log.Info("No duplicate rows found.")
			return nil
		}

		sort.Sort(sort.Reverse(sort.IntSlice(duplicates)))
		for _, row := range duplicates {
			if err := t.DeleteRow(ctx, row); err != nil {
				return fmt.Errorf("delete row %d: %w", row, err)
			}
			deleted++
			s.log.Infof("Deleted duplicate row %d", row)
		}
		s.log.Info("Duplicate removal completed.")
		return nil
	})
	return deleted, err
}

// CountToday counts rows whose date of birth falls on today, valid or not.
func (s *Store) CountToday(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := s.withTable(ctx, s.tabs.Birthdays, "count today birthdays", func(ctx context.Context, t Table) error {
		values, err := t.Values(ctx)
		if err != nil {
			return err
		}
		count = 0
		for _, rec := range Records(values) {
			if rec.IsToday(now) {
				count++
			}
		}
		return nil
	})
	return count, err
}

// TodayBirthdays returns today's valid entries in sheet order and the
// number of today's rows rejected by validation.
func (s *Store) TodayBirthdays(ctx context.Context, now time.Time) ([]worklist.Entry, int, error) {
	var (
		entries []worklist.Entry
		skipped int
	)
	err := s.withTable(ctx, s.tabs.Birthdays, "read today birthdays", func(ctx context.Context, t Table) error {
		values, err := t.Values(ctx)
		if err != nil {
			return err
		}
		entries, skipped = nil, 0
		for _, rec := range Records(values) {
			if !rec.IsToday(now) {
				continue
			}
			entry, ok := rec.ToEntry(now)
			if !ok {
				skipped++
				s.log.WithField("row", rec.Row).Debug("Birthday row failed validation")
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	return entries, skipped, err
}

// DedupeWishes returns column A below the header, first occurrence
// order, blanks dropped. The sheet is rewritten only when duplicates
// were present.
func (s *Store) DedupeWishes(ctx context.Context) ([]string, error) {
	var unique []string
	err := s.withTable(ctx, s.tabs.Wishes, "process wishes", func(ctx context.Context, t Table) error {
		values, err := t.Values(ctx)
		if err != nil {
			return err
		}
		column := Column(values, 1)
		unique = nil
		if len(column) <= 1 {
			s.log.Warn("No wishes data found in sheets")
			return nil
		}

		wishes := column[1:]
		seen := make(map[string]bool)
		filled := 0
		for _, wish := range wishes {
			if strings.TrimSpace(wish) == "" {
				continue
			}
			filled++
			if seen[wish] {
				continue
			}
			seen[wish] = true
			unique = append(unique, wish)
		}

		// Blank cells alone are left where they are.
		if len(unique) != filled {
			if err := t.WriteColumn(ctx, 1, 2, unique, len(wishes)+1); err != nil {
				return fmt.Errorf("rewrite wishes: %w", err)
			}
			s.log.Infof("Removed %d duplicate wishes from sheet", filled-len(unique))
		}
		return nil
	})
	return unique, err
}

// AppendSentLog writes all rows in one batch after the last used row.
func (s *Store) AppendSentLog(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		s.log.Info("No data to transfer")
		return nil
	}
	return s.withTable(ctx, s.tabs.SentLog, "transfer sent messages", func(ctx context.Context, t Table) error {
		if err := t.AppendRows(ctx, rows); err != nil {
			return err
		}
		s.log.Info("All data transferred to sheets")
		return nil
	})
}

func (s *Store) Close() error {
	return s.book.Close()
}
