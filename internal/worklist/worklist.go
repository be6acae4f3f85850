// Package worklist reads and stamps the lines of the day's contact
// worklist file.
//
// A pending line looks like
//
//	18-10-1990 Asha https://wa.me/91 9876543210|
//
// and a completed line carries a timestamp in front and the outcome
// after the bar:
//
//	18-10-2026 09:15:02 18-10-1990 Asha https://wa.me/91 9876543210| Happy birthday!
package worklist

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	DateLayout      = "02-01-2006"
	DayMonthLayout  = "02-01"
	TimestampLayout = "02-01-2006 15:04:05"

	NotFoundMarker = "No chats, contacts or messages found"

	linkPrefix = "https://wa.me/"
	bar        = "|"
)

var (
	ErrEntryNotFound  = errors.New("worklist entry not found")
	ErrNoPendingPhone = errors.New("pending worklist line has no phone number")
)

// Entry is one contact as written to the worklist.
type Entry struct {
	DOB         string
	Name        string
	CountryCode string
	Number      string
}

func (e Entry) Line() string {
	return fmt.Sprintf("%s %s %s%s %s%s", e.DOB, e.Name, linkPrefix, e.CountryCode, e.Number, bar)
}

// Phone is the search text typed into WhatsApp, "<cc> <number>".
func (e Entry) Phone() string {
	return e.CountryCode + " " + e.Number
}

// Outcome returns the trimmed text after the bar. ok is false for a
// pending line.
func Outcome(line string) (outcome string, ok bool) {
	i := strings.Index(line, bar)
	if i < 0 {
		return "", false
	}
	outcome = strings.TrimSpace(line[i+1:])
	return outcome, outcome != ""
}

func IsPending(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	_, done := Outcome(line)
	return !done
}

func IsNotFound(line string) bool {
	outcome, ok := Outcome(line)
	return ok && outcome == NotFoundMarker
}

// PhoneOf extracts the text between "wa.me/" and the bar, keeping digits,
// '+' and spaces.
func PhoneOf(line string) (string, error) {
	start := strings.Index(line, linkPrefix)
	if start < 0 {
		return "", ErrNoPendingPhone
	}
	rest := line[start+len(linkPrefix):]
	if end := strings.Index(rest, bar); end >= 0 {
		rest = rest[:end]
	}

	var b strings.Builder
	for _, r := range rest {
		if unicode.IsDigit(r) || r == '+' || r == ' ' {
			b.WriteRune(r)
		}
	}
	phone := strings.TrimSpace(b.String())
	if strings.IndexFunc(phone, unicode.IsDigit) < 0 {
		return "", ErrNoPendingPhone
	}
	return phone, nil
}

// AllProcessed reports whether every non-empty line carries an outcome.
func AllProcessed(lines []string) bool {
	for _, line := range lines {
		if IsPending(line) {
			return false
		}
	}
	return true
}

// NextPending returns the index and phone of the first pending line.
// ErrNoPendingPhone means a pending line exists but holds no number,
// which indicates a corrupted worklist.
func NextPending(lines []string) (int, string, error) {
	for i, line := range lines {
		if !IsPending(line) {
			continue
		}
		phone, err := PhoneOf(line)
		if err != nil {
			return i, "", fmt.Errorf("line %d %q: %w", i+1, line, err)
		}
		return i, phone, nil
	}
	return -1, "", ErrEntryNotFound
}

func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// FindEntry returns the index of the first line whose phone matches,
// ignoring whitespace, or -1.
func FindEntry(lines []string, phone string) int {
	return find(lines, phone, false)
}

func find(lines []string, phone string, pendingOnly bool) int {
	want := normalize(phone)
	if want == "" {
		return -1
	}
	for i, line := range lines {
		if pendingOnly && !IsPending(line) {
			continue
		}
		got, err := PhoneOf(line)
		if err != nil {
			continue
		}
		if normalize(got) == want {
			return i
		}
	}
	return -1
}

// Stamp marks the pending entry for phone with the timestamp and outcome.
// Already stamped lines are never touched again.
func Stamp(lines []string, phone string, at time.Time, outcome string) ([]string, error) {
	i := find(lines, phone, true)
	if i < 0 {
		return lines, fmt.Errorf("%w: %s", ErrEntryNotFound, phone)
	}

	out := make([]string, len(lines))
	copy(out, lines)
	out[i] = at.Format(TimestampLayout) + " " + strings.TrimRight(lines[i], " ") + " " + SingleLine(outcome)
	return out, nil
}

// SingleLine folds line breaks so a text fits on one file line.
func SingleLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// CleanName makes a contact name safe for a worklist line: one line, no
// bar and no link prefix, single spaces.
func CleanName(name string) string {
	name = strings.ReplaceAll(name, bar, " ")
	name = strings.ReplaceAll(name, linkPrefix, " ")
	return strings.Join(strings.Fields(name), " ")
}

// Counts returns the number of contacts and of not-found outcomes.
func Counts(lines []string) (total, notFound int) {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		total++
		if IsNotFound(line) {
			notFound++
		}
	}
	return total, notFound
}

// DOBOf returns the DD-MM-YYYY date of birth of a pending or stamped line.
func DOBOf(line string) (string, bool) {
	if stamped(line) {
		line = line[len(TimestampLayout)+1:]
	}
	if len(line) < len(DateLayout) {
		return "", false
	}
	dob := line[:len(DateLayout)]
	if _, err := time.Parse(DateLayout, dob); err != nil {
		return "", false
	}
	return dob, true
}

func stamped(line string) bool {
	if len(line) <= len(TimestampLayout) {
		return false
	}
	_, err := time.Parse(TimestampLayout, line[:len(TimestampLayout)])
	return err == nil
}

// BelongsToday reports whether the worklist is non-empty and every entry
// is a birthday on today's day and month, so it can be resumed.
func BelongsToday(lines []string, now time.Time) bool {
	today := now.Format(DayMonthLayout)
	seen := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		dob, ok := DOBOf(line)
		if !ok || dob[:len(DayMonthLayout)] != today {
			return false
		}
		seen++
	}
	return seen > 0
}
