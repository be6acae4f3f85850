package worklist

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"wisher/internal/locale"
)

var ErrRecipientUnavailable = errors.New("report number is unavailable inside the Report number file")

// Report is the end-of-run summary sent to the operator.
type Report struct {
	Date     time.Time
	Total    int
	NotFound int
}

func NewReport(date time.Time, lines []string) Report {
	total, notFound := Counts(lines)
	return Report{Date: date, Total: total, NotFound: notFound}
}

func (r Report) Sent() int {
	return r.Total - r.NotFound
}

func (r Report) String() string {
	return locale.T(locale.Report, r.Date.Format(DateLayout), r.Total, r.NotFound, r.Sent())
}

// Notice returns the admin line for a day that does not run the send
// loop, and false when the count is in range.
func Notice(count, limit int) (string, bool) {
	switch {
	case count == 0:
		return locale.T(locale.NoticeNoBirthday), true
	case count > limit:
		return locale.T(locale.NoticeSpamLimit, count), true
	}
	return "", false
}

// ReadRecipient validates the first line of the report-number file as a
// bare digit string.
func ReadRecipient(lines []string) (string, error) {
	if len(lines) == 0 {
		return "", ErrRecipientUnavailable
	}
	first := strings.TrimSpace(lines[0])
	if first == "" || strings.IndexFunc(first, notASCIIDigit) >= 0 {
		return "", fmt.Errorf("%w: %q", ErrRecipientUnavailable, first)
	}
	return first, nil
}

func notASCIIDigit(r rune) bool { return r < '0' || r > '9' }
