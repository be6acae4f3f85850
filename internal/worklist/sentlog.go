package worklist

import (
	"strings"
)

// SentRow is one row of the sent-message log.
type SentRow struct {
	DateTime    string
	DOB         string
	Name        string
	CountryCode string
	Number      string
	Outcome     string
}

func (r SentRow) Values() []string {
	return []string{r.DateTime, r.DOB, r.Name, r.CountryCode, r.Number, r.Outcome}
}

// ParseSentRow slices a stamped line by its fixed layout: timestamp in
// [0,19), date of birth in [20,30), name from 31 up to the link. Lines
// without a bar are not entries and report ok=false.
func ParseSentRow(line string) (SentRow, bool) {
	line = strings.TrimSpace(line)
	barAt := strings.Index(line, bar)
	if barAt < 0 {
		return SentRow{}, false
	}

	var row SentRow
	row.DateTime = slice(line, 0, 19)
	row.DOB = slice(line, 20, 30)

	head := line[:barAt]
	if linkAt := strings.Index(head, linkPrefix); linkAt >= 0 {
		if linkAt > 31 {
			row.Name = strings.TrimSpace(line[31:linkAt])
		}
		phone := strings.TrimSpace(head[linkAt+len(linkPrefix):])
		if sp := strings.LastIndex(phone, " "); sp >= 0 {
			row.CountryCode = strings.TrimSpace(phone[:sp])
			row.Number = strings.TrimSpace(phone[sp+1:])
		} else {
			row.Number = phone
		}
	}

	row.Outcome = strings.TrimSpace(line[barAt+1:])
	return row, true
}

// SentRows parses every completed line in order.
func SentRows(lines []string) [][]string {
	var rows [][]string
	for _, line := range lines {
		if IsPending(line) {
			continue
		}
		if row, ok := ParseSentRow(line); ok {
			rows = append(rows, row.Values())
		}
	}
	return rows
}

func slice(s string, from, to int) string {
	if from >= len(s) {
		return ""
	}
	if to > len(s) {
		to = len(s)
	}
	return strings.TrimSpace(s[from:to])
}
