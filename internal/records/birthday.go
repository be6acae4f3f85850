package records

import (
	"strings"
	"time"
	"unicode"

	"wisher/internal/worklist"
)

// Accepted header spellings, including a long-lived typo in real sheets.
var (
	dobColumns         = []string{"Date of Birth", "Date of birth", "DOB", "dob"}
	countryCodeColumns = []string{"Country Code", "country code", "Country code", "Counrty Code"}
	numberColumns      = []string{"WhatsApp Number", "Whatsapp Number", "whatsapp number", "Phone"}
	nameColumns        = []string{"Name", "name"}
)

const defaultName = "unavailable"

func (r Record) DOB() string         { return strings.TrimSpace(r.Get(dobColumns...)) }
func (r Record) CountryCode() string { return strings.TrimSpace(r.Get(countryCodeColumns...)) }
func (r Record) Number() string      { return strings.TrimSpace(r.Get(numberColumns...)) }
func (r Record) Name() string        { return strings.TrimSpace(r.Get(nameColumns...)) }

// IdentityKey is "<cc>-<number>" with whitespace removed.
func (r Record) IdentityKey() string {
	return stripSpace(r.CountryCode()) + "-" + stripSpace(r.Number())
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseBirthDate accepts "DD-MM" and "DD-MM-YYYY" and returns the
// DD-MM-YYYY form, filling in the current year when none is given.
func ParseBirthDate(dob string, now time.Time) (string, bool) {
	dob = strings.TrimSpace(dob)

	if t, err := time.Parse(worklist.DateLayout, dob); err == nil {
		return t.Format(worklist.DateLayout), true
	}

	if t, err := time.Parse(worklist.DayMonthLayout, dob); err == nil {
		full := time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
		if full.Month() != t.Month() {
			// 29-02 outside a leap year
			return dob + "-" + now.Format("2006"), true
		}
		return full.Format(worklist.DateLayout), true
	}

	return "", false
}

// ToEntry validates a record for the worklist.
func (r Record) ToEntry(now time.Time) (worklist.Entry, bool) {
	cc := r.CountryCode()
	if !isDigits(cc) {
		return worklist.Entry{}, false
	}
	number := r.Number()
	if !isDigits(number) {
		return worklist.Entry{}, false
	}
	dob, ok := ParseBirthDate(r.DOB(), now)
	if !ok {
		return worklist.Entry{}, false
	}
	name := worklist.CleanName(r.Name())
	if name == "" {
		name = defaultName
	}
	return worklist.Entry{DOB: dob, Name: name, CountryCode: cc, Number: number}, true
}

// IsToday reports whether the date-of-birth cell starts with today's DD-MM.
func (r Record) IsToday(now time.Time) bool {
	return strings.HasPrefix(r.DOB(), now.Format(worklist.DayMonthLayout))
}
