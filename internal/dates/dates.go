package dates

import (
	"errors"
	"fmt"
	"time"
)

// Timestamp encodings. StorageFormat is the only encoding ever written by
// this engine; the legacy forms come from data migrated out of the old
// nickname convention and are accepted on read only.
const (
	StorageFormat    = "2006-01-02 15:04:05"
	LegacyFormat     = "02/01/2006 15:04:05"
	LegacyDateFormat = "02/01/2006"
	DisplayFormat    = "02/01/2006"
)

// ErrParse reports a timestamp that matches none of the known encodings.
var ErrParse = errors.New("unrecognized date format")

// Parse tries the canonical encoding first, then the legacy encoding, then
// a date-only legacy form. It never guesses partial matches. Encodings are
// timezone-naive; parsed values live in the process-local clock, the same
// one that wrote them.
func Parse(raw string) (time.Time, error) {
	for _, layout := range []string{StorageFormat, LegacyFormat} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	if len(raw) >= len(LegacyDateFormat) {
		if t, err := time.ParseInLocation(LegacyDateFormat, raw[:len(LegacyDateFormat)], time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrParse, raw)
}

// ToDisplay renders a stored timestamp as a date for humans. Unparseable
// input is returned unchanged so a report never loses information.
func ToDisplay(raw string) string {
	if raw == "" {
		return "N/D"
	}
	t, err := Parse(raw)
	if err != nil {
		return raw
	}
	return t.Format(DisplayFormat)
}

// FormatForStorage renders t in the canonical encoding.
func FormatForStorage(t time.Time) string {
	return t.Format(StorageFormat)
}

// DaysUntil returns the whole calendar days from now's date to t's date.
// Both sides are truncated to midnight so the answer is stable for the
// whole day regardless of when a run happens. The midnights are rebuilt in
// UTC from the date components; a DST transition inside the span would
// otherwise make the difference a non-multiple of 24h and truncate a day.
func DaysUntil(t time.Time, now time.Time) int {
	a := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
