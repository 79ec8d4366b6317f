package model

import "time"

// Display layouts used in chat replies.
const (
	DateTimeLayout = "Mon 2 Jan, 2006 3:04 PM"
	DateLayout     = "Mon 2 Jan, 2006"
)

// FormatDateTime renders t in loc with DateTimeLayout.
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateTimeLayout)
}

// FormatDate renders t in loc with DateLayout.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}
