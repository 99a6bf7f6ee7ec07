// ABOUTME: Calendar-day divider labels for the message view.
// ABOUTME: Today / Yesterday / long-form weekday labels, year only when it differs.

package timeline

import "time"

// dayKey buckets a timestamp by local calendar day. Strict string
// comparison on this key decides where dividers go.
func dayKey(ts time.Time) string {
	return ts.Local().Format("2006-01-02")
}

// dividerLabel renders the display label for the day containing ts,
// relative to now.
func dividerLabel(ts, now time.Time) string {
	day := dayKey(ts)
	switch day {
	case dayKey(now):
		return "Today"
	case dayKey(now.AddDate(0, 0, -1)):
		return "Yesterday"
	}
	local := ts.Local()
	if local.Year() == now.Local().Year() {
		return local.Format("Monday, January 2")
	}
	return local.Format("Monday, January 2, 2006")
}
