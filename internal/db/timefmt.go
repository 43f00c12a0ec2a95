package db

import (
	"fmt"
	"time"
)

// timeLayout is fixed width so that stored timestamps sort as text. Columns
// holding it are declared TEXT; the driver rewrites DATETIME columns into
// time.Time on scan.
const timeLayout = "2006-01-02 15:04:05.000000000"

// FormatTime renders t in UTC for storage.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime reads a timestamp written by FormatTime. Values returned by the
// driver as RFC3339 (databases created with DATETIME columns) and plain
// SQLite datetime('now') values are accepted too.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(timeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(time.DateTime, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}
