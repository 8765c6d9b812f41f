package document

import (
	"strconv"
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"
)

// TimestampLayout is the at-rest format: ISO-8601, UTC, millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// DateLayout is used for plan dates.
const DateLayout = "2006-01-02"

var clock = time.Now

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
}

// FormatTime renders t in the at-rest timestamp format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTime parses an at-rest timestamp (or any RFC 3339 value).
func ParseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
}

// NormalizeTimestamp converts value to the at-rest format. Values that cannot be interpreted
// as a point in time are returned unchanged.
func NormalizeTimestamp(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return value
	}
	if t, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return FormatTime(t)
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		// 1e11 seconds is year 5138; anything larger is epoch milliseconds.
		if n > 1e11 || n < -1e11 {
			return FormatTime(time.UnixMilli(n))
		}
		return FormatTime(time.Unix(n, 0))
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
			return FormatTime(t)
		}
	}
	parsed, err := dateparser.Parse(&dateparser.Configuration{CurrentTime: clock()}, trimmed)
	if err == nil && !parsed.Time.IsZero() {
		return FormatTime(parsed.Time)
	}
	return value
}

// NormalizeDate converts value to YYYY-MM-DD, leaving uninterpretable values unchanged.
func NormalizeDate(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return value
	}
	if _, err := time.Parse(DateLayout, trimmed); err == nil {
		return trimmed
	}
	normalized := NormalizeTimestamp(trimmed)
	if t, err := time.Parse(TimestampLayout, normalized); err == nil {
		return t.In(time.Local).Format(DateLayout)
	}
	return value
}

// NormalizeDates rewrites every date-bearing field of d in place.
func NormalizeDates(d *Document) {
	d.StartTime = normalizePtr(d.StartTime)
	d.PausedTime = normalizePtr(d.PausedTime)
	for i := range d.Records {
		record := &d.Records[i]
		record.StartTime = NormalizeTimestamp(record.StartTime)
		record.EndTime = NormalizeTimestamp(record.EndTime)
		record.CreatedAt = NormalizeTimestamp(record.CreatedAt)
	}
	for i := range d.DailyPlans {
		plan := &d.DailyPlans[i]
		plan.Date = NormalizeDate(plan.Date)
		plan.CreatedAt = NormalizeTimestamp(plan.CreatedAt)
	}
	for i := range d.Todos {
		todo := &d.Todos[i]
		todo.CreatedAt = NormalizeTimestamp(todo.CreatedAt)
		todo.CompletedAt = normalizePtr(todo.CompletedAt)
	}
	for i := range d.Questions {
		d.Questions[i].CreatedAt = NormalizeTimestamp(d.Questions[i].CreatedAt)
	}
}

func normalizePtr(value *string) *string {
	if value == nil {
		return nil
	}
	normalized := NormalizeTimestamp(*value)
	return &normalized
}
