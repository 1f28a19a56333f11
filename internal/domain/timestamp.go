package domain

import "time"

// ISOTimestampLayout es el formato canonico (ISO-8601, UTC, milisegundos).
const ISOTimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp normaliza un instante al formato canonico.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(ISOTimestampLayout)
}
