package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

const isoLayout = "2006-01-02"

// Spreadsheet serial day numbers accepted as dates; outside this window a
// bare number is more likely an amount than a day.
const (
	serialMin = 20000
	serialMax = 80000
)

var (
	excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

	isoDateRe = regexp.MustCompile(`^(\d{4})[-./](\d{1,2})[-./](\d{1,2})(?:[ T].*)?$`)
	compactRe = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
)

// ParseNumber reads a cell as a decimal after removing thousands separators
// and whitespace. Empty or unparseable cells are absent.
func ParseNumber(s string) decimal.NullDecimal {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == ',' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	clean := b.String()
	if clean == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// ParseDate coerces a cell to YYYY-MM-DD. It accepts ISO dates (with '-',
// '.' or '/' separators and an optional time suffix), compact YYYYMMDD, and
// spreadsheet serial day numbers.
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		return civilDate(m[1], m[2], m[3])
	}
	if m := compactRe.FindStringSubmatch(s); m != nil {
		return civilDate(m[1], m[2], m[3])
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && n > serialMin && n < serialMax {
		return SerialToDate(n), true
	}
	return "", false
}

// SerialToDate converts a spreadsheet day serial to YYYY-MM-DD using the
// 1899-12-30 epoch. The fractional time of day is dropped.
func SerialToDate(serial float64) string {
	return excelEpoch.AddDate(0, 0, int(serial)).Format(isoLayout)
}

// civilDate validates the components so 2024-02-30 is rejected rather than
// rolled over.
func civilDate(y, m, d string) (string, bool) {
	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(d)
	if month < 1 || month > 12 || day < 1 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", false
	}
	return t.Format(isoLayout), true
}
