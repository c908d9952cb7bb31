package core

// convert.go turns raw cells into typed values.
//
// These functions handle the messy reality of user-provided spreadsheet data:
//   - Multiple date formats (US, ISO, "Aug-01-2014", Unix timestamps)
//   - Currency symbols and thousand separators in numbers
//   - A closed vocabulary of boolean tokens
//   - Excel formula prefixes (="value")
//
// Cells arrive as strings, Go numbers, json.Number or bools. Blank cells
// coerce to Null, except booleans where blank means false.

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// unixRegex matches cells holding a Unix timestamp.
var unixRegex = regexp.MustCompile(`^\d{9,11}$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// ReferenceHour is the hour of day (UTC) every parsed date is normalized to.
var ReferenceHour = 6

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan-02-2006", "Jan-2-2006", "02-Jan-2006", "2-Jan-2006",
		"Jan 2, 2006", "January 2, 2006", "Jan 2 2006", "2 Jan 2006",
		"2006-01-02T15:04:05Z07:00", "2006-01-02 15:04:05",
		"20060102",
	}
)

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// cellText renders a raw cell as cleaned text.
func cellText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return CleanCell(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case decimal.Decimal:
		return v.String()
	case fmt.Stringer:
		return CleanCell(v.String())
	default:
		return CleanCell(fmt.Sprint(v))
	}
}

// ParseNumber converts a string to a decimal.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func ParseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseBool converts a token from the closed boolean vocabulary.
// Anything outside the vocabulary is an error, not a truthiness cast.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "on":
		return true, nil
	case "0", "false", "f", "no", "off", "":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q (use yes/no, true/false, on/off or 1/0)", s)
	}
}

// ParseDate converts a string to a timestamp at ReferenceHour UTC.
// Supports multiple date formats and handles 2-digit years with pivot.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if unixRegex.MatchString(s) {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return normalizeDate(time.Unix(sec, 0).UTC()), true
		}
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return normalizeDate(t), true
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
	pivotYear := time.Now().Year() + TwoDigitYearPivot

	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return normalizeDate(t), true
		}
	}

	return time.Time{}, false
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), ReferenceHour, 0, 0, 0, time.UTC)
}

// Coerce converts a raw cell according to spec.
func Coerce(raw any, spec FieldSpec) (Value, error) {
	if b, ok := raw.(bool); ok && spec.Type == FieldBool {
		return BoolValue(b), nil
	}

	s := cellText(raw)
	if spec.Normalizer != nil && s != "" {
		s = spec.Normalizer(s)
	}

	switch spec.Type {
	case FieldBool:
		b, err := ParseBool(s)
		if err != nil {
			return Null(), err
		}
		return BoolValue(b), nil
	}

	if s == "" {
		return Null(), nil
	}

	switch spec.Type {
	case FieldNumeric:
		d, ok := ParseNumber(s)
		if !ok {
			return Null(), fmt.Errorf("invalid number format %q", s)
		}
		return NumberValue(d), nil
	case FieldDate:
		t, ok := ParseDate(s)
		if !ok {
			return Null(), fmt.Errorf("invalid date format %q", s)
		}
		return TimeValue(t), nil
	case FieldEnum:
		for _, ev := range spec.EnumValues {
			if strings.EqualFold(ev, s) {
				return StringValue(ev), nil
			}
		}
		return Null(), fmt.Errorf("invalid enum value %q, must be one of: %s", s, strings.Join(spec.EnumValues, ", "))
	default:
		return StringValue(s), nil
	}
}
