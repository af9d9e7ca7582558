package sheets

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

func cell(row []interface{}, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	if f, ok := row[i].(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

// parseFloat accepts "1234.5", "1234,5", "1,234.5" and "1.234,5". When both separators
// appear the last one is the decimal mark; a separator repeated on its own groups thousands.
func parseFloat(value string) (float64, error) {
	if value == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	value = normalizeNumber(strings.ReplaceAll(value, " ", ""))
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", value, err)
	}
	return d.InexactFloat64(), nil
}

func normalizeNumber(value string) string {
	comma, dot := strings.LastIndex(value, ","), strings.LastIndex(value, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		return strings.Replace(strings.ReplaceAll(value, ".", ""), ",", ".", 1)
	case comma >= 0 && dot >= 0:
		return strings.ReplaceAll(value, ",", "")
	case comma >= 0 && strings.Count(value, ",") > 1:
		return strings.ReplaceAll(value, ",", "")
	case comma >= 0:
		return strings.Replace(value, ",", ".", 1)
	case strings.Count(value, ".") > 1:
		return strings.ReplaceAll(value, ".", "")
	}
	return value
}

// optionalFloat treats an empty cell as zero.
func optionalFloat(value string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	return parseFloat(value)
}

func optionalInt(value string) (int, error) {
	f, err := optionalFloat(value)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not a whole number", value)
	}
	return int(f), nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
