package statsdb

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const emptyResult = "(no rows)"

// FormatTable renders a result set as a markdown table.
func FormatTable(columns []string, rows [][]any) string {
	if len(columns) == 0 {
		return emptyResult
	}

	var b strings.Builder
	writeRow(&b, columns)
	sep := make([]string, len(columns))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(&b, sep)

	if len(rows) == 0 {
		b.WriteString(emptyResult)
		return b.String()
	}
	cells := make([]string, len(columns))
	for _, row := range rows {
		for i := range cells {
			if i < len(row) {
				cells[i] = formatValue(row[i])
			} else {
				cells[i] = ""
			}
		}
		writeRow(&b, cells)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(escapeCell(c))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
