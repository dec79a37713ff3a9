package workbook

import (
	"fmt"
	"strconv"
	"strings"
)

// parseLegacy reads a row-per-punch export below its header row.
func parseLegacy(s sheet, cols legacyColumns, b *rowBuilder) {
	for r := cols.headerRow + 1; r < len(s.Rows); r++ {
		row := s.Rows[r]
		if isBlankRow(row) {
			continue
		}
		ref := fmt.Sprintf("%s!row %d", s.Name, r+1)

		token := cellValue(row, cols.id)
		if token == "" {
			b.missingEmployee(ref)
			continue
		}
		key := rowKey{
			token:      token,
			employeeID: cellValue(row, cols.employeeNo),
			name:       cellValue(row, cols.name),
		}

		var minutes []int
		switch {
		case cols.date >= 0:
			raw := cellValue(row, cols.date)
			if day, ok := dayOnly(raw); ok {
				key.day = day
			} else if d, ok := parseDate(raw); ok {
				key.dateISO = d.Format("2006-01-02")
			} else {
				b.malformedDate(fmt.Sprintf("%s: %q", ref, raw))
				continue
			}

			if cols.time >= 0 {
				var malformed []string
				minutes, malformed = cellTimes(cellValue(row, cols.time))
				b.malformedTime(malformed)
			} else if cols.dateTime >= 0 {
				if t, ok := parseDateTime(cellValue(row, cols.dateTime)); ok {
					minutes = []int{minuteOfDay(t)}
				} else {
					var malformed []string
					minutes, malformed = cellTimes(cellValue(row, cols.dateTime))
					b.malformedTime(malformed)
				}
			} else if t, ok := parseDateTime(raw); ok {
				minutes = []int{minuteOfDay(t)}
			}

		default:
			raw := cellValue(row, cols.dateTime)
			t, ok := parseDateTime(raw)
			if !ok {
				b.malformedDate(fmt.Sprintf("%s: %q", ref, raw))
				continue
			}
			key.dateISO = t.Format("2006-01-02")
			minutes = []int{minuteOfDay(t)}
		}

		b.add(key, minutes)
	}
}

func dayOnly(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if !dayNumberRegex.MatchString(raw) {
		return 0, false
	}
	day, _ := strconv.Atoi(raw)
	return day, day >= 1 && day <= 31
}
