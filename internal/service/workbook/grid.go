package workbook

import (
	"fmt"
	"strings"
	"time"
)

// parseGrid reads a day-column report: a row of day numbers, then per
// employee an "ID:/Name:" row followed by the punch rows beneath it.
func parseGrid(s sheet, layout gridLayout, b *rowBuilder) {
	dates := layout.dateByDay()

	rows := s.Rows
	for r := layout.headerRow + 1; r < len(rows); r++ {
		token, ok := gridLabelValue(rows[r], gridIDLabels)
		if !ok {
			continue
		}
		token = strings.TrimSpace(token)
		name, _ := gridLabelValue(rows[r], gridNameLabels)

		// punch rows run until the next employee header or a blank row
		cells := make(map[int][]string)
		next := r + 1
		for ; next < len(rows); next++ {
			if isBlankRow(rows[next]) {
				break
			}
			if _, isHeader := gridLabelValue(rows[next], gridIDLabels); isHeader {
				break
			}
			for col := range layout.dayColumns {
				if v := cellValue(rows[next], col); v != "" {
					cells[col] = append(cells[col], v)
				}
			}
		}

		if token == "" {
			b.missingEmployee(fmt.Sprintf("%s!row %d", s.Name, r+1))
			r = next - 1
			continue
		}

		for col, day := range layout.dayColumns {
			if layout.period != nil && dates[day] == "" {
				continue
			}
			minutes, malformed := cellTimes(strings.Join(cells[col], " "))
			b.malformedTime(malformed)
			b.add(rowKey{
				token:   token,
				name:    strings.TrimSpace(name),
				dateISO: dates[day],
				day:     day,
			}, minutes)
		}
		r = next - 1
	}
}

// dateByDay maps day numbers to ISO dates when the report states its period.
func (l gridLayout) dateByDay() map[int]string {
	dates := make(map[int]string)
	p := l.period
	if p == nil {
		return dates
	}
	start := time.Date(p.startYear, time.Month(p.startMonth), p.startDay, 0, 0, 0, 0, time.UTC)
	end := time.Date(p.endYear, time.Month(p.endMonth), p.endDay, 0, 0, 0, 0, time.UTC)
	if start.After(end) || start.Month() != time.Month(p.startMonth) {
		return dates
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if _, taken := dates[d.Day()]; taken {
			break
		}
		dates[d.Day()] = d.Format("2006-01-02")
	}
	return dates
}

// hints returns the months covered by the stated period.
func (l gridLayout) hints() []string {
	if l.period == nil {
		return nil
	}
	var out []string
	for _, iso := range l.dateByDay() {
		out = append(out, iso[:7])
	}
	return out
}
