package workbook

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// headerScanRows bounds how far down a sheet headers are searched for.
const headerScanRows = 25

var (
	idAliases = []string{
		"ac-no", "ac-no.", "ac no", "acno", "no.", "id", "user id", "userid", "user-id",
		"employee id", "emp id", "empid", "enroll id", "enrollid", "enroll no", "badge",
		"badge no", "person id", "personnel id", "card no", "biometric id", "pin",
	}
	employeeNoAliases = []string{"employee no", "employee no.", "employee code", "emp code", "staff no", "nik"}
	nameAliases       = []string{"name", "employee name", "full name", "emp name", "user name", "username"}
	dateTimeAliases   = []string{
		"datetime", "date/time", "date time", "date and time", "check time", "checktime",
		"punch time", "timestamp", "clock time", "log time",
	}
	dateAliases = []string{"date", "log date", "punch date", "att date", "attendance date"}
	timeAliases = []string{"time", "times", "punch", "punches", "clock"}

	gridIDLabels   = []string{"id", "user id", "userid", "no", "no.", "ac-no", "emp id", "employee id"}
	gridNameLabels = []string{"name", "employee name"}

	periodRegex    = regexp.MustCompile(`(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})\s*(?:~|to|-{1,2}|–)\s*(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})`)
	monthNameRegex = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?[\s,-]+(\d{4})\b`)
)

func indexOfAlias(header []string, aliases []string) int {
	for i, h := range header {
		name := normalizeHeader(h)
		for _, a := range aliases {
			if name == a {
				return i
			}
		}
	}
	return -1
}

// legacyColumns locates the columns of a row-per-punch export.
type legacyColumns struct {
	headerRow  int
	id         int
	employeeNo int
	name       int
	dateTime   int
	date       int
	time       int
}

func detectLegacy(rows [][]string) (legacyColumns, bool) {
	for r := 0; r < len(rows) && r < headerScanRows; r++ {
		header := rows[r]
		cols := legacyColumns{
			headerRow:  r,
			id:         indexOfAlias(header, idAliases),
			employeeNo: indexOfAlias(header, employeeNoAliases),
			name:       indexOfAlias(header, nameAliases),
			dateTime:   indexOfAlias(header, dateTimeAliases),
			date:       indexOfAlias(header, dateAliases),
			time:       indexOfAlias(header, timeAliases),
		}
		if cols.id < 0 && cols.employeeNo >= 0 {
			cols.id, cols.employeeNo = cols.employeeNo, -1
		}
		if cols.id < 0 {
			continue
		}
		if cols.dateTime < 0 && cols.date < 0 && cols.time >= 0 {
			// a lone "Time" column carries the full timestamp
			cols.dateTime, cols.time = cols.time, -1
		}
		if cols.dateTime >= 0 || cols.date >= 0 {
			return cols, true
		}
	}
	return legacyColumns{}, false
}

// gridLayout locates the day columns of a grid report.
type gridLayout struct {
	headerRow  int
	dayColumns map[int]int // column -> day of month
	period     *gridPeriod
}

type gridPeriod struct {
	startYear, startMonth, startDay int
	endYear, endMonth, endDay       int
}

func detectGrid(rows [][]string) (gridLayout, bool) {
	layout := gridLayout{headerRow: -1}
	for r := 0; r < len(rows) && r < headerScanRows; r++ {
		if layout.period == nil {
			layout.period = findPeriod(rows[r])
		}
		if cols, ok := dayHeader(rows[r]); ok {
			layout.headerRow = r
			layout.dayColumns = cols
			break
		}
	}
	if layout.headerRow < 0 {
		return gridLayout{}, false
	}
	for r := layout.headerRow + 1; r < len(rows); r++ {
		if _, ok := gridLabelValue(rows[r], gridIDLabels); ok {
			return layout, true
		}
	}
	return gridLayout{}, false
}

// dayHeader accepts a row of consecutive day numbers, allowing one wrap back
// to 1 for periods that cross a month end.
func dayHeader(row []string) (map[int]int, bool) {
	cols := make(map[int]int)
	prev, wrapped := 0, false
	for c, cell := range row {
		v := strings.TrimSpace(cell)
		if v == "" {
			continue
		}
		if !dayNumberRegex.MatchString(v) {
			if len(cols) > 0 {
				return nil, false
			}
			continue
		}
		day, _ := strconv.Atoi(v)
		if day < 1 || day > 31 {
			return nil, false
		}
		switch {
		case prev == 0, day == prev+1:
		case day == 1 && !wrapped:
			wrapped = true
		default:
			return nil, false
		}
		cols[c] = day
		prev = day
	}
	return cols, len(cols) >= 7
}

// gridLabelValue reads "ID: 123" style pairs, either inline or in the next
// non-empty cell.
func gridLabelValue(row []string, labels []string) (string, bool) {
	for c, cell := range row {
		raw := strings.TrimSpace(cell)
		if raw == "" {
			continue
		}
		label, inline, hasColon := strings.Cut(raw, ":")
		if !hasColon {
			label, inline, hasColon = strings.Cut(raw, "：")
		}
		name := normalizeHeader(label)
		matched := false
		for _, l := range labels {
			if name == l {
				matched = true
				break
			}
		}
		if !matched || !hasColon {
			continue
		}
		if v := strings.TrimSpace(inline); v != "" {
			return v, true
		}
		for _, next := range row[c+1:] {
			if v := strings.TrimSpace(next); v != "" {
				if isGridLabel(v) {
					return "", true
				}
				return v, true
			}
		}
		return "", true
	}
	return "", false
}

func isGridLabel(v string) bool {
	label, _, ok := strings.Cut(v, ":")
	if !ok {
		return false
	}
	name := normalizeHeader(label)
	for _, set := range [][]string{gridIDLabels, gridNameLabels, {"dept", "dept.", "department"}} {
		for _, l := range set {
			if name == l {
				return true
			}
		}
	}
	return false
}

func findPeriod(row []string) *gridPeriod {
	for _, cell := range row {
		m := periodRegex.FindStringSubmatch(cell)
		if m == nil {
			continue
		}
		n := make([]int, 6)
		for i := range n {
			n[i], _ = strconv.Atoi(m[i+1])
		}
		return &gridPeriod{
			startYear: n[0], startMonth: n[1], startDay: n[2],
			endYear: n[3], endMonth: n[4], endDay: n[5],
		}
	}
	return nil
}

// monthHints collects YYYY-MM values spelled out as month names.
func monthHints(rows [][]string) []string {
	var hints []string
	for r := 0; r < len(rows) && r < headerScanRows; r++ {
		for _, cell := range rows[r] {
			for _, m := range monthNameRegex.FindAllStringSubmatch(cell, -1) {
				month := monthNumber(m[1])
				year, _ := strconv.Atoi(m[2])
				if month == 0 || year < 2000 || year > 2100 {
					continue
				}
				hints = append(hints, monthKey(year, month))
			}
		}
	}
	return hints
}

func monthNumber(name string) int {
	prefixes := []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}
	lower := strings.ToLower(name)
	for i, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return i + 1
		}
	}
	return 0
}

func monthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}
