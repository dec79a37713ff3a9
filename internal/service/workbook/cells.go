package workbook

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	// several times may share a cell, separated or concatenated ("08:0217:05")
	timeRegex      = regexp.MustCompile(`(\d{1,2}):(\d{2})(?::(\d{2}))?(?:\s*([AaPp])\.?[Mm]\.?)?`)
	timeLikeRegex  = regexp.MustCompile(`\d\s*[:.]\s*\S`)
	dayNumberRegex = regexp.MustCompile(`^\d{1,2}$`)
)

// cellTimes extracts every punch in a cell as minutes of day. Fragments that
// look like times but are not valid come back as malformed.
func cellTimes(cell string) (minutes []int, malformed []string) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}

	if m, ok := dayFraction(cell); ok {
		return []int{m}, nil
	}

	matches := timeRegex.FindAllStringSubmatchIndex(cell, -1)
	rest := cell
	for i := len(matches) - 1; i >= 0; i-- {
		rest = rest[:matches[i][0]] + " " + rest[matches[i][1]:]
	}

	for _, idx := range matches {
		raw := cell[idx[0]:idx[1]]
		hour, _ := strconv.Atoi(cell[idx[2]:idx[3]])
		minute, _ := strconv.Atoi(cell[idx[4]:idx[5]])
		second := 0
		if idx[6] >= 0 {
			second, _ = strconv.Atoi(cell[idx[6]:idx[7]])
		}
		if idx[8] >= 0 {
			if hour < 1 || hour > 12 {
				malformed = append(malformed, strings.TrimSpace(raw))
				continue
			}
			pm := strings.EqualFold(cell[idx[8]:idx[9]], "p")
			hour %= 12
			if pm {
				hour += 12
			}
		}
		if hour > 23 || minute > 59 || second > 59 {
			malformed = append(malformed, strings.TrimSpace(raw))
			continue
		}
		minutes = append(minutes, hour*60+minute)
	}

	// leftovers such as "8:7x" or "12.3" that never formed a valid time
	for _, frag := range strings.Fields(rest) {
		if timeLikeRegex.MatchString(frag) {
			malformed = append(malformed, frag)
		}
	}
	return minutes, malformed
}

// dayFraction reads an unformatted Excel time value (0 <= v < 1).
func dayFraction(cell string) (int, bool) {
	if !strings.HasPrefix(cell, "0.") {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || v < 0 || v >= 1 {
		return 0, false
	}
	m := int(math.Round(v * 24 * 60))
	if m >= 24*60 {
		m = 24*60 - 1
	}
	return m, true
}

// Month-first layouts are tried before day-first ones so that "03/04/2025"
// reads as March 4.
var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/06 15:04",
	"1/2/06 3:04 PM",
	"1-2-2006 15:04:05",
	"1-2-2006 15:04",
	"2 Jan 2006 15:04",
	"Jan 2, 2006 15:04",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006 3:04:05 PM",
	"2/1/2006 3:04 PM",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"1/2/06",
	"1-2-2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2/1/2006",
	"2-1-2006",
	"02.01.2006",
}

// parseDateTime reads a combined date and time cell.
func parseDateTime(value string) (time.Time, bool) {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return time.Time{}, false
	}
	if t, ok := excelSerial(value); ok {
		return t, true
	}
	upper := strings.ToUpper(value)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, upper); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseDate reads a date-only cell. A trailing time component is ignored.
func parseDate(value string) (time.Time, bool) {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return time.Time{}, false
	}
	if t, ok := excelSerial(value); ok {
		return truncateDay(t), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	if t, ok := parseDateTime(value); ok {
		return truncateDay(t), true
	}
	return time.Time{}, false
}

// excelSerial reads raw serial dates in a plausible range (1982..2118).
func excelSerial(value string) (time.Time, bool) {
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil || serial < 30000 || serial > 80000 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return t.Round(time.Minute), true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func normalizeHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.TrimSuffix(h, ":")
	h = strings.TrimSuffix(h, "：")
	return strings.TrimSpace(h)
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
