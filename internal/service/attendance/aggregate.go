package attendance

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/attendance"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
)

// Aggregate rolls evaluated days up per employee key. Rows whose identity is
// still pending are left out and counted in deferred.
func Aggregate(rows []attendance.PerDayRow) (out []attendance.PerEmployeeRow, deferred int) {
	index := make(map[string]int)
	scheduleTypes := make(map[string]map[string]struct{})

	for _, r := range rows {
		if r.IdentityStatus == identity.StatusPending {
			deferred++
			continue
		}
		key := r.EmployeeKey()
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			scheduleTypes[key] = make(map[string]struct{})
			out = append(out, attendance.PerEmployeeRow{
				Key:                key,
				EmployeeID:         r.DisplayEmployeeID,
				EmployeeName:       r.EmployeeName,
				OfficeID:           r.OfficeID,
				OfficeName:         r.OfficeName,
				IdentityStatus:     r.IdentityStatus,
				ResolvedEmployeeID: r.ResolvedEmployeeID,
			})
		}
		e := &out[i]
		if e.EmployeeID == "" {
			e.EmployeeID = r.DisplayEmployeeID
		}
		if e.EmployeeName == "" {
			e.EmployeeName = r.EmployeeName
		}
		if !slices.Contains(e.Tokens, r.EmployeeToken) {
			e.Tokens = append(e.Tokens, r.EmployeeToken)
		}
		if r.ScheduleType != "" {
			scheduleTypes[key][string(r.ScheduleType)] = struct{}{}
		}

		switch r.Status {
		case attendance.StatusNoPunch:
			e.NoPunchDays++
			continue
		case attendance.StatusExcused:
			e.ExcusedDays++
		}
		e.DaysWithLogs++

		if r.IsLate {
			e.LateDays++
		}
		if r.IsUndertime {
			e.UndertimeDays++
		}
		e.TotalLateMinutes += deref(r.LateMinutes)
		e.TotalUndertimeMinutes += deref(r.UndertimeMinutes)
		e.TotalRequiredMinutes += deref(r.RequiredMinutes)
		e.TotalWorkedMinutes += deref(r.WorkedMinutes)
	}

	for i := range out {
		types := make([]string, 0, len(scheduleTypes[out[i].Key]))
		for t := range scheduleTypes[out[i].Key] {
			types = append(types, t)
		}
		slices.Sort(types)
		out[i].ScheduleTypes = types
		out[i].MissingOffice = out[i].IdentityStatus == identity.StatusMatched && out[i].OfficeID == ""
	}
	return out, deferred
}

// ApplyRates fills late and undertime rates as percentages. A zero
// denominator leaves the rate nil.
func ApplyRates(rows []attendance.PerEmployeeRow, mode attendance.RateMode) []attendance.PerEmployeeRow {
	out := slices.Clone(rows)
	for i := range out {
		r := &out[i]
		if mode == attendance.RateModeMinutes {
			r.LateRate = percent(r.TotalLateMinutes, r.TotalRequiredMinutes)
			r.UndertimeRate = percent(r.TotalUndertimeMinutes, r.TotalRequiredMinutes)
		} else {
			r.LateRate = percent(r.LateDays, r.DaysWithLogs)
			r.UndertimeRate = percent(r.UndertimeDays, r.DaysWithLogs)
		}
	}
	return out
}

func percent(num, den int) *float64 {
	if den <= 0 {
		return nil
	}
	v := math.Round(float64(num)/float64(den)*10000) / 100
	return &v
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// SortEmployees orders rows by the primary and optional secondary key, then
// by name (case-insensitive) and key so equal inputs always sort alike.
// Missing rates sort last in either direction.
func SortEmployees(rows []attendance.PerEmployeeRow, spec attendance.SortSpec) []attendance.PerEmployeeRow {
	out := slices.Clone(rows)
	if spec.By == "" {
		spec.By = attendance.SortByName
	}
	slices.SortStableFunc(out, func(a, b attendance.PerEmployeeRow) int {
		if c := compareBy(a, b, spec.By, spec.Order); c != 0 {
			return c
		}
		if spec.ThenBy != "" {
			if c := compareBy(a, b, spec.ThenBy, spec.ThenOrder); c != 0 {
				return c
			}
		}
		return cmp.Or(
			strings.Compare(strings.ToLower(a.EmployeeName), strings.ToLower(b.EmployeeName)),
			strings.Compare(a.Key, b.Key),
		)
	})
	return out
}

func compareBy(a, b attendance.PerEmployeeRow, key attendance.SortKey, order attendance.SortOrder) int {
	var c int
	switch key {
	case attendance.SortByLateRate, attendance.SortByUndertimeRate:
		ra, rb := a.LateRate, b.LateRate
		if key == attendance.SortByUndertimeRate {
			ra, rb = a.UndertimeRate, b.UndertimeRate
		}
		switch {
		case ra == nil && rb == nil:
			return 0
		case ra == nil:
			return 1
		case rb == nil:
			return -1
		}
		c = cmp.Compare(*ra, *rb)
	case attendance.SortByName:
		c = strings.Compare(strings.ToLower(a.EmployeeName), strings.ToLower(b.EmployeeName))
	case attendance.SortByEmployeeID:
		c = strings.Compare(a.EmployeeID, b.EmployeeID)
	case attendance.SortByOffice:
		c = strings.Compare(strings.ToLower(a.OfficeName), strings.ToLower(b.OfficeName))
	case attendance.SortByDaysWithLogs:
		c = cmp.Compare(a.DaysWithLogs, b.DaysWithLogs)
	case attendance.SortByNoPunchDays:
		c = cmp.Compare(a.NoPunchDays, b.NoPunchDays)
	case attendance.SortByLateDays:
		c = cmp.Compare(a.LateDays, b.LateDays)
	case attendance.SortByUndertimeDays:
		c = cmp.Compare(a.UndertimeDays, b.UndertimeDays)
	case attendance.SortByTotalLateMinutes:
		c = cmp.Compare(a.TotalLateMinutes, b.TotalLateMinutes)
	case attendance.SortByTotalUndertimeMinutes:
		c = cmp.Compare(a.TotalUndertimeMinutes, b.TotalUndertimeMinutes)
	}
	if order == attendance.SortDesc {
		c = -c
	}
	return c
}

// AggregateOffices rolls employees up per office. Employees without an
// office share the UNKNOWN_OFFICE bucket.
func AggregateOffices(rows []attendance.PerEmployeeRow, mode attendance.RateMode) []attendance.PerOfficeRow {
	index := make(map[string]int)
	var out []attendance.PerOfficeRow
	for _, e := range rows {
		key := e.OfficeID
		if key == "" {
			key = identity.UnknownOffice
		}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			name := e.OfficeName
			if e.OfficeID == "" {
				name = identity.UnknownOffice
			}
			out = append(out, attendance.PerOfficeRow{OfficeID: e.OfficeID, OfficeName: name})
		}
		o := &out[i]
		o.Employees++
		o.DaysWithLogs += e.DaysWithLogs
		o.NoPunchDays += e.NoPunchDays
		o.LateDays += e.LateDays
		o.UndertimeDays += e.UndertimeDays
		o.TotalLateMinutes += e.TotalLateMinutes
		o.TotalUndertimeMinutes += e.TotalUndertimeMinutes
		o.TotalRequiredMinutes += e.TotalRequiredMinutes
	}

	for i := range out {
		o := &out[i]
		if mode == attendance.RateModeMinutes {
			o.LateRate = percent(o.TotalLateMinutes, o.TotalRequiredMinutes)
			o.UndertimeRate = percent(o.TotalUndertimeMinutes, o.TotalRequiredMinutes)
		} else {
			o.LateRate = percent(o.LateDays, o.DaysWithLogs)
			o.UndertimeRate = percent(o.UndertimeDays, o.DaysWithLogs)
		}
	}
	slices.SortFunc(out, func(a, b attendance.PerOfficeRow) int {
		return cmp.Or(
			strings.Compare(strings.ToLower(a.OfficeName), strings.ToLower(b.OfficeName)),
			strings.Compare(a.OfficeID, b.OfficeID),
		)
	})
	return out
}
