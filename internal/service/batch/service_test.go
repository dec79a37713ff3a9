package batch

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/attendance"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/batch"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/period"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/schedule"
	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/jwt"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/sse"
	attendancesvc "github.com/cmlabs-hris/dtr-ingest/internal/service/attendance"
	exportsvc "github.com/cmlabs-hris/dtr-ingest/internal/service/export"
	identitysvc "github.com/cmlabs-hris/dtr-ingest/internal/service/identity"
	mergesvc "github.com/cmlabs-hris/dtr-ingest/internal/service/merge"
	periodsvc "github.com/cmlabs-hris/dtr-ingest/internal/service/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func intPtr(i int) *int { return &i }

func punchRow(token, date string, times ...string) timelog.ParsedPerDayRow {
	r := timelog.ParsedPerDayRow{EmployeeToken: token, DateISO: date, EmployeeName: "Device " + token}
	var punches []timelog.DayPunch
	for _, s := range times {
		m, _ := timelog.ParseClock(s)
		punches = append(punches, timelog.NewPunch(m))
	}
	r.SetPunches(punches)
	return r
}

func dayOnlyRow(token string, day int, times ...string) timelog.ParsedPerDayRow {
	r := punchRow(token, "", times...)
	r.ComposedFromDayOnly = true
	r.Day = day
	return r
}

type fixture struct {
	svc       *BatchServiceImpl
	dir       *directory
	maps      *mappings
	schedules *schedules
	ctx       context.Context
	clock     time.Time
}

func newFixture(t *testing.T, workbooks map[string]timelog.ParsedWorkbook) *fixture {
	t.Helper()
	office := "O-1"
	officeName := "Jakarta"
	f := &fixture{
		dir: &directory{employees: []identity.DirectoryEmployee{
			{ID: "E-1", Name: "Ana Putri", BiometricID: strPtr("1"), OfficeID: &office, OfficeName: &officeName},
			{ID: "E-42", Name: "Zainal", EmployeeNo: strPtr("EMP-42"), OfficeID: strPtr("O-2"), OfficeName: strPtr("Bandung")},
		}},
		maps: &mappings{},
		schedules: &schedules{plans: map[string]schedule.EmployeeSchedule{
			"E-1": {EmployeeID: "E-1", Default: &schedule.WorkSchedule{
				Name: "Office", GracePeriodMinutes: 5, Plan: schedule.FixedShift{Start: 480, End: 1020},
			}},
			"E-42": {EmployeeID: "E-42", Default: &schedule.WorkSchedule{
				Name: "Office", GracePeriodMinutes: 0, Plan: schedule.FixedShift{Start: 480, End: 1020},
			}},
		}},
		ctx:   jwt.WithCompanyID(context.Background(), "C-1"),
		clock: time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC),
	}

	resolver := identitysvc.NewIdentityService(f.dir, f.maps, identitysvc.Config{ChunkSize: 50, Concurrency: 2, Timeout: time.Second, SampleCap: 10})
	svc := NewBatchService(
		&fakeParser{workbooks: workbooks},
		mergesvc.NewMergeService(10),
		periodsvc.NewPeriodFilter(),
		resolver,
		attendancesvc.NewAttendanceService(f.schedules, 10),
		exportsvc.NewExportService(),
		sse.NewHub(64),
		Config{ParseConcurrency: 2, MaxUploadBytes: 1024, SampleCap: 10, IdleTTL: time.Hour},
	).(*BatchServiceImpl)
	svc.now = func() time.Time { return f.clock }
	f.svc = svc
	return f
}

func (f *fixture) create(t *testing.T) string {
	t.Helper()
	b, err := f.svc.CreateBatch(f.ctx)
	require.NoError(t, err)
	return b.ID
}

func (f *fixture) upload(t *testing.T, id string, names ...string) batch.UploadResponse {
	t.Helper()
	files := make([]batch.UploadedFile, len(names))
	for i, n := range names {
		files[i] = batch.UploadedFile{Name: n, Data: []byte("x")}
	}
	res, err := f.svc.UploadFiles(f.ctx, id, files)
	require.NoError(t, err)
	return res
}

func drain(ch <-chan sse.Event) []string {
	var out []string
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev.Event)
		default:
			return out
		}
	}
}

func march() map[string]timelog.ParsedWorkbook {
	return map[string]timelog.ParsedWorkbook{
		"march.xls": {
			Layout: timelog.LayoutGridReport,
			PerDay: []timelog.ParsedPerDayRow{
				punchRow("1", "2025-03-04", "08:45"),
				punchRow("1", "2025-03-05", "07:55", "17:00"),
				punchRow("42", "2025-03-04", "08:30", "17:00"),
			},
		},
		"march-extra.xlsx": {
			Layout: timelog.LayoutLegacy,
			PerDay: []timelog.ParsedPerDayRow{
				punchRow("1", "2025-03-05", "12:00", "13:00"),
				punchRow("77", "2025-03-06", "09:00", "17:00"),
			},
		},
		"april.xls": {
			PerDay: []timelog.ParsedPerDayRow{punchRow("1", "2025-04-01", "08:00", "17:00")},
		},
		"dayonly.xls": {
			PerDay: []timelog.ParsedPerDayRow{
				dayOnlyRow("1", 3, "08:00", "17:00"),
				dayOnlyRow("1", 31, "08:00", "17:00"),
			},
		},
	}
}

func TestBatch_UploadIsolatesFailedFiles(t *testing.T) {
	f := newFixture(t, march())
	id := f.create(t)
	events, cancel, err := f.svc.Subscribe(f.ctx, id)
	require.NoError(t, err)
	defer cancel()

	res, err := f.svc.UploadFiles(f.ctx, id, []batch.UploadedFile{
		{Name: "march.xls", Data: []byte("ok")},
		{Name: "corrupt.xls", Data: []byte("??")},
		{Name: "march-extra.xlsx", Data: make([]byte, 2048)},
	})
	require.NoError(t, err)

	require.Len(t, res.Files, 3)
	assert.Equal(t, batch.FileParsed, res.Files[0].Status)
	assert.Equal(t, timelog.LayoutGridReport, res.Files[0].Layout)
	assert.Equal(t, batch.FileFailed, res.Files[1].Status)
	assert.Contains(t, res.Files[1].Error, "corrupt.xls")
	assert.Equal(t, batch.FileFailed, res.Files[2].Status)
	assert.Contains(t, res.Files[2].Error, batch.ErrFileTooLarge.Error())

	assert.Equal(t, 3, res.Batch.RowCount)
	assert.Equal(t, []string{"2025-03"}, res.Batch.Months)
	assert.Empty(t, res.Batch.Blocking)

	got := drain(events)
	assert.Contains(t, got, string(batch.EventFileParsed))
	assert.Contains(t, got, string(batch.EventFileFailed))
	assert.Contains(t, got, string(batch.EventMerged))
}

func TestBatch_UploadRequiresFiles(t *testing.T) {
	f := newFixture(t, march())
	id := f.create(t)
	_, err := f.svc.UploadFiles(f.ctx, id, nil)
	assert.ErrorIs(t, err, batch.ErrNoFiles)
}

func TestBatch_OtherCompanyCannotSeeBatch(t *testing.T) {
	f := newFixture(t, march())
	id := f.create(t)

	_, err := f.svc.GetBatch(jwt.WithCompanyID(context.Background(), "C-2"), id)
	assert.ErrorIs(t, err, batch.ErrBatchNotFound)

	_, err = f.svc.GetBatch(context.Background(), id)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestBatch_MixedMonthsNeedConfirmation(t *testing.T) {
	f := newFixture(t, march())
	id := f.create(t)
	f.upload(t, id, "march.xls", "april.xls")

	_, err := f.svc.Evaluate(f.ctx, id, attendance.ViewOptions{})
	assert.ErrorIs(t, err, batch.ErrMixedMonthsUnconfirmed)

	b, err := f.svc.GetBatch(f.ctx, id)
	require.NoError(t, err)
	require.Len(t, b.Blocking, 1)
	assert.Equal(t, batch.BlockMixedMonths, b.Blocking[0].Code)
	assert.Equal(t, []string{"2025-03", "2025-04"}, b.Blocking[0].Months)

	b, err = f.svc.ConfirmMonths(f.ctx, id, batch.ConfirmMonthsRequest{Proceed: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, b.MonthsConfirmed)
	assert.Empty(t, b.Blocking)

	res, err := f.svc.Evaluate(f.ctx, id, attendance.ViewOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.DayCount)
}

func TestBatch_CancellingMixedMonthsResets(t *testing.T) {
	f := newFixture(t, march())
	id := f.create(t)
	f.upload(t, id, "march.xls", "april.xls")

	b, err := f.svc.ConfirmMonths(f.ctx, id, batch.ConfirmMonthsRequest{Proceed: boolPtr(false)})
	require.NoError(t, err)
	assert.Zero(t, b.RowCount)
	assert.Empty(t, b.Files)
	assert.False(t, b.NeedsMonthConfirmation)

	_, err = f.svc.ConfirmMonths(f.ctx, id, batch.ConfirmMonthsRequest{})
	assert.Error(t, err)
}

func TestBatch_DayOnlyRowsNeedPeriod(t *testing.T) {
	f := newFixture(t, march())
	id := f.create(t)
	f.upload(t, id, "dayonly.xls")

	_, err := f.svc.Evaluate(f.ctx, id, attendance.ViewOptions{})
	assert.ErrorIs(t, err, period.ErrManualPeriodRequired)

	b, err := f.svc.SetPeriod(f.ctx, id, batch.SetPeriodRequest{Month: intPtr(4), Year: intPtr(2025)})
	require.NoError(t, err)
	assert.Empty(t, b.Blocking)

	excluded, err := f.svc.ListExcluded(f.ctx, id)
	require.NoError(t, err)
	require.Len(t, excluded, 1)
	assert.Equal(t, period.ReasonInvalidDay, excluded[0].Reason)
	assert.Equal(t, 31, excluded[0].Row.Day)

	res, err := f.svc.Evaluate(f.ctx, id, attendance.ViewOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DayCount)
	assert.Equal(t, 1, res.Excluded)

	days, err := f.svc.ListDays(f.ctx, id, batch.ListDaysRequest{})
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "2025-04-03", days[0].DateISO)

	// clearing the period blocks again
	_, err = f.svc.SetPeriod(f.ctx, id, batch.SetPeriodRequest{})
	require.NoError(t, err)
	_, err = f.svc.Evaluate(f.ctx, id, attendance.ViewOptions{})
	assert.ErrorIs(t, err, period.ErrManualPeriodRequired)
}

func TestBatch_EvaluateAndBindOnlyTouchesBoundToken(t *testing.T) {
	f := newFixture(t, march())
	id := f.create(t)
	f.upload(t, id, "march.xls")

	res, err := f.svc.Evaluate(f.ctx, id, attendance.ViewOptions{})
	require.NoError(t, err)
	require.Len(t, res.PerEmployee, 2)
	byKey := map[string]attendance.PerEmployeeRow{}
	for _, e := range res.PerEmployee {
		byKey[e.Key] = e
	}
	ana := byKey["E-1"]
	assert.Equal(t, "Ana Putri", ana.EmployeeName)
	assert.Equal(t, 1, ana.LateDays)
	unknown := byKey["42"]
	assert.Equal(t, identity.StatusUnmatched, unknown.IdentityStatus)
	assert.Equal(t, identity.UnknownOffice, unknown.OfficeName)

	var unmatched *timelog.ParseWarning
	for i := range res.Warnings {
		if res.Warnings[i].Type == timelog.WarningUnmatchedIdentity {
			unmatched = &res.Warnings[i]
		}
	}
	require.NotNil(t, unmatched)
	assert.Equal(t, "42", unmatched.UnmatchedIdentities[0].Token)

	bound, err := f.svc.BindIdentity(f.ctx, id, identity.BindIdentityRequest{Token: "42", EmployeeID: "E-42"})
	require.NoError(t, err)

	assert.Equal(t, []string{"E-42"}, f.schedules.lastCall())
	assert.Equal(t, []string{"42"}, bound.ManualMappings)
	assert.Equal(t, "E-42", f.maps.bound["42"])
	for _, w := range bound.Warnings {
		assert.NotEqual(t, timelog.WarningUnmatchedIdentity, w.Type)
	}

	byKey = map[string]attendance.PerEmployeeRow{}
	for _, e := range bound.PerEmployee {
		byKey[e.Key] = e
	}
	require.Len(t, byKey, 2)
	z := byKey["E-42"]
	assert.Equal(t, "Zainal", z.EmployeeName)
	assert.Equal(t, "Bandung", z.OfficeName)
	assert.Equal(t, identity.StatusMatched, z.IdentityStatus)
	assert.Equal(t, 1, z.LateDays)
	assert.Equal(t, ana, byKey["E-1"])

	days, err := f.svc.ListDays(f.ctx, id, batch.ListDaysRequest{Token: "42"})
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.True(t, days[0].IdentityManual)
	assert.Equal(t, 30, *days[0].LateMinutes)

	// the binding is cached for the session and no new lookups happen
	lookups := f.dir.lookupCount()
	_, err = f.svc.Evaluate(f.ctx, id, attendance.ViewOptions{})
	require.NoError(t, err)
	assert.Equal(t, lookups, f.dir.lookupCount())
}

func TestBatch_BindRequiresEvaluationAndKnownToken(t *testing.T) {
	f := newFixture(t, march())
	id := f.create(t)
	f.upload(t, id, "march.xls")

	_, err := f.svc.BindIdentity(f.ctx, id, identity.BindIdentityRequest{Token: "42", EmployeeID: "E-42"})
	assert.ErrorIs(t, err, batch.ErrNotEvaluated)

	_, err = f.svc.Evaluate(f.ctx, id, attendance.ViewOptions{})
	require.NoError(t, err)

	_, err = f.svc.BindIdentity(f.ctx, id, identity.BindIdentityRequest{Token: "999", EmployeeID: "E-42"})
	assert.ErrorIs(t, err, identity.ErrTokenNotInBatch)

	_, err = f.svc.BindIdentity(f.ctx, id, identity.BindIdentityRequest{Token: "42"})
	assert.Error(t, err)
}

func TestBatch_LatestBindWins(t *testing.T) {
	f := newFixture(t, march())
	f.dir.employees = append(f.dir.employees, identity.DirectoryEmployee{ID: "E-SLOW", Name: "Slow"})
	f.dir.blockGetByID = "E-SLOW"
	f.dir.blocked = make(chan struct{})
	id := f.create(t)
	f.upload(t, id, "march.xls")
	_, err := f.svc.Evaluate(f.ctx, id, attendance.ViewOptions{})
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() {
		_, err := f.svc.BindIdentity(f.ctx, id, identity.BindIdentityRequest{Token: "42", EmployeeID: "E-SLOW"})
		first <- err
	}()
	<-f.dir.blocked

	res, err := f.svc.BindIdentity(f.ctx, id, identity.BindIdentityRequest{Token: "42", EmployeeID: "E-42"})
	require.NoError(t, err)

	select {
	case err := <-first:
		assert.ErrorIs(t, err, batch.ErrBindSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("first binding was not cancelled")
	}

	keys := make([]string, 0, len(res.PerEmployee))
	for _, e := range res.PerEmployee {
		keys = append(keys, e.Key)
	}
	assert.ElementsMatch(t, []string{"E-1", "E-42"}, keys)
}

func TestBatch_CachedTokensDeferUnresolvedRows(t *testing.T) {
	f := newFixture(t, march())
	id := f.create(t)
	f.upload(t, id, "march.xls")
	_, err := f.svc.Evaluate(f.ctx, id, attendance.ViewOptions{})
	require.NoError(t, err)

	f.upload(t, id, "march-extra.xlsx")
	events, cancel, err := f.svc.Subscribe(f.ctx, id)
	require.NoError(t, err)
	defer cancel()

	res, err := f.svc.Evaluate(f.ctx, id, attendance.ViewOptions{})
	require.NoError(t, err)
	assert.Zero(t, res.Deferred)
	assert.Equal(t, 4, res.DayCount)

	got := drain(events)
	assert.Contains(t, got, string(batch.EventEvaluationPartial))
	assert.Contains(t, got, string(batch.EventEvaluationCompleted))
}

func TestBatch_ScheduleFailureKeepsPreviousState(t *testing.T) {
	f := newFixture(t, march())
	f.schedules.err = errScheduleDown
	id := f.create(t)
	f.upload(t, id, "march.xls")

	_, err := f.svc.Evaluate(f.ctx, id, attendance.ViewOptions{})
	assert.ErrorIs(t, err, attendance.ErrScheduleUnavailable)

	b, err := f.svc.GetBatch(f.ctx, id)
	require.NoError(t, err)
	assert.False(t, b.Evaluated)
}

func TestBatch_ListsAndExport(t *testing.T) {
	f := newFixture(t, march())
	id := f.create(t)
	f.upload(t, id, "march.xls", "march-extra.xlsx")

	_, err := f.svc.ListEmployees(f.ctx, id, attendance.ListEmployeesRequest{})
	assert.ErrorIs(t, err, batch.ErrNotEvaluated)

	_, err = f.svc.Evaluate(f.ctx, id, attendance.ViewOptions{})
	require.NoError(t, err)

	employees, err := f.svc.ListEmployees(f.ctx, id, attendance.ListEmployeesRequest{Status: string(identity.StatusUnmatched)})
	require.NoError(t, err)
	require.Len(t, employees, 2)
	assert.Equal(t, "42", employees[0].Key)

	employees, err = f.svc.ListEmployees(f.ctx, id, attendance.ListEmployeesRequest{
		ViewOptions: attendance.ViewOptions{SortBy: string(attendance.SortByLateRate), SortOrder: "desc"},
	})
	require.NoError(t, err)
	assert.Equal(t, "E-1", employees[0].Key)

	offices, err := f.svc.ListOffices(f.ctx, id, attendance.ViewOptions{})
	require.NoError(t, err)
	assert.Len(t, offices, 2)

	_, err = f.svc.ListEmployees(f.ctx, id, attendance.ListEmployeesRequest{Status: "lost"})
	assert.Error(t, err)

	found, err := f.svc.SearchDirectory(f.ctx, id, identity.SearchEmployeesRequest{Query: "zai"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "E-42", found[0].ID)

	out, err := f.svc.Export(f.ctx, id, batch.ExportRequest{Kind: "days", OfficeID: "O-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Data)
	assert.Contains(t, out.FileName, "days")

	_, err = f.svc.Export(f.ctx, id, batch.ExportRequest{Columns: []string{"salary"}})
	assert.Error(t, err)
}

func TestBatch_EvictIdle(t *testing.T) {
	f := newFixture(t, march())
	idle := f.create(t)
	events, _, err := f.svc.Subscribe(f.ctx, idle)
	require.NoError(t, err)
	f.clock = f.clock.Add(30 * time.Minute)
	active := f.create(t)

	f.clock = f.clock.Add(45 * time.Minute)
	n, err := f.svc.EvictIdle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.svc.GetBatch(f.ctx, idle)
	assert.ErrorIs(t, err, batch.ErrBatchNotFound)
	_, err = f.svc.GetBatch(f.ctx, active)
	assert.NoError(t, err)

	_, open := <-events
	assert.False(t, open)
}
