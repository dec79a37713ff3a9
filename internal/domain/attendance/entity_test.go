package attendance

import (
	"testing"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
	"github.com/stretchr/testify/assert"
)

func TestListFilter_Apply(t *testing.T) {
	rows := []PerEmployeeRow{
		{Key: "1", EmployeeID: "E-1", EmployeeName: "Ana Putri", OfficeID: "O-1", IdentityStatus: identity.StatusMatched},
		{Key: "2", EmployeeID: "E-2", EmployeeName: "Budi", OfficeID: "O-2", IdentityStatus: identity.StatusMatched},
		{Key: "9", EmployeeID: "9", EmployeeName: "Guest", IdentityStatus: identity.StatusUnmatched},
	}
	keys := func(rs []PerEmployeeRow) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.Key
		}
		return out
	}

	cases := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{"office", ListFilter{OfficeID: "O-1"}, []string{"1"}},
		{"unknown office", ListFilter{OfficeID: identity.UnknownOffice}, []string{"9"}},
		{"status", ListFilter{Status: identity.StatusUnmatched}, []string{"9"}},
		{"name query", ListFilter{Query: "putri"}, []string{"1"}},
		{"id query", ListFilter{Query: "e-2"}, []string{"2"}},
		{"combined", ListFilter{OfficeID: "O-2", Query: "ana"}, []string{}},
		{"empty", ListFilter{}, []string{"1", "2", "9"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, keys(c.filter.Apply(rows)))
		})
	}
}

func TestViewOptions_Defaults(t *testing.T) {
	o := ViewOptions{SortOrder: "DESC"}
	assert.NoError(t, o.Validate())
	assert.Equal(t, RateModeDays, o.Mode())
	assert.Equal(t, SortSpec{By: SortByName, Order: SortDesc, ThenOrder: SortAsc}, o.Sort())

	bad := ViewOptions{RateMode: "hours", SortBy: "salary", ThenBy: "x", ThenOrder: "up"}
	err := bad.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rate_mode")
	assert.Contains(t, err.Error(), "sort_by")
	assert.Contains(t, err.Error(), "then_by")
	assert.Contains(t, err.Error(), "then_order")
}
