package identity

import (
	"strings"
)

type Status string

const (
	StatusMatched   Status = "matched"
	StatusAmbiguous Status = "ambiguous"
	StatusUnmatched Status = "unmatched"
	// StatusPending marks a token whose lookup has not completed; its rows are
	// kept out of aggregates until it settles.
	StatusPending Status = "pending"
)

// UnknownOffice is displayed for tokens without a directory match.
const UnknownOffice = "UNKNOWN_OFFICE"

// Record is the resolved identity of one biometric token.
type Record struct {
	Status        Status   `json:"status"`
	EmployeeID    string   `json:"employee_id,omitempty"`
	EmployeeName  string   `json:"employee_name"`
	EmployeeCode  string   `json:"employee_code,omitempty"`
	OfficeID      string   `json:"office_id,omitempty"`
	OfficeName    string   `json:"office_name"`
	Candidates    []string `json:"candidates,omitempty"`
	CandidateIDs  []string `json:"candidate_ids,omitempty"`
	MissingOffice bool     `json:"missing_office,omitempty"`
	Manual        bool     `json:"manual,omitempty"`
	LookupFailed  bool     `json:"lookup_failed,omitempty"`
}

// DisplayEmployeeID falls back to the raw token for unresolved identities.
func (r Record) DisplayEmployeeID(token string) string {
	if r.EmployeeID != "" {
		return r.EmployeeID
	}
	return token
}

// DirectoryEmployee is an employee as the directory exposes it.
type DirectoryEmployee struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	EmployeeNo  *string `json:"employee_no,omitempty"`
	BiometricID *string `json:"biometric_id,omitempty"`
	OfficeID    *string `json:"office_id,omitempty"`
	OfficeName  *string `json:"office_name,omitempty"`
}

// Matched builds the matched record for a directory employee.
func (e DirectoryEmployee) Matched() Record {
	rec := Record{
		Status:       StatusMatched,
		EmployeeID:   e.ID,
		EmployeeName: e.Name,
		OfficeName:   UnknownOffice,
	}
	if e.EmployeeNo != nil {
		rec.EmployeeCode = *e.EmployeeNo
	}
	if e.OfficeID != nil && *e.OfficeID != "" {
		rec.OfficeID = *e.OfficeID
		if e.OfficeName != nil {
			rec.OfficeName = *e.OfficeName
		}
	} else {
		rec.MissingOffice = true
	}
	return rec
}

// NormalizeToken builds the lookup key of a raw device token: trimmed,
// upper-cased, leading zeros removed ("00123" and "123" are the same person).
func NormalizeToken(token string) string {
	t := strings.ToUpper(strings.TrimSpace(token))
	trimmed := strings.TrimLeft(t, "0")
	if trimmed == "" && t != "" {
		return "0"
	}
	return trimmed
}
