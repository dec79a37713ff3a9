package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

// normalizedKey mirrors identity.NormalizeToken in SQL: trimmed, upper-cased,
// leading zeros removed, all-zero tokens kept as "0".
const normalizedKey = `COALESCE(NULLIF(ltrim(upper(btrim(%[1]s)), '0'), ''), '0')`

type directoryRepositoryImpl struct {
	db *database.DB
}

func NewDirectoryRepository(db *database.DB) identity.DirectoryRepository {
	return &directoryRepositoryImpl{db: db}
}

const directorySelect = `
	SELECT e.id, e.full_name, e.employee_code, e.biometric_id, e.branch_id, b.name
	FROM employees e
	LEFT JOIN branches b ON b.id = e.branch_id
`

// FindByTokens implements identity.DirectoryRepository.
func (d *directoryRepositoryImpl) FindByTokens(ctx context.Context, companyID string, normalizedTokens []string) (map[string][]identity.DirectoryEmployee, error) {
	result := make(map[string][]identity.DirectoryEmployee)
	if len(normalizedTokens) == 0 {
		return result, nil
	}

	q := GetQuerier(ctx, d.db)

	bio := fmt.Sprintf(normalizedKey, "e.biometric_id")
	code := fmt.Sprintf(normalizedKey, "e.employee_code")
	query := `
		SELECT DISTINCT ON (k.key, e.id)
			k.key, e.id, e.full_name, e.employee_code, e.biometric_id, e.branch_id, b.name
		FROM unnest($2::text[]) AS k(key)
		JOIN employees e ON e.company_id = $1 AND e.deleted_at IS NULL AND (
			(btrim(COALESCE(e.biometric_id, '')) <> '' AND ` + bio + ` = k.key)
			OR (btrim(COALESCE(e.employee_code, '')) <> '' AND ` + code + ` = k.key)
		)
		LEFT JOIN branches b ON b.id = e.branch_id
		ORDER BY k.key, e.id
	`

	rows, err := q.Query(ctx, query, companyID, normalizedTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to find employees by token: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var emp identity.DirectoryEmployee
		if err := rows.Scan(&key, &emp.ID, &emp.Name, &emp.EmployeeNo, &emp.BiometricID, &emp.OfficeID, &emp.OfficeName); err != nil {
			return nil, fmt.Errorf("failed to scan directory employee: %w", err)
		}
		result[key] = append(result[key], emp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// GetByID implements identity.DirectoryRepository.
func (d *directoryRepositoryImpl) GetByID(ctx context.Context, companyID string, employeeID string) (identity.DirectoryEmployee, error) {
	q := GetQuerier(ctx, d.db)

	query := directorySelect + `
		WHERE e.id = $1 AND e.company_id = $2 AND e.deleted_at IS NULL
	`

	var emp identity.DirectoryEmployee
	err := q.QueryRow(ctx, query, employeeID, companyID).Scan(
		&emp.ID, &emp.Name, &emp.EmployeeNo, &emp.BiometricID, &emp.OfficeID, &emp.OfficeName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.DirectoryEmployee{}, identity.ErrEmployeeNotFound
		}
		return identity.DirectoryEmployee{}, fmt.Errorf("failed to get employee %s: %w", employeeID, err)
	}
	return emp, nil
}

// Search implements identity.DirectoryRepository.
func (d *directoryRepositoryImpl) Search(ctx context.Context, companyID string, query string, limit int) ([]identity.DirectoryEmployee, error) {
	q := GetQuerier(ctx, d.db)

	sql := directorySelect + `
		WHERE e.company_id = $1 AND e.deleted_at IS NULL
			AND (e.full_name ILIKE $2 OR e.employee_code ILIKE $2 OR e.biometric_id ILIKE $2)
		ORDER BY e.full_name ASC
		LIMIT $3
	`

	rows, err := q.Query(ctx, sql, companyID, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search employees: %w", err)
	}
	defer rows.Close()

	employees := []identity.DirectoryEmployee{}
	for rows.Next() {
		var emp identity.DirectoryEmployee
		if err := rows.Scan(&emp.ID, &emp.Name, &emp.EmployeeNo, &emp.BiometricID, &emp.OfficeID, &emp.OfficeName); err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return employees, nil
}
