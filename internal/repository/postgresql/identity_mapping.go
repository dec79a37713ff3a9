package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/identity"
	"github.com/cmlabs-hris/dtr-ingest/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type identityMappingRepositoryImpl struct {
	db *database.DB
}

func NewIdentityMappingRepository(db *database.DB) identity.MappingRepository {
	return &identityMappingRepositoryImpl{db: db}
}

// ListByTokens implements identity.MappingRepository.
func (m *identityMappingRepositoryImpl) ListByTokens(ctx context.Context, companyID string, tokens []string) (map[string]string, error) {
	result := make(map[string]string)
	if len(tokens) == 0 {
		return result, nil
	}

	q := GetQuerier(ctx, m.db)

	query := `
		SELECT token, employee_id
		FROM biometric_identity_mappings
		WHERE company_id = $1 AND token = ANY($2::text[])
	`

	rows, err := q.Query(ctx, query, companyID, tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to list identity mappings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var token, employeeID string
		if err := rows.Scan(&token, &employeeID); err != nil {
			return nil, err
		}
		result[token] = employeeID
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Bind implements identity.MappingRepository. The employee must belong to
// the company; the row lock keeps it from being deleted mid-upsert.
func (m *identityMappingRepositoryImpl) Bind(ctx context.Context, companyID string, token string, employeeID string) error {
	return WithTransaction(ctx, m.db, func(txCtx context.Context) error {
		q := GetQuerier(txCtx, m.db)

		var id string
		err := q.QueryRow(txCtx, `
			SELECT id FROM employees
			WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL
			FOR SHARE
		`, employeeID, companyID).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return identity.ErrEmployeeNotFound
			}
			return fmt.Errorf("failed to lock employee %s: %w", employeeID, err)
		}

		_, err = q.Exec(txCtx, `
			INSERT INTO biometric_identity_mappings (company_id, token, employee_id, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())
			ON CONFLICT (company_id, token)
			DO UPDATE SET employee_id = EXCLUDED.employee_id, updated_at = NOW()
		`, companyID, token, id)
		if err != nil {
			return fmt.Errorf("failed to upsert identity mapping: %w", err)
		}
		return nil
	})
}
