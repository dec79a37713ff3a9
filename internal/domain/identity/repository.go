package identity

import "context"

// DirectoryRepository is the read-only employee directory.
// All methods take companyID to keep lookups inside one tenant.
type DirectoryRepository interface {
	// FindByTokens returns candidates per normalized token; tokens without
	// candidates are absent from the map.
	FindByTokens(ctx context.Context, companyID string, normalizedTokens []string) (map[string][]DirectoryEmployee, error)

	// GetByID returns a single employee, ErrEmployeeNotFound if absent.
	GetByID(ctx context.Context, companyID string, employeeID string) (DirectoryEmployee, error)

	// Search matches name or employee number.
	Search(ctx context.Context, companyID string, query string, limit int) ([]DirectoryEmployee, error)
}

// MappingRepository persists operator token → employee bindings across batches.
type MappingRepository interface {
	// ListByTokens returns token → employee id for the given raw tokens.
	ListByTokens(ctx context.Context, companyID string, tokens []string) (map[string]string, error)

	// Bind upserts a mapping.
	Bind(ctx context.Context, companyID string, token string, employeeID string) error
}
