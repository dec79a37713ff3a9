package identity

import (
	"context"

	"github.com/cmlabs-hris/dtr-ingest/internal/domain/timelog"
)

// Resolver maps biometric tokens to directory identities.
type Resolver interface {
	// Resolve classifies every token; lookup failures leave tokens unmatched
	// with LookupFailed set rather than returning an error.
	Resolve(ctx context.Context, companyID string, tokens []string, cache *Cache) (map[string]Record, []timelog.ParseWarning)

	// Bind records an operator decision and returns the matched identity.
	Bind(ctx context.Context, companyID string, req BindIdentityRequest, cache *Cache) (Record, error)

	// Search lists directory employees for an override picker.
	Search(ctx context.Context, companyID string, req SearchEmployeesRequest) ([]DirectoryEmployee, error)
}
