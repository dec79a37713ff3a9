package identity

import "errors"

var (
	ErrEmployeeNotFound = errors.New("employee not found in directory")
	ErrTokenRequired    = errors.New("token is required")
	ErrTokenNotInBatch  = errors.New("token does not appear in this batch")
	ErrLookupFailed     = errors.New("directory lookup failed")
)
