package jwt

import (
	"context"
	"testing"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamToken_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, expiresIn, err := svc.GenerateStreamToken("C-1", "B-1")
	require.NoError(t, err)
	assert.Equal(t, 300, expiresIn)

	companyID, err := svc.ValidateStreamToken(token, "B-1")
	require.NoError(t, err)
	assert.Equal(t, "C-1", companyID)

	_, err = svc.ValidateStreamToken(token, "B-2")
	assert.ErrorIs(t, err, ErrStreamTokenInvalid)

	_, err = NewJWTService("other-secret").ValidateStreamToken(token, "B-1")
	assert.ErrorIs(t, err, ErrStreamTokenInvalid)
}

func TestStreamToken_RejectsAccessTokens(t *testing.T) {
	svc := NewJWTService("test-secret")
	_, access, err := svc.JWTAuth().Encode(map[string]interface{}{"company_id": "C-1", "type": "access", "batch_id": "B-1"})
	require.NoError(t, err)

	_, err = svc.ValidateStreamToken(access, "B-1")
	assert.ErrorIs(t, err, ErrStreamTokenInvalid)
}

func TestCompanyIDFromContext(t *testing.T) {
	svc := NewJWTService("test-secret")

	_, err := CompanyIDFromContext(context.Background())
	assert.ErrorIs(t, err, ErrInvalidToken)

	tok, _, err := svc.JWTAuth().Encode(map[string]interface{}{"company_id": "C-9", "type": "access"})
	require.NoError(t, err)
	id, err := CompanyIDFromContext(jwtauth.NewContext(context.Background(), tok, nil))
	require.NoError(t, err)
	assert.Equal(t, "C-9", id)

	tok, _, err = svc.JWTAuth().Encode(map[string]interface{}{"user_id": "U-1", "type": "access"})
	require.NoError(t, err)
	_, err = CompanyIDFromContext(jwtauth.NewContext(context.Background(), tok, nil))
	assert.ErrorIs(t, err, ErrCompanyIDRequired)

	stream, _, err := svc.JWTAuth().Encode(map[string]interface{}{"company_id": "C-9", "type": "stream", "batch_id": "B-1"})
	require.NoError(t, err)
	_, err = CompanyIDFromContext(jwtauth.NewContext(context.Background(), stream, nil))
	assert.ErrorIs(t, err, ErrInvalidToken)

	id, err = CompanyIDFromContext(WithCompanyID(context.Background(), "C-2"))
	require.NoError(t, err)
	assert.Equal(t, "C-2", id)
}
