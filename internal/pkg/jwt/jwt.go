package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrCompanyIDRequired  = errors.New("company_id claim is required")
	ErrStreamTokenInvalid = errors.New("invalid stream token")
)

const streamTokenTTL = 5 * time.Minute

// Service verifies bearer tokens issued by the identity provider and issues
// short-lived tokens for event streams, which cannot carry headers.
type Service interface {
	JWTAuth() *jwtauth.JWTAuth
	GenerateStreamToken(companyID, batchID string) (token string, expiresIn int, err error)
	ValidateStreamToken(tokenString, batchID string) (companyID string, err error)
}

type JWTService struct {
	tokenAuth *jwtauth.JWTAuth
}

func NewJWTService(secretKey string) Service {
	return &JWTService{
		tokenAuth: jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

// GenerateStreamToken binds a token to one batch of one company.
func (j *JWTService) GenerateStreamToken(companyID, batchID string) (string, int, error) {
	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"company_id": companyID,
		"batch_id":   batchID,
		"type":       "stream",
		"exp":        time.Now().Add(streamTokenTTL).Unix(),
	})
	if err != nil {
		return "", 0, err
	}
	return tokenString, int(streamTokenTTL.Seconds()), nil
}

func (j *JWTService) ValidateStreamToken(tokenString, batchID string) (string, error) {
	token, err := jwtauth.VerifyToken(j.tokenAuth, tokenString)
	if err != nil {
		return "", ErrStreamTokenInvalid
	}
	claims, err := token.AsMap(context.Background())
	if err != nil {
		return "", ErrStreamTokenInvalid
	}
	if typ, _ := claims["type"].(string); typ != "stream" {
		return "", ErrStreamTokenInvalid
	}
	if id, _ := claims["batch_id"].(string); id != batchID {
		return "", ErrStreamTokenInvalid
	}
	companyID, _ := claims["company_id"].(string)
	if companyID == "" {
		return "", ErrCompanyIDRequired
	}
	return companyID, nil
}

type companyKey struct{}

// WithCompanyID stores a company scope that was not established by a bearer
// token, such as a validated stream token.
func WithCompanyID(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, companyKey{}, companyID)
}

// CompanyIDFromContext returns the company scope of the request, taken from
// the verified token claims. Only access tokens carry a scope; a stream token
// sent as a bearer header is rejected.
func CompanyIDFromContext(ctx context.Context) (string, error) {
	if id, ok := ctx.Value(companyKey{}).(string); ok && id != "" {
		return id, nil
	}
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil || token == nil {
		return "", ErrInvalidToken
	}
	if typ, _ := claims["type"].(string); typ != "access" {
		return "", ErrInvalidToken
	}
	companyID, ok := claims["company_id"].(string)
	if !ok || companyID == "" {
		return "", ErrCompanyIDRequired
	}
	return companyID, nil
}
