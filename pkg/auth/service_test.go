package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockJWKSClient returns fixed claims or a fixed error.
type mockJWKSClient struct {
	claims *Claims
	err    error
}

func (m *mockJWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.claims, nil
}

func (m *mockJWKSClient) Close() {}

var _ JWKSClientInterface = (*mockJWKSClient)(nil)

func validClaims() *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "auditor-1"},
		Name:             "Budi Santoso",
		Roles:            []string{RoleAuditor},
	}
}

func TestValidateRequest(t *testing.T) {
	svc := NewAuthService(&mockJWKSClient{claims: validClaims()}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/cycles", nil)
	req.Header.Set("Authorization", "Bearer some.jwt.token")

	claims, token, err := svc.ValidateRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "auditor-1", claims.Subject)
	assert.Equal(t, "some.jwt.token", token)
}

func TestValidateRequest_MissingHeader(t *testing.T) {
	svc := NewAuthService(&mockJWKSClient{claims: validClaims()}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/cycles", nil)

	_, _, err := svc.ValidateRequest(req)
	assert.ErrorIs(t, err, ErrMissingAuthorization)
}

func TestValidateRequest_BadFormat(t *testing.T) {
	svc := NewAuthService(&mockJWKSClient{claims: validClaims()}, zap.NewNop())

	tests := []struct {
		name   string
		header string
	}{
		{"no scheme", "some.jwt.token"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"extra parts", "Bearer a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cycles", nil)
			req.Header.Set("Authorization", tt.header)

			_, _, err := svc.ValidateRequest(req)
			assert.ErrorIs(t, err, ErrInvalidAuthFormat)
		})
	}
}

func TestValidateRequest_InvalidToken(t *testing.T) {
	svc := NewAuthService(&mockJWKSClient{err: jwt.ErrTokenExpired}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/cycles", nil)
	req.Header.Set("Authorization", "Bearer expired.jwt.token")

	_, _, err := svc.ValidateRequest(req)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestRequireRole(t *testing.T) {
	svc := NewAuthService(&mockJWKSClient{}, zap.NewNop())
	claims := &Claims{Roles: []string{RoleAuditee}}

	assert.NoError(t, svc.RequireRole(claims, RoleAuditee))
	assert.NoError(t, svc.RequireRole(claims, RoleAdmin, RoleAuditee))
	assert.ErrorIs(t, svc.RequireRole(claims, RoleAdmin), ErrMissingRole)
	assert.ErrorIs(t, svc.RequireRole(claims, RoleAdmin, RoleAuditor), ErrMissingRole)
}

func TestMiddlewareRequireAuth(t *testing.T) {
	svc := NewAuthService(&mockJWKSClient{claims: validClaims()}, zap.NewNop())
	mw := NewMiddleware(svc, zap.NewNop())

	var gotSubject string
	handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/cycles", nil)
	req.Header.Set("Authorization", "Bearer some.jwt.token")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "auditor-1", gotSubject)
}

func TestMiddlewareRequireAuth_Unauthenticated(t *testing.T) {
	svc := NewAuthService(&mockJWKSClient{claims: validClaims()}, zap.NewNop())
	mw := NewMiddleware(svc, zap.NewNop())

	called := false
	handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodGet, "/api/cycles", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestMiddlewareRequireRole_Forbidden(t *testing.T) {
	svc := NewAuthService(&mockJWKSClient{claims: validClaims()}, zap.NewNop())
	mw := NewMiddleware(svc, zap.NewNop())

	called := false
	handler := mw.RequireRole(RoleAdmin)(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodPost, "/api/cycles", nil)
	req.Header.Set("Authorization", "Bearer some.jwt.token")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)
}

func TestMiddlewareRequireRole_Allowed(t *testing.T) {
	svc := NewAuthService(&mockJWKSClient{claims: validClaims()}, zap.NewNop())
	mw := NewMiddleware(svc, zap.NewNop())

	called := false
	handler := mw.RequireRole(RoleAuditor, RoleAdmin)(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/units/x/audit-document", nil)
	req.Header.Set("Authorization", "Bearer some.jwt.token")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}
