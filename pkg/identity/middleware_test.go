package identity_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pharmaflow/pharmaflow-backend/pkg/config"
	"github.com/pharmaflow/pharmaflow-backend/pkg/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-secret"
	testIssuer   = "pharmaflow"
	testPharmacy = "11111111-1111-1111-1111-111111111111"
)

func signToken(t *testing.T, secret string, claims identity.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func testClaims(pharmacyID string) identity.Claims {
	return identity.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   pharmacyID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		PharmacyID: pharmacyID,
	}
}

func protectedHandler(t *testing.T, wantPharmacy string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := identity.PharmacyID(r.Context())
		require.NoError(t, err)
		assert.Equal(t, wantPharmacy, id)
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_ValidToken(t *testing.T) {
	verifier := identity.NewVerifier(&config.JWTConfig{Secret: testSecret, Issuer: testIssuer})
	handler := identity.Middleware(verifier)(protectedHandler(t, testPharmacy))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, testClaims(testPharmacy)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_SubjectFallback(t *testing.T) {
	verifier := identity.NewVerifier(&config.JWTConfig{Secret: testSecret, Issuer: testIssuer})
	handler := identity.Middleware(verifier)(protectedHandler(t, testPharmacy))

	// Older tokens carry the pharmacy only in the subject claim
	claims := testClaims(testPharmacy)
	claims.PharmacyID = ""

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, claims))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_MissingToken(t *testing.T) {
	verifier := identity.NewVerifier(&config.JWTConfig{Secret: testSecret, Issuer: testIssuer})
	handler := identity.Middleware(verifier)(protectedHandler(t, testPharmacy))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_WrongSecret(t *testing.T) {
	verifier := identity.NewVerifier(&config.JWTConfig{Secret: testSecret, Issuer: testIssuer})
	handler := identity.Middleware(verifier)(protectedHandler(t, testPharmacy))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", testClaims(testPharmacy)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_ExpiredToken(t *testing.T) {
	verifier := identity.NewVerifier(&config.JWTConfig{Secret: testSecret, Issuer: testIssuer})
	handler := identity.Middleware(verifier)(protectedHandler(t, testPharmacy))

	claims := testClaims(testPharmacy)
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, claims))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_HealthExempt(t *testing.T) {
	verifier := identity.NewVerifier(&config.JWTConfig{Secret: testSecret, Issuer: testIssuer})
	handler := identity.Middleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
