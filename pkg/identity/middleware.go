package identity

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pharmaflow/pharmaflow-backend/pkg/config"
)

// Claims are the token claims issued by the auth service.
// The subject is the pharmacy ID; this service only verifies, never issues.
type Claims struct {
	jwt.RegisteredClaims
	PharmacyID string `json:"pharmacy_id,omitempty"`
}

// Verifier verifies bearer tokens from the auth service
type Verifier struct {
	config *config.JWTConfig
}

// NewVerifier creates a new token verifier
func NewVerifier(cfg *config.JWTConfig) *Verifier {
	return &Verifier{config: cfg}
}

// Parse validates a token string and returns its claims
func (v *Verifier) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(v.config.Secret), nil
	}, jwt.WithIssuer(v.config.Issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// pharmacyID returns the pharmacy the token was issued for, falling back to
// the subject claim for tokens issued before the explicit field existed.
func (c *Claims) pharmacyID() string {
	if c.PharmacyID != "" {
		return c.PharmacyID
	}
	return c.Subject
}

// Middleware extracts the authenticated pharmacy from the Authorization
// header and adds it to the request context. Requests without a valid token
// are rejected; /health is exempt for monitoring.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}

			claims, err := v.Parse(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			pharmacyID := claims.pharmacyID()
			if pharmacyID == "" {
				http.Error(w, `{"error":"token has no pharmacy identity"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPharmacyID(r.Context(), pharmacyID)))
		})
	}
}
