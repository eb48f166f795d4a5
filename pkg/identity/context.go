package identity

import (
	"context"
	"errors"
)

// contextKey is a private type for context keys to prevent collisions
type contextKey string

const pharmacyIDKey contextKey = "pharmacy_id"

// ErrNoPharmacyInContext is returned when pharmacy context is missing
var ErrNoPharmacyInContext = errors.New("no pharmacy in context")

// WithPharmacyID adds the authenticated pharmacy ID to the context.
// Called by the auth middleware after verifying the caller's token.
func WithPharmacyID(ctx context.Context, pharmacyID string) context.Context {
	return context.WithValue(ctx, pharmacyIDKey, pharmacyID)
}

// PharmacyID extracts the pharmacy ID from context.
// Returns ErrNoPharmacyInContext if it is not found.
func PharmacyID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(pharmacyIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoPharmacyInContext
	}
	return id, nil
}

// MustPharmacyID extracts the pharmacy ID from context and panics if not found.
// Use only where missing identity is a programming error (after the middleware).
func MustPharmacyID(ctx context.Context) string {
	id, err := PharmacyID(ctx)
	if err != nil {
		panic("pharmacy ID not found in context")
	}
	return id
}
