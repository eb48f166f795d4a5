package database

import (
	"net/http"
	"strings"

	"github.com/lib/pq"
	"github.com/pharmaflow/pharmaflow-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return mapUniqueConstraint(pqErr)

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	// Lock wait exhausted (55P03), serialization failure (40001),
	// deadlock victim (40P01): the whole operation is safe to retry.
	case "55P03":
		return errors.Retryable("batch row is locked by a concurrent operation")
	case "40001", "40P01":
		return errors.Retryable("transaction conflicted with a concurrent operation")

	default:
		return nil
	}
}

// TranslateError maps a PostgreSQL error to an AppError, passing other
// errors through unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if appErr := MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "positive_quantity"), strings.Contains(constraint, "positive_reserved"):
		return errors.InvalidQuantity("quantity would become negative")

	case strings.Contains(constraint, "valid_dates"):
		return errors.Validation(map[string]string{
			"expiry_date": "must be after manufacture date",
		})

	case strings.Contains(constraint, "positive_prices"):
		return errors.Validation(map[string]string{
			"unit_price": "unit price and MRP must be positive",
		})

	case strings.Contains(constraint, "min_threshold"):
		return errors.Validation(map[string]string{
			"minimum_threshold": "must be at least 1",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// mapUniqueConstraint creates a user-friendly error for unique constraint violations.
func mapUniqueConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "batch_per_pharmacy"):
		return errors.Wrap(errors.ErrDuplicateBatch, "DUPLICATE_BATCH",
			"this batch already exists for this medicine", http.StatusConflict)
	case strings.Contains(constraint, "dedup_key"):
		return errors.Conflict("a notification with this dedup key already exists")
	default:
		return errors.Conflict("a record with these values already exists")
	}
}
