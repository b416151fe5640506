package repository

import (
	"context"
	"errors"

	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/lib/pq"
)

// Postgres error codes that mean "try again": serialization_failure,
// deadlock_detected, lock_not_available (lock_timeout), query_canceled
// (statement_timeout).
var retryableCodes = map[pq.ErrorCode]struct{}{
	"40001": {},
	"40P01": {},
	"55P03": {},
	"57014": {},
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *errs.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Retryable(err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if _, ok := retryableCodes[pqErr.Code]; ok {
			return errs.Retryable(err)
		}
	}
	return errs.Database(err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
