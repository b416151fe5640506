package middleware

import (
	"errors"
	"net/http"

	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation, errs.KindDateRange:
		return http.StatusBadRequest
	case errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindNotCancellable, errs.KindConflict:
		return http.StatusConflict
	case errs.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case errs.KindRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithAppError renders err as {"error": code, "message": message}.
// Untyped and database errors are logged and rendered generically.
func RespondWithAppError(c *gin.Context, err error) {
	var appErr *errs.Error
	if !errors.As(err, &appErr) {
		appErr = errs.Database(err)
	}

	status := StatusFor(appErr.Kind)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Str("code", appErr.Code).Msg("request failed")
	}
	if appErr.Kind == errs.KindRetryable {
		c.Header("Retry-After", "1")
	}
	RespondWithError(c, status, appErr.Code, appErr.Message)
}
