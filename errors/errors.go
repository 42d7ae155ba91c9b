package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound         = fmt.Errorf("not found")
	ErrForbidden        = fmt.Errorf("forbidden")
	ErrNotParticipant   = fmt.Errorf("not a participant")
	ErrAlreadyFulfilled = fmt.Errorf("requirement already fulfilled")
	ErrValidation       = fmt.Errorf("validation failed")
	ErrUnavailable      = fmt.Errorf("temporarily unavailable")
)

// HTTPStatus maps a domain error to the status class the REST surface reports.
// Anything outside the taxonomy is an internal error.
func HTTPStatus(err error) int {
	switch {
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case stderrors.Is(err, ErrNotParticipant):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrAlreadyFulfilled):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
