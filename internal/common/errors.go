package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound       = errors.New("requested resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden access")
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidState   = errors.New("resource is not in a state that permits this operation")
	ErrDeadlinePassed = errors.New("registration deadline has passed")
	ErrConflict       = errors.New("resource conflict") // e.g. a second active team in the same competition
	ErrInvalidCode    = errors.New("invalid team code or team not approved")
	ErrFull           = errors.New("capacity reached")
	ErrRateLimited    = errors.New("too many requests")
	ErrInternalServer = errors.New("internal server error")
)

// Error kinds exposed to clients. These strings are part of the API contract.
const (
	KindUnauthorized    = "Unauthorized"
	KindForbidden       = "Forbidden"
	KindNotFound        = "NotFound"
	KindInvalidArgument = "InvalidArgument"
	KindInvalidState    = "InvalidState"
	KindDeadlinePassed  = "DeadlinePassed"
	KindConflict        = "Conflict"
	KindInvalidCode     = "InvalidCode"
	KindFull            = "Full"
	KindRateLimited     = "RateLimited"
	KindInternal        = "Internal"
)

var kinds = []struct {
	err    error
	kind   string
	status int
}{
	{ErrUnauthorized, KindUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, KindForbidden, http.StatusForbidden},
	{ErrNotFound, KindNotFound, http.StatusNotFound},
	{ErrBadRequest, KindInvalidArgument, http.StatusBadRequest},
	{ErrInvalidState, KindInvalidState, http.StatusConflict},
	{ErrDeadlinePassed, KindDeadlinePassed, http.StatusBadRequest},
	{ErrConflict, KindConflict, http.StatusConflict},
	{ErrInvalidCode, KindInvalidCode, http.StatusBadRequest},
	{ErrFull, KindFull, http.StatusConflict},
	{ErrRateLimited, KindRateLimited, http.StatusTooManyRequests},
}

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" { // Unique violation
			return http.StatusConflict
		}
	}

	return http.StatusInternalServerError
}

// KindFromError returns the stable error kind for err.
func KindFromError(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return KindConflict
	}
	return KindInternal
}

// IsUniqueViolation reports whether err carries a postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
