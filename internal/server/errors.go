// Package server provides the HTTP REST API for the compliance reviewer.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/daniela/compliance-reviewer/internal/review"
)

// ErrEmailAlreadyExists indicates the email is already registered.
type ErrEmailAlreadyExists struct {
	Email string
}

func (e *ErrEmailAlreadyExists) Error() string {
	return fmt.Sprintf("email already registered: %s", e.Email)
}

// ErrInvalidCredentials indicates invalid login credentials.
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid email or password"
}

// HTTPStatus returns the appropriate HTTP status code for an error.
func HTTPStatus(err error) int {
	var (
		emailExists *ErrEmailAlreadyExists
		badCreds    *ErrInvalidCredentials
		validation  *review.ValidationError
		external    *review.ExternalServiceError
	)
	switch {
	case errors.As(err, &emailExists):
		return http.StatusConflict
	case errors.As(err, &badCreds):
		return http.StatusUnauthorized
	case errors.As(err, &validation), errors.Is(err, review.ErrUnknownBand):
		return http.StatusBadRequest
	case errors.Is(err, review.ErrUnreadableDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, review.ErrIdentityRequired):
		return http.StatusConflict
	case errors.As(err, &external):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
