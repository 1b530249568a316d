// Package binderr converts internal failures into HTTP error responses.
package binderr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/stevedore/pkg/api/types/errors"
	"github.com/opst/stevedore/pkg/domain/errors/dberrors"
	"github.com/opst/stevedore/pkg/tasks/taskerr"
)

type ErrorMessageOption func(in *apierr.ErrorMessage) *apierr.ErrorMessage

func WithAdvice(advice string) ErrorMessageOption {
	return func(in *apierr.ErrorMessage) *apierr.ErrorMessage {
		if advice != "" {
			in.Advice = advice
		}
		return in
	}
}

func WithError(err error) ErrorMessageOption {
	return func(in *apierr.ErrorMessage) *apierr.ErrorMessage {
		if err != nil {
			in.Cause = err
		}
		return in
	}
}

func NewErrorMessage(code int, reason string, opts ...ErrorMessageOption) *echo.HTTPError {
	msg := apierr.ErrorMessage{Reason: reason}
	for _, opt := range opts {
		msg = *opt(&msg)
	}

	return echo.NewHTTPError(code, msg).SetInternal(msg)
}

func NotFound() *echo.HTTPError {
	return NewErrorMessage(http.StatusNotFound, "not found")
}

func BadRequest(advice string, err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusBadRequest,
		"bad request",
		WithAdvice(advice),
		WithError(err),
	)
}

func Conflict(message string, options ...ErrorMessageOption) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusConflict,
		message,
		options...,
	)
}

func InternalServerError(err error) *echo.HTTPError {
	return NewErrorMessage(
		http.StatusInternalServerError,
		"unexpected error",
		WithError(err),
	)
}

// From maps workflow and store failures to responses: OperationError
// keeps its code, invalid lookups are 400, missing records 404,
// duplicates 409, revision races 409, anything else 500.
func From(err error) *echo.HTTPError {
	if oe, ok := taskerr.As(err); ok {
		return NewErrorMessage(oe.Code, oe.Message, WithError(oe.Cause))
	}
	switch {
	case errors.Is(err, dberrors.ErrInvalid):
		return NewErrorMessage(http.StatusBadRequest, err.Error())
	case errors.Is(err, dberrors.ErrMissing):
		return NewErrorMessage(http.StatusNotFound, err.Error())
	case errors.Is(err, dberrors.ErrDuplicate):
		return Conflict(err.Error())
	case errors.Is(err, dberrors.ErrConflict):
		return Conflict(err.Error())
	}
	return InternalServerError(err)
}
