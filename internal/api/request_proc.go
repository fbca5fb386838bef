package api

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/yakoovad/hackreg/internal/service"
	"github.com/yakoovad/hackreg/internal/validation"
)

// ProcessRequest runs the steps in order and stops at the first error.
func ProcessRequest[T any](e echo.Context, req *T, steps ...func(echo.Context, *T) error) error {
	for _, step := range steps {
		if err := step(e, req); err != nil {
			return err
		}
	}
	return nil
}

func bindQuery[T any](e echo.Context, req *T) error {
	if err := (&echo.DefaultBinder{}).BindQueryParams(e, req); err != nil {
		return service.NewError(service.ErrorCodeInvalidBody, "invalid query parameters")
	}
	return nil
}

// bodyError maps a body decoding failure onto the response error.
func bodyError(err error) error {
	var fields validation.Errors
	if errors.As(err, &fields) {
		return service.NewValidationError(fields)
	}

	if errors.Is(err, validation.ErrMalformedBody) {
		return service.NewError(service.ErrorCodeInvalidBody, "invalid request body")
	}

	// BodyLimit reports an oversized body through the reader.
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return err
}

func validate[T any](e echo.Context, req *T) error {
	err := e.Validate(req)
	if err == nil {
		return nil
	}

	var fields validation.Errors
	if errors.As(err, &fields) {
		return service.NewValidationError(fields)
	}
	return service.NewError(service.ErrorCodeInvalidBody, "invalid request")
}
