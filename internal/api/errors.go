package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/yakoovad/hackreg/internal/service"
	"github.com/yakoovad/hackreg/internal/validation"
	"github.com/yakoovad/hackreg/pkg/logger"
	"go.uber.org/zap"
)

const serverErrorMessage = "Server Error"

type errorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
	Code    service.ErrorCode `json:"code,omitempty"`
	Email   string            `json:"email,omitempty"`
	Errors  validation.Errors `json:"errors,omitempty"`
}

// HTTPErrorHandler renders every error returned by handlers and middleware.
func (h *Handler) HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := transportError(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request().Context()).Error("unhandled error", zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		h.logger.Error("failed to write error response", zap.Error(err))
	}
}

func transportError(err error) (int, errorResponse) {
	var serviceErr *service.Error
	if errors.As(err, &serviceErr) {
		return serviceError(serviceErr)
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		if he.Code >= http.StatusInternalServerError {
			msg = serverErrorMessage
		}
		return he.Code, errorResponse{Error: msg}
	}

	return http.StatusInternalServerError, errorResponse{Error: serverErrorMessage}
}

func serviceError(err *service.Error) (int, errorResponse) {
	switch err.Code {
	case service.ErrorCodeValidation:
		return http.StatusBadRequest, errorResponse{Errors: err.Fields}
	case service.ErrorCodeTeamExists, service.ErrorCodeEmailExists:
		return http.StatusConflict, errorResponse{Error: err.Message, Code: err.Code, Email: err.Email}
	case service.ErrorCodeNotFound:
		return http.StatusNotFound, errorResponse{Error: err.Message, Code: err.Code}
	case service.ErrorCodeInvalidBody:
		return http.StatusBadRequest, errorResponse{Error: err.Message, Code: err.Code}
	default:
		return http.StatusInternalServerError, errorResponse{Error: serverErrorMessage}
	}
}
