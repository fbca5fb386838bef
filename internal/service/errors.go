package service

import "github.com/yakoovad/hackreg/internal/validation"

type ErrorCode string

const (
	ErrorCodeValidation  ErrorCode = "VALIDATION_FAILED"
	ErrorCodeTeamExists  ErrorCode = "TEAM_EXISTS"
	ErrorCodeEmailExists ErrorCode = "EMAIL_EXISTS"
	ErrorCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrorCodeUnspecified ErrorCode = "UNSPECIFIED"
	ErrorCodeInvalidBody ErrorCode = "INVALID_BODY"
)

type Error struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Email   string            `json:"email,omitempty"`
	Fields  validation.Errors `json:"fields,omitempty"`
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func NewValidationError(fields validation.Errors) *Error {
	return &Error{
		Code:    ErrorCodeValidation,
		Message: "validation failed",
		Fields:  fields,
	}
}

func NewDuplicateEmailError(email string) *Error {
	return &Error{
		Code:    ErrorCodeEmailExists,
		Message: "email " + email + " is already registered",
		Email:   email,
	}
}

func (e *Error) Error() string {
	return e.Message
}
