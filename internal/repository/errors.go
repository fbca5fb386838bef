package repository

import "github.com/pkg/errors"

const uniqueViolation = "23505"

const (
	teamNameConstraint = "team_name_lower_key"
)

var (
	ErrAlreadyExists      = errors.New("already exists")
	ErrNotFound           = errors.New("not found")
	ErrTeamNameTaken      = errors.New("team name already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidMemberCount = errors.New("team must have exactly 2 members")
)

// EmailTakenError reports which address hit the member_email key.
type EmailTakenError struct {
	Email string
}

func (e *EmailTakenError) Error() string {
	return ErrEmailTaken.Error() + ": " + e.Email
}

func (e *EmailTakenError) Is(target error) bool {
	return target == ErrEmailTaken
}
