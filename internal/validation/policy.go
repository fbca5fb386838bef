package validation

import (
	"github.com/pkg/errors"
	"github.com/yakoovad/hackreg/internal/config"
)

type PersonalEmailMode string

const (
	PersonalEmailDisabled PersonalEmailMode = "disabled"
	PersonalEmailOptional PersonalEmailMode = "optional"
	PersonalEmailRequired PersonalEmailMode = "required"
)

// Policy is the single source of allowed values shared by the validator and the
// options endpoint.
type Policy struct {
	CollegeEmailDomain string            `json:"collegeEmailDomain"`
	PersonalEmail      PersonalEmailMode `json:"personalEmail"`
	Branches           []string          `json:"branches"`
	Genders            []string          `json:"genders"`
}

func PolicyFromConfig(c config.RegistrationConfig) (Policy, error) {
	p := Policy{
		CollegeEmailDomain: c.CollegeEmailDomain,
		PersonalEmail:      PersonalEmailMode(c.PersonalEmail),
		Branches:           c.Branches,
		Genders:            c.Genders,
	}

	switch p.PersonalEmail {
	case PersonalEmailDisabled, PersonalEmailOptional, PersonalEmailRequired:
	default:
		return Policy{}, errors.Errorf("unknown personal email mode %q", c.PersonalEmail)
	}
	if p.CollegeEmailDomain == "" {
		return Policy{}, errors.New("college email domain is empty")
	}

	return p, nil
}
