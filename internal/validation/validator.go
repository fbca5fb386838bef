// Package validation checks incoming payloads against the registration field rules.
// Every field is checked; a failed payload yields the full list of violations.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/yakoovad/hackreg/internal/model"
)

const teamSize = 2

var (
	unstopIDRegex      = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	hackerRankURLRegex = regexp.MustCompile(`(?i)^https?://(www\.)?hackerrank\.com/(profile/)?[A-Za-z0-9_-]+/?$`)
	indexRegex         = regexp.MustCompile(`\[(\d+)\]`)
)

type memberInput struct {
	FullName      string `json:"fullName" validate:"required,min=2,max=100"`
	CollegeEmail  string `json:"collegeEmail" validate:"required,email,college_email"`
	PersonalEmail string `json:"personalEmail"`
	StudentNumber string `json:"studentNumber" validate:"required,number,min=3,max=15"`
	Branch        string `json:"branch" validate:"required,branch"`
	UnstopID      string `json:"unstopId" validate:"required,min=2,max=50,unstop_id"`
	HackerRankURL string `json:"hackerRankUrl" validate:"required,hackerrank_url"`
	Gender        string `json:"gender" validate:"required,gender"`
}

type registerInput struct {
	TeamName string         `json:"teamName" validate:"required,min=3,max=100"`
	Members  []*memberInput `json:"members" validate:"required,dive,required"`
}

type teamQueryInput struct {
	TeamName string `json:"teamName" validate:"required,max=100"`
}

type memberQueryInput struct {
	Email string `json:"email" validate:"required,email"`
}

type Validator struct {
	validate *validator.Validate
	policy   Policy
}

func New(policy Policy) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	suffix := "@" + strings.ToLower(policy.CollegeEmailDomain)

	// Registration errors are impossible here: tags are non-empty and functions non-nil.
	_ = v.RegisterValidation("college_email", func(fl validator.FieldLevel) bool {
		return strings.HasSuffix(strings.ToLower(fl.Field().String()), suffix)
	})
	_ = v.RegisterValidation("branch", func(fl validator.FieldLevel) bool {
		return slices.Contains(policy.Branches, fl.Field().String())
	})
	_ = v.RegisterValidation("gender", func(fl validator.FieldLevel) bool {
		return slices.Contains(policy.Genders, fl.Field().String())
	})
	_ = v.RegisterValidation("unstop_id", func(fl validator.FieldLevel) bool {
		return unstopIDRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("hackerrank_url", func(fl validator.FieldLevel) bool {
		return hackerRankURLRegex.MatchString(fl.Field().String())
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		m := sl.Current().Interface().(memberInput)
		email := m.PersonalEmail

		switch policy.PersonalEmail {
		case PersonalEmailDisabled:
			if email != "" {
				sl.ReportError(email, "personalEmail", "PersonalEmail", "excluded", "")
			}
			return
		case PersonalEmailRequired:
			if email == "" {
				sl.ReportError(email, "personalEmail", "PersonalEmail", "required", "")
				return
			}
		}

		if email != "" && sl.Validator().Var(email, "email") != nil {
			sl.ReportError(email, "personalEmail", "PersonalEmail", "email", "")
		}
	}, memberInput{})

	// A wrong member count is reported alongside the violations inside the members.
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		in := sl.Current().Interface().(registerInput)
		if in.Members != nil && len(in.Members) != teamSize {
			sl.ReportError(in.Members, "members", "Members", "len", strconv.Itoa(teamSize))
		}
	}, registerInput{})

	return &Validator{
		validate: v,
		policy:   policy,
	}
}

func (v *Validator) Policy() Policy {
	return v.policy
}

// RegisterTeam validates the registration payload and returns its normalized copy.
// The error, if any, is always Errors.
func (v *Validator) RegisterTeam(req *model.RegisterTeamRequest) (*model.RegisterTeamRequest, error) {
	if req == nil {
		return nil, Errors{{Field: "body", Message: "Request body is required"}}
	}

	normalized := NormalizeRegistration(req)

	in := &registerInput{TeamName: normalized.TeamName}
	if normalized.Members != nil {
		in.Members = make([]*memberInput, 0, len(normalized.Members))
	}
	for _, m := range normalized.Members {
		if m == nil {
			in.Members = append(in.Members, nil)
			continue
		}
		in.Members = append(in.Members, &memberInput{
			FullName:      m.FullName,
			CollegeEmail:  m.CollegeEmail,
			PersonalEmail: m.PersonalEmail,
			StudentNumber: m.StudentNumber,
			Branch:        m.Branch,
			UnstopID:      m.UnstopID,
			HackerRankURL: m.HackerRankURL,
			Gender:        m.Gender,
		})
	}

	if err := v.Validate(in); err != nil {
		return nil, err
	}
	return normalized, nil
}

func (v *Validator) TeamNameQuery(q *model.CheckTeamQuery) (string, error) {
	in := &teamQueryInput{TeamName: strings.TrimSpace(q.TeamName)}
	if err := v.Validate(in); err != nil {
		return "", err
	}
	return in.TeamName, nil
}

func (v *Validator) MemberEmailQuery(q *model.CheckMemberQuery) (string, error) {
	in := &memberQueryInput{Email: NormalizeEmail(q.Email)}
	if err := v.Validate(in); err != nil {
		return "", err
	}
	return in.Email, nil
}

// Validate implements echo.Validator and converts validator errors into Errors.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	res := make(Errors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		res = append(res, FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: v.message(fe),
		})
	}
	return res
}

// fieldPath turns "registerInput.members[1].collegeEmail" into "members.1.collegeEmail".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		namespace = namespace[i+1:]
	}
	return indexRegex.ReplaceAllString(namespace, ".$1")
}

var labels = map[string]string{
	"teamName":      "Team Name",
	"members":       "Members",
	"fullName":      "Full Name",
	"collegeEmail":  "College Email",
	"personalEmail": "Personal Email",
	"studentNumber": "Student Number",
	"branch":        "Branch",
	"unstopId":      "Unstop ID",
	"hackerRankUrl": "HackerRank Profile URL",
	"gender":        "Gender",
	"email":         "Email",
	"limit":         "Limit",
	"offset":        "Offset",
}

func label(field string) string {
	if strings.HasPrefix(field, "members[") {
		return "Member"
	}
	if l, ok := labels[field]; ok {
		return l
	}
	return field
}

func (v *Validator) message(fe validator.FieldError) string {
	l := label(fe.Field())

	switch fe.Tag() {
	case "required":
		return l + " is required"
	case "len":
		if fe.Field() == "members" {
			return "Exactly two team members are required"
		}
		return fmt.Sprintf("%s must be exactly %s characters", l, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", l, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", l, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s cannot be longer than %s characters", l, fe.Param())
		}
		return fmt.Sprintf("%s cannot be greater than %s", l, fe.Param())
	case "email":
		return "Please enter a valid email address"
	case "college_email":
		return fmt.Sprintf("%s must be an @%s address", l, v.policy.CollegeEmailDomain)
	case "excluded":
		return l + " is not accepted"
	case "number":
		return l + " must contain only numbers"
	case "branch":
		return "Branch must be one of: " + strings.Join(v.policy.Branches, ", ")
	case "gender":
		return "Gender must be one of: " + strings.Join(v.policy.Genders, ", ")
	case "unstop_id":
		return l + " can only contain letters, numbers, underscores and hyphens"
	case "hackerrank_url":
		return "Invalid HackerRank Profile URL"
	default:
		return fmt.Sprintf("%s is invalid", l)
	}
}
