package validation

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/yakoovad/hackreg/internal/model"
)

var ErrMalformedBody = errors.New("malformed JSON body")

type rawRegistration struct {
	TeamName json.RawMessage `json:"teamName"`
	Members  json.RawMessage `json:"members"`
}

type rawMember struct {
	FullName      json.RawMessage `json:"fullName"`
	CollegeEmail  json.RawMessage `json:"collegeEmail"`
	PersonalEmail json.RawMessage `json:"personalEmail"`
	StudentNumber json.RawMessage `json:"studentNumber"`
	Branch        json.RawMessage `json:"branch"`
	UnstopID      json.RawMessage `json:"unstopId"`
	HackerRankURL json.RawMessage `json:"hackerRankUrl"`
	Gender        json.RawMessage `json:"gender"`
}

// DecodeRegistration decodes a registration body. Values of the wrong JSON type
// are reported per field, member fields with their index, together with every
// other violation of the payload. Errors of the underlying reader are returned
// as they are.
func (v *Validator) DecodeRegistration(r io.Reader) (*model.RegisterTeamRequest, error) {
	var raw rawRegistration
	if err := DecodeJSON(r, &raw); err != nil {
		return nil, err
	}

	req, typeErrs := raw.request()
	if len(typeErrs) == 0 {
		return req, nil
	}

	// A mistyped value decodes as empty, so its own rule violations are noise.
	_, err := v.RegisterTeam(req)
	var rest Errors
	errors.As(err, &rest)

	res := typeErrs
	for _, fe := range rest {
		if !typeErrs.covers(fe.Field) {
			res = append(res, fe)
		}
	}
	return nil, res
}

// DecodeJSON decodes exactly one JSON value from r into dst.
func DecodeJSON(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}

	err := dec.Decode(&json.RawMessage{})
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case err == nil:
		return errors.Wrap(ErrMalformedBody, "unexpected data after JSON value")
	default:
		return decodeError(err)
	}
}

func decodeError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrap(ErrMalformedBody, err.Error())
	}

	// read failures, such as an exceeded body limit
	return errors.WithStack(err)
}

func (raw *rawRegistration) request() (*model.RegisterTeamRequest, Errors) {
	var (
		req  model.RegisterTeamRequest
		errs Errors
	)

	errs = decodeString(raw.TeamName, "teamName", &req.TeamName, errs)

	var members []json.RawMessage
	if len(raw.Members) > 0 {
		if err := json.Unmarshal(raw.Members, &members); err != nil {
			return &req, append(errs, typeError("members", label("members"), "array"))
		}
	}
	if members != nil {
		req.Members = make([]*model.MemberRequest, 0, len(members))
	}

	for i, m := range members {
		path := "members." + strconv.Itoa(i)

		var rm *rawMember
		if err := json.Unmarshal(m, &rm); err != nil {
			errs = append(errs, typeError(path, "Member", "object"))
			req.Members = append(req.Members, &model.MemberRequest{})
			continue
		}
		if rm == nil {
			req.Members = append(req.Members, nil)
			continue
		}

		var mr model.MemberRequest
		errs = decodeString(rm.FullName, path+".fullName", &mr.FullName, errs)
		errs = decodeString(rm.CollegeEmail, path+".collegeEmail", &mr.CollegeEmail, errs)
		errs = decodeString(rm.PersonalEmail, path+".personalEmail", &mr.PersonalEmail, errs)
		errs = decodeString(rm.StudentNumber, path+".studentNumber", &mr.StudentNumber, errs)
		errs = decodeString(rm.Branch, path+".branch", &mr.Branch, errs)
		errs = decodeString(rm.UnstopID, path+".unstopId", &mr.UnstopID, errs)
		errs = decodeString(rm.HackerRankURL, path+".hackerRankUrl", &mr.HackerRankURL, errs)
		errs = decodeString(rm.Gender, path+".gender", &mr.Gender, errs)
		req.Members = append(req.Members, &mr)
	}

	return &req, errs
}

// decodeString leaves dst empty for an absent or null value.
func decodeString(raw json.RawMessage, path string, dst *string, errs Errors) Errors {
	if len(raw) == 0 {
		return errs
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		field := path[strings.LastIndexByte(path, '.')+1:]
		return append(errs, typeError(path, label(field), "string"))
	}
	return errs
}

func typeError(path, label, jsonType string) FieldError {
	return FieldError{Field: path, Message: label + " must be of type " + jsonType}
}

func (e Errors) covers(field string) bool {
	for _, fe := range e {
		if field == fe.Field || strings.HasPrefix(field, fe.Field+".") {
			return true
		}
	}
	return false
}
