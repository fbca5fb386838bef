package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/hackreg/internal/auth"
	"github.com/yakoovad/hackreg/internal/config"
	"github.com/yakoovad/hackreg/internal/ratelimit"
	"github.com/yakoovad/hackreg/internal/repository"
	"github.com/yakoovad/hackreg/internal/service"
	"github.com/yakoovad/hackreg/internal/validation"
	"go.uber.org/zap"
)

const novaBody = `{
	"teamName": "Nova",
	"members": [
		{
			"fullName": "A B",
			"collegeEmail": "ab1@inst.edu",
			"studentNumber": "123",
			"branch": "CSE",
			"unstopId": "nova1",
			"hackerRankUrl": "https://hackerrank.com/profile/ab1",
			"gender": "Male"
		},
		{
			"fullName": "C D",
			"collegeEmail": "cd2@inst.edu",
			"studentNumber": "456",
			"branch": "IT",
			"unstopId": "nova2",
			"hackerRankUrl": "https://www.hackerrank.com/cd2",
			"gender": "Female"
		}
	]
}`

type testServer struct {
	e        *echo.Echo
	teams    *service.MockTeamRepository
	members  *service.MockMemberRepository
	signer   *auth.Signer
	handler  *Handler
	validate *validation.Validator
}

type serverOption func(*Handler)

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	v := validation.New(validation.Policy{
		CollegeEmailDomain: "inst.edu",
		PersonalEmail:      validation.PersonalEmailOptional,
		Branches:           []string{"CSE", "IT"},
		Genders:            []string{"Male", "Female", "Other", "Prefer not to say"},
	})

	teams := new(service.MockTeamRepository)
	members := new(service.MockMemberRepository)

	svc := service.NewRegistrationService(new(service.MockTransactor), v).
		WithTeamRepo(teams).
		WithMemberRepo(members).
		WithIDGenerator(func() string { return "team-id" })

	signer, err := auth.NewSigner("test-secret", time.Hour)
	require.NoError(t, err)

	cfg := config.Defaults().Server
	h := NewHandler(zap.NewNop(), cfg).
		WithRegistrationService(svc).
		WithValidator(v).
		WithSigner(signer)
	for _, opt := range opts {
		opt(h)
	}

	e := echo.New()
	h.RegisterRoutes(e)

	return &testServer{e: e, teams: teams, members: members, signer: signer, handler: h, validate: v}
}

func (s *testServer) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func errorFields(body map[string]any) []string {
	raw, _ := body["errors"].([]any)
	fields := make([]string, 0, len(raw))
	for _, e := range raw {
		fields = append(fields, e.(map[string]any)["field"].(string))
	}
	return fields
}

func TestHandler_CheckTeamName(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMocks     func(*service.MockTeamRepository)
		expectedStatus int
		expectedExists bool
		expectedFields []string
	}{
		{
			name:   "exists",
			target: "/api/check/team?teamName=teamalpha",
			setupMocks: func(tr *service.MockTeamRepository) {
				tr.On("NameExists", mock.Anything, "teamalpha").Return(true, nil)
			},
			expectedStatus: http.StatusOK,
			expectedExists: true,
		},
		{
			name:   "free",
			target: "/api/check/team?teamName=Falcons",
			setupMocks: func(tr *service.MockTeamRepository) {
				tr.On("NameExists", mock.Anything, "Falcons").Return(false, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing parameter",
			target:         "/api/check/team",
			setupMocks:     func(*service.MockTeamRepository) {},
			expectedStatus: http.StatusBadRequest,
			expectedFields: []string{"teamName"},
		},
		{
			name:   "store failure",
			target: "/api/check/team?teamName=Falcons",
			setupMocks: func(tr *service.MockTeamRepository) {
				tr.On("NameExists", mock.Anything, "Falcons").Return(false, errors.New("connection refused"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			tt.setupMocks(s.teams)

			rec := s.do(http.MethodGet, tt.target, "")

			assert.Equal(t, tt.expectedStatus, rec.Code)
			body := decodeBody(t, rec)

			switch tt.expectedStatus {
			case http.StatusOK:
				assert.Equal(t, true, body["success"])
				assert.Equal(t, tt.expectedExists, body["exists"])
			case http.StatusBadRequest:
				assert.Equal(t, false, body["success"])
				assert.Equal(t, tt.expectedFields, errorFields(body))
			default:
				assert.Equal(t, false, body["success"])
				assert.Equal(t, serverErrorMessage, body["error"])
				assert.NotContains(t, rec.Body.String(), "connection refused")
			}

			s.teams.AssertExpectations(t)
		})
	}
}

func TestHandler_CheckMemberEmail(t *testing.T) {
	s := newTestServer(t)
	s.members.On("EmailExists", mock.Anything, "ab1@inst.edu").Return(true, nil)

	rec := s.do(http.MethodGet, "/api/check/member?email=AB1@inst.edu", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["exists"])

	rec = s.do(http.MethodGet, "/api/check/member?email=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"email"}, errorFields(decodeBody(t, rec)))

	s.members.AssertExpectations(t)
}

func TestHandler_RegisterTeam(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMocks     func(*service.MockTeamRepository, *service.MockMemberRepository)
		expectedStatus int
		expectedCode   string
		expectedFields []string
	}{
		{
			name: "nova is registered",
			body: novaBody,
			setupMocks: func(tr *service.MockTeamRepository, mr *service.MockMemberRepository) {
				tr.On("NameExists", mock.Anything, "Nova").Return(false, nil)
				mr.On("EmailExists", mock.Anything, mock.Anything).Return(false, nil)
				tr.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
					args.Get(1).(*repository.Team).CreatedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
				}).Return(nil)
				mr.On("CreateTeamMembers", mock.Anything, "team-id", mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "team name taken",
			body: novaBody,
			setupMocks: func(tr *service.MockTeamRepository, mr *service.MockMemberRepository) {
				tr.On("NameExists", mock.Anything, "Nova").Return(true, nil)
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   string(service.ErrorCodeTeamExists),
		},
		{
			name: "member email taken",
			body: novaBody,
			setupMocks: func(tr *service.MockTeamRepository, mr *service.MockMemberRepository) {
				tr.On("NameExists", mock.Anything, "Nova").Return(false, nil)
				mr.On("EmailExists", mock.Anything, "ab1@inst.edu").Return(false, nil)
				mr.On("EmailExists", mock.Anything, "cd2@inst.edu").Return(true, nil)
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   string(service.ErrorCodeEmailExists),
		},
		{
			name:           "single member",
			body:           `{"teamName": "Nova", "members": [{"fullName": "A B"}]}`,
			setupMocks:     func(*service.MockTeamRepository, *service.MockMemberRepository) {},
			expectedStatus: http.StatusBadRequest,
			expectedFields: []string{
				"members.0.collegeEmail",
				"members.0.studentNumber",
				"members.0.branch",
				"members.0.unstopId",
				"members.0.hackerRankUrl",
				"members.0.gender",
				"members",
			},
		},
		{
			name:           "wrong JSON type",
			body:           `{"teamName": 42}`,
			setupMocks:     func(*service.MockTeamRepository, *service.MockMemberRepository) {},
			expectedStatus: http.StatusBadRequest,
			expectedFields: []string{"teamName", "members"},
		},
		{
			name:           "wrong JSON type inside a member",
			body:           strings.Replace(novaBody, `"gender": "Female"`, `"gender": 1`, 1),
			setupMocks:     func(*service.MockTeamRepository, *service.MockMemberRepository) {},
			expectedStatus: http.StatusBadRequest,
			expectedFields: []string{"members.1.gender"},
		},
		{
			name:           "data after the JSON object",
			body:           novaBody + `garbage`,
			setupMocks:     func(*service.MockTeamRepository, *service.MockMemberRepository) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   string(service.ErrorCodeInvalidBody),
		},
		{
			name:           "malformed JSON",
			body:           `{"teamName": "Nova",`,
			setupMocks:     func(*service.MockTeamRepository, *service.MockMemberRepository) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   string(service.ErrorCodeInvalidBody),
		},
		{
			name:           "body over the limit",
			body:           `{"teamName": "` + strings.Repeat("a", 11*1024) + `"}`,
			setupMocks:     func(*service.MockTeamRepository, *service.MockMemberRepository) {},
			expectedStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			tt.setupMocks(s.teams, s.members)

			rec := s.do(http.MethodPost, "/api/register", tt.body)

			require.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)

			if tt.expectedStatus == http.StatusCreated {
				assert.Equal(t, true, body["success"])
				assert.Equal(t, registeredMessage, body["message"])

				team := body["team"].(map[string]any)
				assert.Equal(t, "team-id", team["id"])
				assert.Equal(t, "Nova", team["teamName"])
				members := team["members"].([]any)
				require.Len(t, members, 2)
				assert.Equal(t, "ab1@inst.edu", members[0].(map[string]any)["collegeEmail"])
				assert.Equal(t, "cd2@inst.edu", members[1].(map[string]any)["collegeEmail"])
			} else {
				assert.Equal(t, false, body["success"])
				if tt.expectedCode != "" {
					assert.Equal(t, tt.expectedCode, body["code"])
				}
				if tt.expectedFields != nil {
					assert.Equal(t, tt.expectedFields, errorFields(body))
				}
				s.members.AssertNotCalled(t, "CreateTeamMembers", mock.Anything, mock.Anything, mock.Anything)
			}

			s.teams.AssertExpectations(t)
			s.members.AssertExpectations(t)
		})
	}
}

func TestHandler_Options(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/options", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "inst.edu", body["collegeEmailDomain"])
	assert.Equal(t, "optional", body["personalEmail"])
	assert.Equal(t, []any{"CSE", "IT"}, body["branches"])
}

func TestHandler_Admin(t *testing.T) {
	s := newTestServer(t)

	token, err := s.signer.GenerateToken(auth.TokenTypeAdmin, "ops")
	require.NoError(t, err)
	untyped, err := s.signer.GenerateToken(auth.TokenTypeUndefined, "ops")
	require.NoError(t, err)

	s.teams.On("List", mock.Anything, 10, 0).Return([]*repository.Team{{ID: "t1", Name: "Nova"}}, nil)
	s.members.On("GetMembersOfTeams", mock.Anything, []string{"t1"}).Return(map[string][]*repository.Member{}, nil)
	s.teams.On("Get", mock.Anything, "missing").Return(nil, repository.ErrNotFound)

	rec := s.do(http.MethodGet, "/api/admin/teams", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/admin/teams", "", echo.HeaderAuthorization, "Bearer "+untyped)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/admin/teams?limit=10", "", echo.HeaderAuthorization, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	teams := decodeBody(t, rec)["teams"].([]any)
	require.Len(t, teams, 1)
	assert.Equal(t, "Nova", teams[0].(map[string]any)["teamName"])

	rec = s.do(http.MethodGet, "/api/admin/teams?limit=-1", "", echo.HeaderAuthorization, "Bearer "+token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"limit"}, errorFields(decodeBody(t, rec)))

	rec = s.do(http.MethodGet, "/api/admin/teams?limit=ten", "", echo.HeaderAuthorization, "Bearer "+token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/admin/teams/missing", "", echo.HeaderAuthorization, "Bearer "+token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(service.ErrorCodeNotFound), decodeBody(t, rec)["code"])

	s.teams.AssertExpectations(t)
	s.members.AssertExpectations(t)
}

func TestHandler_AdminDisabledWithoutSigner(t *testing.T) {
	s := newTestServer(t, func(h *Handler) { h.signer = nil })

	rec := s.do(http.MethodGet, "/api/admin/teams", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_RateLimit(t *testing.T) {
	s := newTestServer(t, func(h *Handler) {
		h.WithRateLimiter(ratelimit.NewStore(0.001, 1))
	})

	rec := s.do(http.MethodGet, "/api/options", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/options", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHandler_Health(t *testing.T) {
	tests := []struct {
		name           string
		pingErr        error
		expectedStatus int
	}{
		{name: "database up", expectedStatus: http.StatusOK},
		{name: "database down", pingErr: errors.New("refused"), expectedStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker, err := NewHealthChecker("hackreg", PostgresCheck(fakePinger{err: tt.pingErr}))
			require.NoError(t, err)

			s := newTestServer(t, func(h *Handler) { h.WithHealthChecker(checker) })

			rec := s.do(http.MethodGet, "/api/health", "")
			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestTransportError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "duplicate email",
			err:            service.NewDuplicateEmailError("x@inst.edu"),
			expectedStatus: http.StatusConflict,
			expectedError:  "email x@inst.edu is already registered",
		},
		{
			name:           "store error hides detail",
			err:            service.NewError(service.ErrorCodeUnspecified, "failed to register team"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  serverErrorMessage,
		},
		{
			name:           "http error keeps status",
			err:            echo.NewHTTPError(http.StatusMethodNotAllowed, "method not allowed"),
			expectedStatus: http.StatusMethodNotAllowed,
			expectedError:  "method not allowed",
		},
		{
			name:           "unexpected error",
			err:            errors.New("pq: relation does not exist"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  serverErrorMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := transportError(tt.err)

			assert.Equal(t, tt.expectedStatus, status)
			assert.Equal(t, tt.expectedError, body.Error)
			assert.False(t, body.Success)
		})
	}
}
