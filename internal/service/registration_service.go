package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/yakoovad/hackreg/internal/cache"
	"github.com/yakoovad/hackreg/internal/db"
	"github.com/yakoovad/hackreg/internal/model"
	"github.com/yakoovad/hackreg/internal/repository"
	"github.com/yakoovad/hackreg/internal/validation"
	"github.com/yakoovad/hackreg/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// RegistrationService validates submissions, enforces team name and member email
// uniqueness and stores new teams.
type RegistrationService struct {
	tx        db.Transactor
	validator *validation.Validator

	teams   repository.TeamRepository
	members repository.MemberRepository

	seen   cache.Existence
	tracer trace.Tracer
	newID  func() string
}

func NewRegistrationService(tx db.Transactor, validator *validation.Validator) *RegistrationService {
	return &RegistrationService{
		tx:        tx,
		validator: validator,
		seen:      cache.NewNoopExistence(),
		tracer:    noop.NewTracerProvider().Tracer("registration"),
		newID:     func() string { return uuid.New().String() },
	}
}

func (s *RegistrationService) CheckTeamNameExists(ctx context.Context, q *model.CheckTeamQuery) (bool, *Error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.CheckTeamNameExists")
	defer span.End()

	l := logger.FromContext(ctx)

	name, err := s.validator.TeamNameQuery(q)
	if err != nil {
		return false, validationError(err)
	}

	exists, err := s.teamNameExists(ctx, name)
	if err != nil {
		l.Error("failed to check team name", zap.String("team_name", name), zap.Error(err))
		return false, storeError(span, err, "failed to check team name")
	}

	l.Debug("team name checked", zap.String("team_name", name), zap.Bool("exists", exists))
	return exists, nil
}

func (s *RegistrationService) CheckMemberEmailExists(ctx context.Context, q *model.CheckMemberQuery) (bool, *Error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.CheckMemberEmailExists")
	defer span.End()

	l := logger.FromContext(ctx)

	email, err := s.validator.MemberEmailQuery(q)
	if err != nil {
		return false, validationError(err)
	}

	exists, err := s.emailExists(ctx, email)
	if err != nil {
		l.Error("failed to check member email", zap.String("email", email), zap.Error(err))
		return false, storeError(span, err, "failed to check member email")
	}

	l.Debug("member email checked", zap.String("email", email), zap.Bool("exists", exists))
	return exists, nil
}

// RegisterTeam runs validation, then the team name check, then the email checks in
// member order, and stores the team with both members in one transaction. The first
// conflict found is reported and nothing is written.
func (s *RegistrationService) RegisterTeam(ctx context.Context, req *model.RegisterTeamRequest) (*model.Team, *Error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.RegisterTeam")
	defer span.End()

	l := logger.FromContext(ctx)

	payload, err := s.validator.RegisterTeam(req)
	if err != nil {
		l.Info("registration rejected by validation", zap.Error(err))
		return nil, validationError(err)
	}

	span.SetAttributes(attribute.String("team.name", payload.TeamName))
	l.Info("registering team", zap.String("team_name", payload.TeamName))

	exists, err := s.teamNameExists(ctx, payload.TeamName)
	if err != nil {
		l.Error("failed to check team name", zap.String("team_name", payload.TeamName), zap.Error(err))
		return nil, storeError(span, err, "failed to register team")
	}
	if exists {
		l.Warn("team name already exists", zap.String("team_name", payload.TeamName))
		return nil, NewError(ErrorCodeTeamExists, "Team name already exists")
	}

	members := make([]*repository.Member, 0, len(payload.Members))
	claimed := make(map[string]struct{}, 4)
	for _, m := range payload.Members {
		member := toRepositoryMember(m)

		for _, email := range member.Emails() {
			if _, dup := claimed[email]; dup {
				l.Warn("email repeated within team", zap.String("email", email))
				return nil, NewDuplicateEmailError(email)
			}
			claimed[email] = struct{}{}

			taken, err := s.emailExists(ctx, email)
			if err != nil {
				l.Error("failed to check member email", zap.String("email", email), zap.Error(err))
				return nil, storeError(span, err, "failed to register team")
			}
			if taken {
				l.Warn("member email already registered", zap.String("email", email))
				return nil, NewDuplicateEmailError(email)
			}
		}

		members = append(members, member)
	}

	team := &repository.Team{
		ID:   s.newID(),
		Name: payload.TeamName,
	}

	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.teams.Create(txCtx, team); err != nil {
			return err
		}
		return s.members.CreateTeamMembers(txCtx, team.ID, members)
	})

	var emailTaken *repository.EmailTakenError
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrTeamNameTaken):
		l.Warn("team name taken by a concurrent registration", zap.String("team_name", team.Name))
		s.seen.Mark(cache.TeamKey(strings.ToLower(team.Name)))
		return nil, NewError(ErrorCodeTeamExists, "Team name already exists")
	case errors.As(err, &emailTaken):
		l.Warn("member email taken by a concurrent registration", zap.String("email", emailTaken.Email))
		s.seen.Mark(cache.EmailKey(emailTaken.Email))
		return nil, NewDuplicateEmailError(emailTaken.Email)
	default:
		l.Error("failed to store team", zap.String("team_name", team.Name), zap.Error(err))
		return nil, storeError(span, err, "failed to register team")
	}

	keys := []string{cache.TeamKey(strings.ToLower(team.Name))}
	for email := range claimed {
		keys = append(keys, cache.EmailKey(email))
	}
	s.seen.Mark(keys...)

	span.SetAttributes(attribute.String("team.id", team.ID))
	l.Info("team registered", zap.String("team_id", team.ID), zap.String("team_name", team.Name))

	return toModelTeam(team, members), nil
}

func (s *RegistrationService) GetTeam(ctx context.Context, id string) (*model.Team, *Error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.GetTeam")
	defer span.End()

	l := logger.FromContext(ctx)
	l.Debug("getting team", zap.String("team_id", id))

	team, err := s.teams.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("team not found", zap.String("team_id", id))
		return nil, NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		l.Error("failed to get team", zap.String("team_id", id), zap.Error(err))
		return nil, storeError(span, err, "failed to get team")
	}

	members, err := s.members.GetTeamMembers(ctx, id)
	if err != nil {
		l.Error("failed to get team members", zap.String("team_id", id), zap.Error(err))
		return nil, storeError(span, err, "failed to get team members")
	}

	return toModelTeam(team, members), nil
}

func (s *RegistrationService) ListTeams(ctx context.Context, q *model.ListTeamsQuery) ([]*model.Team, *Error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.ListTeams")
	defer span.End()

	l := logger.FromContext(ctx)

	limit, offset := q.Limit, q.Offset
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	teams, err := s.teams.List(ctx, limit, offset)
	if err != nil {
		l.Error("failed to list teams", zap.Error(err))
		return nil, storeError(span, err, "failed to list teams")
	}

	ids := make([]string, 0, len(teams))
	for _, t := range teams {
		ids = append(ids, t.ID)
	}

	members, err := s.members.GetMembersOfTeams(ctx, ids)
	if err != nil {
		l.Error("failed to list team members", zap.Error(err))
		return nil, storeError(span, err, "failed to list teams")
	}

	res := make([]*model.Team, 0, len(teams))
	for _, t := range teams {
		res = append(res, toModelTeam(t, members[t.ID]))
	}
	return res, nil
}

func (s *RegistrationService) teamNameExists(ctx context.Context, name string) (bool, error) {
	key := cache.TeamKey(strings.ToLower(name))
	if s.seen.Has(key) {
		return true, nil
	}

	exists, err := s.teams.NameExists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		s.seen.Mark(key)
	}
	return exists, nil
}

func (s *RegistrationService) emailExists(ctx context.Context, email string) (bool, error) {
	key := cache.EmailKey(email)
	if s.seen.Has(key) {
		return true, nil
	}

	exists, err := s.members.EmailExists(ctx, email)
	if err != nil {
		return false, err
	}
	if exists {
		s.seen.Mark(key)
	}
	return exists, nil
}

func (s *RegistrationService) Policy() validation.Policy {
	return s.validator.Policy()
}

func (s *RegistrationService) WithTeamRepo(r repository.TeamRepository) *RegistrationService {
	s.teams = r
	return s
}

func (s *RegistrationService) WithMemberRepo(r repository.MemberRepository) *RegistrationService {
	s.members = r
	return s
}

func (s *RegistrationService) WithExistenceCache(c cache.Existence) *RegistrationService {
	s.seen = c
	return s
}

func (s *RegistrationService) WithTracer(t trace.Tracer) *RegistrationService {
	s.tracer = t
	return s
}

func (s *RegistrationService) WithIDGenerator(fn func() string) *RegistrationService {
	s.newID = fn
	return s
}

func validationError(err error) *Error {
	var fields validation.Errors
	if errors.As(err, &fields) {
		return NewValidationError(fields)
	}
	return NewError(ErrorCodeInvalidBody, "invalid request")
}

func storeError(span trace.Span, err error, message string) *Error {
	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	return NewError(ErrorCodeUnspecified, message)
}

func toRepositoryMember(m *model.MemberRequest) *repository.Member {
	member := &repository.Member{
		FullName:      m.FullName,
		CollegeEmail:  m.CollegeEmail,
		StudentNumber: m.StudentNumber,
		Branch:        m.Branch,
		UnstopID:      m.UnstopID,
		HackerRankURL: m.HackerRankURL,
		Gender:        m.Gender,
	}
	if m.PersonalEmail != "" {
		email := m.PersonalEmail
		member.PersonalEmail = &email
	}
	return member
}

func toModelTeam(t *repository.Team, members []*repository.Member) *model.Team {
	res := &model.Team{
		ID:        t.ID,
		Name:      t.Name,
		CreatedAt: t.CreatedAt,
		Members:   make([]*model.Member, 0, len(members)),
	}
	for _, m := range members {
		member := &model.Member{
			FullName:      m.FullName,
			CollegeEmail:  m.CollegeEmail,
			StudentNumber: m.StudentNumber,
			Branch:        m.Branch,
			UnstopID:      m.UnstopID,
			HackerRankURL: m.HackerRankURL,
			Gender:        m.Gender,
		}
		if m.PersonalEmail != nil {
			member.PersonalEmail = *m.PersonalEmail
		}
		res.Members = append(res.Members, member)
	}
	return res
}
