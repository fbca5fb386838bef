package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/yakoovad/hackreg/internal/db"
)

type Member struct {
	TeamID        string  `db:"team_id"`
	Position      int     `db:"position"`
	FullName      string  `db:"full_name"`
	CollegeEmail  string  `db:"college_email"`
	PersonalEmail *string `db:"personal_email"`
	StudentNumber string  `db:"student_number"`
	Branch        string  `db:"branch"`
	UnstopID      string  `db:"unstop_id"`
	HackerRankURL string  `db:"hackerrank_url"`
	Gender        string  `db:"gender"`
}

// Emails returns the addresses claimed by the member, college first.
func (m *Member) Emails() []string {
	if m.PersonalEmail == nil || *m.PersonalEmail == "" {
		return []string{m.CollegeEmail}
	}
	return []string{m.CollegeEmail, *m.PersonalEmail}
}

type MemberRepository interface {
	// CreateTeamMembers stores both members of a team and claims their emails.
	CreateTeamMembers(ctx context.Context, teamID string, members []*Member) error
	GetTeamMembers(ctx context.Context, teamID string) ([]*Member, error)
	GetMembersOfTeams(ctx context.Context, teamIDs []string) (map[string][]*Member, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

type pgxMemberRepository struct {
	pool *pgxpool.Pool
}

func NewPgxMemberRepository(pool *pgxpool.Pool) MemberRepository {
	return &pgxMemberRepository{pool: pool}
}

var memberColumns = []any{
	"team_id", "position", "full_name", "college_email", "personal_email",
	"student_number", "branch", "unstop_id", "hackerrank_url", "gender",
}

func (p *pgxMemberRepository) CreateTeamMembers(ctx context.Context, teamID string, members []*Member) error {
	if len(members) != 2 {
		return ErrInvalidMemberCount
	}

	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	// Emails go one statement each so a collision names the offending address.
	for _, m := range members {
		for _, email := range m.Emails() {
			if err := p.claimEmail(ctx, e, teamID, email); err != nil {
				return err
			}
		}
	}

	q := psql.Insert(
		im.Into("member",
			"team_id", "position", "full_name", "college_email", "personal_email",
			"student_number", "branch", "unstop_id", "hackerrank_url", "gender"),
	)

	for i, m := range members {
		m.TeamID = teamID
		m.Position = i
		q.Apply(im.Values(
			psql.Arg(m.TeamID), psql.Arg(m.Position), psql.Arg(m.FullName), psql.Arg(m.CollegeEmail),
			psql.Arg(m.PersonalEmail), psql.Arg(m.StudentNumber), psql.Arg(m.Branch), psql.Arg(m.UnstopID),
			psql.Arg(m.HackerRankURL), psql.Arg(m.Gender),
		))
	}

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return err
}

func (p *pgxMemberRepository) claimEmail(ctx context.Context, e db.Executor, teamID, email string) error {
	q := psql.Insert(
		im.Into("member_email", "email", "team_id"),
		im.Values(psql.Arg(email), psql.Arg(teamID)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &EmailTakenError{Email: email}
	}
	return err
}

func (p *pgxMemberRepository) GetTeamMembers(ctx context.Context, teamID string) ([]*Member, error) {
	byTeam, err := p.GetMembersOfTeams(ctx, []string{teamID})
	if err != nil {
		return nil, err
	}
	return byTeam[teamID], nil
}

func (p *pgxMemberRepository) GetMembersOfTeams(ctx context.Context, teamIDs []string) (map[string][]*Member, error) {
	res := make(map[string][]*Member, len(teamIDs))
	if len(teamIDs) == 0 {
		return res, nil
	}

	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	ids := make([]any, 0, len(teamIDs))
	for _, id := range teamIDs {
		ids = append(ids, id)
	}

	q := psql.Select(
		sm.Columns(memberColumns...),
		sm.From("member"),
		sm.Where(psql.Quote("team_id").In(psql.Arg(ids...))),
		sm.OrderBy("team_id"),
		sm.OrderBy("position"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Member, error) {
		m := &Member{}
		if err := row.Scan(
			&m.TeamID,
			&m.Position,
			&m.FullName,
			&m.CollegeEmail,
			&m.PersonalEmail,
			&m.StudentNumber,
			&m.Branch,
			&m.UnstopID,
			&m.HackerRankURL,
			&m.Gender,
		); err != nil {
			return nil, err
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}

	for _, m := range members {
		res[m.TeamID] = append(res[m.TeamID], m)
	}
	return res, nil
}

func (p *pgxMemberRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(psql.Raw("count(*) > 0")),
		sm.From("member_email"),
		sm.Where(psql.Quote("email").EQ(psql.Arg(email))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	if err = e.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
