package validation

import (
	"strings"

	"github.com/yakoovad/hackreg/internal/model"
)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeRegistration returns a trimmed copy of req with lowercased emails.
func NormalizeRegistration(req *model.RegisterTeamRequest) *model.RegisterTeamRequest {
	out := &model.RegisterTeamRequest{
		TeamName: strings.TrimSpace(req.TeamName),
	}
	if req.Members == nil {
		return out
	}

	out.Members = make([]*model.MemberRequest, 0, len(req.Members))
	for _, m := range req.Members {
		if m == nil {
			out.Members = append(out.Members, nil)
			continue
		}
		out.Members = append(out.Members, &model.MemberRequest{
			FullName:      strings.TrimSpace(m.FullName),
			CollegeEmail:  NormalizeEmail(m.CollegeEmail),
			PersonalEmail: NormalizeEmail(m.PersonalEmail),
			StudentNumber: strings.TrimSpace(m.StudentNumber),
			Branch:        strings.TrimSpace(m.Branch),
			UnstopID:      strings.TrimSpace(m.UnstopID),
			HackerRankURL: strings.TrimSpace(m.HackerRankURL),
			Gender:        strings.TrimSpace(m.Gender),
		})
	}
	return out
}
