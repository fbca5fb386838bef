package model

// RegisterTeamRequest is the raw registration body. Field rules live in the validation package.
type RegisterTeamRequest struct {
	TeamName string           `json:"teamName"`
	Members  []*MemberRequest `json:"members"`
}

type MemberRequest struct {
	FullName      string `json:"fullName"`
	CollegeEmail  string `json:"collegeEmail"`
	PersonalEmail string `json:"personalEmail"`
	StudentNumber string `json:"studentNumber"`
	Branch        string `json:"branch"`
	UnstopID      string `json:"unstopId"`
	HackerRankURL string `json:"hackerRankUrl"`
	Gender        string `json:"gender"`
}

type CheckTeamQuery struct {
	TeamName string `query:"teamName" json:"teamName"`
}

type CheckMemberQuery struct {
	Email string `query:"email" json:"email"`
}

type ListTeamsQuery struct {
	Limit  int `query:"limit" json:"limit" validate:"min=0"`
	Offset int `query:"offset" json:"offset" validate:"min=0"`
}
