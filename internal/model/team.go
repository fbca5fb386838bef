package model

import "time"

type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"teamName"`
	Members   []*Member `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

type Member struct {
	FullName      string `json:"fullName"`
	CollegeEmail  string `json:"collegeEmail"`
	PersonalEmail string `json:"personalEmail,omitempty"`
	StudentNumber string `json:"studentNumber"`
	Branch        string `json:"branch"`
	UnstopID      string `json:"unstopId"`
	HackerRankURL string `json:"hackerRankUrl"`
	Gender        string `json:"gender"`
}
