package models

import (
	"slices"
	"time"
)

type Team struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	Result       int       `json:"result" db:"result"`
	Rank         int       `json:"rank" db:"rank"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	// AppliedPoints is the award last added to the members' registration scores.
	AppliedPoints int `json:"-" db:"applied_points"`

	// Members holds the user ids of the member registrations.
	Members []int `json:"members" db:"-"`
}

func (t *Team) HasMember(userID int) bool {
	return slices.Contains(t.Members, userID)
}
