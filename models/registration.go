package models

import "time"

type Role string

const (
	RoleOrganizer Role = "organizer"
	RolePlayer    Role = "player"
)

func (r Role) Valid() bool {
	return r == RoleOrganizer || r == RolePlayer
}

// Registration is the membership of a user in an event. Its identity is (UserID, EventID).
type Registration struct {
	UserID      int        `json:"user_id" db:"user_id"`
	EventID     int        `json:"event_id" db:"event_id"`
	Role        Role       `json:"role" db:"role"`
	ArrivalAt   *time.Time `json:"arrival_at" db:"arrival_at"`
	DepartureAt *time.Time `json:"departure_at" db:"departure_at"`
	Score       int        `json:"score" db:"score"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
