package models

import "time"

// Event is a LAN party. Registrations and tournaments hang off it.
type Event struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	ShortName string    `json:"short_name" db:"short_name"`
	StartAt   time.Time `json:"start_at" db:"start_at"`
	EndAt     time.Time `json:"end_at" db:"end_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Contains reports whether t lies strictly inside the event window.
func (e *Event) Contains(t time.Time) bool {
	return e.StartAt.Before(t) && t.Before(e.EndAt)
}

// Covers reports whether t lies inside the event window, bounds included.
func (e *Event) Covers(t time.Time) bool {
	return !t.Before(e.StartAt) && !t.After(e.EndAt)
}
