package models

import "time"

// TournamentStatus mirrors the tournament_status enum in the database.
type TournamentStatus string

const (
	StatusHidden   TournamentStatus = "hidden"
	StatusReady    TournamentStatus = "ready"
	StatusStarted  TournamentStatus = "started"
	StatusFinished TournamentStatus = "finished"
)

func (s TournamentStatus) Valid() bool {
	switch s {
	case StatusHidden, StatusReady, StatusStarted, StatusFinished:
		return true
	}
	return false
}

// Locked reports whether teams and scheduling of a tournament in this status are frozen.
func (s TournamentStatus) Locked() bool {
	return s == StatusStarted || s == StatusFinished
}

type Distribution string

const DistributionExponential Distribution = "exponential"

type Tournament struct {
	ID                 int              `json:"id" db:"id"`
	EventID            int              `json:"event_id" db:"event_id"`
	Name               string           `json:"name" db:"name"`
	ShortName          string           `json:"short_name" db:"short_name"`
	Date               time.Time        `json:"date" db:"date"`
	Duration           int              `json:"duration" db:"duration"` // minutes
	Rules              string           `json:"rules" db:"rules"`
	TeamSizeMin        int              `json:"team_size_min" db:"team_size_min"`
	TeamSizeMax        int              `json:"team_size_max" db:"team_size_max"`
	TeamCountMin       int              `json:"team_count_min" db:"team_count_min"`
	TeamCountMax       int              `json:"team_count_max" db:"team_count_max"`
	Status             TournamentStatus `json:"status" db:"status"`
	PointsPerPlayer    int              `json:"points_per_player" db:"points_per_player"`
	PointsDistribution Distribution     `json:"points_distribution" db:"points_distribution"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`

	BackgroundKey *string `json:"-" db:"background_key"`
	BackgroundURL *string `json:"background_url,omitempty" db:"-"`

	// TeamCount counts the teams that reach TeamSizeMin. Filled by the service.
	TeamCount int    `json:"team_count" db:"-"`
	Teams     []Team `json:"teams,omitempty" db:"-"`
}
