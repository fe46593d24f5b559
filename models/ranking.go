package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"slices"
)

// RankGroup is one entry of a ranking: a single team id or several tied team ids.
// On the wire it is either a number or an array of numbers.
type RankGroup []int

func (g *RankGroup) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var ids []int
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		if len(ids) == 0 {
			return errors.New("rank group must not be empty")
		}
		*g = ids
		return nil
	}
	var id int
	if err := json.Unmarshal(data, &id); err != nil {
		return errors.New("rank entry must be a team id or a list of team ids")
	}
	*g = RankGroup{id}
	return nil
}

func (g RankGroup) MarshalJSON() ([]byte, error) {
	if len(g) == 1 {
		return json.Marshal(g[0])
	}
	return json.Marshal([]int(g))
}

// Ranking is the final ordering of a tournament's teams. It is consumed once by the end
// operation and never stored.
type Ranking struct {
	Ranks        []RankGroup   `json:"ranks" validate:"required,min=1"`
	DescOrder    bool          `json:"desc_order"`
	Points       *int          `json:"points,omitempty" validate:"omitempty,min=0"`
	Distribution *Distribution `json:"distribution,omitempty"`
}

// Ordered returns the groups best first.
func (r *Ranking) Ordered() [][]int {
	groups := make([][]int, 0, len(r.Ranks))
	for _, g := range r.Ranks {
		groups = append(groups, []int(g))
	}
	if r.DescOrder {
		slices.Reverse(groups)
	}
	return groups
}

// TeamIDs flattens the ranking in listed order.
func (r *Ranking) TeamIDs() []int {
	var ids []int
	for _, g := range r.Ranks {
		ids = append(ids, g...)
	}
	return ids
}
