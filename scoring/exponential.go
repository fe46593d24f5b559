// Package scoring turns final tournament positions into points.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/Dosada05/lanparty/models"
)

// DefaultCurve is the steepness of the exponential distribution.
const DefaultCurve = 5.0

var (
	ErrUnknownDistribution = errors.New("unknown points distribution")
	ErrInvalidRank         = errors.New("invalid rank position")
)

// DistributeExp returns the points awarded to each of tiedTeams teams sharing the rank slots
// [rank, rank+tiedTeams). Rank 1 is the best slot. The combined allocation of the slots is split
// evenly and rounded to the nearest integer.
//
// tiedTeams must be at least 1 and rank+tiedTeams-1 must not exceed totalTeams.
func DistributeExp(rank, tiedTeams, totalTeams, points int, curve float64) int {
	n := float64(totalTeams)
	p := float64(points)

	var sum float64
	for r := rank; r < rank+tiedTeams; r++ {
		fr := float64(r)
		sum += n * p * (math.Exp((1-fr)/n*curve) - math.Exp(-fr/n*curve))
	}
	return int(math.Round(sum / float64(tiedTeams)))
}

// Distribute dispatches on the distribution kind.
func Distribute(dist models.Distribution, rank, tiedTeams, totalTeams, points int) (int, error) {
	if tiedTeams < 1 || rank < 1 || rank+tiedTeams-1 > totalTeams {
		return 0, fmt.Errorf("%w: rank %d with %d tied teams out of %d", ErrInvalidRank, rank, tiedTeams, totalTeams)
	}
	switch dist {
	case models.DistributionExponential:
		return DistributeExp(rank, tiedTeams, totalTeams, points, DefaultCurve), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDistribution, dist)
	}
}

// Known reports whether dist names a supported distribution.
func Known(dist models.Distribution) bool {
	return dist == models.DistributionExponential
}

// Award is the outcome of one team in a ranking.
type Award struct {
	TeamID int
	Rank   int
	Points int
}

// Awards computes the award of every team of groups, which must be ordered best first.
// A group starts at the slot right after the teams of the previous groups.
func Awards(groups [][]int, points int, dist models.Distribution) ([]Award, error) {
	total := 0
	for _, g := range groups {
		total += len(g)
	}

	awards := make([]Award, 0, total)
	rank := 1
	for _, g := range groups {
		value, err := Distribute(dist, rank, len(g), total, points)
		if err != nil {
			return nil, err
		}
		for _, teamID := range g {
			awards = append(awards, Award{TeamID: teamID, Rank: rank, Points: value})
		}
		rank += len(g)
	}
	return awards, nil
}
