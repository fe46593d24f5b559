package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Dosada05/lanparty/auth"
	"github.com/Dosada05/lanparty/models"
	"github.com/Dosada05/lanparty/realtime"
	"github.com/Dosada05/lanparty/storage"
)

func populateUserPictureURL(user *models.User, uploader storage.FileUploader) {
	if user == nil || user.PictureKey == nil || *user.PictureKey == "" || uploader == nil {
		return
	}
	if url := uploader.GetPublicURL(*user.PictureKey); url != "" {
		user.PictureURL = &url
	}
}

func populateTournamentBackgroundURL(t *models.Tournament, uploader storage.FileUploader) {
	if t == nil || t.BackgroundKey == nil || *t.BackgroundKey == "" || uploader == nil {
		return
	}
	if url := uploader.GetPublicURL(*t.BackgroundKey); url != "" {
		t.BackgroundURL = &url
	}
}

// eligibleTeamCount counts the teams that have reached sizeMin members.
func eligibleTeamCount(teams []models.Team, sizeMin int) int {
	n := 0
	for _, t := range teams {
		if len(t.Members) >= sizeMin {
			n++
		}
	}
	return n
}

// canSee reports whether the caller may see the tournament. Hidden tournaments are only
// visible to those who can organize their event.
func canSee(c *auth.Caller, t *models.Tournament) bool {
	return t.Status != models.StatusHidden || auth.CanOrganize(c, t.EventID)
}

func requireCaller(c *auth.Caller) error {
	if c == nil {
		return errAuthRequired
	}
	return nil
}

func normalizeName(s string) string {
	return strings.TrimSpace(s)
}

// removeStoredObject deletes a replaced upload. Failures only leave an orphan object
// behind, so they are logged and not returned.
func removeStoredObject(ctx context.Context, uploader storage.FileUploader, key *string, logger *slog.Logger) {
	if uploader == nil || key == nil || *key == "" {
		return
	}
	if err := uploader.Delete(ctx, *key); err != nil {
		logger.WarnContext(ctx, "failed to delete stored object", slog.String("key", *key), slog.Any("error", err))
	}
}

// change is an entity event collected during a transaction and emitted after commit.
type change struct {
	action  realtime.Action
	entity  realtime.Entity
	payload any
	// organizersOf restricts the change to organizers of that event.
	organizersOf int
}

func changeOf(action realtime.Action, entity realtime.Entity, payload any) change {
	return change{action: action, entity: entity, payload: payload}
}

func tournamentChange(action realtime.Action, t *models.Tournament) change {
	c := changeOf(action, realtime.EntityTournament, t)
	c.organizersOf = hiddenIn(t)
	return c
}

func teamChange(action realtime.Action, team *models.Team, t *models.Tournament) change {
	c := changeOf(action, realtime.EntityTeam, team)
	c.organizersOf = hiddenIn(t)
	return c
}

// hiddenIn returns the event whose organizers alone may see t, or 0 when t is public.
func hiddenIn(t *models.Tournament) int {
	if t == nil || t.Status != models.StatusHidden {
		return 0
	}
	return t.EventID
}

func publish(bus *realtime.Bus, changes ...change) {
	if bus == nil {
		return
	}
	for _, c := range changes {
		bus.Publish(realtime.Message{Action: c.action, Entity: c.entity, Payload: c.payload, OrganizersOf: c.organizersOf})
	}
}
