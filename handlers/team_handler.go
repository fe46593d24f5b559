package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/lanparty/middleware"
	"github.com/Dosada05/lanparty/services"
)

type TeamHandler struct {
	responder
	teamService services.TeamService
}

func NewTeamHandler(ts services.TeamService, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{
		responder:   responder{logger: logger},
		teamService: ts,
	}
}

func (h *TeamHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	teams, err := h.teamService.ListByTournament(r.Context(), middleware.CallerFromContext(r.Context()), tournamentID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"teams": teams})
}

func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	var input services.CreateTeamInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	team, err := h.teamService.Create(r.Context(), middleware.CallerFromContext(r.Context()), tournamentID, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, jsonResponse{"team": team})
}

func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	team, err := h.teamService.Get(r.Context(), middleware.CallerFromContext(r.Context()), teamID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"team": team})
}

func (h *TeamHandler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	var input services.UpdateTeamInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	team, err := h.teamService.Update(r.Context(), middleware.CallerFromContext(r.Context()), teamID, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"team": team})
}

func (h *TeamHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	if err := h.teamService.Delete(r.Context(), middleware.CallerFromContext(r.Context()), teamID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddMember godoc
// @Summary Put a user on a team
// @Description Players may only add themselves. The user must be registered to the event
// @Description and not on another team of the tournament.
// @Tags teams
// @Produce json
// @Param teamID path int true "Team ID"
// @Param userID path int true "User ID"
// @Success 200 {object} map[string]interface{} "team"
// @Failure 400 {object} map[string]string "User not registered"
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string "Team full, already on a team or tournament started"
// @Security BearerAuth
// @Router /teams/{teamID}/members/{userID} [put]
func (h *TeamHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	teamID, userID, ok := h.memberIDs(w, r)
	if !ok {
		return
	}

	team, err := h.teamService.AddMember(r.Context(), middleware.CallerFromContext(r.Context()), teamID, userID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"team": team})
}

// RemoveMember answers 204 when the team was dissolved with its last member.
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	teamID, userID, ok := h.memberIDs(w, r)
	if !ok {
		return
	}

	team, dissolved, err := h.teamService.RemoveMember(r.Context(), middleware.CallerFromContext(r.Context()), teamID, userID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	if dissolved {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"team": team})
}

func (h *TeamHandler) memberIDs(w http.ResponseWriter, r *http.Request) (teamID, userID int, ok bool) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return 0, 0, false
	}
	userID, err = getIDFromURL(r, "userID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return 0, 0, false
	}
	return teamID, userID, true
}
