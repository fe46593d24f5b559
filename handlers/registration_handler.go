package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/lanparty/middleware"
	"github.com/Dosada05/lanparty/services"
)

type RegistrationHandler struct {
	responder
	registrationService services.RegistrationService
}

func NewRegistrationHandler(rs services.RegistrationService, logger *slog.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		responder:           responder{logger: logger},
		registrationService: rs,
	}
}

func (h *RegistrationHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	regs, err := h.registrationService.List(r.Context(), eventID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"registrations": regs})
}

func (h *RegistrationHandler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	eventID, userID, ok := h.registrationIDs(w, r)
	if !ok {
		return
	}

	reg, err := h.registrationService.Get(r.Context(), eventID, userID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"registration": reg})
}

// PutRegistration godoc
// @Summary Register a user to an event or update the registration
// @Description Absent fields are kept. arrival_at and departure_at accept null to clear them.
// @Description Only organizers may set role or score.
// @Tags registrations
// @Accept json
// @Produce json
// @Param eventID path int true "Event ID"
// @Param userID path int true "User ID"
// @Param input body services.PutRegistrationInput true "Registration"
// @Success 200 {object} map[string]interface{} "Updated"
// @Success 201 {object} map[string]interface{} "Created"
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /events/{eventID}/registrations/{userID} [put]
func (h *RegistrationHandler) PutRegistration(w http.ResponseWriter, r *http.Request) {
	eventID, userID, ok := h.registrationIDs(w, r)
	if !ok {
		return
	}

	var input services.PutRegistrationInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	reg, created, err := h.registrationService.Put(r.Context(), middleware.CallerFromContext(r.Context()), eventID, userID, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.respond(w, r, status, jsonResponse{"registration": reg})
}

func (h *RegistrationHandler) DeleteRegistration(w http.ResponseWriter, r *http.Request) {
	eventID, userID, ok := h.registrationIDs(w, r)
	if !ok {
		return
	}

	if err := h.registrationService.Delete(r.Context(), middleware.CallerFromContext(r.Context()), eventID, userID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RegistrationHandler) registrationIDs(w http.ResponseWriter, r *http.Request) (eventID, userID int, ok bool) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return 0, 0, false
	}
	userID, err = getIDFromURL(r, "userID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return 0, 0, false
	}
	return eventID, userID, true
}
