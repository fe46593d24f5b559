package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/lanparty/middleware"
	"github.com/Dosada05/lanparty/services"
)

type EventHandler struct {
	responder
	eventService services.EventService
}

func NewEventHandler(es services.EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		responder:    responder{logger: logger},
		eventService: es,
	}
}

func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.eventService.List(r.Context())
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"events": events})
}

func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	event, err := h.eventService.Get(r.Context(), eventID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"event": event})
}

func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var input services.CreateEventInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	event, err := h.eventService.Create(r.Context(), middleware.CallerFromContext(r.Context()), input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, jsonResponse{"event": event})
}

func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	var input services.UpdateEventInput
	if err := readJSON(w, r, &input); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	event, err := h.eventService.Update(r.Context(), middleware.CallerFromContext(r.Context()), eventID, input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, jsonResponse{"event": event})
}

func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventID")
	if err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	if err := h.eventService.Delete(r.Context(), middleware.CallerFromContext(r.Context()), eventID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
