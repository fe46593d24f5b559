package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Dosada05/lanparty/middleware"
	"github.com/Dosada05/lanparty/realtime"
)

const sseHeartbeat = 25 * time.Second

type RealtimeHandler struct {
	responder
	bus      *realtime.Bus
	upgrader websocket.Upgrader
}

// NewRealtimeHandler streams bus messages. checkOrigin guards websocket upgrades; nil
// accepts every origin.
func NewRealtimeHandler(bus *realtime.Bus, checkOrigin func(r *http.Request) bool, logger *slog.Logger) *RealtimeHandler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &RealtimeHandler{
		responder: responder{logger: logger},
		bus:       bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *RealtimeHandler) entity(w http.ResponseWriter, r *http.Request) (realtime.Entity, bool) {
	entity, err := realtime.ParseEntity(chi.URLParam(r, "entity"))
	if err != nil {
		h.errorResponse(w, r, http.StatusNotFound, "not_found", err.Error())
		return "", false
	}
	return entity, true
}

// streamFilter builds the payload filter from the query, minus the token parameter.
func streamFilter(r *http.Request) realtime.Filter {
	query := r.URL.Query()
	query.Del("access_token")
	return realtime.FilterFromQuery(query)
}

// Stream godoc
// @Summary Server-sent events of one entity
// @Description Every query parameter filters on a payload field; dots address nested fields.
// @Description The SSE event name is the action (create, update, delete).
// @Tags realtime
// @Produce text/event-stream
// @Param entity path string true "user, event, registration, tournament or team"
// @Success 200 {string} string "event stream"
// @Router /realtime/{entity} [get]
func (h *RealtimeHandler) Stream(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entity(w, r)
	if !ok {
		return
	}
	rc := http.NewResponseController(w)
	sub := h.bus.SubscribeStream(entity, streamFilter(r), middleware.CallerFromContext(r.Context()))
	defer sub.Close()

	// the server write timeout would otherwise end the stream
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(r.Context(), "response does not support streaming", slog.Any("error", err))
		return
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(msg.Payload)
			if err != nil {
				h.logger.ErrorContext(r.Context(), "failed to encode realtime message", slog.Any("error", err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Action, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// Socket upgrades to a websocket that receives {type, entity, payload} messages.
func (h *RealtimeHandler) Socket(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entity(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.Any("error", err))
		return
	}

	sub := h.bus.SubscribeStream(entity, streamFilter(r), middleware.CallerFromContext(r.Context()))
	client := &realtime.Client{Conn: conn, Sub: sub, Logger: h.logger}
	client.Serve()
}
