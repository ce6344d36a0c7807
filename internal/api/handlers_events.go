package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// eventRequest is the body of POST and PUT /api/events
type eventRequest struct {
	OrganizerAddress string `json:"organizerAddress"`
	models.EventInput
}

// organizerFor picks the acting organizer from the session and the request.
// A session acting for another wallet is refused.
func organizerFor(w http.ResponseWriter, r *http.Request, claimed string) (string, bool) {
	actor := actorFrom(r)
	if claimed == "" {
		return actor, true
	}
	if actor != "" && types.NormalizeAddress(claimed) != actor {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "Session does not belong to this address")
		return "", false
	}
	return claimed, true
}

// handleListEvents handles GET /api/events
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := models.EventFilter{
		Category: query.Get("category"),
		Search:   query.Get("search"),
		Location: query.Get("location"),
	}

	events, err := s.services.Events.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err, "Failed to fetch events")
		return
	}
	if events == nil {
		events = []*models.Event{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// handleCreateEvent handles POST /api/events
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body")
		return
	}

	organizer, ok := organizerFor(w, r, req.OrganizerAddress)
	if !ok {
		return
	}

	event, err := s.services.Events.Create(r.Context(), organizer, req.EventInput)
	if err != nil {
		respondServiceError(w, r, err, "Failed to create event")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"event": event})
}

// handleGetEvent handles GET /api/events/{id}
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.services.Events.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err, "Failed to fetch event")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"event": event})
}

// handleUpdateEvent handles PUT /api/events/{id}
func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body")
		return
	}

	claimed := req.OrganizerAddress
	if claimed == "" {
		claimed = r.URL.Query().Get("organizer")
	}
	organizer, ok := organizerFor(w, r, claimed)
	if !ok {
		return
	}

	event, err := s.services.Events.Update(r.Context(), mux.Vars(r)["id"], organizer, req.EventInput)
	if err != nil {
		respondServiceError(w, r, err, "Failed to update event")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"event": event})
}

// handleDeleteEvent handles DELETE /api/events/{id}?organizer=
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	organizer, ok := organizerFor(w, r, r.URL.Query().Get("organizer"))
	if !ok {
		return
	}

	if err := s.services.Events.Delete(r.Context(), mux.Vars(r)["id"], organizer); err != nil {
		respondServiceError(w, r, err, "Failed to delete event")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleEventStats handles GET /api/events/{id}/stats
func (s *Server) handleEventStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.services.CheckIns.Stats(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err, "Failed to fetch event stats")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}
