package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hellhack-ui/HoloPass/internal/models"
)

// handleGetProfile handles GET /api/profiles/{address}
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.services.Profiles.Get(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		respondServiceError(w, r, err, "Failed to fetch profile")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"profile": profile})
}

// handleUpdateProfile handles PUT /api/profiles/{address}
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update models.ProfileUpdate
	if err := parseJSONBody(r, &update); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body")
		return
	}

	profile, err := s.services.Profiles.Update(r.Context(), mux.Vars(r)["address"], actorFrom(r), update)
	if err != nil {
		respondServiceError(w, r, err, "Failed to update profile")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"profile": profile})
}

// handleProfileRSVPs handles GET /api/profiles/{address}/rsvps
func (s *Server) handleProfileRSVPs(w http.ResponseWriter, r *http.Request) {
	rsvps, err := s.services.RSVPs.ListForUser(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		respondServiceError(w, r, err, "Failed to fetch RSVPs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"rsvps": rsvps})
}

// handleProfileCheckIns handles GET /api/profiles/{address}/checkins
func (s *Server) handleProfileCheckIns(w http.ResponseWriter, r *http.Request) {
	checkIns, err := s.services.Profiles.CheckIns(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		respondServiceError(w, r, err, "Failed to fetch check-ins")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"checkIns": checkIns})
}

// handleProfileStamps handles GET /api/profiles/{address}/stamps
func (s *Server) handleProfileStamps(w http.ResponseWriter, r *http.Request) {
	stamps, err := s.services.Profiles.Stamps(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		respondServiceError(w, r, err, "Failed to fetch stamps")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"stamps": stamps})
}
