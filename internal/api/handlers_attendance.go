package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleCreateRSVP handles POST /api/events/{id}/rsvp
func (s *Server) handleCreateRSVP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserAddress string `json:"userAddress"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body")
		return
	}

	rsvp, err := s.services.RSVPs.Create(r.Context(), mux.Vars(r)["id"], req.UserAddress, actorFrom(r))
	if err != nil {
		respondServiceError(w, r, err, "Failed to create RSVP")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"rsvp": rsvp})
}

// handleCancelRSVP handles DELETE /api/events/{id}/rsvp?user=
func (s *Server) handleCancelRSVP(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")

	if err := s.services.RSVPs.Cancel(r.Context(), mux.Vars(r)["id"], user, actorFrom(r)); err != nil {
		respondServiceError(w, r, err, "Failed to cancel RSVP")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleRSVPQRCode handles GET /api/events/{id}/rsvp/qr?user=
func (s *Server) handleRSVPQRCode(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		user = actorFrom(r)
	}

	code, err := s.services.RSVPs.QRCode(r.Context(), mux.Vars(r)["id"], user, actorFrom(r))
	if err != nil {
		respondServiceError(w, r, err, "Failed to generate QR code")
		return
	}
	respondJSON(w, http.StatusOK, code)
}

// handleCheckIn handles POST /api/events/{id}/checkin
func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserAddress string `json:"userAddress"`
		QRCodeData  string `json:"qrCodeData"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body")
		return
	}

	result, err := s.services.CheckIns.CheckIn(r.Context(), mux.Vars(r)["id"], req.UserAddress, req.QRCodeData, actorFrom(r))
	if err != nil {
		respondServiceError(w, r, err, "Failed to check in")
		return
	}
	respondJSON(w, http.StatusCreated, result)
}
