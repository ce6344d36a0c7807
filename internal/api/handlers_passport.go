package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleGetPassport handles GET /api/passport/{address}
func (s *Server) handleGetPassport(w http.ResponseWriter, r *http.Request) {
	passport, err := s.services.Passports.Get(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		respondServiceError(w, r, err, "Failed to fetch passport")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"passport": passport})
}

// handleMintPassport handles POST /api/passport/{address}/mint
func (s *Server) handleMintPassport(w http.ResponseWriter, r *http.Request) {
	req, err := s.services.Passports.Mint(r.Context(), mux.Vars(r)["address"], actorFrom(r))
	if err != nil {
		respondServiceError(w, r, err, "Failed to mint passport")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]interface{}{"mint": req})
}
