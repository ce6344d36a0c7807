package api

import "net/http"

// handleNonce handles POST /api/auth/nonce
func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
		ChainID int64  `json:"chainId,omitempty"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body")
		return
	}

	challenge, err := s.services.Auth.Challenge(r.Context(), req.Address, req.ChainID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to create sign-in challenge")
		return
	}
	respondJSON(w, http.StatusOK, challenge)
}

// handleVerify handles POST /api/auth/verify
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address   string `json:"address"`
		Message   string `json:"message"`
		Signature string `json:"signature"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body")
		return
	}

	session, err := s.services.Auth.Verify(r.Context(), req.Address, req.Message, req.Signature)
	if err != nil {
		respondServiceError(w, r, err, "Failed to verify signature")
		return
	}
	respondJSON(w, http.StatusOK, session)
}
