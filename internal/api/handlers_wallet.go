package api

import (
	"net/http"

	"github.com/Arrogantx/slapper/internal/wallet"
)

// handleWalletConfig handles GET /api/wallet/config - Connector catalogue for the connect modal
func (s *Server) handleWalletConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.services.Wallet.ConnectorConfig())
}

// handleWalletChallenge handles POST /api/wallet/challenge - Issue a sign-in message
func (s *Server) handleWalletChallenge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address   string `json:"address"`
		Connector string `json:"connector"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	challenge, err := s.services.Wallet.Challenge(r.Context(), req.Address, req.Connector)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, challenge)
}

// handleWalletConnect handles POST /api/wallet/connect - Verify the signed challenge and open a session
func (s *Server) handleWalletConnect(w http.ResponseWriter, r *http.Request) {
	var req wallet.ConnectInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	session, err := s.services.Wallet.Connect(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}

// handleWalletDisconnect handles POST /api/wallet/disconnect - Revoke the caller's session
func (s *Server) handleWalletDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Wallet.Disconnect(r.Context(), bearerToken(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"disconnected": true})
}
