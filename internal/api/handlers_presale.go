package api

import (
	"net/http"
)

// handleGetPresale handles GET /api/presale - Caller's request status
func (s *Server) handleGetPresale(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.requireWallet(w, r)
	if !ok {
		return
	}

	view, err := s.services.Presale.Status(r.Context(), wallet)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// handleSubmitPresale handles POST /api/presale - Submit a presale access request
func (s *Server) handleSubmitPresale(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.requireWallet(w, r)
	if !ok {
		return
	}

	var req struct {
		TwitterHandle string `json:"twitterHandle"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	request, err := s.services.Presale.Submit(r.Context(), wallet, req.TwitterHandle)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, request)
}

// handleGetDeposit handles GET /api/deposit - Deposit gate with the wallet's AVAX balance
func (s *Server) handleGetDeposit(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.requireWallet(w, r)
	if !ok {
		return
	}

	view, err := s.services.Presale.DepositGate(r.Context(), wallet)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// handleDeposit handles POST /api/deposit - Acknowledge a deposit intent
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.requireWallet(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount string `json:"amount"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	ack, err := s.services.Presale.Deposit(r.Context(), wallet, req.Amount)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, ack)
}
