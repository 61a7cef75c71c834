package api

import (
	"net/http"
	"strings"

	"github.com/Arrogantx/slapper/internal/chat"
	apperrors "github.com/Arrogantx/slapper/internal/errors"
	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/types"
)

// MessagesResponse is the recent chat window, oldest first
type MessagesResponse struct {
	Messages []*models.ChatMessage `json:"messages"`
	Count    int                   `json:"count"`
}

// handleGetMessages handles GET /api/chat/messages - Recent window, readable without a wallet
func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	newestFirst, err := s.services.Data.RecentMessages(r.Context(), s.config.HistoryLimit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	window := chat.NewWindow(s.config.HistoryLimit)
	window.Load(newestFirst)

	respondJSON(w, http.StatusOK, MessagesResponse{Messages: window.Messages(), Count: window.Len()})
}

// handleSendMessage handles POST /api/chat/messages - Post as the connected wallet
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.requireWallet(w, r)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	msg, err := s.services.Chat.Send(r.Context(), wallet, req.Message)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, msg)
}

// handleTip handles POST /api/chat/tip - Tipping is acknowledged but not operational
func (s *Server) handleTip(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.requireWallet(w, r)
	if !ok {
		return
	}

	var req struct {
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	to, err := parseOptionalAddress(req.To)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	ack, err := s.services.Chat.Tip(r.Context(), wallet, to, req.Amount)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, ack)
}

func parseOptionalAddress(raw string) (types.WalletAddress, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	addr, err := types.ParseWalletAddress(raw)
	if err != nil {
		return "", apperrors.NewInvalidAddressError(raw)
	}
	return addr, nil
}
