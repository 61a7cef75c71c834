package api

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"

	apperrors "github.com/Arrogantx/slapper/internal/errors"
	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/types"
)

// MaxNicknameLength bounds a chat nickname
const MaxNicknameLength = 32

// handleGetOwnProfile handles GET /api/profile - The connected wallet's profile
func (s *Server) handleGetOwnProfile(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.requireWallet(w, r)
	if !ok {
		return
	}

	profile, err := s.services.Data.Profile(r.Context(), wallet)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// handleUpdateProfile handles PUT /api/profile - Set or clear the nickname
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	wallet, ok := s.requireWallet(w, r)
	if !ok {
		return
	}

	var req struct {
		Nickname *string `json:"nickname"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Nickname == nil {
		respondServiceError(w, r, apperrors.NewEmptyFieldError("nickname"))
		return
	}

	nickname := strings.TrimSpace(*req.Nickname)
	if utf8.RuneCountInString(nickname) > MaxNicknameLength {
		respondServiceError(w, r, apperrors.NewInvalidParameterError("nickname", "nickname is too long"))
		return
	}

	profile, err := s.services.Data.UpsertProfile(r.Context(), wallet, models.ProfilePatch{Nickname: &nickname})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// handleGetProfile handles GET /api/profile/{address} - Public profile card for a chat author
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["address"]
	wallet, err := types.ParseWalletAddress(raw)
	if err != nil {
		respondServiceError(w, r, apperrors.NewInvalidAddressError(raw))
		return
	}

	profile, err := s.services.Data.Profile(r.Context(), wallet)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, profile.Author())
}
