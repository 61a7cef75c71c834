package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Arrogantx/slapper/internal/admin"
)

// handleListRequests handles GET /api/admin/requests - Every request, newest first
func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireWallet(w, r)
	if !ok {
		return
	}

	listing, err := s.services.Review.List(r.Context(), actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, listing)
}

// handleDecide handles POST /api/admin/requests/{id}/approve and /deny
func (s *Server) handleDecide(decision admin.Decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := s.requireWallet(w, r)
		if !ok {
			return
		}

		id := mux.Vars(r)["id"]
		if id == "" {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Request ID required", nil)
			return
		}

		result, err := s.services.Review.Decide(r.Context(), actor, id, decision)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		respondJSON(w, http.StatusOK, result)
	}
}
