package api

import (
	"net/http"

	"github.com/Arrogantx/slapper/internal/access"
	"github.com/Arrogantx/slapper/internal/nav"
	"github.com/Arrogantx/slapper/internal/types"
)

// NavResponse is the navigation shell for the caller
type NavResponse struct {
	Connected bool       `json:"connected"`
	Role      types.Role `json:"role"`
	Links     []nav.Link `json:"links"`
}

func navFor(acc access.Access, path string) NavResponse {
	state := nav.State{Connected: acc.Role.IsConnected(), Role: acc.Role}
	return NavResponse{Connected: state.Connected, Role: acc.Role, Links: nav.Links(state, path)}
}

// resolveCaller resolves access for the caller; anonymous when no wallet is connected
func (s *Server) resolveCaller(w http.ResponseWriter, r *http.Request) (access.Access, bool) {
	wallet, err := s.callerAddress(r)
	if err != nil {
		respondServiceError(w, r, err)
		return access.Access{}, false
	}
	return s.services.Access.Resolve(r.Context(), wallet), true
}

// handleGetAccess handles GET /api/access - Role of the caller
func (s *Server) handleGetAccess(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.resolveCaller(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, acc)
}

// handleGetNav handles GET /api/nav?path= - Navigation links for the caller
func (s *Server) handleGetNav(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.resolveCaller(w, r)
	if !ok {
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		path = nav.PathHome
	}
	respondJSON(w, http.StatusOK, navFor(acc, path))
}
