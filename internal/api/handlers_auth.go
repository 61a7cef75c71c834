package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/Arrogantx/slapper/internal/logging"
)

// handleTwitterBegin handles GET /api/auth/twitter - Redirect to Twitter.
// With ?redirect=false the authorization URL is returned as JSON instead.
func (s *Server) handleTwitterBegin(w http.ResponseWriter, r *http.Request) {
	if s.services.Twitter == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Twitter sign-in is not configured", nil)
		return
	}

	wallet, ok := s.requireWallet(w, r)
	if !ok {
		return
	}

	authURL, err := s.services.Twitter.Begin(r.Context(), wallet)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if r.URL.Query().Get("redirect") == "false" {
		respondJSON(w, http.StatusOK, map[string]string{"url": authURL})
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleTwitterCallback handles GET /api/auth/twitter/callback - Finish linking and return to the front end
func (s *Server) handleTwitterCallback(w http.ResponseWriter, r *http.Request) {
	if s.services.Twitter == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Twitter sign-in is not configured", nil)
		return
	}

	q := r.URL.Query()
	if denied := q.Get("error"); denied != "" {
		logging.FromContext(r.Context()).WithField("error", denied).Info("Twitter authorization declined")
		http.Redirect(w, r, s.frontendURL("error", denied), http.StatusFound)
		return
	}

	profile, err := s.services.Twitter.Complete(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		_, code, _, _ := mapServiceError(err)
		logging.FromContext(r.Context()).WithError(err).Warn("Twitter callback failed")
		http.Redirect(w, r, s.frontendURL("error", strings.ToLower(code)), http.StatusFound)
		return
	}

	username := ""
	if profile.TwitterUsername != nil {
		username = *profile.TwitterUsername
	}
	http.Redirect(w, r, s.frontendURL("connected", username), http.StatusFound)
}

// frontendURL builds the post-callback landing URL
func (s *Server) frontendURL(result, detail string) string {
	base := strings.TrimRight(s.config.FrontendOrigin, "/")
	values := url.Values{}
	values.Set("twitter", result)
	if detail != "" {
		values.Set("detail", detail)
	}
	return base + "/?" + values.Encode()
}
