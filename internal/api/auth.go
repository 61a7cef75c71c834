package api

import (
	"net/http"
	"strings"

	apperrors "github.com/Arrogantx/slapper/internal/errors"
	"github.com/Arrogantx/slapper/internal/types"
)

// bearerToken reads the session token from the Authorization header, or from
// the token query parameter for requests a browser cannot attach headers to.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// callerAddress returns the connected wallet, or "" for anonymous callers
func (s *Server) callerAddress(r *http.Request) (types.WalletAddress, error) {
	return s.services.Wallet.CurrentAddress(r.Context(), bearerToken(r))
}

// requireWallet writes WALLET_NOT_CONNECTED and returns false when no wallet is connected
func (s *Server) requireWallet(w http.ResponseWriter, r *http.Request) (types.WalletAddress, bool) {
	wallet, err := s.callerAddress(r)
	if err != nil {
		respondServiceError(w, r, err)
		return "", false
	}
	if wallet.IsZero() {
		respondServiceError(w, r, apperrors.NewNotConnectedError())
		return "", false
	}
	return wallet, true
}
