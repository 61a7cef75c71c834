// Package admin implements the presale request review screen.
package admin

import (
	"context"

	apperrors "github.com/Arrogantx/slapper/internal/errors"
	"github.com/Arrogantx/slapper/internal/logging"
	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/types"
)

// Decision is an admin verdict on a pending request
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

// Status maps the decision to the resulting request status
func (d Decision) Status() (types.RequestStatus, bool) {
	switch d {
	case DecisionApprove:
		return types.StatusApproved, true
	case DecisionDeny:
		return types.StatusDenied, true
	}
	return "", false
}

// Backend is the subset of the backend client the review screen uses
type Backend interface {
	ListRequests(ctx context.Context) ([]*models.AccessRequest, error)
	ResolveRequest(ctx context.Context, id string, status types.RequestStatus, actor types.WalletAddress) (*models.AccessRequest, error)
}

// AdminChecker runs the fail-closed privilege check
type AdminChecker interface {
	CheckAdmin(ctx context.Context, address types.WalletAddress) bool
}

// Row is one request as shown to an admin. Pending rows carry actions,
// resolved rows carry a status badge instead.
type Row struct {
	Request *models.AccessRequest `json:"request"`
	Actions []Decision            `json:"actions,omitempty"`
	Badge   types.RequestStatus   `json:"badge,omitempty"`
}

// Listing is the full review list
type Listing struct {
	Rows    []Row `json:"rows"`
	Pending int   `json:"pending"`
}

// DecideResult is the refreshed list after a decision
type DecideResult struct {
	Request *models.AccessRequest `json:"request"`
	// Listing is nil when the reload after a committed decision failed
	Listing *Listing `json:"listing,omitempty"`
}

// Review serves the admin screen
type Review struct {
	backend Backend
	admins  AdminChecker
	logger  *logging.Logger
}

// NewReview creates the review service
func NewReview(backend Backend, admins AdminChecker, logger *logging.Logger) *Review {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Review{backend: backend, admins: admins, logger: logger.WithField("component", "admin")}
}

// List returns every request newest first
func (r *Review) List(ctx context.Context, actor types.WalletAddress) (*Listing, error) {
	if err := r.authorize(ctx, actor); err != nil {
		return nil, err
	}
	return r.list(ctx)
}

// Decide approves or denies a request, then reloads the whole list
func (r *Review) Decide(ctx context.Context, actor types.WalletAddress, id string, decision Decision) (*DecideResult, error) {
	if err := r.authorize(ctx, actor); err != nil {
		return nil, err
	}
	status, ok := decision.Status()
	if !ok {
		return nil, apperrors.NewInvalidParameterError("decision", "must be approve or deny")
	}
	if id == "" {
		return nil, apperrors.NewEmptyFieldError("id")
	}

	req, err := r.backend.ResolveRequest(ctx, id, status, actor)
	if err != nil {
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"request":  id,
			"decision": string(decision),
		}).Warn("Request decision rejected")
		return nil, err
	}

	r.logger.WithFields(map[string]interface{}{
		"request": id,
		"wallet":  req.WalletAddress.String(),
		"status":  string(req.Status),
		"actor":   types.NormalizeAddress(actor.String()).String(),
	}).Info("Presale request resolved")

	listing, err := r.list(ctx)
	if err != nil {
		r.logger.WithError(err).WithField("request", id).Warn("Review list reload failed after decision")
		return &DecideResult{Request: req}, nil
	}
	return &DecideResult{Request: req, Listing: listing}, nil
}

func (r *Review) authorize(ctx context.Context, actor types.WalletAddress) error {
	if actor.IsZero() {
		return apperrors.NewNotConnectedError()
	}
	if !r.admins.CheckAdmin(ctx, actor) {
		return apperrors.NewNotAdminError(actor.String())
	}
	return nil
}

func (r *Review) list(ctx context.Context) (*Listing, error) {
	requests, err := r.backend.ListRequests(ctx)
	if err != nil {
		return nil, err
	}

	listing := &Listing{Rows: make([]Row, 0, len(requests))}
	for _, req := range requests {
		row := Row{Request: req}
		if req.IsPending() {
			row.Actions = []Decision{DecisionApprove, DecisionDeny}
			listing.Pending++
		} else {
			row.Badge = req.Status
		}
		listing.Rows = append(listing.Rows, row)
	}
	return listing, nil
}
