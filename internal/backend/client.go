// Package backend is the single data-access facade shared by every component.
// Writes go to Postgres first; a row-change notification is published once the row is committed.
package backend

import (
	"context"
	"encoding/json"
	"errors"

	apperrors "github.com/Arrogantx/slapper/internal/errors"
	"github.com/Arrogantx/slapper/internal/logging"
	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/realtime"
	"github.com/Arrogantx/slapper/internal/storage"
	"github.com/Arrogantx/slapper/internal/types"
)

// RequestStore persists access requests
type RequestStore interface {
	GetByWallet(ctx context.Context, wallet types.WalletAddress) (*models.AccessRequest, error)
	GetByID(ctx context.Context, id string) (*models.AccessRequest, error)
	Insert(ctx context.Context, wallet types.WalletAddress, handle string) (*models.AccessRequest, error)
	List(ctx context.Context) ([]*models.AccessRequest, error)
	Resolve(ctx context.Context, id string, status types.RequestStatus, actor types.WalletAddress) (*models.AccessRequest, error)
}

// ProfileStore persists user profiles
type ProfileStore interface {
	Ensure(ctx context.Context, wallet types.WalletAddress) (bool, error)
	Upsert(ctx context.Context, wallet types.WalletAddress, patch models.ProfilePatch) (*models.UserProfile, error)
	Get(ctx context.Context, wallet types.WalletAddress) (*models.UserProfile, error)
}

// MessageStore persists chat messages
type MessageStore interface {
	Recent(ctx context.Context, limit int) ([]*models.ChatMessage, error)
	GetByID(ctx context.Context, id string) (*models.ChatMessage, error)
	Insert(ctx context.Context, wallet types.WalletAddress, body string) (*models.ChatMessage, error)
}

// AdminRoster answers the is_admin privilege check
type AdminRoster interface {
	IsAdmin(ctx context.Context, wallet types.WalletAddress) (bool, error)
}

// EventBus publishes and subscribes to row changes
type EventBus interface {
	Publish(ctx context.Context, event *models.ChangeEvent) error
	Subscribe(ctx context.Context, tables ...string) (*realtime.Subscription, error)
}

// Client is the process-wide backend handle, built once at startup
type Client struct {
	requests RequestStore
	profiles ProfileStore
	messages MessageStore
	admins   AdminRoster
	bus      EventBus
	logger   *logging.Logger
}

// Deps bundles the stores a Client is built from
type Deps struct {
	Requests RequestStore
	Profiles ProfileStore
	Messages MessageStore
	Admins   AdminRoster
	Bus      EventBus
	Logger   *logging.Logger
}

// NewClient creates the backend client
func NewClient(deps Deps) *Client {
	logger := deps.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Client{
		requests: deps.Requests,
		profiles: deps.Profiles,
		messages: deps.Messages,
		admins:   deps.Admins,
		bus:      deps.Bus,
		logger:   logger.WithField("component", "backend"),
	}
}

// IsAdmin runs the is_admin privilege check for a wallet
func (c *Client) IsAdmin(ctx context.Context, wallet types.WalletAddress) (bool, error) {
	isAdmin, err := c.admins.IsAdmin(ctx, types.NormalizeAddress(wallet.String()))
	if err != nil {
		return false, apperrors.NewDatabaseError("is_admin", err)
	}
	return isAdmin, nil
}

// RequestByWallet returns the wallet's access request, or nil when none exists
func (c *Client) RequestByWallet(ctx context.Context, wallet types.WalletAddress) (*models.AccessRequest, error) {
	req, err := c.requests.GetByWallet(ctx, types.NormalizeAddress(wallet.String()))
	if err != nil {
		if errors.Is(err, storage.ErrRequestNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseError("get request", err)
	}
	return req, nil
}

// InsertRequest creates a pending request for the wallet.
// A wallet that already has a row gets a conflict carrying that row's status.
func (c *Client) InsertRequest(ctx context.Context, wallet types.WalletAddress, handle string) (*models.AccessRequest, error) {
	wallet = types.NormalizeAddress(wallet.String())

	req, err := c.requests.Insert(ctx, wallet, handle)
	if err != nil {
		if !errors.Is(err, storage.ErrRequestExists) {
			return nil, apperrors.NewDatabaseError("insert request", err)
		}
		status := types.StatusPending
		if existing, getErr := c.RequestByWallet(ctx, wallet); getErr == nil && existing != nil {
			status = existing.Status
		}
		return nil, apperrors.NewRequestExistsError(wallet.String(), status)
	}

	c.publish(ctx, models.TableAccessRequests, models.OpInsert, req.ID, wallet, req)
	return req, nil
}

// ListRequests returns every access request newest first
func (c *Client) ListRequests(ctx context.Context) ([]*models.AccessRequest, error) {
	requests, err := c.requests.List(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list requests", err)
	}
	return requests, nil
}

// ResolveRequest approves or denies a pending request
func (c *Client) ResolveRequest(ctx context.Context, id string, status types.RequestStatus, actor types.WalletAddress) (*models.AccessRequest, error) {
	req, err := c.requests.Resolve(ctx, id, status, types.NormalizeAddress(actor.String()))
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrRequestNotFound):
		return nil, apperrors.NewRequestNotFoundError(id)
	case errors.Is(err, storage.ErrRequestNotPending) && req != nil:
		return nil, apperrors.NewAlreadyResolvedError(id, req.Status)
	default:
		return nil, apperrors.NewDatabaseError("resolve request", err)
	}

	c.publish(ctx, models.TableAccessRequests, models.OpUpdate, req.ID, req.WalletAddress, req)
	return req, nil
}

// EnsureProfile creates an empty profile for the wallet if absent
func (c *Client) EnsureProfile(ctx context.Context, wallet types.WalletAddress) error {
	wallet = types.NormalizeAddress(wallet.String())

	created, err := c.profiles.Ensure(ctx, wallet)
	if err != nil {
		return apperrors.NewDatabaseError("ensure profile", err)
	}
	if created {
		c.publish(ctx, models.TableUserProfiles, models.OpInsert, wallet.String(), wallet, models.AuthorProfile{WalletAddress: wallet})
	}
	return nil
}

// UpsertProfile applies a profile patch and announces the new display identity
func (c *Client) UpsertProfile(ctx context.Context, wallet types.WalletAddress, patch models.ProfilePatch) (*models.UserProfile, error) {
	wallet = types.NormalizeAddress(wallet.String())

	profile, err := c.profiles.Upsert(ctx, wallet, patch)
	if err != nil {
		return nil, apperrors.NewDatabaseError("upsert profile", err)
	}

	c.publish(ctx, models.TableUserProfiles, models.OpUpdate, wallet.String(), wallet, profile.Author())
	return profile, nil
}

// Profile returns the wallet's profile
func (c *Client) Profile(ctx context.Context, wallet types.WalletAddress) (*models.UserProfile, error) {
	profile, err := c.profiles.Get(ctx, types.NormalizeAddress(wallet.String()))
	if err != nil {
		if errors.Is(err, storage.ErrProfileNotFound) {
			return nil, apperrors.NewNotFoundError("profile", wallet.String())
		}
		return nil, apperrors.NewDatabaseError("get profile", err)
	}
	return profile, nil
}

// RecentMessages returns up to limit messages, newest first, with author profiles joined
func (c *Client) RecentMessages(ctx context.Context, limit int) ([]*models.ChatMessage, error) {
	messages, err := c.messages.Recent(ctx, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("recent messages", err)
	}
	return messages, nil
}

// MessageByID returns a single message with its author profile joined
func (c *Client) MessageByID(ctx context.Context, id string) (*models.ChatMessage, error) {
	msg, err := c.messages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			return nil, apperrors.NewNotFoundError("chat message", id)
		}
		return nil, apperrors.NewDatabaseError("get message", err)
	}
	return msg, nil
}

// InsertMessage stores a chat message; the author profile must already exist
func (c *Client) InsertMessage(ctx context.Context, wallet types.WalletAddress, body string) (*models.ChatMessage, error) {
	wallet = types.NormalizeAddress(wallet.String())

	msg, err := c.messages.Insert(ctx, wallet, body)
	if err != nil {
		return nil, apperrors.NewDatabaseError("insert message", err)
	}

	c.publish(ctx, models.TableChatMessages, models.OpInsert, msg.ID, wallet, nil)
	return msg, nil
}

// Subscribe opens a realtime feed for the given tables
func (c *Client) Subscribe(ctx context.Context, tables ...string) (realtime.Feed, error) {
	sub, err := c.bus.Subscribe(ctx, tables...)
	if err != nil {
		return nil, apperrors.NewCacheError("subscribe", err)
	}
	return sub, nil
}

// publish announces a committed row change. The row is already durable, so a
// publish failure is logged rather than returned.
func (c *Client) publish(ctx context.Context, table string, op models.ChangeOp, rowID string, wallet types.WalletAddress, payload interface{}) {
	event := &models.ChangeEvent{
		Table:  table,
		Op:     op,
		RowID:  rowID,
		Wallet: wallet.String(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			c.logger.WithError(err).WithField("table", table).Warn("Failed to encode change payload")
		} else {
			event.Payload = data
		}
	}

	if err := c.bus.Publish(ctx, event); err != nil {
		c.logger.WithError(err).WithFields(map[string]interface{}{
			"table": table,
			"op":    string(op),
			"row":   rowID,
		}).Warn("Failed to publish change event")
	}
}
