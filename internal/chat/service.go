package chat

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	apperrors "github.com/Arrogantx/slapper/internal/errors"
	"github.com/Arrogantx/slapper/internal/logging"
	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/types"
)

// DefaultMaxBodyLength bounds a message body in characters
const DefaultMaxBodyLength = 500

// SendBackend is the subset of the backend client the send path writes to
type SendBackend interface {
	EnsureProfile(ctx context.Context, wallet types.WalletAddress) error
	InsertMessage(ctx context.Context, wallet types.WalletAddress, body string) (*models.ChatMessage, error)
}

// Service sends TrollBox messages
type Service struct {
	backend       SendBackend
	limiter       Limiter
	maxBodyLength int
	logger        *logging.Logger
}

// NewService creates the chat send service. limiter may be nil to disable throttling.
func NewService(backend SendBackend, limiter Limiter, maxBodyLength int, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if maxBodyLength <= 0 {
		maxBodyLength = DefaultMaxBodyLength
	}
	return &Service{
		backend:       backend,
		limiter:       limiter,
		maxBodyLength: maxBodyLength,
		logger:        logger.WithField("component", "chat"),
	}
}

// Send posts a message as wallet. The author profile is ensured first; if that
// fails nothing is inserted.
func (s *Service) Send(ctx context.Context, wallet types.WalletAddress, body string) (*models.ChatMessage, error) {
	if wallet.IsZero() {
		return nil, apperrors.NewNotConnectedError()
	}
	wallet = types.NormalizeAddress(wallet.String())

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewEmptyFieldError("message")
	}
	if utf8.RuneCountInString(body) > s.maxBodyLength {
		return nil, apperrors.NewInvalidParameterError("message", "message is too long")
	}

	if err := s.throttle(ctx, wallet); err != nil {
		return nil, err
	}

	if err := s.backend.EnsureProfile(ctx, wallet); err != nil {
		s.logger.WithError(err).WithField("wallet", wallet.String()).Warn("Profile upsert failed, message not sent")
		return nil, err
	}

	msg, err := s.backend.InsertMessage(ctx, wallet, body)
	if err != nil {
		s.logger.WithError(err).WithField("wallet", wallet.String()).Warn("Message insert failed")
		return nil, err
	}
	return msg, nil
}

// Tip acknowledges a tip request. Tipping is not operational and nothing is transferred.
func (s *Service) Tip(ctx context.Context, from types.WalletAddress, to types.WalletAddress, amount string) (*models.Acknowledgment, error) {
	if from.IsZero() {
		return nil, apperrors.NewNotConnectedError()
	}

	ack := models.ComingSoon("tipping")
	if !to.IsZero() {
		ack.To = types.NormalizeAddress(to.String()).String()
	}
	if amount = strings.TrimSpace(amount); amount != "" {
		if value, err := decimal.NewFromString(amount); err == nil && value.IsPositive() {
			ack.Amount = &value
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"from": types.NormalizeAddress(from.String()).String(),
		"to":   ack.To,
	}).Debug("Tip requested")
	return ack, nil
}

func (s *Service) throttle(ctx context.Context, wallet types.WalletAddress) error {
	if s.limiter == nil {
		return nil
	}
	retryAfter, allowed, err := s.limiter.Allow(ctx, SendLimitKey(wallet.String()))
	if err != nil {
		// limiter errors fail open
		s.logger.WithError(err).Warn("Chat rate limiter unavailable")
		return nil
	}
	if !allowed {
		return apperrors.NewRateLimitError(int(math.Ceil(retryAfter.Seconds())))
	}
	return nil
}
