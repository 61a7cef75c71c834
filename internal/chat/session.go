package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Arrogantx/slapper/internal/logging"
	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/realtime"
	"github.com/Arrogantx/slapper/internal/types"
)

// SessionBackend is the subset of the backend client a session reads from
type SessionBackend interface {
	RecentMessages(ctx context.Context, limit int) ([]*models.ChatMessage, error)
	MessageByID(ctx context.Context, id string) (*models.ChatMessage, error)
	Subscribe(ctx context.Context, tables ...string) (realtime.Feed, error)
}

// UpdateKind is the kind of change pushed to a session consumer
type UpdateKind string

const (
	// UpdateWindow carries the whole window (initial load and resync)
	UpdateWindow UpdateKind = "window"
	// UpdateMessage carries one appended message
	UpdateMessage UpdateKind = "message"
	// UpdateRelabel carries a new author identity for a wallet
	UpdateRelabel UpdateKind = "relabel"
)

// Update is a change to the session's window
type Update struct {
	Kind     UpdateKind            `json:"kind"`
	Messages []*models.ChatMessage `json:"messages,omitempty"`
	Message  *models.ChatMessage   `json:"message,omitempty"`
	Wallet   types.WalletAddress   `json:"wallet,omitempty"`
	Author   *models.AuthorProfile `json:"author,omitempty"`
}

// Session keeps one viewer's window live. The realtime subscription is held
// from Open until Close.
type Session struct {
	backend SessionBackend
	window  *Window
	logger  *logging.Logger

	mu      sync.Mutex
	opened  bool
	closed  bool
	feed    realtime.Feed
	cancel  context.CancelFunc
	updates chan Update
	done    chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewSession creates a closed session
func NewSession(backend SessionBackend, limit int, logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Session{
		backend: backend,
		window:  NewWindow(limit),
		logger:  logger.WithField("component", "chat_session"),
		updates: make(chan Update, 64),
		done:    make(chan struct{}),
	}
}

// Open subscribes, loads the recent window and starts following changes.
// The subscription is made before the load so no insert falls between them.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened || s.closed {
		return fmt.Errorf("chat session already open or closed")
	}

	feed, err := s.backend.Subscribe(ctx, models.TableChatMessages, models.TableUserProfiles)
	if err != nil {
		return err
	}
	if err := s.reload(ctx); err != nil {
		_ = feed.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.feed = feed
	s.cancel = cancel
	s.opened = true

	s.wg.Add(1)
	go s.run(runCtx)
	return nil
}

// Updates streams window changes, starting with the loaded window. It is
// closed by Close.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Done is closed when the session stops following changes
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Messages returns the current window oldest first. Consumers that also read
// Updates should take the window from the first update instead.
func (s *Session) Messages() []*models.ChatMessage {
	return s.window.Messages()
}

// Close releases the subscription. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		opened, feed, cancel := s.opened, s.feed, s.cancel
		s.mu.Unlock()

		if !opened {
			close(s.done)
			close(s.updates)
			return
		}
		cancel()
		s.closeErr = feed.Close()
		s.wg.Wait()
		close(s.updates)
	})
	return s.closeErr
}

func (s *Session) run(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.done)

	// the window is only changed by this goroutine from here on, so an insert
	// is either in this snapshot or pushed after it, never both
	s.push(ctx, Update{Kind: UpdateWindow, Messages: s.window.Messages()})

	events := s.feed.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				s.logger.Warn("Realtime feed ended")
				return
			}
			s.handle(ctx, event)
		}
	}
}

func (s *Session) handle(ctx context.Context, event *models.ChangeEvent) {
	switch {
	case event.Op == models.OpResync:
		if err := s.reload(ctx); err != nil {
			s.logger.WithError(err).Warn("Chat resync failed")
			return
		}
		s.push(ctx, Update{Kind: UpdateWindow, Messages: s.window.Messages()})

	case event.Table == models.TableChatMessages && event.Op == models.OpInsert:
		if s.window.Has(event.RowID) {
			return
		}
		// the notification has no author join, so fetch the row again
		msg, err := s.backend.MessageByID(ctx, event.RowID)
		if err != nil {
			s.logger.WithError(err).WithField("message", event.RowID).Warn("Failed to fetch inserted message")
			return
		}
		if s.window.Append(msg) {
			s.push(ctx, Update{Kind: UpdateMessage, Message: msg})
		}

	case event.Table == models.TableUserProfiles:
		author, ok := authorFromEvent(event)
		if !ok {
			return
		}
		if s.window.Relabel(author.WalletAddress, author) > 0 {
			s.push(ctx, Update{Kind: UpdateRelabel, Wallet: author.WalletAddress, Author: &author})
		}
	}
}

func (s *Session) reload(ctx context.Context) error {
	recent, err := s.backend.RecentMessages(ctx, s.window.Limit())
	if err != nil {
		return err
	}
	s.window.Load(recent)
	return nil
}

func (s *Session) push(ctx context.Context, update Update) {
	select {
	case s.updates <- update:
	case <-ctx.Done():
	}
}

func authorFromEvent(event *models.ChangeEvent) (models.AuthorProfile, bool) {
	var author models.AuthorProfile
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &author); err != nil {
			return author, false
		}
	}
	if author.WalletAddress.IsZero() {
		author.WalletAddress = types.NormalizeAddress(event.Wallet)
	}
	return author, !author.WalletAddress.IsZero()
}
