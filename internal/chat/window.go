// Package chat implements the TrollBox: a live window of recent messages and the send path.
package chat

import (
	"sync"

	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/types"
)

// DefaultHistoryLimit is the initial load size
const DefaultHistoryLimit = 50

// Window is the ordered, de-duplicated set of messages a session shows.
// The historical load is capped; live appends may grow it past the cap.
type Window struct {
	limit int

	mu       sync.RWMutex
	messages []*models.ChatMessage
	ids      map[string]struct{}
}

// NewWindow creates an empty window with the given history cap
func NewWindow(limit int) *Window {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Window{limit: limit, ids: make(map[string]struct{})}
}

// Limit returns the historical cap
func (w *Window) Limit() int {
	return w.limit
}

// Load replaces the window with a newest-first page, keeping at most the cap
// and storing it oldest first.
func (w *Window) Load(newestFirst []*models.ChatMessage) {
	if len(newestFirst) > w.limit {
		newestFirst = newestFirst[:w.limit]
	}

	messages := make([]*models.ChatMessage, 0, len(newestFirst))
	ids := make(map[string]struct{}, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		msg := newestFirst[i]
		if msg == nil {
			continue
		}
		if _, dup := ids[msg.ID]; dup {
			continue
		}
		ids[msg.ID] = struct{}{}
		messages = append(messages, msg)
	}

	w.mu.Lock()
	w.messages = messages
	w.ids = ids
	w.mu.Unlock()
}

// Append adds a live message. It returns false if the id is already present.
func (w *Window) Append(msg *models.ChatMessage) bool {
	if msg == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, dup := w.ids[msg.ID]; dup {
		return false
	}
	w.ids[msg.ID] = struct{}{}
	w.messages = append(w.messages, msg)
	return true
}

// Has reports whether a message id is in the window
func (w *Window) Has(id string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.ids[id]
	return ok
}

// Relabel sets the author of every message from wallet and returns how many changed
func (w *Window) Relabel(wallet types.WalletAddress, author models.AuthorProfile) int {
	wallet = types.NormalizeAddress(wallet.String())
	author.WalletAddress = wallet

	w.mu.Lock()
	defer w.mu.Unlock()

	changed := 0
	for i, msg := range w.messages {
		if !msg.WalletAddress.Equal(wallet) {
			continue
		}
		// messages may be shared with readers of Messages, so replace rather than mutate
		updated := *msg
		updated.Author = author
		w.messages[i] = &updated
		changed++
	}
	return changed
}

// Messages returns the window oldest first
func (w *Window) Messages() []*models.ChatMessage {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*models.ChatMessage, len(w.messages))
	copy(out, w.messages)
	return out
}

// Len returns the number of messages
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.messages)
}
