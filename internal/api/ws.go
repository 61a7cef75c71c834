package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Arrogantx/slapper/internal/access"
	"github.com/Arrogantx/slapper/internal/chat"
	"github.com/Arrogantx/slapper/internal/logging"
	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/nav"
	"github.com/Arrogantx/slapper/internal/realtime"
	"github.com/Arrogantx/slapper/internal/types"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 4096
	wsSendBuffer = 128
)

// Outbound frame types
const (
	FrameWindow  = string(chat.UpdateWindow)
	FrameMessage = string(chat.UpdateMessage)
	FrameRelabel = string(chat.UpdateRelabel)
	FrameAccess  = "access"
	FrameNav     = "nav"
	FrameAck     = "ack"
	FrameError   = "error"
)

// Inbound frame types
const (
	FrameSend          = "send"
	FrameTip           = "tip"
	FrameRefreshAccess = "refresh_access"
	FrameSwitchWallet  = "switch_wallet"
	FrameNavigate      = "navigate"
)

// Frame is one server to client message
type Frame struct {
	Type string      `json:"type"`
	ID   string      `json:"id,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// ClientFrame is one client to server message. ID is echoed on the ack or error.
type ClientFrame struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	To      string `json:"to,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Token   string `json:"token,omitempty"`
	Path    string `json:"path,omitempty"`
}

// handleChatWS handles GET /api/chat/ws - Live chat window plus access and nav updates
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.callerAddress(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		path = nav.PathHome
	}

	c := &wsConn{
		server:  s,
		conn:    conn,
		send:    make(chan Frame, wsSendBuffer),
		done:    make(chan struct{}),
		tracker: access.NewTracker(s.services.Access),
		path:    path,
		logger:  s.logger.WithFields(map[string]interface{}{"component": "chat_ws", "ip": clientKey(r)}),
	}
	c.serve(r.Context(), wallet)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.config.AllowedOrigins) > 0 {
		return originAllowed(s.config.AllowedOrigins, origin)
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// wsConn is one WebSocket client. Only writePump writes to conn.
type wsConn struct {
	server  *Server
	conn    *websocket.Conn
	send    chan Frame
	done    chan struct{}
	tracker *access.Tracker
	logger  *logging.Logger

	mu     sync.Mutex
	wallet types.WalletAddress
	path   string

	session    *chat.Session
	accessFeed realtime.Feed

	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (c *wsConn) serve(parent context.Context, wallet types.WalletAddress) {
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	defer c.close()

	session := chat.NewSession(c.server.services.Data, c.server.config.HistoryLimit, c.logger)
	if err := session.Open(ctx); err != nil {
		c.logger.WithError(err).Warn("Chat session failed to open")
		// no writePump yet, so this goroutine owns conn
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		_ = c.conn.WriteJSON(errorFrame("", err))
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "chat unavailable"), time.Now().Add(wsWriteWait))
		return
	}
	go c.writePump()

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	go c.forwardSession(session)

	feed, err := c.server.services.Data.Subscribe(ctx, models.TableAccessRequests)
	if err != nil {
		c.logger.WithError(err).Warn("Access updates unavailable for this connection")
	} else {
		c.mu.Lock()
		c.accessFeed = feed
		c.mu.Unlock()
		go c.watchAccess(ctx, feed)
	}

	c.switchWallet(ctx, wallet)
	c.readPump(ctx)
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		close(c.done)

		c.mu.Lock()
		session, feed := c.session, c.accessFeed
		c.mu.Unlock()
		if session != nil {
			_ = session.Close()
		}
		if feed != nil {
			_ = feed.Close()
		}
		_ = c.conn.Close()
	})
}

// enqueue hands a frame to the writer. A client that cannot keep up is disconnected.
func (c *wsConn) enqueue(f Frame) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- f:
	case <-c.done:
	default:
		c.logger.Warn("WebSocket client too slow, disconnecting")
		go c.close()
	}
}

func (c *wsConn) sendError(id string, err error) {
	c.enqueue(errorFrame(id, err))
}

func errorFrame(id string, err error) Frame {
	_, code, message, details := mapServiceError(err)
	return Frame{Type: FrameError, ID: id, Data: map[string]interface{}{
		"code":    code,
		"message": message,
		"details": details,
	}}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return
		}
	}
}

func (c *wsConn) readPump(ctx context.Context) {
	c.conn.SetReadLimit(wsMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.WithError(err).Debug("WebSocket closed unexpectedly")
			}
			return
		}

		var in ClientFrame
		if err := json.Unmarshal(data, &in); err != nil {
			c.enqueue(Frame{Type: FrameError, Data: map[string]string{"code": ErrCodeInvalidInput, "message": "malformed frame"}})
			continue
		}
		c.dispatch(ctx, in)
	}
}

func (c *wsConn) dispatch(ctx context.Context, in ClientFrame) {
	switch in.Type {
	case FrameSend:
		msg, err := c.server.services.Chat.Send(ctx, c.currentWallet(), in.Message)
		if err != nil {
			c.sendError(in.ID, err)
			return
		}
		c.enqueue(Frame{Type: FrameAck, ID: in.ID, Data: msg})

	case FrameTip:
		to, err := parseOptionalAddress(in.To)
		if err != nil {
			c.sendError(in.ID, err)
			return
		}
		ack, err := c.server.services.Chat.Tip(ctx, c.currentWallet(), to, in.Amount)
		if err != nil {
			c.sendError(in.ID, err)
			return
		}
		c.enqueue(Frame{Type: FrameAck, ID: in.ID, Data: ack})

	case FrameRefreshAccess:
		go c.refreshAccess(ctx)

	case FrameSwitchWallet:
		wallet, err := c.server.services.Wallet.CurrentAddress(ctx, in.Token)
		if err != nil {
			c.sendError(in.ID, err)
			return
		}
		c.switchWallet(ctx, wallet)

	case FrameNavigate:
		c.mu.Lock()
		c.path = in.Path
		c.mu.Unlock()
		c.pushNav(c.tracker.Snapshot())

	default:
		c.enqueue(Frame{Type: FrameError, ID: in.ID, Data: map[string]string{"code": ErrCodeInvalidInput, "message": "unknown frame type"}})
	}
}

func (c *wsConn) currentWallet() types.WalletAddress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wallet
}

// switchWallet makes wallet current at once and resolves its access in the
// background. A resolution overtaken by a later switch is dropped by the tracker.
func (c *wsConn) switchWallet(ctx context.Context, wallet types.WalletAddress) {
	c.mu.Lock()
	c.wallet = types.NormalizeAddress(wallet.String())
	c.mu.Unlock()

	go func() {
		snap, applied := c.tracker.SetAddress(ctx, wallet)
		if applied {
			c.pushAccess(snap)
		}
	}()
}

func (c *wsConn) refreshAccess(ctx context.Context) {
	snap, applied := c.tracker.Refresh(ctx)
	if applied {
		c.pushAccess(snap)
	}
}

func (c *wsConn) pushAccess(snap access.Snapshot) {
	c.enqueue(Frame{Type: FrameAccess, Data: snap})
	c.pushNav(snap)
}

func (c *wsConn) pushNav(snap access.Snapshot) {
	c.mu.Lock()
	path := c.path
	c.mu.Unlock()
	c.enqueue(Frame{Type: FrameNav, Data: navFor(snap.Access, path)})
}

func (c *wsConn) forwardSession(session *chat.Session) {
	for update := range session.Updates() {
		c.enqueue(Frame{Type: string(update.Kind), Data: update})
	}
}

// watchAccess re-resolves when the current wallet's request changes
func (c *wsConn) watchAccess(ctx context.Context, feed realtime.Feed) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-feed.Events():
			if !ok {
				return
			}
			wallet := c.currentWallet()
			if wallet.IsZero() {
				continue
			}
			if event.Op == models.OpResync || wallet.Equal(types.WalletAddress(event.Wallet)) {
				c.refreshAccess(ctx)
			}
		}
	}
}
