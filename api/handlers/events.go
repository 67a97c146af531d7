package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/artist-platform-api/api"
	"github.com/linesmerrill/artist-platform-api/config"
	"github.com/linesmerrill/artist-platform-api/roster"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
)

// upgrader only accepts browser connections from the app's own origin. Without a base URL
// it falls back to gorilla's same-host check.
func (ro Roster) upgrader() *websocket.Upgrader {
	u := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if ro.BaseURL != "" {
		u.CheckOrigin = func(r *http.Request) bool {
			return allowedOrigin(r.Header.Get("Origin"), ro.BaseURL)
		}
	}
	return u
}

// allowedOrigin reports whether origin matches the scheme and host of baseURL. Requests
// without an Origin header do not come from a browser and are let through.
func allowedOrigin(origin, baseURL string) bool {
	if origin == "" {
		return true
	}
	o, err := url.Parse(origin)
	if err != nil {
		return false
	}
	b, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(o.Scheme, b.Scheme) && strings.EqualFold(o.Host, b.Host)
}

type rosterClient struct {
	conn *websocket.Conn
	send chan roster.Event
}

// RosterHub pushes roster events to the websocket clients watching an artist
type RosterHub struct {
	mu      sync.Mutex
	clients map[int64]map[*rosterClient]struct{}
}

// NewRosterHub creates an empty hub
func NewRosterHub() *RosterHub {
	return &RosterHub{clients: make(map[int64]map[*rosterClient]struct{})}
}

// Publish is a roster.Subscriber. Events without an artist, like sweeps, go to every
// client. A client whose buffer is full is dropped instead of blocking the publisher.
func (h *RosterHub) Publish(ev roster.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for artistID, clients := range h.clients {
		if ev.ArtistID != 0 && ev.ArtistID != artistID {
			continue
		}
		for c := range clients {
			select {
			case c.send <- ev:
			default:
				zap.S().Warnw("roster event client too slow, disconnecting", "artistId", artistID)
				h.removeLocked(artistID, c)
			}
		}
	}
}

// Count returns the number of clients watching an artist
func (h *RosterHub) Count(artistID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[artistID])
}

func (h *RosterHub) add(artistID int64, c *rosterClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[artistID] == nil {
		h.clients[artistID] = make(map[*rosterClient]struct{})
	}
	h.clients[artistID][c] = struct{}{}
}

func (h *RosterHub) remove(artistID int64, c *rosterClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(artistID, c)
}

func (h *RosterHub) removeLocked(artistID int64, c *rosterClient) {
	clients, ok := h.clients[artistID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.clients, artistID)
	}
}

// writePump owns all writes to the connection
func (c *rosterClient) writePump() {
	defer c.conn.Close()
	for ev := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.conn.WriteJSON(map[string]interface{}{
			"event": ev.Type,
			"data":  ev,
		})
		if err != nil {
			zap.S().Warnw("failed to write roster event", "event", ev.Type, "error", err)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// RosterEventsHandler streams the roster events of an artist over a websocket. Only users
// who can manage the roster may subscribe.
func (ro Roster) RosterEventsHandler(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := api.RequesterID(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
		return
	}
	artistID, ok := pathInt64(r, "artistId")
	if !ok {
		config.ErrorStatus("artist id is invalid", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	allowed, err := ro.WF.Auth.CanManageRoster(ctx, requesterID, artistID)
	cancel()
	if err != nil {
		config.ErrorStatus("failed to check roster permissions", http.StatusInternalServerError, w, err)
		return
	}
	if !allowed {
		config.ErrorStatus("you do not have permission to manage this roster", http.StatusForbidden, w, nil)
		return
	}

	conn, err := ro.upgrader().Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade error", "error", err)
		return
	}

	c := &rosterClient{conn: conn, send: make(chan roster.Event, sendBuffer)}
	ro.Hub.add(artistID, c)
	zap.S().Infow("roster events client connected", "artistId", artistID, "userId", requesterID)
	go c.writePump()

	// read until the client goes away; inbound messages are ignored
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	ro.Hub.remove(artistID, c)
	zap.S().Infow("roster events client disconnected", "artistId", artistID, "userId", requesterID)
}
