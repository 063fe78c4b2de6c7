// Package control exposes the HTTP/websocket surface (C8) an external
// session registry or operator tool uses to bind sessions, push policy
// updates, and observe structured events — the REST surface spec.md treats
// as an external collaborator to the core, given a concrete home here so
// the repository runs end-to-end.
package control

import (
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/petervdpas/modrelay/internal/moderation"
	"github.com/petervdpas/modrelay/internal/relay"
	"github.com/petervdpas/modrelay/internal/util"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 65536,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Registry is the minimal session-lookup surface routes needs from the
// relay manager, kept narrow so tests can fake it.
type Registry interface {
	GetSession(channelID string) (*relay.Session, bool)
	Accept(channelID, remotePeer string) *relay.Session
	Unbind(channelID string)
	ChannelIDs() []string
}

// CoreRegistry exposes the moderation cores backing each relay session, for
// policy updates (update_policy only touches the moderation core, not the
// WebRTC plumbing).
type CoreRegistry interface {
	GetCore(channelID string) (*moderation.Session, bool)
}

// wsEventSink adapts a websocket connection to moderation.EventSink.
type wsEventSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  *moderation.RateLimitedLogger
}

func newWSEventSink(conn *websocket.Conn) *wsEventSink {
	return &wsEventSink{conn: conn, log: moderation.NewRateLimitedLogger("CTRL", time.Minute)}
}

// Emit implements moderation.EventSink (§4.6, §7 "side-channel write
// failure": drop, log, never crash).
func (s *wsEventSink) Emit(e moderation.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(e); err != nil {
		s.log.Printf("event write failed: %v", err)
	}
}

// RegisterRoutes wires the control surface onto mux.
func RegisterRoutes(mux *http.ServeMux, sessions Registry, cores CoreRegistry) {
	// POST /sessions/{id}/bind — bind(session_id) (§6).
	mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
		tail := strings.TrimPrefix(r.URL.Path, "/sessions/")
		parts := strings.SplitN(tail, "/", 2)
		if len(parts) != 2 || parts[0] == "" {
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}
		channelID, action := parts[0], parts[1]

		switch action {
		case "bind":
			handleBind(w, r, sessions, channelID)
		case "policy":
			handlePolicy(w, r, cores, channelID)
		case "unbind":
			handleUnbind(w, r, sessions, channelID)
		case "events":
			handleEvents(w, r, sessions, cores, channelID)
		case "offer":
			handleOffer(w, r, sessions, channelID)
		default:
			http.Error(w, "unknown session action", http.StatusNotFound)
		}
	})

	// GET /sessions — debug/status: active channel ids, queue depths,
	// detection stride, and event counts (grounded on call.go's
	// AllSessions()/Status() debug pattern, §6).
	handleGet(mux, "/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"sessions": collectSessionStatus(sessions, cores)})
	})
}

// sessionStatus is the per-channel debug/status payload (GET /sessions, §6).
type sessionStatus struct {
	ChannelID string `json:"channel_id"`
	moderation.SessionStats
}

// collectSessionStatus snapshots every active channel's queue depths,
// detection stride, and event count.
func collectSessionStatus(sessions Registry, cores CoreRegistry) []sessionStatus {
	ids := sessions.ChannelIDs()
	statuses := make([]sessionStatus, 0, len(ids))
	for _, id := range ids {
		core, ok := cores.GetCore(id)
		if !ok {
			continue
		}
		statuses = append(statuses, sessionStatus{ChannelID: id, SessionStats: core.Stats()})
	}
	return statuses
}

func handleBind(w http.ResponseWriter, r *http.Request, sessions Registry, channelID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		RemotePeer string `json:"remote_peer"`
	}
	if decodeJSON(w, r, &req) != nil {
		return
	}
	if _, ok := sessions.GetSession(channelID); ok {
		writeJSON(w, map[string]string{"status": "already_bound", "channel_id": channelID})
		return
	}
	remotePeer, err := util.ValidatePeerName(req.RemotePeer)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sessions.Accept(channelID, remotePeer)
	writeJSON(w, map[string]string{"status": "bound", "channel_id": channelID})
}

func handlePolicy(w http.ResponseWriter, r *http.Request, cores CoreRegistry, channelID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	core, ok := cores.GetCore(channelID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	var snapshot moderation.Policy
	if decodeJSON(w, r, &snapshot) != nil {
		return
	}
	core.UpdatePolicy(&snapshot)
	writeJSON(w, map[string]string{"status": "updated", "channel_id": channelID})
}

func handleUnbind(w http.ResponseWriter, r *http.Request, sessions Registry, channelID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	sessions.Unbind(channelID)
	writeJSON(w, map[string]string{"status": "unbound", "channel_id": channelID})
}

// handleEvents upgrades to a websocket and attaches it as the session's
// event sink until the connection closes or the session ends (§4.6, §9).
func handleEvents(w http.ResponseWriter, r *http.Request, sessions Registry, cores CoreRegistry, channelID string) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := sessions.GetSession(channelID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	core, ok := cores.GetCore(channelID)
	if !ok {
		http.Error(w, "session core not found", http.StatusNotFound)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("CTRL [%s]: websocket upgrade error: %v", channelID, err)
		return
	}
	defer conn.Close()

	sink := newWSEventSink(conn)
	core.AttachSink(sink)
	defer core.DetachSink()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-r.Context().Done():
	case <-sess.HangupCh():
	}
}

// handleOffer forwards a browser/broadcaster SDP offer into the relay
// session's inbound PeerConnection (§1: signaling itself is an external
// collaborator; this is the narrow seam needed to drive it over plain
// HTTP instead of a separate signaling channel).
func handleOffer(w http.ResponseWriter, r *http.Request, sessions Registry, channelID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := sessions.GetSession(channelID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	var body struct {
		SDP string `json:"sdp"`
	}
	if decodeJSON(w, r, &body) != nil {
		return
	}
	sess.HandleSignal("call-offer", map[string]any{"sdp": body.SDP})
	writeJSON(w, map[string]string{"status": "accepted"})
}
