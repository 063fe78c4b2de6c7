// Package relay manages WebRTC bridging sessions (C7): each session pairs
// an inbound PeerConnection from a broadcaster with an outbound
// PeerConnection to a downstream ingest, routed through a moderation core.
// Coupling to the rest of the service is via the Signaler interface only,
// the same isolation internal/call's Manager uses against the realtime
// layer.
package relay

import (
	"log"
	"sync"

	"github.com/petervdpas/modrelay/internal/moderation"
)

// SessionFactory builds the moderation core for a new channel (C7 bind
// lifecycle, §6 "bind(session_id)").
type SessionFactory func(channelID string) *moderation.Session

// Manager owns active relay sessions and dispatches signaling envelopes to
// them.
type Manager struct {
	sig     Signaler
	cfg     Config
	factory SessionFactory

	mu       sync.RWMutex
	sessions map[string]*Session

	incomingMu sync.RWMutex
	incoming   []func(*IncomingBroadcast)

	done chan struct{}
}

// New creates a Manager attached to sig and starts listening for signaling
// messages immediately.
func New(sig Signaler, cfg Config, factory SessionFactory) *Manager {
	m := &Manager{
		sig:      sig,
		cfg:      cfg,
		factory:  factory,
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}
	go m.dispatchLoop()
	return m
}

// OnIncoming registers a callback fired for each incoming broadcast request.
func (m *Manager) OnIncoming(fn func(*IncomingBroadcast)) {
	m.incomingMu.Lock()
	m.incoming = append(m.incoming, fn)
	m.incomingMu.Unlock()
}

// Accept creates a new relay Session bound to channelID (bind(session_id)).
func (m *Manager) Accept(channelID, remotePeer string) *Session {
	core := m.factory(channelID)
	sess := NewSession(channelID, remotePeer, m.sig, m.cfg, core)
	m.mu.Lock()
	m.sessions[channelID] = sess
	m.mu.Unlock()
	log.Printf("RELAY: accepted %s from %s", channelID, remotePeer)
	return sess
}

// GetSession returns the active session for channelID, if any.
func (m *Manager) GetSession(channelID string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[channelID]
	m.mu.RUnlock()
	return s, ok
}

// ChannelIDs returns the currently active channel ids, for debug/status
// reporting (GET /sessions, §6).
func (m *Manager) ChannelIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// GetCore returns the moderation core backing channelID's session, if any
// (implements control.CoreRegistry).
func (m *Manager) GetCore(channelID string) (*moderation.Session, bool) {
	s, ok := m.GetSession(channelID)
	if !ok {
		return nil, false
	}
	return s.Core(), true
}

// Unbind implements unbind(session_id) (§6): tears down the session and
// removes it from the registry.
func (m *Manager) Unbind(channelID string) {
	m.mu.Lock()
	sess, ok := m.sessions[channelID]
	delete(m.sessions, channelID)
	m.mu.Unlock()
	if ok {
		sess.Hangup()
	}
}

// Close shuts down the manager and hangs up all active sessions.
func (m *Manager) Close() {
	select {
	case <-m.done:
		return
	default:
		close(m.done)
	}

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Hangup()
	}
}

func (m *Manager) removeSession(channelID string) {
	m.mu.Lock()
	delete(m.sessions, channelID)
	m.mu.Unlock()
}

// dispatchLoop reads signaling envelopes from the Signaler and routes them.
func (m *Manager) dispatchLoop() {
	ch, cancel := m.sig.Subscribe()
	defer cancel()

	for {
		select {
		case <-m.done:
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			m.dispatch(env)
		}
	}
}

// dispatch routes one signaling envelope to its session, or fires
// OnIncoming handlers for a new broadcast-request message.
func (m *Manager) dispatch(env *Envelope) {
	payload, ok := env.Payload.(map[string]any)
	if !ok {
		return
	}
	msgType, _ := payload["type"].(string)

	if msgType == "call-request" {
		ib := &IncomingBroadcast{
			ChannelID: env.Channel,
			FromPeer:  env.From,
			Accept: func() (*Session, error) {
				return m.Accept(env.Channel, env.From), nil
			},
			Reject: func() {
				_ = m.sig.Send(env.Channel, map[string]any{"type": "call-hangup"})
				m.removeSession(env.Channel)
			},
		}
		m.incomingMu.RLock()
		handlers := make([]func(*IncomingBroadcast), len(m.incoming))
		copy(handlers, m.incoming)
		m.incomingMu.RUnlock()
		for _, fn := range handlers {
			fn(ib)
		}
		return
	}

	m.mu.RLock()
	sess, ok := m.sessions[env.Channel]
	m.mu.RUnlock()
	if ok {
		sess.HandleSignal(msgType, payload)
	}
}
