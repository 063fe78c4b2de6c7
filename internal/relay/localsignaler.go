package relay

import "sync"

// LocalSignaler is an in-process Signaler for local development and tests:
// it fans Send calls out to every active Subscribe channel. Real deployments
// plug in a Signaler backed by an actual signaling transport (§1: "peer
// connection signaling and SDP negotiation" is an external collaborator);
// this one exists so the service is runnable standalone.
type LocalSignaler struct {
	mu   sync.Mutex
	subs map[int]chan *Envelope
	next int
}

// NewLocalSignaler creates an empty in-process signaler.
func NewLocalSignaler() *LocalSignaler {
	return &LocalSignaler{subs: make(map[int]chan *Envelope)}
}

// RegisterChannel is a no-op for the local signaler — there is no routing
// table to populate since Send already fans out to every subscriber.
func (l *LocalSignaler) RegisterChannel(channelID, peerID string) {}

// Send delivers payload to every active subscriber as an Envelope.
func (l *LocalSignaler) Send(channelID string, payload any) error {
	env := &Envelope{Channel: channelID, Payload: payload}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- env:
		default:
		}
	}
	return nil
}

// Subscribe registers a new receiver channel; cancel removes and closes it.
func (l *LocalSignaler) Subscribe() (chan *Envelope, func()) {
	l.mu.Lock()
	id := l.next
	l.next++
	ch := make(chan *Envelope, 32)
	l.subs[id] = ch
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}
