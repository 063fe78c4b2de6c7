package relay

// Signaler is the only surface the relay package needs from the external
// signaling layer (SPEC_FULL.md §1: "peer-connection signaling and SDP
// negotiation" is an external collaborator — the relay only needs a place
// to send and receive signaling envelopes, not a specific transport).
type Signaler interface {
	RegisterChannel(channelID, peerID string)
	Send(channelID string, payload any) error
	Subscribe() (ch chan *Envelope, cancel func())
}

// Envelope is a signaling message routed by channel ID, mirroring the shape
// consumed by internal/call's Signaler implementations.
type Envelope struct {
	Channel string `json:"channel"`
	From    string `json:"from"`
	Payload any    `json:"payload"`
}

// IncomingBroadcast describes a broadcaster-initiated session the control
// surface (C8) has not yet decided to bind.
type IncomingBroadcast struct {
	ChannelID string
	FromPeer  string
	Accept    func() (*Session, error)
	Reject    func()
}
