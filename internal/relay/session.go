package relay

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/petervdpas/modrelay/internal/moderation"
)

// Session bridges one broadcaster's WebRTC connection and one downstream
// ingest WebRTC connection through a moderation.Session (C7, SPEC_FULL.md
// §2). Its PeerConnection lifecycle — codec negotiation, ICE buffering,
// signal dispatch — follows internal/call/session.go; what differs is what
// happens to media once it arrives: instead of being drained and logged, it
// is decoded, pushed into the moderation core, pulled back out processed,
// and re-encoded onto the egress PeerConnection.
type Session struct {
	channelID  string
	remotePeer string
	sig        Signaler

	videoDecoder VideoDecoder
	videoEncoder VideoEncoder
	audioDecoder AudioDecoder
	audioEncoder AudioEncoder

	core *moderation.Session

	mu          sync.Mutex
	inboundPC   *webrtc.PeerConnection
	outboundPC  *webrtc.PeerConnection
	hung        bool
	hangupCh    chan struct{}

	remoteDescSet bool
	pendingICE    []webrtc.ICECandidateInit

	egressVideoTrack *webrtc.TrackLocalStaticSample
	egressAudioTrack *webrtc.TrackLocalStaticSample

	pts int64
}

// Config bundles the codec bindings a Session needs; see codec.go for why
// these are injected rather than vendored.
type Config struct {
	VideoDecoder VideoDecoder
	VideoEncoder VideoEncoder
	AudioDecoder AudioDecoder
	AudioEncoder AudioEncoder
}

func (c *Config) defaults() {
	if c.VideoDecoder == nil {
		c.VideoDecoder = PassthroughVideoCodec{}
	}
	if c.VideoEncoder == nil {
		c.VideoEncoder = PassthroughVideoCodec{}
	}
	if c.AudioDecoder == nil {
		c.AudioDecoder = PassthroughAudioCodec{}
	}
	if c.AudioEncoder == nil {
		c.AudioEncoder = PassthroughAudioCodec{}
	}
}

// NewSession implements bind(session_id) at the relay layer: it starts the
// moderation core built for this channel and begins negotiating both
// PeerConnections in the background.
func NewSession(channelID, remotePeer string, sig Signaler, cfg Config, core *moderation.Session) *Session {
	cfg.defaults()
	s := &Session{
		channelID:    channelID,
		remotePeer:   remotePeer,
		sig:          sig,
		videoDecoder: cfg.VideoDecoder,
		videoEncoder: cfg.VideoEncoder,
		audioDecoder: cfg.AudioDecoder,
		audioEncoder: cfg.AudioEncoder,
		core:         core,
		hangupCh:     make(chan struct{}),
	}
	core.Start(context.Background()) // stopped again by Hangup
	go s.initInboundPC()
	go s.initOutboundPC()
	return s
}

// HangupCh is closed when the session ends.
func (s *Session) HangupCh() <-chan struct{} { return s.hangupCh }

// Core returns the moderation session backing this relay session, for
// policy updates and event-sink attachment from the control surface (C8).
func (s *Session) Core() *moderation.Session { return s.core }

// Hangup tears down both PeerConnections and stops the moderation core.
// Idempotent.
func (s *Session) Hangup() {
	s.mu.Lock()
	if s.hung {
		s.mu.Unlock()
		return
	}
	s.hung = true
	close(s.hangupCh)
	inPC, outPC := s.inboundPC, s.outboundPC
	s.inboundPC, s.outboundPC = nil, nil
	s.mu.Unlock()

	if err := s.core.Stop(); err != nil {
		log.Printf("RELAY [%s]: moderation session stop: %v", s.channelID, err)
	}
	if inPC != nil {
		_ = inPC.Close()
	}
	if outPC != nil {
		_ = outPC.Close()
	}
	_ = s.sig.Send(s.channelID, map[string]any{"type": "call-hangup"})
	log.Printf("RELAY [%s]: session ended", s.channelID)
}

func newAPI() (*webrtc.API, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, err
	}
	return webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	), nil
}

// initInboundPC accepts media from the broadcaster: recvonly transceivers,
// OnTrack decodes and feeds the moderation core's ingress (§4.1/§4.5).
func (s *Session) initInboundPC() {
	api, err := newAPI()
	if err != nil {
		log.Printf("RELAY [%s]: inbound API init error: %v", s.channelID, err)
		return
	}
	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	})
	if err != nil {
		log.Printf("RELAY [%s]: inbound PeerConnection create error: %v", s.channelID, err)
		return
	}

	s.mu.Lock()
	s.inboundPC = pc
	s.mu.Unlock()

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		log.Printf("RELAY [%s]: AddTransceiver(video) error: %v", s.channelID, err)
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		log.Printf("RELAY [%s]: AddTransceiver(audio) error: %v", s.channelID, err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		s.sendICECandidate(c)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Printf("RELAY [%s]: inbound PC state -> %s", s.channelID, state)
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateDisconnected {
			s.Hangup()
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Printf("RELAY [%s]: inbound track — kind=%s codec=%s", s.channelID, track.Kind(), track.Codec().MimeType)
		switch track.Kind() {
		case webrtc.RTPCodecTypeVideo:
			go s.drainVideoTrack(track)
		case webrtc.RTPCodecTypeAudio:
			go s.drainAudioTrack(track)
		}
	})
}

// initOutboundPC publishes processed media toward the downstream ingest:
// sendonly tracks fed by the egress pacer (C4).
func (s *Session) initOutboundPC() {
	api, err := newAPI()
	if err != nil {
		log.Printf("RELAY [%s]: outbound API init error: %v", s.channelID, err)
		return
	}
	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	})
	if err != nil {
		log.Printf("RELAY [%s]: outbound PeerConnection create error: %v", s.channelID, err)
		return
	}

	videoTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", s.channelID,
	)
	if err != nil {
		log.Printf("RELAY [%s]: egress video track error: %v", s.channelID, err)
		return
	}
	audioTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", s.channelID,
	)
	if err != nil {
		log.Printf("RELAY [%s]: egress audio track error: %v", s.channelID, err)
		return
	}
	if _, err := pc.AddTrack(videoTrack); err != nil {
		log.Printf("RELAY [%s]: AddTrack(video) error: %v", s.channelID, err)
	}
	if _, err := pc.AddTrack(audioTrack); err != nil {
		log.Printf("RELAY [%s]: AddTrack(audio) error: %v", s.channelID, err)
	}

	s.mu.Lock()
	s.outboundPC = pc
	s.egressVideoTrack = videoTrack
	s.egressAudioTrack = audioTrack
	s.mu.Unlock()

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Printf("RELAY [%s]: outbound PC state -> %s", s.channelID, state)
	})

	go s.pumpEgress()
}

// drainVideoTrack depacketizes inbound RTP, decodes each sample, and hands
// the resulting frame to the moderation core's ingress (C1).
func (s *Session) drainVideoTrack(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		img, err := s.videoDecoder.Decode(pkt.Payload)
		if err != nil {
			continue // §7: transient per-frame failure, skip
		}
		s.pts++
		s.core.PushVideoFrame(moderation.VideoFrame{
			Image:    img,
			PTS:      s.pts,
			TimeBase: moderation.TimeBase{Num: 1, Den: 30},
		})
	}
}

// drainAudioTrack depacketizes inbound RTP, decodes each sample to PCM, and
// feeds the moderation core's audio windowing (C5). Audio is never redacted
// (§1: only video regions are redacted), so the decoded samples are also
// re-encoded and forwarded directly onto the egress audio track alongside
// analysis — the core only observes audio, it does not gate it.
func (s *Session) drainAudioTrack(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		pcm, sampleRate, channels, err := s.audioDecoder.Decode(pkt.Payload)
		if err != nil {
			continue
		}
		s.core.PushAudioSamples(pcm, channels, sampleRate, time.Now())

		sample, err := s.audioEncoder.Encode(pcm, sampleRate, channels)
		if err != nil {
			continue
		}
		s.mu.Lock()
		egressTrack := s.egressAudioTrack
		s.mu.Unlock()
		if egressTrack == nil {
			continue
		}
		if err := egressTrack.WriteSample(media.Sample{Data: sample, Duration: 20 * time.Millisecond}); err != nil {
			log.Printf("RELAY [%s]: egress audio write error: %v", s.channelID, err)
		}
	}
}

// pumpEgress pulls processed frames from the moderation core's pacer (C4)
// at the rate cap and writes them to the egress video track.
func (s *Session) pumpEgress() {
	ticker := time.NewTicker(time.Second / 30)
	defer ticker.Stop()
	for {
		select {
		case <-s.hangupCh:
			return
		case <-ticker.C:
			frame := s.core.PullVideoFrame(time.Now())
			if frame.Image == nil {
				continue
			}
			sample, err := s.videoEncoder.Encode(frame.Image)
			if err != nil {
				continue
			}
			s.mu.Lock()
			track := s.egressVideoTrack
			s.mu.Unlock()
			if track == nil {
				continue
			}
			if err := track.WriteSample(media.Sample{Data: sample, Duration: time.Second / 30}); err != nil {
				log.Printf("RELAY [%s]: egress write error: %v", s.channelID, err)
			}
		}
	}
}

func (s *Session) sendICECandidate(c *webrtc.ICECandidate) {
	init := c.ToJSON()
	sdpMid := ""
	if init.SDPMid != nil {
		sdpMid = *init.SDPMid
	}
	idx := uint16(0)
	if init.SDPMLineIndex != nil {
		idx = *init.SDPMLineIndex
	}
	_ = s.sig.Send(s.channelID, map[string]any{
		"type": "ice-candidate",
		"candidate": map[string]any{
			"candidate":     init.Candidate,
			"sdpMid":        sdpMid,
			"sdpMLineIndex": idx,
		},
	})
}

// HandleSignal processes one inbound signaling message (§1: signaling
// itself is an external collaborator; this is the narrow seam the relay
// needs to drive ICE/SDP on the inbound PC).
func (s *Session) HandleSignal(msgType string, payload map[string]any) {
	s.mu.Lock()
	pc := s.inboundPC
	s.mu.Unlock()
	if pc == nil {
		return
	}

	switch msgType {
	case "call-offer":
		sdp, _ := payload["sdp"].(string)
		if sdp == "" {
			return
		}
		if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
			log.Printf("RELAY [%s]: SetRemoteDescription(offer) error: %v", s.channelID, err)
			return
		}
		s.flushPendingICE(pc)
		answer, err := pc.CreateAnswer(nil)
		if err != nil {
			log.Printf("RELAY [%s]: CreateAnswer error: %v", s.channelID, err)
			return
		}
		if err := pc.SetLocalDescription(answer); err != nil {
			log.Printf("RELAY [%s]: SetLocalDescription(answer) error: %v", s.channelID, err)
			return
		}
		_ = s.sig.Send(s.channelID, map[string]any{"type": "call-answer", "sdp": answer.SDP})

	case "ice-candidate":
		raw, _ := payload["candidate"].(map[string]any)
		if raw == nil {
			return
		}
		candidate, _ := raw["candidate"].(string)
		sdpMid, _ := raw["sdpMid"].(string)
		idxFloat, _ := raw["sdpMLineIndex"].(float64)
		idx := uint16(idxFloat)
		s.addICECandidate(webrtc.ICECandidateInit{Candidate: candidate, SDPMid: &sdpMid, SDPMLineIndex: &idx})

	case "call-hangup":
		s.Hangup()

	default:
		log.Printf("RELAY [%s]: unknown signal %q from %s", s.channelID, msgType, s.remotePeer)
	}
}

func (s *Session) flushPendingICE(pc *webrtc.PeerConnection) {
	s.mu.Lock()
	s.remoteDescSet = true
	pending := s.pendingICE
	s.pendingICE = nil
	s.mu.Unlock()
	for _, c := range pending {
		if err := pc.AddICECandidate(c); err != nil {
			log.Printf("RELAY [%s]: AddICECandidate (buffered) error: %v", s.channelID, err)
		}
	}
}

func (s *Session) addICECandidate(init webrtc.ICECandidateInit) {
	s.mu.Lock()
	pc := s.inboundPC
	ready := s.remoteDescSet
	if !ready {
		s.pendingICE = append(s.pendingICE, init)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	if pc == nil {
		return
	}
	if err := pc.AddICECandidate(init); err != nil {
		log.Printf("RELAY [%s]: AddICECandidate error: %v", s.channelID, err)
	}
}
