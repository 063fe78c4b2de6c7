package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// joinTimeout bounds how long Stop waits for the worker goroutines to exit
// after their context is cancelled (§5 "Workers must join within 2 s").
const joinTimeout = 2 * time.Second

// Session is the per-stream instantiation of the core (§2): one Session owns
// C1's ingress queue, C2/C3's video worker, C4's pacer, C5's audio worker,
// and C6's policy view + event sink, coordinated with
// golang.org/x/sync/errgroup the way cmd/prism wires its per-connection
// worker group.
type Session struct {
	ID string

	policy *PolicyView
	seen   *SeenIDs
	sink   *SwitchableSink

	ingress *Queue[VideoFrame]
	egress  *Queue[VideoFrame]

	video *VideoWorker
	audio *AudioWorker
	pacer *Pacer

	mu       sync.Mutex
	cancel   context.CancelFunc
	group    *errgroup.Group
	groupCtx context.Context
	running  bool
}

// NewSession implements bind(session_id) (§6): it initializes the policy to
// an empty snapshot, creates a fresh Seen-IDs table, and wires C1-C6 against
// each other. detector/transcriber may be NullDetector/NullTranscriber when
// no model is configured (§7).
func NewSession(id string, detector Detector, transcriber Transcriber, lexicon *Lexicon) *Session {
	policy := NewPolicyView()
	policy.Set(EmptyPolicy())

	seen := NewSeenIDs()
	sink := NewSwitchableSink()

	ingress := NewIngressQueue()
	egress := NewEgressQueue()

	video := NewVideoWorker(ingress, egress, detector, policy, seen, sink)
	audio := NewAudioWorker(transcriber, lexicon, policy, sink)
	pacer := NewPacer(egress)

	return &Session{
		ID:      id,
		policy:  policy,
		seen:    seen,
		sink:    sink,
		ingress: ingress,
		egress:  egress,
		video:   video,
		audio:   audio,
		pacer:   pacer,
	}
}

// Start launches the video and audio worker goroutines under ctx. Calling it
// again while the workers are running is a no-op.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	groupCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(groupCtx)
	group.Go(func() error { return s.video.Run(groupCtx) })
	group.Go(func() error { return s.audio.Run(groupCtx) })

	s.cancel = cancel
	s.group = group
	s.groupCtx = groupCtx
	s.running = true
}

// PushVideoFrame is C1: enqueue a decoded frame without blocking the source
// (§4.1). Frames arriving before Start has been called are dropped.
func (s *Session) PushVideoFrame(frame VideoFrame) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return
	}
	Ingress(s.ingress, frame)
}

// PushAudioSamples is C5's ingestion path: windowing happens inside
// AudioWorker.PushSamples.
func (s *Session) PushAudioSamples(samples []int16, channels, sampleRate int, now time.Time) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return
	}
	s.audio.PushSamples(samples, channels, sampleRate, now)
}

// PullVideoFrame is C4's downstream-facing call (§4.4): release the next
// processed frame on the original presentation timeline.
func (s *Session) PullVideoFrame(now time.Time) VideoFrame {
	return s.pacer.Pull(now)
}

// UpdatePolicy implements update_policy(session_id, snapshot) (§6): it takes
// effect on the next frame/window, since workers read the snapshot
// opportunistically via the atomic pointer.
func (s *Session) UpdatePolicy(p *Policy) {
	p.UpdatedAt = time.Now()
	s.policy.Set(p)
}

// AttachSink binds the session's real side-channel transport (C6 bind
// lifecycle, §9).
func (s *Session) AttachSink(sink EventSink) { s.sink.Attach(sink) }

// DetachSink reverts the session to discarding events, e.g. when the side
// channel closes mid-stream (§4.6).
func (s *Session) DetachSink() { s.sink.Detach() }

// SessionStats is a point-in-time snapshot of a session's queue depths,
// detection stride, and video-event count (distinct class/track pairs in the
// Seen-IDs table; voice events are not counted), for debug/status reporting
// (GET /sessions, §6).
type SessionStats struct {
	IngressLen       int     `json:"ingress_len"`
	IngressOverflows uint64  `json:"ingress_overflows"`
	EgressLen        int     `json:"egress_len"`
	EgressOverflows  uint64  `json:"egress_overflows"`
	DetectionStride  int     `json:"detection_stride"`
	MotionEMA        float64 `json:"motion_ema"`
	EventCount       int     `json:"event_count"`
}

// Stats reports the session's current queue depths, detection stride, and
// number of video events emitted so far, grounded on call.go's AllSessions()/Status()
// debug pattern.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		IngressLen:       s.ingress.Len(),
		IngressOverflows: s.ingress.Overflows(),
		EgressLen:        s.egress.Len(),
		EgressOverflows:  s.egress.Overflows(),
		DetectionStride:  s.video.Stride(),
		MotionEMA:        s.video.EMA(),
		EventCount:       s.seen.Count(),
	}
}

// Stop implements unbind(session_id) (§6): it signals both workers to drain
// their 1-second timeout and exit, then waits up to joinTimeout for them to
// join (§5). Returns an error only if the workers failed to join in time.
func (s *Session) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	group := s.group
	s.running = false
	s.mu.Unlock()

	cancel()

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(joinTimeout):
		return fmt.Errorf("session %s: workers did not join within %s", s.ID, joinTimeout)
	}
}
