package moderation

import (
	"sync"
	"time"
)

const (
	egressRateCapInterval = time.Second / 30
	pacingSlack           = 500 * time.Microsecond
)

// Pacer is C4: it exposes a pull call returning the next frame to forward
// downstream, rate-capped and paced by the original PTS timeline (§4.4). It
// holds no WebRTC dependency — it operates purely on VideoFrame values, so
// the egress side can be driven by a real sink (relay.Session) or a test
// harness identically.
type Pacer struct {
	egress *Queue[VideoFrame]

	mu sync.Mutex

	started          bool
	playoutStartPTS  int64
	playoutStartTime time.Time

	lastReleased   VideoFrame
	hasReleased    bool
	lastReleaseAt  time.Time

	pending    *VideoFrame
	pendingAt  time.Time
	hasPending bool
}

// NewPacer creates a Pacer pulling from the given egress queue.
func NewPacer(egress *Queue[VideoFrame]) *Pacer {
	return &Pacer{egress: egress}
}

// Pull returns the next frame to forward downstream (§4.4). It never
// blocks longer than a non-blocking queue check — the rate cap and
// starvation fallback both resolve immediately from cached state.
func (p *Pacer) Pull(now time.Time) VideoFrame {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Rate cap: never release more than once per 1/30s.
	if p.hasReleased && now.Sub(p.lastReleaseAt) < egressRateCapInterval {
		return p.lastReleased
	}

	// A previously stashed pending frame may now be due.
	if p.hasPending && !now.Before(p.pendingAt) {
		f := *p.pending
		p.hasPending = false
		p.pending = nil
		p.release(f, now)
		return f
	}
	if p.hasPending {
		// Still not due; behave as starvation until it is.
		return p.starvationFallback(now)
	}

	frame, ok := p.egress.TryPop()
	if !ok {
		return p.starvationFallback(now)
	}

	if !p.started {
		p.playoutStartPTS = frame.PTS
		p.playoutStartTime = now
		p.started = true
	}

	target := p.targetTime(frame)
	if now.Before(target.Add(-pacingSlack)) {
		p.pending = &frame
		p.pendingAt = target
		p.hasPending = true
		return p.starvationFallback(now)
	}

	p.release(frame, now)
	return frame
}

func (p *Pacer) targetTime(frame VideoFrame) time.Time {
	elapsedTicks := frame.PTS - p.playoutStartPTS
	elapsedSec := frame.TimeBase.Seconds(elapsedTicks)
	return p.playoutStartTime.Add(time.Duration(elapsedSec * float64(time.Second)))
}

func (p *Pacer) release(frame VideoFrame, now time.Time) {
	p.lastReleased = frame
	p.hasReleased = true
	p.lastReleaseAt = now
}

// starvationFallback returns the last released frame (§4.4.3). Callers that
// have a newly-arrived source frame's pts/time_base may instead call
// PullWithFallbackPTS so the downstream clock keeps advancing.
func (p *Pacer) starvationFallback(now time.Time) VideoFrame {
	if p.hasReleased {
		return p.lastReleased
	}
	return VideoFrame{}
}

// PullWithFallbackPTS behaves like Pull, but on starvation clones the last
// released frame carrying fallbackPTS/fallbackTB instead of returning it
// unchanged (§4.4.3: "a clone carrying the newly arriving source frame's
// pts/time_base so the downstream clock advances").
func (p *Pacer) PullWithFallbackPTS(now time.Time, fallbackPTS int64, fallbackTB TimeBase) VideoFrame {
	p.mu.Lock()
	hadPendingOrBuffered := p.hasPending || p.egress.Len() > 0
	p.mu.Unlock()

	frame := p.Pull(now)
	if hadPendingOrBuffered {
		return frame
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasReleased {
		return frame
	}
	clone := p.lastReleased.Clone(fallbackPTS, fallbackTB)
	return clone
}
