package moderation

import (
	"context"
	"testing"
	"time"
)

func TestSessionStartIsIdempotent(t *testing.T) {
	s := NewSession("chan-1", NullDetector{}, NullTranscriber{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	s.Start(ctx) // must not panic or spawn a second worker pair

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() = %v, want nil", err)
	}
}

func TestSessionDropsFramesBeforeStart(t *testing.T) {
	s := NewSession("chan-2", NullDetector{}, NullTranscriber{}, nil)
	// PushVideoFrame before Start should not block or panic.
	s.PushVideoFrame(VideoFrame{PTS: 0})

	out := s.PullVideoFrame(time.Now())
	if out.Image != nil {
		t.Fatal("a frame pushed before Start() should have been dropped, not forwarded")
	}
}

func TestSessionUpdatePolicyStampsTimestamp(t *testing.T) {
	s := NewSession("chan-3", NullDetector{}, NullTranscriber{}, nil)
	p := EmptyPolicy()
	p.UpdatedAt = time.Time{}
	s.UpdatePolicy(p)

	if p.UpdatedAt.IsZero() {
		t.Fatal("UpdatePolicy should stamp UpdatedAt")
	}
}

func TestSessionStopWithoutStartIsNoop(t *testing.T) {
	s := NewSession("chan-4", NullDetector{}, NullTranscriber{}, nil)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() on a never-started session should be a no-op, got %v", err)
	}
}

func TestSessionAttachDetachSink(t *testing.T) {
	s := NewSession("chan-5", NullDetector{}, NullTranscriber{}, nil)
	var got int
	s.AttachSink(FuncSink(func(Event) { got++ }))
	s.DetachSink()
	// No assertion beyond "does not panic" — the sink wiring itself is
	// exercised end-to-end via the video/audio worker tests.
	_ = got
}
