package relay

import "testing"

func TestPassthroughVideoCodecRoundTrip(t *testing.T) {
	codec := PassthroughVideoCodec{Width: 4, Height: 4}
	sample := make([]byte, 4*4*4)
	for i := range sample {
		sample[i] = byte(i)
	}

	img, err := codec.Decode(sample)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	out, err := codec.Encode(img)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(out) != len(sample) {
		t.Fatalf("round-tripped sample length = %d, want %d", len(out), len(sample))
	}
}

func TestPassthroughVideoCodecDecodeFallsBackOnSizeMismatch(t *testing.T) {
	codec := PassthroughVideoCodec{Width: 4, Height: 4}
	img, err := codec.Decode([]byte{1, 2, 3}) // wrong size
	if err != nil {
		t.Fatalf("Decode() error = %v, want nil (degrade, never fail)", err)
	}
	if img == nil {
		t.Fatal("Decode() should return a fallback frame, not nil, on a size mismatch")
	}
}

func TestPassthroughAudioCodecRoundTrip(t *testing.T) {
	codec := PassthroughAudioCodec{SampleRate: 48000, Channels: 1}
	pcm := []int16{0, 100, -100, 32767, -32768}

	encoded, err := codec.Encode(pcm, 48000, 1)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	decoded, sr, ch, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if sr != 48000 || ch != 1 {
		t.Fatalf("Decode() sampleRate/channels = %d/%d, want 48000/1", sr, ch)
	}
	if len(decoded) != len(pcm) {
		t.Fatalf("decoded sample count = %d, want %d", len(decoded), len(pcm))
	}
	for i := range pcm {
		if decoded[i] != pcm[i] {
			t.Fatalf("sample %d = %d, want %d", i, decoded[i], pcm[i])
		}
	}
}

func TestPassthroughAudioCodecDefaultsWhenUnset(t *testing.T) {
	codec := PassthroughAudioCodec{}
	_, sr, ch, err := codec.Decode([]byte{0, 0})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if sr != 48000 || ch != 2 {
		t.Fatalf("defaults = %d/%d, want 48000/2", sr, ch)
	}
}
