package audio

import "testing"

func ringFrame(id byte) Frame {
	return Frame{Data: []byte{id, 0}, SampleRate: VoiceSampleRate, Channels: 2}
}

func TestFrameRingOrder(t *testing.T) {
	t.Parallel()

	r := NewFrameRing(3)
	r.Push(ringFrame(1))
	r.Push(ringFrame(2))

	got := r.Snapshot()
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	if got[0].Data[0] != 1 || got[1].Data[0] != 2 {
		t.Errorf("unexpected order: %v, %v", got[0].Data[0], got[1].Data[0])
	}
}

func TestFrameRingOverwritesOldest(t *testing.T) {
	t.Parallel()

	r := NewFrameRing(3)
	for id := byte(1); id <= 5; id++ {
		r.Push(ringFrame(id))
	}

	got := r.Snapshot()
	if len(got) != 3 {
		t.Fatalf("got %d frames, want 3", len(got))
	}
	want := []byte{3, 4, 5}
	for i := range got {
		if got[i].Data[0] != want[i] {
			t.Errorf("frame %d: got %d, want %d", i, got[i].Data[0], want[i])
		}
	}
}

func TestFrameRingClear(t *testing.T) {
	t.Parallel()

	r := NewFrameRing(2)
	r.Push(ringFrame(1))
	r.Push(ringFrame(2))
	r.Push(ringFrame(3))
	r.Clear()

	if r.Len() != 0 {
		t.Fatalf("len after clear: got %d, want 0", r.Len())
	}
	r.Push(ringFrame(9))
	got := r.Snapshot()
	if len(got) != 1 || got[0].Data[0] != 9 {
		t.Errorf("push after clear: got %v", got)
	}
}
