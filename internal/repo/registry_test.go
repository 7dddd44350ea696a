package repo

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestRegistry(spec BufferSpec) *Registry {
	return NewRegistry(zap.NewNop(), spec)
}

func TestRebuildReplacesKeySet(t *testing.T) {
	r := newTestRegistry(spec3)

	r.Rebuild([]string{"a", "b"})
	r.PushVideo("a", vf(1))

	r.Rebuild([]string{"b", "c", "d"})

	names := r.Names()
	want := []string{"b", "c", "d"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}

	// "a" and its frames are gone; "b" came back empty.
	if _, ok := r.Snapshot("a"); ok {
		t.Error("snapshot of dropped source succeeded")
	}
	if snap, _ := r.Snapshot("b"); len(snap.Video) != 0 {
		t.Errorf("rebuilt buffer not empty: %d frames", len(snap.Video))
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	r := newTestRegistry(spec3)

	r.Ensure("cam")
	r.PushVideo("cam", vf(1))
	r.Ensure("cam") // must not reset the existing buffer

	snap, ok := r.Snapshot("cam")
	if !ok || len(snap.Video) != 1 {
		t.Fatalf("ensure reset an existing buffer: ok=%v frames=%d", ok, len(snap.Video))
	}
}

func TestPushCreatesBufferOnFirstContact(t *testing.T) {
	r := newTestRegistry(spec3)

	r.PushVideo("late", vf(1))
	snap, ok := r.Snapshot("late")
	if !ok || len(snap.Video) != 1 {
		t.Fatalf("late-discovered source not buffered: ok=%v frames=%d", ok, len(snap.Video))
	}
}

func TestSnapshotMissingSourceIsNotError(t *testing.T) {
	r := newTestRegistry(spec3)
	if _, ok := r.Snapshot("ghost"); ok {
		t.Fatal("snapshot of unknown source reported ok")
	}
}

func TestClearAll(t *testing.T) {
	r := newTestRegistry(spec3)
	r.Rebuild([]string{"a", "b"})
	r.PushVideo("a", vf(1))

	r.ClearAll()
	if r.Len() != 0 {
		t.Fatalf("len = %d after clear, want 0", r.Len())
	}
}

func TestSummaries(t *testing.T) {
	r := newTestRegistry(spec3)
	r.Rebuild([]string{"b", "a"})
	r.PushVideo("a", vf(1))
	r.PushVideo("a", vf(2))
	r.PushAudio("a", af(1))

	sums := r.Summaries()
	if len(sums) != 2 || sums[0].Source != "a" || sums[1].Source != "b" {
		t.Fatalf("summaries = %+v, want sorted [a b]", sums)
	}
	if sums[0].VideoFrames != 2 || sums[0].AudioFrames != 1 {
		t.Errorf("occupancy for a = %d/%d, want 2/1", sums[0].VideoFrames, sums[0].AudioFrames)
	}
	if sums[0].VideoCapacity != 3 {
		t.Errorf("video capacity = %d, want 3", sums[0].VideoCapacity)
	}
}

// A producer pushing concurrently with snapshot readers: the final buffer
// state reflects only producer activity, and snapshots never observe a
// half-updated sequence.
func TestConcurrentPushAndSnapshot(t *testing.T) {
	r := newTestRegistry(BufferSpec{Retention: time.Hour, VideoFPS: 1, AudioRate: 1}) // capacity >> pushes

	const pushes = 500

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 1; i <= pushes; i++ {
			r.PushVideo("a", vf(uint64(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			snap, ok := r.Snapshot("a")
			if !ok {
				continue
			}
			// Within a snapshot, order equals push order.
			for j := 1; j < len(snap.Video); j++ {
				if snap.Video[j].Timestamp <= snap.Video[j-1].Timestamp {
					t.Errorf("snapshot out of order at %d: %d <= %d", j, snap.Video[j].Timestamp, snap.Video[j-1].Timestamp)
					return
				}
			}
		}
	}()

	wg.Wait()

	snap, _ := r.Snapshot("a")
	if len(snap.Video) != pushes {
		t.Fatalf("final buffer has %d frames, want %d", len(snap.Video), pushes)
	}
}
