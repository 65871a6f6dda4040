package brew

import (
	"testing"

	"pgregory.net/rapid"
)

// TestOvershootStaysBounded checks that no sequence of learned readings
// can push the correction outside its safe range, and that rejected
// readings never touch the memory.
func TestOvershootStaysBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := Memory{
			Target:    rapid.Float64Range(1, 100).Draw(t, "target"),
			Overshoot: rapid.Float64Range(-10, 10).Draw(t, "overshoot"),
		}
		readings := rapid.SliceOfN(rapid.Float64Range(0, 200), 0, 20).Draw(t, "readings")

		for _, obs := range readings {
			before := m.Overshoot
			err := m.LearnOvershoot(obs)
			candidate := before + (obs - m.Target)
			if candidate > 10 || candidate < -10 {
				if err == nil {
					t.Fatalf("reading %.2f should have been rejected (candidate %.2f)", obs, candidate)
				}
				if m.Overshoot != before {
					t.Fatalf("rejected reading changed overshoot: %.2f -> %.2f", before, m.Overshoot)
				}
			} else {
				if err != nil {
					t.Fatalf("reading %.2f rejected unexpectedly: %v", obs, err)
				}
				if m.Overshoot != candidate {
					t.Fatalf("expected overshoot %.2f, got %.2f", candidate, m.Overshoot)
				}
			}
			if m.Overshoot > 10 || m.Overshoot < -10 {
				t.Fatalf("overshoot escaped bounds: %.2f", m.Overshoot)
			}
		}
	})
}

// TestRingFullRotationIsIdentity checks that rotating through the whole
// ring lands back on the same sequence with nothing lost or reordered.
func TestRingFullRotationIsIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "n")
		mems := make([]Memory, n)
		for i := range mems {
			mems[i] = Memory{
				Name:   string(rune('A' + i)),
				Target: rapid.Float64Range(1, 100).Draw(t, "target"),
			}
		}
		r := NewRing(mems)
		before := r.Snapshot()

		for i := 0; i < n; i++ {
			r.RotateForward()
		}

		after := r.Snapshot()
		for i := range before {
			if before[i] != after[i] {
				t.Fatalf("memory %d changed after full rotation: %+v vs %+v", i, before[i], after[i])
			}
		}
	})
}

// TestRingSnapshotHeadMatchesCurrent checks the persisted order always
// leads with the selected memory, whatever the rotation count.
func TestRingSnapshotHeadMatchesCurrent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "n")
		mems := make([]Memory, n)
		for i := range mems {
			mems[i] = Memory{Name: string(rune('A' + i))}
		}
		r := NewRing(mems)

		rot := rapid.IntRange(0, 3*n).Draw(t, "rotations")
		for i := 0; i < rot; i++ {
			r.RotateForward()
		}

		snap := r.Snapshot()
		if snap[0] != *r.Current() {
			t.Fatalf("snapshot head %+v != current %+v", snap[0], *r.Current())
		}
	})
}

// TestFlowBufferKeepsNewest checks the buffer always holds the most
// recent samples in arrival order and never exceeds its capacity.
func TestFlowBufferKeepsNewest(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 32).Draw(t, "capacity")
		samples := rapid.SliceOfN(rapid.Float64Range(0, 10), 0, 100).Draw(t, "samples")

		b := NewFlowBuffer(capacity)
		for _, s := range samples {
			b.Append(s)
		}

		if b.Len() > b.Cap() {
			t.Fatalf("len %d exceeds cap %d", b.Len(), b.Cap())
		}
		got := b.Samples()
		wantLen := len(samples)
		if wantLen > capacity {
			wantLen = capacity
		}
		if len(got) != wantLen {
			t.Fatalf("expected %d samples, got %d", wantLen, len(got))
		}
		tail := samples[len(samples)-wantLen:]
		for i := range tail {
			if got[i] != tail[i] {
				t.Fatalf("sample %d: expected %.3f, got %.3f", i, tail[i], got[i])
			}
		}
	})
}
