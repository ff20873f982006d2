package pattern

import (
	"errors"
	"math/rand/v2"
	"testing"
)

func seeded(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

func TestNew_ContextSizeBounds(t *testing.T) {
	testCases := []struct {
		name    string
		n       int
		wantErr bool
	}{
		{"zero", 0, true},
		{"negative", -3, true},
		{"one", 1, false},
		{"default", DefaultContextSize, false},
		{"max", MaxContextSize, false},
		{"above max", MaxContextSize + 1, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr, err := New(tc.n)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidContextSize) {
					t.Fatalf("expected ErrInvalidContextSize, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tr.ContextSize() != tc.n {
				t.Errorf("expected context size %d, got %d", tc.n, tr.ContextSize())
			}
			if tr.Len() != 0 || tr.Contexts() != 0 {
				t.Errorf("expected empty tracker, got len=%d contexts=%d", tr.Len(), tr.Contexts())
			}
		})
	}
}

func TestTracker_HomogeneousInput(t *testing.T) {
	tr := NewDefault()

	for i := 0; i < DefaultContextSize+1; i++ {
		tr.Push(true)
	}
	next, ok := tr.PredictNext()
	if !ok || !next {
		t.Fatalf("expected true after %d trues, got %v (ok=%v)", DefaultContextSize+1, next, ok)
	}

	for i := 0; i < DefaultContextSize+1; i++ {
		tr.Push(false)
	}
	next, ok = tr.PredictNext()
	if !ok || next {
		t.Fatalf("expected false after %d falses, got %v (ok=%v)", DefaultContextSize+1, next, ok)
	}
}

func TestTracker_FullyPredictablePattern(t *testing.T) {
	for _, n := range []int{1, 3, DefaultContextSize, 8} {
		rng := rand.New(rand.NewPCG(uint64(n), 42))
		tr, err := New(n, seeded(7))
		if err != nil {
			t.Fatal(err)
		}

		size := uint64(1) << uint(n)
		pattern := make([]bool, size)
		for i := range pattern {
			pattern[i] = rng.IntN(2) == 1
		}

		// key mirrors ContextKey: newest bit is the most significant.
		key := uint64(1) % size
		step := func() bool {
			in := pattern[key]
			tr.Push(in)
			key >>= 1
			if in {
				key |= 1 << uint(n-1)
			}
			return in
		}

		// Every reachable context gets a one-sided counter within 2^n + n pushes.
		for i := uint64(0); i < size+uint64(n); i++ {
			step()
		}

		for i := 0; i < 64; i++ {
			want := pattern[key]
			p, ok := tr.Predict()
			if !ok {
				t.Fatalf("n=%d step %d: expected a prediction", n, i)
			}
			if p.Fallback {
				t.Fatalf("n=%d step %d: unexpected fallback for key %d", n, i, p.Key)
			}
			if p.Next != want {
				t.Fatalf("n=%d step %d: predicted %v, want %v", n, i, p.Next, want)
			}
			step()
		}
	}
}

func TestTracker_NoPredictionBoundary(t *testing.T) {
	tr := NewDefault(seeded(1))
	inputs := []bool{true, false, false, true, true, false, true, false}

	for i, in := range inputs {
		_, ok := tr.PredictNext()
		if want := i >= DefaultContextSize; ok != want {
			t.Errorf("after %d pushes: expected ok=%v, got %v", i, want, ok)
		}
		tr.Push(in)
	}

	if _, ok := tr.PredictNext(); !ok {
		t.Error("expected prediction once history reaches context size")
	}
}

func TestTracker_PushBeforeContextDoesNotCount(t *testing.T) {
	tr := NewDefault()
	for i := 0; i < DefaultContextSize; i++ {
		tr.Push(i%2 == 0)
	}
	if tr.Contexts() != 0 {
		t.Fatalf("expected no contexts before %d bits, got %d", DefaultContextSize, tr.Contexts())
	}
	if tr.Len() != DefaultContextSize {
		t.Fatalf("expected len %d, got %d", DefaultContextSize, tr.Len())
	}

	tr.Push(true)
	if tr.Contexts() != 1 {
		t.Fatalf("expected one context, got %d", tr.Contexts())
	}
	// history T F T F T -> key 0b10101
	c, ok := tr.Counter(0b10101)
	if !ok || c.One != 1 || c.Zero != 0 {
		t.Fatalf("unexpected counter %+v (ok=%v)", c, ok)
	}
}

func TestTracker_PredictHasNoSideEffects(t *testing.T) {
	a := NewDefault(seeded(3))
	b := NewDefault(seeded(3))
	rng := rand.New(rand.NewPCG(11, 12))

	for i := 0; i < 500; i++ {
		bit := rng.IntN(3) > 0
		for j := 0; j < 5; j++ {
			a.PredictNext()
			a.Predict()
		}
		a.Push(bit)
		b.Push(bit)
	}

	if a.Len() != b.Len() {
		t.Fatalf("history diverged: %d vs %d", a.Len(), b.Len())
	}
	sa, sb := a.Snapshot(), b.Snapshot()
	if len(sa) != len(sb) {
		t.Fatalf("context tables diverged: %d vs %d", len(sa), len(sb))
	}
	for k, v := range sb {
		if sa[k] != v {
			t.Errorf("key %d: %+v vs %+v", k, sa[k], v)
		}
	}
}

func TestTracker_CounterTotalsMatchOccurrences(t *testing.T) {
	tr := NewDefault()
	rng := rand.New(rand.NewPCG(5, 6))
	var bits []bool
	for i := 0; i < 2000; i++ {
		b := rng.IntN(2) == 1
		bits = append(bits, b)
		tr.Push(b)
	}

	want := make(map[uint64]Counter)
	for i := DefaultContextSize; i < len(bits); i++ {
		k := ContextKey(bits[i-DefaultContextSize : i])
		c := want[k]
		if bits[i] {
			c.One++
		} else {
			c.Zero++
		}
		want[k] = c
	}

	if tr.Contexts() != len(want) {
		t.Fatalf("expected %d contexts, got %d", len(want), tr.Contexts())
	}
	var total uint64
	for k, c := range want {
		got, ok := tr.Counter(k)
		if !ok || got != c {
			t.Errorf("key %d: expected %+v, got %+v (ok=%v)", k, c, got, ok)
		}
		total += got.Total()
	}
	if total != uint64(len(bits)-DefaultContextSize) {
		t.Errorf("expected %d tallied transitions, got %d", len(bits)-DefaultContextSize, total)
	}
}

func TestContextKey_Bijection(t *testing.T) {
	const n = DefaultContextSize
	seen := make(map[uint64][]bool)

	for v := 0; v < 1<<n; v++ {
		bits := make([]bool, n)
		for i := range bits {
			bits[i] = v&(1<<i) != 0
		}
		key := ContextKey(bits)
		if key >= 1<<n {
			t.Fatalf("key %d out of range for %v", key, bits)
		}
		if prev, dup := seen[key]; dup {
			t.Fatalf("collision: %v and %v both map to %d", prev, bits, key)
		}
		seen[key] = bits

		if again := ContextKey(append([]bool(nil), bits...)); again != key {
			t.Fatalf("unstable key for %v: %d vs %d", bits, key, again)
		}
		back := ContextBits(key, n)
		for i := range bits {
			if back[i] != bits[i] {
				t.Fatalf("ContextBits(%d) = %v, want %v", key, back, bits)
			}
		}
	}
	if len(seen) != 1<<n {
		t.Fatalf("expected %d keys, got %d", 1<<n, len(seen))
	}
}

func TestContextKey_OldestIsLeastSignificant(t *testing.T) {
	testCases := []struct {
		bits []bool
		want uint64
	}{
		{[]bool{true, false, false, false, false}, 1},
		{[]bool{false, false, false, false, true}, 16},
		{[]bool{true, true, false, false, false}, 3},
		{[]bool{true, true, true, true, true}, 31},
		{[]bool{false, false, false, false, false}, 0},
	}
	for _, tc := range testCases {
		if got := ContextKey(tc.bits); got != tc.want {
			t.Errorf("ContextKey(%v) = %d, want %d", tc.bits, got, tc.want)
		}
	}
}

func TestTracker_FallbackIsFairCoin(t *testing.T) {
	const trials = 10000

	t.Run("unseen context", func(t *testing.T) {
		tr := NewDefault(seeded(99))
		for i := 0; i < DefaultContextSize; i++ {
			tr.Push(true)
		}
		ones := countOnes(t, tr, trials)
		assertFair(t, ones, trials)
	})

	t.Run("tied context", func(t *testing.T) {
		tr, _ := New(1, seeded(100))
		for _, b := range []bool{true, false, true, true} {
			tr.Push(b)
		}
		// "true" has been followed once by each value and trails the stream
		c, ok := tr.Counter(1)
		if !ok || c.One != c.Zero {
			t.Fatalf("expected tied counter, got %+v", c)
		}
		ones := countOnes(t, tr, trials)
		assertFair(t, ones, trials)
	})

	t.Run("default source", func(t *testing.T) {
		tr := NewDefault()
		for i := 0; i < DefaultContextSize; i++ {
			tr.Push(false)
		}
		ones := countOnes(t, tr, trials)
		assertFair(t, ones, trials)
	})
}

func TestTracker_MajorityIsDeterministic(t *testing.T) {
	tr, _ := New(2, seeded(4))
	for _, b := range []bool{false, false, true, false, false, true, false, false} {
		tr.Push(b)
	}
	// trailing "false false" has been followed by true twice
	for i := 0; i < 100; i++ {
		p, ok := tr.Predict()
		if !ok || p.Fallback || !p.Next {
			t.Fatalf("expected deterministic true, got %+v (ok=%v)", p, ok)
		}
	}
}

func countOnes(t *testing.T, tr *Tracker, trials int) int {
	t.Helper()
	ones := 0
	for i := 0; i < trials; i++ {
		p, ok := tr.Predict()
		if !ok {
			t.Fatal("expected prediction")
		}
		if !p.Fallback {
			t.Fatalf("expected fallback, got %+v", p)
		}
		if p.Next {
			ones++
		}
	}
	return ones
}

func assertFair(t *testing.T, ones, trials int) {
	t.Helper()
	ratio := float64(ones) / float64(trials)
	if ratio < 0.45 || ratio > 0.55 {
		t.Errorf("fallback not fair: %d/%d ones (%.3f)", ones, trials, ratio)
	}
}
