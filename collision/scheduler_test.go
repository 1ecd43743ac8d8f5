package collision

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeOracle answers from a fixed table and counts its calls.
type fakeOracle struct {
	mu      sync.Mutex
	calls   map[string]int
	overlap map[string]bool
	metric  map[string]float64
	failOn  map[string]bool
	delay   time.Duration
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		calls:   map[string]int{},
		overlap: map[string]bool{},
		metric:  map[string]float64{},
		failOn:  map[string]bool{},
	}
}

func (o *fakeOracle) key(a, b string) string { return a + "|" + b }

func (o *fakeOracle) set(a, b string, overlaps bool, metric float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.overlap[o.key(a, b)] = overlaps
	o.metric[o.key(a, b)] = metric
}

func (o *fakeOracle) callCount(a, b string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[o.key(a, b)]
}

func (o *fakeOracle) Overlaps(ctx context.Context, a, b string) (bool, float64, error) {
	o.mu.Lock()
	o.calls[o.key(a, b)]++
	overlaps := o.overlap[o.key(a, b)]
	metric := o.metric[o.key(a, b)]
	fail := o.failOn[o.key(a, b)]
	delay := o.delay
	o.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return false, 0, ctx.Err()
		case <-time.After(delay):
		}
	}
	if fail {
		return false, 0, errors.New("mesh store unavailable")
	}
	return overlaps, metric, ctx.Err()
}

func startScheduler(t *testing.T, oracle Oracle, opts ...Option) *Scheduler {
	t.Helper()
	s := NewScheduler(oracle, opts...)
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s
}

func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
}

func resultFor(t *testing.T, s *Scheduler, a, b string) Result {
	t.Helper()
	for _, r := range s.Results() {
		if r.A == a && r.B == b {
			return r
		}
	}
	t.Fatalf("no result for pair %s/%s", a, b)
	return Result{}
}

func TestDispatchEvaluatesMovedPairs(t *testing.T) {
	oracle := newFakeOracle()
	oracle.set("snout", "couch", true, 0.2)
	oracle.set("nozzle", "couch", false, 0)

	s := startScheduler(t, oracle, WithWorkers(2))
	s.SetActiveParts([]string{"snout", "nozzle", "couch"})
	s.SetPairs([]Pair{
		{A: "snout", B: "couch", Enabled: true},
		{A: "nozzle", B: "couch", Enabled: true},
	})

	s.Dispatch(map[string]bool{"couch": true})
	waitIdle(t, s)

	if got := resultFor(t, s, "snout", "couch").Verdict; got != VerdictColliding {
		t.Fatalf("snout/couch verdict = %v, want colliding", got)
	}
	if got := resultFor(t, s, "nozzle", "couch").Verdict; got != VerdictClear {
		t.Fatalf("nozzle/couch verdict = %v, want clear", got)
	}
}

func TestDispatchSkipsUntouchedPairs(t *testing.T) {
	oracle := newFakeOracle()
	s := startScheduler(t, oracle)
	s.SetActiveParts([]string{"a", "b", "c"})
	s.SetPairs([]Pair{
		{A: "a", B: "b", Enabled: true},
		{A: "a", B: "c", Enabled: true},
	})

	// First dispatch after a pair-set change touches everything.
	s.Dispatch(map[string]bool{"a": true})
	waitIdle(t, s)

	// A move of c alone must not re-evaluate a/b.
	before := oracle.callCount("a", "b")
	s.Dispatch(map[string]bool{"c": true})
	waitIdle(t, s)

	if got := oracle.callCount("a", "b"); got != before {
		t.Fatalf("a/b evaluated %d times, want %d", got, before)
	}
	if got := oracle.callCount("a", "c"); got != 2 {
		t.Fatalf("a/c evaluated %d times, want 2", got)
	}
}

func TestUnknownPartsAreSkipped(t *testing.T) {
	oracle := newFakeOracle()
	s := startScheduler(t, oracle)
	s.SetActiveParts([]string{"a"})
	s.SetPairs([]Pair{{A: "a", B: "ghost", Enabled: true}})

	s.Dispatch(map[string]bool{"a": true})
	waitIdle(t, s)

	if got := oracle.callCount("a", "ghost"); got != 0 {
		t.Fatalf("pair with unknown part evaluated %d times", got)
	}
	if got := len(s.Results()); got != 0 {
		t.Fatalf("skipped pair still has a result: %v", s.Results())
	}
}

func TestInvalidPairsAreIgnored(t *testing.T) {
	oracle := newFakeOracle()
	s := startScheduler(t, oracle)
	s.SetActiveParts([]string{"a", "b"})
	s.SetPairs([]Pair{
		{A: "a", B: "a", Enabled: true},
		{A: "", B: "b", Enabled: true},
		{A: "a", B: "b", Enabled: false},
	})

	s.Dispatch(map[string]bool{"a": true, "b": true})
	waitIdle(t, s)

	if got := len(s.Results()); got != 0 {
		t.Fatalf("invalid or disabled pairs produced results: %v", s.Results())
	}
}

func TestOracleFailureIsIndeterminate(t *testing.T) {
	oracle := newFakeOracle()
	oracle.failOn[oracle.key("a", "b")] = true
	oracle.set("a", "c", true, 0.5)

	s := startScheduler(t, oracle)
	s.SetActiveParts([]string{"a", "b", "c"})
	s.SetPairs([]Pair{
		{A: "a", B: "b", Enabled: true},
		{A: "a", B: "c", Enabled: true},
	})

	s.Dispatch(map[string]bool{"a": true})
	waitIdle(t, s)

	// One failing pair must not poison its neighbours.
	if got := resultFor(t, s, "a", "b").Verdict; got != VerdictIndeterminate {
		t.Fatalf("failing pair verdict = %v, want indeterminate", got)
	}
	if got := resultFor(t, s, "a", "c").Verdict; got != VerdictColliding {
		t.Fatalf("healthy pair verdict = %v, want colliding", got)
	}
}

func TestNoiseOverlapIsClear(t *testing.T) {
	oracle := newFakeOracle()
	// Overlapping but below the noise threshold.
	oracle.set("a", "b", true, 1e-5)

	s := startScheduler(t, oracle)
	s.SetActiveParts([]string{"a", "b"})
	s.SetPairs([]Pair{{A: "a", B: "b", Enabled: true}})

	s.Dispatch(map[string]bool{"a": true})
	waitIdle(t, s)

	if got := resultFor(t, s, "a", "b").Verdict; got != VerdictClear {
		t.Fatalf("sub-threshold overlap verdict = %v, want clear", got)
	}
}

func TestSupersededEvaluationIsDiscarded(t *testing.T) {
	oracle := newFakeOracle()
	oracle.delay = 50 * time.Millisecond
	oracle.set("a", "b", true, 0.3)

	s := startScheduler(t, oracle, WithWorkers(1))
	s.SetActiveParts([]string{"a", "b"})
	s.SetPairs([]Pair{{A: "a", B: "b", Enabled: true}})

	// Fire twice back to back: the first evaluation is cancelled, the
	// second must land exactly one verdict.
	s.Dispatch(map[string]bool{"a": true})
	s.Dispatch(map[string]bool{"a": true})
	waitIdle(t, s)

	r := resultFor(t, s, "a", "b")
	if r.Verdict != VerdictColliding {
		t.Fatalf("verdict after supersede = %v, want colliding", r.Verdict)
	}
}

func TestDebounceCoalescesDispatches(t *testing.T) {
	oracle := newFakeOracle()
	s := startScheduler(t, oracle, WithDebounce(30*time.Millisecond))
	s.SetActiveParts([]string{"a", "b"})
	s.SetPairs([]Pair{{A: "a", B: "b", Enabled: true}})

	// A burst of slider moves collapses into one evaluation round.
	for i := 0; i < 10; i++ {
		s.Dispatch(map[string]bool{"a": true})
	}
	waitIdle(t, s)

	if got := oracle.callCount("a", "b"); got != 1 {
		t.Fatalf("burst of dispatches evaluated %d times, want 1", got)
	}
}

func TestSetPairsDropsRemovedResults(t *testing.T) {
	oracle := newFakeOracle()
	oracle.set("a", "b", true, 0.4)
	s := startScheduler(t, oracle)
	s.SetActiveParts([]string{"a", "b", "c"})
	s.SetPairs([]Pair{{A: "a", B: "b", Enabled: true}})

	s.Dispatch(map[string]bool{"a": true})
	waitIdle(t, s)
	if len(s.Results()) != 1 {
		t.Fatalf("expected one result")
	}

	s.SetPairs([]Pair{{A: "a", B: "c", Enabled: true}})
	for _, r := range s.Results() {
		if r.A == "a" && r.B == "b" {
			t.Fatalf("removed pair still has a result")
		}
	}
}

func TestDispatchAfterStopIsNoOp(t *testing.T) {
	oracle := newFakeOracle()
	s := NewScheduler(oracle)
	s.Start(context.Background())
	s.SetActiveParts([]string{"a", "b"})
	s.SetPairs([]Pair{{A: "a", B: "b", Enabled: true}})
	s.Stop()

	s.Dispatch(map[string]bool{"a": true})
	if got := oracle.callCount("a", "b"); got != 0 {
		t.Fatalf("dispatch after stop evaluated %d times", got)
	}
}

func TestWorkerCountClamped(t *testing.T) {
	s := NewScheduler(newFakeOracle(), WithWorkers(100))
	if s.workers != maxWorkers {
		t.Fatalf("workers = %d, want %d", s.workers, maxWorkers)
	}
	s = NewScheduler(newFakeOracle(), WithWorkers(-3))
	if s.workers != 1 {
		t.Fatalf("workers = %d, want 1", s.workers)
	}
}

func TestVerdictString(t *testing.T) {
	tests := []struct {
		v    Verdict
		want string
	}{
		{VerdictPending, "pending"},
		{VerdictClear, "clear"},
		{VerdictColliding, "colliding"},
		{VerdictIndeterminate, "indeterminate"},
	}
	for _, tc := range tests {
		if got := tc.v.String(); got != tc.want {
			t.Fatalf("Verdict(%d).String() = %q, want %q", tc.v, got, tc.want)
		}
	}
}
