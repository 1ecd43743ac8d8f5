package collision

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/bep/debounce"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mghro/radcollide/internal/logging"
	"github.com/mghro/radcollide/internal/observability"
)

// maxWorkers bounds the evaluation pool regardless of hardware parallelism.
const maxWorkers = 6

// defaultWorkers derives the pool size from the available hardware threads,
// reserving a couple for the control path and the host UI.
func defaultWorkers() int {
	n := runtime.NumCPU() - 2
	if n > maxWorkers {
		n = maxWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Scheduler owns the monitored pair set and drives overlap evaluations.
//
// Concurrency model: evaluations are the only parallel region. Each pair has
// at most one in-flight evaluation; dispatching a pair that is already being
// evaluated cancels the stale evaluation first. Result writes are serialized
// under the scheduler mutex and guarded by a per-pair generation counter, so
// a cancelled or superseded evaluation can never publish a stale verdict.
type Scheduler struct {
	oracle  Oracle
	log     logging.Logger
	metrics *observability.CollisionCollector
	tracer  trace.Tracer

	workers   int
	debouncer func(func())

	mu           sync.Mutex
	pairs        []Pair
	pairsDirty   bool
	activeParts  map[string]bool
	states       map[string]*pairState
	pendingMoved map[string]bool
	// pendingDispatch is set while a debounced flush is waiting to fire, so
	// WaitIdle does not report idle between Dispatch and the actual flush.
	pendingDispatch bool
	outstanding     int

	tasks     chan task
	baseCtx   context.Context
	cancelAll context.CancelFunc
	started   bool
	stopped   bool
	wg        sync.WaitGroup
}

type pairState struct {
	gen    uint64
	cancel context.CancelFunc
	result Result
}

type task struct {
	key  string
	a, b string
	gen  uint64
	ctx  context.Context
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers overrides the evaluation pool size (clamped to 1..6).
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n < 1 {
			n = 1
		}
		if n > maxWorkers {
			n = maxWorkers
		}
		s.workers = n
	}
}

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics attaches the Prometheus collector for evaluation metrics.
func WithMetrics(c *observability.CollisionCollector) Option {
	return func(s *Scheduler) { s.metrics = c }
}

// WithDebounce coalesces dispatches arriving within d of each other into one
// flush, keeping the pool responsive while a user drags a slider. Zero
// disables debouncing; every dispatch flushes immediately.
func WithDebounce(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.debouncer = debounce.New(d)
		}
	}
}

// NewScheduler builds a scheduler around the given oracle. Call Start before
// dispatching and Stop when the session ends.
func NewScheduler(oracle Oracle, opts ...Option) *Scheduler {
	s := &Scheduler{
		oracle:       oracle,
		log:          logging.Noop(),
		tracer:       otel.Tracer("radcollide/collision"),
		workers:      defaultWorkers(),
		activeParts:  map[string]bool{},
		states:       map[string]*pairState{},
		pendingMoved: map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the worker pool. ctx bounds the lifetime of all evaluations;
// cancelling it cancels every in-flight oracle call.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.baseCtx, s.cancelAll = context.WithCancel(ctx)
	s.tasks = make(chan task, 256)
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.log.Info(ctx, "collision scheduler started", logging.Int("workers", s.workers))
}

// Stop cancels all in-flight evaluations and shuts the pool down. The
// scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.cancelAll()
	s.mu.Unlock()
	s.wg.Wait()
}

// SetActiveParts declares which part names currently have geometry. Pairs
// referencing anything else are skipped and their displayed verdict cleared.
func (s *Scheduler) SetActiveParts(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeParts = make(map[string]bool, len(names))
	for _, n := range names {
		s.activeParts[n] = true
	}
	s.pairsDirty = true
}

// SetPairs replaces the monitored pair set. Every surviving pair is marked
// for re-evaluation on the next dispatch; results of removed pairs are
// dropped.
func (s *Scheduler) SetPairs(pairs []Pair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs = append([]Pair(nil), pairs...)
	s.pairsDirty = true

	keep := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		if p.valid() && p.Enabled {
			keep[p.key()] = true
		}
	}
	for key, st := range s.states {
		if !keep[key] {
			if st.cancel != nil {
				st.cancel()
			}
			delete(s.states, key)
		}
	}
}

// Dispatch notifies the scheduler that the named parts were just moved by a
// committed pose transition. Pairs touching a moved part (or all pairs, after
// a pair-set change) are re-evaluated. Transform application for the
// transition has already completed by the time this is called.
func (s *Scheduler) Dispatch(moved map[string]bool) {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	for name := range moved {
		s.pendingMoved[name] = true
	}
	if s.debouncer != nil {
		s.pendingDispatch = true
		s.mu.Unlock()
		s.debouncer(s.flush)
		return
	}
	s.mu.Unlock()
	s.flush()
}

// flush turns the accumulated moved-set into evaluation tasks.
func (s *Scheduler) flush() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	moved := s.pendingMoved
	s.pendingMoved = map[string]bool{}
	dirty := s.pairsDirty
	s.pairsDirty = false
	s.pendingDispatch = false

	var toSend []task
	for _, p := range s.pairs {
		if !p.valid() || !p.Enabled {
			continue
		}
		key := p.key()
		if !s.activeParts[p.A] || !s.activeParts[p.B] {
			// Unknown or inactive part: skip silently, clear the verdict.
			if st, ok := s.states[key]; ok {
				if st.cancel != nil {
					st.cancel()
				}
				delete(s.states, key)
			}
			continue
		}
		if !dirty && !moved[p.A] && !moved[p.B] {
			continue
		}

		st, ok := s.states[key]
		if !ok {
			st = &pairState{result: Result{A: p.A, B: p.B}}
			s.states[key] = st
		}
		if st.cancel != nil {
			// Supersede the stale in-flight evaluation.
			st.cancel()
		}
		st.gen++
		ctx, cancel := context.WithCancel(s.baseCtx)
		st.cancel = cancel
		st.result.Verdict = VerdictPending
		st.result.Metric = 0
		s.outstanding++
		toSend = append(toSend, task{key: key, a: p.A, b: p.B, gen: st.gen, ctx: ctx})
	}
	s.mu.Unlock()

	// Enqueue outside the lock: a full task channel must not block workers
	// from publishing their results.
	for _, t := range toSend {
		select {
		case s.tasks <- t:
		case <-s.baseCtx.Done():
			return
		}
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.baseCtx.Done():
			return
		case t := <-s.tasks:
			s.evaluate(t)
		}
	}
}

func (s *Scheduler) evaluate(t task) {
	if s.metrics != nil {
		s.metrics.InFlightEvaluations.Inc()
		defer s.metrics.InFlightEvaluations.Dec()
	}

	ctx, span := s.tracer.Start(t.ctx, "collision.evaluate",
		trace.WithAttributes(
			attribute.String("part.a", t.a),
			attribute.String("part.b", t.b),
		))
	start := time.Now()
	overlaps, metric, err := s.oracle.Overlaps(ctx, t.a, t.b)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
	}
	span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.outstanding--

	st, ok := s.states[t.key]
	if !ok || st.gen != t.gen {
		// Superseded or removed while we were evaluating; the newer
		// dispatch owns the result slot now.
		return
	}
	st.cancel = nil

	switch {
	case t.ctx.Err() != nil:
		// Cancelled: no result for this geometry; stay pending until the
		// superseding evaluation lands.
		st.result.Verdict = VerdictPending
	case err != nil:
		st.result.Verdict = VerdictIndeterminate
		st.result.Metric = 0
		st.result.EvaluatedAt = time.Now()
		s.log.Warn(context.Background(), "collision oracle failed",
			logging.String("part_a", t.a),
			logging.String("part_b", t.b),
			logging.String("error", err.Error()))
	default:
		if overlaps && metric >= diceEpsilon {
			st.result.Verdict = VerdictColliding
		} else {
			st.result.Verdict = VerdictClear
		}
		st.result.Metric = metric
		st.result.EvaluatedAt = time.Now()
	}

	if s.metrics != nil {
		s.metrics.EvaluationsTotal.WithLabelValues(st.result.Verdict.String()).Inc()
		s.metrics.EvaluationDuration.Observe(elapsed.Seconds())
		s.metrics.CollidingPairs.Set(float64(s.collidingCountLocked()))
	}
}

func (s *Scheduler) collidingCountLocked() int {
	n := 0
	for _, st := range s.states {
		if st.result.Verdict == VerdictColliding {
			n++
		}
	}
	return n
}

// Results returns the last-known outcome per monitored pair, in the order the
// pairs were configured. Pairs skipped for unknown parts are omitted.
func (s *Scheduler) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, 0, len(s.states))
	for _, p := range s.pairs {
		if st, ok := s.states[p.key()]; ok {
			out = append(out, st.result)
		}
	}
	return out
}

// WaitIdle blocks until no evaluation is queued, in flight, or waiting on
// the debouncer, or until ctx is done. The beam-set sweep uses this between
// sampling steps.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		s.mu.Lock()
		idle := s.outstanding == 0 && !s.pendingDispatch
		s.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
