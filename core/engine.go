package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mghro/radcollide/collision"
	"github.com/mghro/radcollide/internal/logging"
	"github.com/mghro/radcollide/internal/observability"
	"github.com/mghro/radcollide/model"
)

// Config assembles the session-constant inputs of an Engine. Head, Couch and
// Sink are required; everything else has a usable default.
type Config struct {
	Isocenter   Vec3
	Orientation model.PatientOrientation
	Head        *model.Machine
	Couch       *model.Machine
	Sink        TransformSink
	Scheduler   *collision.Scheduler
	Bounds      Bounds
	Scissor     ScissorConfig
	Logger      logging.Logger
	Metrics     *observability.CollisionCollector
}

// Engine drives one treatment-room session: it converts pose requests into
// incremental part transforms, feeds them to the mesh sink, commits the pose
// model and notifies the collision scheduler. All public methods are safe for
// concurrent use; transform derivation and commit are serialized so the sink
// sees transitions in order.
type Engine struct {
	iso     Vec3
	geo     model.OrientationGeometry
	head    *model.Machine
	couch   *model.Machine
	sink    TransformSink
	sched   *collision.Scheduler
	bounds  Bounds
	scissor ScissorConfig
	log     logging.Logger
	metrics *observability.CollisionCollector
	tracer  trace.Tracer

	mu           sync.Mutex
	poses        *PoseModel
	anchorOffset Vec3
	flip         bool

	hasScissor                    bool
	baseArm, topArm, pedestalPart model.Part
}

// NewEngine validates the configuration and builds an engine. The scissor
// linkage is discovered once here; couches without a complete linkage fall
// back to head-side couch rotation only.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Head == nil || cfg.Couch == nil {
		return nil, errors.New("engine requires a head and a couch machine")
	}
	if cfg.Sink == nil {
		return nil, errors.New("engine requires a transform sink")
	}
	geo, err := model.GeometryFor(cfg.Orientation)
	if err != nil {
		return nil, err
	}
	if cfg.Bounds == (Bounds{}) {
		cfg.Bounds = DefaultBounds()
	}
	if cfg.Scissor == (ScissorConfig{}) {
		cfg.Scissor = DefaultScissorConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}

	e := &Engine{
		iso:     cfg.Isocenter,
		geo:     geo,
		head:    cfg.Head,
		couch:   cfg.Couch,
		sink:    cfg.Sink,
		sched:   cfg.Scheduler,
		bounds:  cfg.Bounds,
		scissor: cfg.Scissor,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		tracer:  otel.Tracer("radcollide/core"),
		poses:   NewPoseModel(),
	}
	e.baseArm, e.topArm, e.pedestalPart, e.hasScissor = cfg.Couch.ScissorLinks()

	// The part models are authored at the zero pose with the linkage already
	// articulated, so the baseline arm angles are the zero-pose solution,
	// not zero.
	if e.hasScissor {
		sol := SolveScissor(e.scissor, geo, e.iso, e.anchorOffset, model.Pose{}, false)
		e.poses.Stage(model.Pose{BaseArm: sol.BaseArm, TopArm: sol.TopArm})
		e.poses.Commit()
	}

	if e.sched != nil {
		e.sched.SetActiveParts(e.activeNames())
	}
	return e, nil
}

// Report describes the outcome of one Apply call.
type Report struct {
	// Clamped is set when at least one input exceeded its travel limit and
	// was pulled back to the bound before applying.
	Clamped bool
	// Unreachable is set when the couch anchor was beyond the scissor arms
	// and the park pose was substituted.
	Unreachable bool
	// Moved lists the parts whose geometry changed, sorted by name.
	Moved []string
}

// Apply moves the machines to the requested pose. Inputs outside the travel
// limits are clamped, never rejected. The committed pose advances only after
// every transform reached the sink; on sink failure the geometry and the pose
// model are left at the previous committed state's bookkeeping and the error
// is returned.
func (e *Engine) Apply(ctx context.Context, in Input) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applyLocked(ctx, in)
}

func (e *Engine) applyLocked(ctx context.Context, in Input) (Report, error) {
	ctx, span := e.tracer.Start(ctx, "engine.apply",
		trace.WithAttributes(
			attribute.Float64("gantry_deg", in.GantryDeg),
			attribute.Float64("couch_deg", in.CouchDeg),
		))
	defer span.End()

	in, clamped := e.bounds.Clamp(in)
	if clamped {
		if e.metrics != nil {
			e.metrics.ClampedInputsTotal.Inc()
		}
		e.log.Debug(ctx, "pose input clamped to travel limits")
	}
	rep := Report{Clamped: clamped}

	prev, _ := e.poses.Snapshot()
	next := in.Pose()
	if e.hasScissor {
		sol := SolveScissor(e.scissor, e.geo, e.iso, e.anchorOffset, next, e.flip)
		next.BaseArm, next.TopArm = sol.BaseArm, sol.TopArm
		if sol.Unreachable {
			rep.Unreachable = true
			if e.metrics != nil {
				e.metrics.ScissorFallbacks.Inc()
			}
			e.log.Debug(ctx, "couch anchor beyond scissor reach, using park pose")
		}
	}
	if next.Equal(prev) {
		return rep, nil
	}
	e.poses.Stage(next)

	transforms := e.transition(prev, next)
	moved := make(map[string]bool, len(transforms))
	for _, pt := range transforms {
		if err := e.sink.ApplyTransform(pt.Name, pt.M); err != nil {
			span.RecordError(err)
			return rep, fmt.Errorf("apply transform to %s: %w", pt.Name, err)
		}
		moved[pt.Name] = true
	}

	e.poses.Commit()
	if e.metrics != nil {
		e.metrics.PoseUpdatesTotal.Inc()
	}
	if e.sched != nil && len(moved) > 0 {
		e.sched.Dispatch(moved)
	}

	rep.Moved = sortedNames(moved)
	return rep, nil
}

// transition derives the per-part transforms carrying the geometry from the
// committed pose to the staged one.
func (e *Engine) transition(prev, next model.Pose) []PartTransform {
	var out []PartTransform

	dg := next.Gantry - prev.Gantry
	dc := next.Couch - prev.Couch
	dse := next.Extraction - prev.Extraction
	for _, p := range e.head.ActiveParts() {
		extr := 0.0
		if p.Retractable {
			extr = dse
		}
		if dg == 0 && dc == 0 && extr == 0 {
			continue
		}
		out = append(out, PartTransform{
			Name: p.Name,
			M:    HeadDifferential(e.geo, e.iso, prev, next, extr),
		})
	}

	for _, p := range e.couch.ActiveParts() {
		if p.Scissor {
			continue
		}
		if m, ok := CouchTranslation(p, prev, next); ok {
			out = append(out, PartTransform{Name: p.Name, M: m})
		}
	}

	if e.hasScissor {
		armsMoved := next.BaseArm != prev.BaseArm || next.TopArm != prev.TopArm
		couchMoved := dc != 0 ||
			next.CouchX != prev.CouchX || next.CouchY != prev.CouchY || next.CouchZ != prev.CouchZ
		if armsMoved || couchMoved {
			for _, pt := range ScissorTransforms(e.scissor, e.geo, e.iso, e.anchorOffset, prev, next, e.baseArm, e.topArm, e.pedestalPart) {
				if pt.M.IsIdentity(1e-12) {
					continue
				}
				out = append(out, pt)
			}
		}
	}

	return out
}

// Flip toggles the scissor elbow configuration and rotates the two arms into
// the mirror solution at the current pose. A couch without a scissor linkage
// makes this a no-op.
func (e *Engine) Flip(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasScissor {
		return nil
	}
	e.flip = !e.flip

	prev, _ := e.poses.Snapshot()
	next := prev
	sol := SolveScissor(e.scissor, e.geo, e.iso, e.anchorOffset, next, e.flip)
	next.BaseArm, next.TopArm = sol.BaseArm, sol.TopArm
	if next.Equal(prev) {
		return nil
	}
	e.poses.Stage(next)

	moved := make(map[string]bool, 2)
	for _, pt := range ScissorTransforms(e.scissor, e.geo, e.iso, e.anchorOffset, prev, next, e.baseArm, e.topArm, e.pedestalPart) {
		if pt.M.IsIdentity(1e-12) {
			continue
		}
		if err := e.sink.ApplyTransform(pt.Name, pt.M); err != nil {
			return fmt.Errorf("apply transform to %s: %w", pt.Name, err)
		}
		moved[pt.Name] = true
	}

	e.poses.Commit()
	if e.sched != nil && len(moved) > 0 {
		e.sched.Dispatch(moved)
	}
	return nil
}

// AlignCouch shifts the whole couch model by the given room-frame offset in
// millimetres, matching the rendered couch to the couch contoured in the
// patient scan. The in-plane components are remembered as the scissor anchor
// offset for every later solve.
func (e *Engine) AlignCouch(ctx context.Context, dxMm, dyMm, dzMm float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	const mmToCm = 0.1
	d := Vec3{X: dxMm * mmToCm, Y: dyMm * mmToCm, Z: dzMm * mmToCm}

	moved := make(map[string]bool)
	for _, p := range e.couch.ActiveParts() {
		t := MaskTranslation(p, d)
		if t.X == 0 && t.Y == 0 && t.Z == 0 {
			continue
		}
		if err := e.sink.ApplyTransform(p.Name, Translation4(t)); err != nil {
			return fmt.Errorf("apply transform to %s: %w", p.Name, err)
		}
		moved[p.Name] = true
	}
	e.anchorOffset = e.anchorOffset.Add(Vec3{X: d.X, Z: d.Z})

	if e.sched != nil && len(moved) > 0 {
		e.sched.Dispatch(moved)
	}
	return nil
}

// PlaceModels sends the initial placement transform to every active part.
// Part geometry is authored at gantry 0, couch 0 with its origin at the room
// isocenter; this single transform moves all of it into the patient frame.
func (e *Engine) PlaceModels(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	placement := InitialPlacement(e.geo, e.iso)
	moved := make(map[string]bool)
	for _, m := range []*model.Machine{e.head, e.couch} {
		for _, p := range m.ActiveParts() {
			if err := e.sink.ApplyTransform(p.Name, placement); err != nil {
				return fmt.Errorf("apply transform to %s: %w", p.Name, err)
			}
			moved[p.Name] = true
		}
	}
	if e.sched != nil && len(moved) > 0 {
		e.sched.Dispatch(moved)
	}
	return nil
}

// SetPairs forwards a new monitored pair set to the scheduler.
func (e *Engine) SetPairs(pairs []collision.Pair) {
	if e.sched != nil {
		e.sched.SetPairs(pairs)
	}
}

// Results returns the scheduler's last-known verdict per monitored pair.
func (e *Engine) Results() []collision.Result {
	if e.sched == nil {
		return nil
	}
	return e.sched.Results()
}

// Beam is one element of a treatment beam set: either a static field
// (start == stop) or an arc swept clockwise from start to stop.
type Beam struct {
	GantryStartDeg float64
	GantryStopDeg  float64
	CouchDeg       float64
}

// ArcSample records one sampled arc position at which at least one monitored
// pair was found colliding.
type ArcSample struct {
	GantryDeg float64
	CouchDeg  float64
	Results   []collision.Result
}

// EvaluateArc sweeps the machine through every beam of a beam set in one
// degree gantry steps, waiting for the collision pool to drain at each step,
// and reports the positions where a collision was detected. The couch
// translation and extraction are held at their committed values.
func (e *Engine) EvaluateArc(ctx context.Context, beams []Beam) ([]ArcSample, error) {
	if e.sched == nil {
		return nil, errors.New("arc evaluation requires a collision scheduler")
	}

	var findings []ArcSample
	for _, beam := range beams {
		span := math.Mod(beam.GantryStopDeg-beam.GantryStartDeg+360, 360)
		steps := int(span) + 1
		for i := 0; i < steps; i++ {
			if err := ctx.Err(); err != nil {
				return findings, err
			}
			g := math.Mod(beam.GantryStartDeg+float64(i)+360, 360)

			e.mu.Lock()
			committed, _ := e.poses.Snapshot()
			in := Input{
				GantryDeg:    g,
				CouchDeg:     beam.CouchDeg,
				CouchXMm:     committed.CouchX * 10,
				CouchYMm:     committed.CouchY * 10,
				CouchZMm:     committed.CouchZ * 10,
				ExtractionMm: committed.Extraction * 10,
			}
			_, err := e.applyLocked(ctx, in)
			e.mu.Unlock()
			if err != nil {
				return findings, err
			}

			if err := e.sched.WaitIdle(ctx); err != nil {
				return findings, err
			}
			results := e.sched.Results()
			for _, r := range results {
				if r.Verdict == collision.VerdictColliding {
					findings = append(findings, ArcSample{
						GantryDeg: g,
						CouchDeg:  beam.CouchDeg,
						Results:   results,
					})
					break
				}
			}
		}
	}
	return findings, nil
}

// Pose returns the committed pose.
func (e *Engine) Pose() model.Pose {
	prev, _ := e.poses.Snapshot()
	return prev
}

func (e *Engine) activeNames() []string {
	var names []string
	for _, m := range []*model.Machine{e.head, e.couch} {
		for _, p := range m.ActiveParts() {
			names = append(names, p.Name)
		}
	}
	return names
}

func sortedNames(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
