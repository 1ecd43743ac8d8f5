package core

import (
	"math"
	"sync"

	"github.com/mghro/radcollide/model"
)

// PoseModel holds the committed and pending machine parameters. The previous
// pose always equals the pose actually applied to the geometry; the current
// pose is the pending target. Commit happens only after a successful
// transform application, never mid-computation, so scheduler-side readers
// always observe a consistent snapshot.
type PoseModel struct {
	mu       sync.RWMutex
	current  model.Pose
	previous model.Pose
}

// NewPoseModel returns a pose model with both snapshots at the zero pose
// (gantry 0, couch 0, couch at origin), matching the initial model placement.
func NewPoseModel() *PoseModel {
	return &PoseModel{}
}

// Stage records a new target pose without touching the committed snapshot.
func (pm *PoseModel) Stage(p model.Pose) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.current = p
}

// Commit overwrites the previous snapshot with the current one, marking the
// staged pose as applied.
func (pm *PoseModel) Commit() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.previous = pm.current
}

// Snapshot returns the committed (previous) and pending (current) poses by
// value. Callers get either the fully-old or fully-new pair, never a partial
// update.
func (pm *PoseModel) Snapshot() (previous, current model.Pose) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.previous, pm.current
}

// Range is a closed interval used for input clamping.
type Range struct {
	Min float64
	Max float64
}

// Clamp returns the value limited to the range and whether limiting occurred.
func (r Range) Clamp(v float64) (float64, bool) {
	if v < r.Min {
		return r.Min, true
	}
	if v > r.Max {
		return r.Max, true
	}
	return v, false
}

// Input carries one pose request in boundary units: angles in degrees,
// lengths in millimetres. This mirrors what a UI slider layer produces.
type Input struct {
	GantryDeg    float64
	CouchDeg     float64
	CouchXMm     float64
	CouchYMm     float64
	CouchZMm     float64
	ExtractionMm float64
}

// Bounds declares the admissible interval per input parameter. Out-of-range
// requests are clamped, reported, and applied; they are never fatal.
type Bounds struct {
	GantryDeg    Range
	CouchDeg     Range
	CouchXMm     Range
	CouchYMm     Range
	CouchZMm     Range
	ExtractionMm Range
}

// DefaultBounds returns the machine travel limits of the interactive tuner.
func DefaultBounds() Bounds {
	return Bounds{
		GantryDeg:    Range{Min: 0, Max: 360},
		CouchDeg:     Range{Min: -90, Max: 90},
		CouchXMm:     Range{Min: -100, Max: 100},
		CouchYMm:     Range{Min: -250, Max: 250},
		CouchZMm:     Range{Min: -500, Max: 500},
		ExtractionMm: Range{Min: 0, Max: 800},
	}
}

// Clamp limits every field of the input to its declared bound and reports
// whether any field was adjusted.
func (b Bounds) Clamp(in Input) (Input, bool) {
	clamped := false
	apply := func(r Range, v float64) float64 {
		out, c := r.Clamp(v)
		clamped = clamped || c
		return out
	}
	out := Input{
		GantryDeg:    apply(b.GantryDeg, in.GantryDeg),
		CouchDeg:     apply(b.CouchDeg, in.CouchDeg),
		CouchXMm:     apply(b.CouchXMm, in.CouchXMm),
		CouchYMm:     apply(b.CouchYMm, in.CouchYMm),
		CouchZMm:     apply(b.CouchZMm, in.CouchZMm),
		ExtractionMm: apply(b.ExtractionMm, in.ExtractionMm),
	}
	return out, clamped
}

// Pose converts a clamped input from boundary units to engine units
// (radians, centimetres). Scissor angles are left for the solver.
func (in Input) Pose() model.Pose {
	const mmToCm = 0.1
	return model.Pose{
		Gantry:     in.GantryDeg * math.Pi / 180,
		Couch:      in.CouchDeg * math.Pi / 180,
		CouchX:     in.CouchXMm * mmToCm,
		CouchY:     in.CouchYMm * mmToCm,
		CouchZ:     in.CouchZMm * mmToCm,
		Extraction: in.ExtractionMm * mmToCm,
	}
}
