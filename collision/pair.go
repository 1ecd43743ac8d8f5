// Package collision maintains the set of monitored part pairs and keeps their
// overlap verdicts current as the geometry moves. Evaluations run on a small
// worker pool against a black-box overlap oracle; a superseding pose cancels
// the stale in-flight evaluation of a pair before a fresh one starts.
package collision

import (
	"context"
	"time"
)

// Verdict is the displayed collision status of a pair.
type Verdict int

const (
	// VerdictPending means no evaluation has completed for the current
	// geometry yet (or the last one was cancelled).
	VerdictPending Verdict = iota
	// VerdictClear means the last evaluation found no overlap.
	VerdictClear
	// VerdictColliding means the last evaluation found overlap.
	VerdictColliding
	// VerdictIndeterminate means the oracle failed for this pair. Other
	// pairs and pose application are unaffected.
	VerdictIndeterminate
)

func (v Verdict) String() string {
	switch v {
	case VerdictClear:
		return "clear"
	case VerdictColliding:
		return "colliding"
	case VerdictIndeterminate:
		return "indeterminate"
	default:
		return "pending"
	}
}

// Pair names two parts to monitor for geometric overlap. Pairs are created
// and toggled by the host UI; pairs referencing unknown or inactive parts are
// skipped, never errored.
type Pair struct {
	A       string
	B       string
	Enabled bool
}

func (p Pair) key() string {
	return p.A + "\x00" + p.B
}

// valid filters out the placeholder rows the UI produces (empty selections,
// a part paired with itself).
func (p Pair) valid() bool {
	return p.A != "" && p.B != "" && p.A != p.B
}

// Result is the last-known outcome for a pair, exposed for display.
type Result struct {
	A           string
	B           string
	Verdict     Verdict
	Metric      float64
	EvaluatedAt time.Time
}

// Oracle decides whether two named solids overlap. It is treated as slow,
// blocking and side-effect-free; the scheduler assumes nothing about the mesh
// representation behind it. The metric is a continuous overlap magnitude
// (Dice-style coefficient) used both for display and for the safe threshold.
// Implementations must honour ctx cancellation at call granularity.
type Oracle interface {
	Overlaps(ctx context.Context, partA, partB string) (overlaps bool, metric float64, err error)
}

// diceEpsilon is the overlap metric below which a reported overlap is still
// considered numerical noise rather than a collision.
const diceEpsilon = 5e-5
