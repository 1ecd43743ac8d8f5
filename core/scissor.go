package core

import (
	"math"

	"github.com/mghro/radcollide/model"
)

// ScissorConfig fixes the linkage geometry of a scissor-robot couch:
// the radial distance from the pedestal to the isocenter and the two arm
// lengths. All in centimetres.
type ScissorConfig struct {
	PedestalDistance float64
	BottomArmLength  float64
	TopArmLength     float64
}

// DefaultScissorConfig returns the geometry of the modelled scissor robot.
func DefaultScissorConfig() ScissorConfig {
	return ScissorConfig{
		PedestalDistance: 170,
		BottomArmLength:  120,
		TopArmLength:     100,
	}
}

// ScissorSolution is the outcome of the two-link inverse kinematics.
// Unreachable means the couch anchor lies beyond the fully extended arms and
// the deterministic park pose was substituted; it is an expected state while
// the user drags the couch around, not an error.
type ScissorSolution struct {
	BaseArm     float64
	TopArm      float64
	Unreachable bool
}

// PedestalAnchor is the fixed ground anchor of the bottom arm. Like the
// couch itself, a couch rotation is simulated by turning the room, so the
// anchor swings with the couch angle on the pedestal circle.
func PedestalAnchor(cfg ScissorConfig, geo model.OrientationGeometry, iso Vec3, couchAngle float64) Vec3 {
	return Vec3{
		X: iso.X - geo.Axes[0]*cfg.PedestalDistance*math.Sin(couchAngle),
		Y: iso.Y,
		Z: iso.Z - geo.Axes[2]*cfg.PedestalDistance*math.Cos(couchAngle),
	}
}

// CouchAnchor is the moving anchor of the top arm underneath the couch
// platform. anchorOffset is the session-constant displacement recorded when
// the couch model was aligned to the contoured couch.
func CouchAnchor(iso, anchorOffset Vec3, pose model.Pose) Vec3 {
	return Vec3{
		X: iso.X + anchorOffset.X + pose.CouchX,
		Y: iso.Y,
		Z: iso.Z + anchorOffset.Z + pose.CouchZ,
	}
}

// SolveScissor resolves the base- and top-arm angles from the distance
// between the pedestal anchor and the couch anchor.
//
// Within reach, the triangle (pedestal anchor, couch anchor, elbow) is solved
// side-side-side via the law of cosines; the interior angles combine with the
// anchor bearing atan2(Δx, Δz) into the two arm angles. The triangle admits a
// mirror solution, so the elbow configuration is selected by the operator's
// flip toggle rather than resolved silently.
//
// Beyond reach, the base arm parks opposite the isocenter and the top arm
// aligns with the couch angle.
func SolveScissor(cfg ScissorConfig, geo model.OrientationGeometry, iso, anchorOffset Vec3, pose model.Pose, flip bool) ScissorSolution {
	base := PedestalAnchor(cfg, geo, iso, pose.Couch)
	top := CouchAnchor(iso, anchorOffset, pose)

	xd := base.X - top.X
	zd := base.Z - top.Z
	rho := math.Hypot(xd, zd)

	if rho > cfg.BottomArmLength+cfg.TopArmLength {
		return ScissorSolution{
			BaseArm:     pose.Couch + math.Pi,
			TopArm:      pose.Couch,
			Unreachable: true,
		}
	}

	a := cfg.TopArmLength
	b := cfg.BottomArmLength
	c := rho
	alpha := math.Acos(clampUnit((b*b + c*c - a*a) / (2 * b * c)))
	beta := math.Acos(clampUnit((a*a + c*c - b*b) / (2 * c * a)))
	delta := math.Atan2(xd, zd) + math.Acos(clampUnit(-geo.Axes[2]))

	sol := ScissorSolution{
		BaseArm: delta + alpha,
		TopArm:  -(beta - delta),
	}
	if flip {
		sol.BaseArm -= 2 * alpha
		sol.TopArm += 2 * beta
	}
	return sol
}

// clampUnit guards acos against arguments nudged past ±1 by rounding.
func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// PartTransform pairs a part name with the transform to feed the mesh sink.
type PartTransform struct {
	Name string
	M    Mat4
}

// ScissorTransforms derives the per-segment transforms that move the three
// linkage parts from the committed pose to the target pose. Each segment
// rotates about its own anchor point, not about the isocenter:
//
//   - the base arm pivots on the old pedestal anchor and then follows the
//     pedestal circle,
//   - the top arm pivots on the old couch anchor and then follows the couch
//     translation,
//   - the pedestal spins in place about the isocenter with the couch angle.
//
// The solved arm angles already carry the orientation sign, so the segment
// deltas are applied with inverted sign, as the closed form requires.
func ScissorTransforms(cfg ScissorConfig, geo model.OrientationGeometry, iso, anchorOffset Vec3, old, next model.Pose, base, top, pedestal model.Part) []PartTransform {
	oldAnchor := PedestalAnchor(cfg, geo, iso, old.Couch)
	newAnchor := PedestalAnchor(cfg, geo, iso, next.Couch)

	couchDelta := Vec3{
		X: next.CouchX - old.CouchX,
		Y: next.CouchY - old.CouchY,
		Z: next.CouchZ - old.CouchZ,
	}

	out := make([]PartTransform, 0, 3)

	// Bottom arm: its in-plane translation is dictated by the pedestal
	// anchor motion, overriding the couch translation mask.
	{
		d := -(next.BaseArm - old.BaseArm)
		t := MaskTranslation(base, couchDelta)
		t.X = newAnchor.X - oldAnchor.X
		t.Z = newAnchor.Z - oldAnchor.Z
		out = append(out, PartTransform{
			Name: base.Name,
			M:    Translation4(t).Mul(RotationAbout(AxisY, d, oldAnchor)),
		})
	}

	// Top arm: pivots on the couch anchor as it was before the move.
	{
		d := -(next.TopArm - old.TopArm)
		pivot := CouchAnchor(iso, anchorOffset, old)
		t := MaskTranslation(top, couchDelta)
		out = append(out, PartTransform{
			Name: top.Name,
			M:    Translation4(t).Mul(RotationAbout(AxisY, d, pivot)),
		})
	}

	// Pedestal: spins about the isocenter with the couch rotation.
	{
		d := geo.CouchSign * (next.Couch - old.Couch)
		t := MaskTranslation(pedestal, couchDelta)
		out = append(out, PartTransform{
			Name: pedestal.Name,
			M:    Translation4(t).Mul(RotationAbout(AxisY, d, iso)),
		})
	}

	return out
}
