package core

import (
	"math"

	"github.com/mghro/radcollide/model"
)

// TransformSink receives the incremental rigid transforms the solver derives.
// The host environment is expected to left-multiply each matrix into the named
// part's current geometry ("move by", not "place at"); the underlying mesh
// store exposes no absolute placement.
type TransformSink interface {
	ApplyTransform(partName string, m Mat4) error
}

// HeadDifferential derives the single incremental transform that carries a
// treatment-head part from the committed pose to the target pose. Gantry and
// couch rotations are both simulated on the head side: a couch rotation turns
// the room (and with it the head) the opposite way, which is why both angles
// enter here.
//
// With orientation constants (gs, cs, g0, c0) and the isocenter iso, the
// transform is
//
//	D = T(iso) · Ry(b2) · Rz(d) · Ry(b) · T(-iso),
//	b  = -cs·(c + c0),  b2 = cs·(c2 + c0),  d = gs·(g2 - g)
//
// (the g0 offset cancels between old and new gantry angle). The translation
// column is fixed by requiring the isocenter to be a fixed point of D, which
// holds for any angle pair: all angle-only motions pivot on the isocenter.
//
// extractionDelta is the snout extraction change for retractable parts (zero
// otherwise). The extraction shift rides between the two Z rotations so it
// extends along the head's current axis, not along the room frame, giving the
// additional column term ey·(sin a2·cos b2, -cos a2, sin a2·sin b2) with
// a2 = gs·g2 and ey = gs·extractionDelta.
func HeadDifferential(geo model.OrientationGeometry, iso Vec3, old, next model.Pose, extractionDelta float64) Mat4 {
	b := -geo.CouchSign * (old.Couch + geo.CouchOffset)
	b2 := geo.CouchSign * (next.Couch + geo.CouchOffset)
	a2 := geo.GantrySign * next.Gantry
	d := geo.GantrySign * (next.Gantry - old.Gantry)
	ey := geo.GantrySign * extractionDelta

	sinB, cosB := math.Sin(b), math.Cos(b)
	sinB2, cosB2 := math.Sin(b2), math.Cos(b2)
	sinD, cosD := math.Sin(d), math.Cos(d)

	r := Mat3{
		{cosD*cosB*cosB2 - sinB*sinB2, -sinD * cosB2, -cosD*sinB*cosB2 - cosB*sinB2},
		{sinD * cosB, cosD, -sinD * sinB},
		{cosD*cosB*sinB2 + sinB*cosB2, -sinD * sinB2, -cosD*sinB*sinB2 + cosB*cosB2},
	}

	t := iso.Sub(r.MulVec(iso)).Add(Vec3{
		X: ey * math.Sin(a2) * cosB2,
		Y: -ey * math.Cos(a2),
		Z: ey * math.Sin(a2) * sinB2,
	})
	return FromRotation(r, t)
}

// InitialPlacement returns the absolute transform that places a freshly
// imported model (authored at gantry 0, couch 0, origin at room isocenter)
// into the patient frame: the orientation offsets rotate the model to match
// the examination orientation, then the isocenter translation positions it.
func InitialPlacement(geo model.OrientationGeometry, iso Vec3) Mat4 {
	a := geo.GantrySign * geo.GantryOffset
	b := geo.CouchSign * geo.CouchOffset
	sinA, cosA := math.Sin(a), math.Cos(a)
	sinB, cosB := math.Sin(b), math.Cos(b)
	r := Mat3{
		{cosA * cosB, -sinA * cosB, -sinB},
		{sinA, cosA, 0},
		{cosA * sinB, -sinA * sinB, cosB},
	}
	return FromRotation(r, iso)
}

// MaskTranslation zeroes the components of a requested couch translation that
// the part does not follow. Immovable axes stay put regardless of the offset.
func MaskTranslation(p model.Part, d Vec3) Vec3 {
	if !p.MoveX {
		d.X = 0
	}
	if !p.MoveY {
		d.Y = 0
	}
	if !p.MoveZ {
		d.Z = 0
	}
	return d
}

// CouchTranslation returns the masked bulk translation for a couch part and
// whether anything remains to apply. Scissor segments are excluded here; they
// receive their own per-anchor rotations from the linkage solver.
func CouchTranslation(p model.Part, old, next model.Pose) (Mat4, bool) {
	d := MaskTranslation(p, Vec3{
		X: next.CouchX - old.CouchX,
		Y: next.CouchY - old.CouchY,
		Z: next.CouchZ - old.CouchZ,
	})
	if d.X == 0 && d.Y == 0 && d.Z == 0 {
		return Identity4(), false
	}
	return Translation4(d), true
}
