package core

import (
	"math"
	"testing"

	"github.com/mghro/radcollide/model"
)

func TestPoseModelStageCommit(t *testing.T) {
	pm := NewPoseModel()

	target := model.Pose{Gantry: 1.5, CouchX: 2}
	pm.Stage(target)

	prev, cur := pm.Snapshot()
	if !prev.Equal(model.Pose{}) {
		t.Fatalf("staging advanced the committed pose: %+v", prev)
	}
	if !cur.Equal(target) {
		t.Fatalf("staged pose = %+v, want %+v", cur, target)
	}

	pm.Commit()
	prev, _ = pm.Snapshot()
	if !prev.Equal(target) {
		t.Fatalf("commit did not advance the committed pose: %+v", prev)
	}
}

func TestRangeClamp(t *testing.T) {
	r := Range{Min: -10, Max: 10}
	tests := []struct {
		in      float64
		want    float64
		clamped bool
	}{
		{0, 0, false},
		{-10, -10, false},
		{10, 10, false},
		{-11, -10, true},
		{400, 10, true},
	}
	for _, tc := range tests {
		got, clamped := r.Clamp(tc.in)
		if got != tc.want || clamped != tc.clamped {
			t.Fatalf("Clamp(%v) = (%v, %v), want (%v, %v)", tc.in, got, clamped, tc.want, tc.clamped)
		}
	}
}

func TestBoundsClamp(t *testing.T) {
	b := DefaultBounds()

	in := Input{GantryDeg: 480, CouchDeg: -90, CouchYMm: -1000, ExtractionMm: 100}
	out, clamped := b.Clamp(in)
	if !clamped {
		t.Fatalf("out-of-range input not reported clamped")
	}
	if out.GantryDeg != 360 || out.CouchYMm != -250 {
		t.Fatalf("clamped input = %+v", out)
	}
	if out.CouchDeg != -90 || out.ExtractionMm != 100 {
		t.Fatalf("in-range fields were altered: %+v", out)
	}

	if _, clamped := b.Clamp(Input{GantryDeg: 180}); clamped {
		t.Fatalf("in-range input reported clamped")
	}
}

func TestInputPoseUnitConversion(t *testing.T) {
	in := Input{
		GantryDeg:    90,
		CouchDeg:     -45,
		CouchXMm:     100,
		CouchYMm:     -250,
		CouchZMm:     40,
		ExtractionMm: 800,
	}
	p := in.Pose()

	if math.Abs(p.Gantry-math.Pi/2) > 1e-12 {
		t.Fatalf("gantry = %v rad, want π/2", p.Gantry)
	}
	if math.Abs(p.Couch+math.Pi/4) > 1e-12 {
		t.Fatalf("couch = %v rad, want -π/4", p.Couch)
	}
	if p.CouchX != 10 || p.CouchY != -25 || p.CouchZ != 4 || p.Extraction != 80 {
		t.Fatalf("length conversion wrong: %+v", p)
	}
}
