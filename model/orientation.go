package model

import (
	"fmt"
	"math"
)

// PatientOrientation is the DICOM patient position of the active examination.
type PatientOrientation string

const (
	HeadFirstSupine PatientOrientation = "HFS"
	FeetFirstSupine PatientOrientation = "FFS"
	HeadFirstProne  PatientOrientation = "HFP"
	FeetFirstProne  PatientOrientation = "FFP"
)

// OrientationGeometry fixes how machine-local gantry and couch rotations map
// onto the DICOM patient axes for one patient orientation. GantryOffset and
// CouchOffset rotate the 3D model into the patient frame; GantrySign and
// CouchSign flip the rotation direction; Axes carries the per-axis signs used
// by the scissor-lift anchor geometry. CouchSign is redundant with -Axes[1]
// but kept for convenience, matching the closed forms downstream.
type OrientationGeometry struct {
	GantryOffset float64 // radians
	CouchOffset  float64 // radians
	GantrySign   float64
	CouchSign    float64
	Axes         [3]float64
}

var orientationTable = map[PatientOrientation]OrientationGeometry{
	HeadFirstSupine: {GantryOffset: math.Pi, CouchOffset: math.Pi, GantrySign: -1, CouchSign: -1, Axes: [3]float64{1, 1, 1}},
	FeetFirstSupine: {GantryOffset: math.Pi, CouchOffset: 0, GantrySign: -1, CouchSign: -1, Axes: [3]float64{-1, 1, -1}},
	HeadFirstProne:  {GantryOffset: 0, CouchOffset: math.Pi, GantrySign: -1, CouchSign: 1, Axes: [3]float64{-1, -1, 1}},
	FeetFirstProne:  {GantryOffset: 0, CouchOffset: 0, GantrySign: -1, CouchSign: 1, Axes: [3]float64{1, -1, -1}},
}

// GeometryFor looks up the orientation constants for a patient orientation.
// The lookup happens once per session, when the examination is known.
func GeometryFor(p PatientOrientation) (OrientationGeometry, error) {
	geo, ok := orientationTable[p]
	if !ok {
		return OrientationGeometry{}, fmt.Errorf("unknown patient orientation %q", p)
	}
	return geo, nil
}
