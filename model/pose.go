package model

// Pose is one complete set of controllable machine parameters. Angles are in
// radians, lengths in centimetres (the working unit of the patient model).
// Conversion from the degree/millimetre input boundary happens in core.
type Pose struct {
	Gantry     float64
	Couch      float64
	CouchX     float64
	CouchY     float64
	CouchZ     float64
	Extraction float64

	// BaseArm and TopArm are the solved scissor-lift angles. They are
	// derived state, recomputed from the couch parameters on every apply,
	// never set directly by the caller.
	BaseArm float64
	TopArm  float64
}

// Equal reports component-wise equality. The solver uses it to detect
// no-op transitions that must not reach the mesh sink.
func (p Pose) Equal(o Pose) bool {
	return p == o
}
