package model

// MachineKind distinguishes the two machine categories handled by the engine.
type MachineKind int

const (
	MachineKindUnknown MachineKind = iota
	MachineKindTreatmentHead
	MachineKindCouch
)

// Part describes one 3D model file belonging to a machine. The name is the
// unique key the rest of the system uses to address the part's geometry; the
// engine never loads the file itself.
type Part struct {
	Name     string
	FileName string
	Color    string

	// Active marks whether the part was selected for this session.
	Active bool

	// MoveX/MoveY/MoveZ gate which components of a couch translation this
	// part follows. A couch base that only travels vertically has
	// MoveX=false, MoveZ=false.
	MoveX bool
	MoveY bool
	MoveZ bool

	// Scissor marks a segment of the scissor-lift linkage (base arm, top
	// arm, or pedestal). Scissor parts never receive bulk couch
	// translations; they get their own per-anchor rotations.
	Scissor bool

	// Retractable marks a nozzle element (snout, range shifter) that can be
	// extracted along the head's local axis.
	Retractable bool
}

// Machine groups the parts of a treatment head or a patient couch. Path is
// the base directory of the part geometry files, opaque to the engine.
type Machine struct {
	Name  string
	Kind  MachineKind
	Path  string
	Parts []Part
}

// ActiveParts returns the subset of parts selected for the session.
func (m *Machine) ActiveParts() []Part {
	if m == nil {
		return nil
	}
	out := make([]Part, 0, len(m.Parts))
	for _, p := range m.Parts {
		if p.Active {
			out = append(out, p)
		}
	}
	return out
}

// Part returns the part with the given name, or false when unknown.
func (m *Machine) Part(name string) (Part, bool) {
	if m == nil {
		return Part{}, false
	}
	for _, p := range m.Parts {
		if p.Name == name {
			return p, true
		}
	}
	return Part{}, false
}

// HasRetractable reports whether any active part is retractable. The engine
// uses this to decide whether extraction input is meaningful for the session.
func (m *Machine) HasRetractable() bool {
	if m == nil {
		return false
	}
	for _, p := range m.Parts {
		if p.Active && p.Retractable {
			return true
		}
	}
	return false
}
