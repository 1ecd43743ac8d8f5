package model

import "strings"

// ScissorLinks identifies the three linkage segments among the active
// scissor-flagged couch parts by their conventional names: the part names
// must contain "base", "top" and "pedestal" respectively. ok is false when
// the couch has no complete scissor robot, in which case couch rotation is
// handled by the head-side formula alone.
func (m *Machine) ScissorLinks() (base, top, pedestal Part, ok bool) {
	if m == nil {
		return Part{}, Part{}, Part{}, false
	}
	var haveBase, haveTop, havePedestal bool
	for _, p := range m.Parts {
		if !p.Scissor || !p.Active {
			continue
		}
		name := strings.ToLower(p.Name)
		switch {
		case strings.Contains(name, "base"):
			base, haveBase = p, true
		case strings.Contains(name, "top"):
			top, haveTop = p, true
		case strings.Contains(name, "pedestal"):
			pedestal, havePedestal = p, true
		}
	}
	ok = haveBase && haveTop && havePedestal
	return base, top, pedestal, ok
}
