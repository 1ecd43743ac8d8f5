package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mghro/radcollide/model"
)

// EventType indicates what kind of change happened in the registry.
type EventType int

const (
	EventMachineAdded EventType = iota
	EventSelectionChanged
	EventPartToggled
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type    EventType
	Machine model.Machine
}

// Registry is an in-memory, thread-safe store for the machine catalog and
// the session's head/couch selection.
type Registry struct {
	mu sync.RWMutex

	machines map[string]*model.Machine
	head     string
	couch    string

	subs []func(Event)
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		machines: make(map[string]*model.Machine),
	}
}

// AddMachine adds a catalog machine. It returns an error if the name already
// exists or the machine kind is unknown.
func (r *Registry) AddMachine(m *model.Machine) error {
	r.mu.Lock()

	if m.Kind != model.MachineKindTreatmentHead && m.Kind != model.MachineKindCouch {
		r.mu.Unlock()
		return fmt.Errorf("machine %q has unknown kind", m.Name)
	}
	if _, exists := r.machines[m.Name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("machine with name %q already exists", m.Name)
	}
	// store pointer so that part toggles update in-place
	r.machines[m.Name] = m
	event := Event{Type: EventMachineAdded, Machine: *m}
	subs := append(([]func(Event))(nil), r.subs...)
	r.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
	return nil
}

// Machine returns the machine with the given name, or nil if not found.
func (r *Registry) Machine(name string) *model.Machine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.machines[name]
}

// ListMachines returns a name-sorted snapshot slice of all machines.
func (r *Registry) ListMachines() []*model.Machine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]*model.Machine, 0, len(r.machines))
	for _, m := range r.machines {
		res = append(res, m)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// MachinesOfKind returns the name-sorted machines of one kind.
func (r *Registry) MachinesOfKind(kind model.MachineKind) []*model.Machine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []*model.Machine
	for _, m := range r.machines {
		if m.Kind == kind {
			res = append(res, m)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Select picks the machine with the given name as the session's treatment
// head or couch, depending on its kind.
func (r *Registry) Select(name string) error {
	r.mu.Lock()

	m, ok := r.machines[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("machine with name %q not found", name)
	}
	switch m.Kind {
	case model.MachineKindTreatmentHead:
		r.head = name
	case model.MachineKindCouch:
		r.couch = name
	}
	event := Event{Type: EventSelectionChanged, Machine: *m}
	subs := append(([]func(Event))(nil), r.subs...)
	r.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
	return nil
}

// Selected returns the currently selected head and couch, either of which
// may be nil before a selection was made.
func (r *Registry) Selected() (head, couch *model.Machine) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.machines[r.head], r.machines[r.couch]
}

// SetPartActive toggles whether a part participates in the session and
// notifies subscribers.
func (r *Registry) SetPartActive(machine, part string, active bool) error {
	r.mu.Lock()

	m, ok := r.machines[machine]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("machine with name %q not found", machine)
	}
	found := false
	for i := range m.Parts {
		if m.Parts[i].Name == part {
			m.Parts[i].Active = active
			found = true
			break
		}
	}
	if !found {
		r.mu.Unlock()
		return fmt.Errorf("part %q not found on machine %q", part, machine)
	}
	event := Event{Type: EventPartToggled, Machine: *m}
	subs := append(([]func(Event))(nil), r.subs...)
	r.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
	return nil
}

// Subscribe registers a callback invoked on every registry event. Callbacks
// run outside the registry lock.
func (r *Registry) Subscribe(fn func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
}
