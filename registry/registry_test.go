package registry

import (
	"fmt"
	"testing"

	"github.com/mghro/radcollide/model"
)

func headMachine(name string) *model.Machine {
	return &model.Machine{
		Name: name,
		Kind: model.MachineKindTreatmentHead,
		Parts: []model.Part{
			{Name: "Nozzle", Active: true},
			{Name: "Snout", Active: true, Retractable: true},
		},
	}
}

func couchMachine(name string) *model.Machine {
	return &model.Machine{
		Name: name,
		Kind: model.MachineKindCouch,
		Parts: []model.Part{
			{Name: "CouchTop", Active: true},
		},
	}
}

func TestAddAndGetMachine(t *testing.T) {
	reg := NewRegistry()
	if err := reg.AddMachine(headMachine("h1")); err != nil {
		t.Fatalf("AddMachine error: %v", err)
	}
	got := reg.Machine("h1")
	if got == nil || got.Kind != model.MachineKindTreatmentHead {
		t.Fatalf("Machine returned %#v, want treatment head h1", got)
	}
}

func TestAddMachineDuplicate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.AddMachine(headMachine("h1")); err != nil {
		t.Fatalf("first AddMachine error: %v", err)
	}
	if err := reg.AddMachine(headMachine("h1")); err == nil {
		t.Fatalf("expected duplicate AddMachine to fail")
	}
}

func TestAddMachineUnknownKind(t *testing.T) {
	reg := NewRegistry()
	if err := reg.AddMachine(&model.Machine{Name: "weird"}); err == nil {
		t.Fatalf("expected unknown kind to be rejected")
	}
}

func TestListMachinesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		if err := reg.AddMachine(headMachine(name)); err != nil {
			t.Fatalf("AddMachine error: %v", err)
		}
	}
	got := reg.ListMachines()
	if len(got) != 3 {
		t.Fatalf("ListMachines len=%d, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].Name != want {
			t.Fatalf("ListMachines[%d]=%s, want %s", i, got[i].Name, want)
		}
	}
}

func TestMachinesOfKind(t *testing.T) {
	reg := NewRegistry()
	for i := range 2 {
		if err := reg.AddMachine(headMachine(fmt.Sprintf("h-%d", i))); err != nil {
			t.Fatalf("AddMachine error: %v", err)
		}
	}
	if err := reg.AddMachine(couchMachine("c-0")); err != nil {
		t.Fatalf("AddMachine error: %v", err)
	}

	if got := len(reg.MachinesOfKind(model.MachineKindTreatmentHead)); got != 2 {
		t.Fatalf("heads len=%d, want 2", got)
	}
	if got := len(reg.MachinesOfKind(model.MachineKindCouch)); got != 1 {
		t.Fatalf("couches len=%d, want 1", got)
	}
}

func TestSelectByKind(t *testing.T) {
	reg := NewRegistry()
	if err := reg.AddMachine(headMachine("h1")); err != nil {
		t.Fatalf("AddMachine error: %v", err)
	}
	if err := reg.AddMachine(couchMachine("c1")); err != nil {
		t.Fatalf("AddMachine error: %v", err)
	}

	if err := reg.Select("h1"); err != nil {
		t.Fatalf("Select error: %v", err)
	}
	if err := reg.Select("c1"); err != nil {
		t.Fatalf("Select error: %v", err)
	}
	head, couch := reg.Selected()
	if head == nil || head.Name != "h1" {
		t.Fatalf("selected head = %#v, want h1", head)
	}
	if couch == nil || couch.Name != "c1" {
		t.Fatalf("selected couch = %#v, want c1", couch)
	}

	if err := reg.Select("missing"); err == nil {
		t.Fatalf("expected selecting a missing machine to fail")
	}
}

func TestSetPartActiveAndSubscribe(t *testing.T) {
	reg := NewRegistry()
	if err := reg.AddMachine(headMachine("h1")); err != nil {
		t.Fatalf("AddMachine error: %v", err)
	}

	var events []Event
	reg.Subscribe(func(e Event) { events = append(events, e) })

	if err := reg.SetPartActive("h1", "Snout", false); err != nil {
		t.Fatalf("SetPartActive error: %v", err)
	}
	p, ok := reg.Machine("h1").Part("Snout")
	if !ok || p.Active {
		t.Fatalf("part toggle not applied: %#v", p)
	}

	if len(events) != 1 || events[0].Type != EventPartToggled {
		t.Fatalf("events = %#v, want one EventPartToggled", events)
	}

	if err := reg.SetPartActive("h1", "missing", true); err == nil {
		t.Fatalf("expected unknown part to fail")
	}
	if err := reg.SetPartActive("missing", "Snout", true); err == nil {
		t.Fatalf("expected unknown machine to fail")
	}
}
