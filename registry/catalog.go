package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mghro/radcollide/model"
)

type catalogFile struct {
	Machines []machineSpec `yaml:"machines"`
}

type machineSpec struct {
	Name  string     `yaml:"name"`
	Kind  string     `yaml:"kind"` // head | couch
	Path  string     `yaml:"path"`
	Parts []partSpec `yaml:"parts"`
}

type partSpec struct {
	Name        string `yaml:"name"`
	File        string `yaml:"file"`
	Color       string `yaml:"color"`
	Active      *bool  `yaml:"active"`
	MoveX       *bool  `yaml:"move_x"`
	MoveY       *bool  `yaml:"move_y"`
	MoveZ       *bool  `yaml:"move_z"`
	Scissor     bool   `yaml:"scissor"`
	Retractable bool   `yaml:"retractable"`
}

// LoadCatalog loads a machine catalog from a YAML file. Part activation and
// movability flags default to true when omitted.
func LoadCatalog(path string) ([]*model.Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("catalog file not found: %s", path)
		}
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog YAML: %w", err)
	}

	if len(file.Machines) == 0 {
		return nil, fmt.Errorf("at least one machine must be defined")
	}

	seen := make(map[string]bool, len(file.Machines))
	machines := make([]*model.Machine, 0, len(file.Machines))
	for i, ms := range file.Machines {
		if ms.Name == "" {
			return nil, fmt.Errorf("machines[%d].name is required", i)
		}
		if seen[ms.Name] {
			return nil, fmt.Errorf("machines[%d]: duplicate machine name %q", i, ms.Name)
		}
		seen[ms.Name] = true

		var kind model.MachineKind
		switch ms.Kind {
		case "head":
			kind = model.MachineKindTreatmentHead
		case "couch":
			kind = model.MachineKindCouch
		default:
			return nil, fmt.Errorf("machines[%d].kind must be head or couch, got %q", i, ms.Kind)
		}
		if len(ms.Parts) == 0 {
			return nil, fmt.Errorf("machines[%d]: at least one part is required for %s", i, ms.Name)
		}

		m := &model.Machine{Name: ms.Name, Kind: kind, Path: ms.Path}
		for j, ps := range ms.Parts {
			if ps.Name == "" {
				return nil, fmt.Errorf("machines[%d].parts[%d].name is required", i, j)
			}
			m.Parts = append(m.Parts, model.Part{
				Name:        ps.Name,
				FileName:    ps.File,
				Color:       ps.Color,
				Active:      boolOrTrue(ps.Active),
				MoveX:       boolOrTrue(ps.MoveX),
				MoveY:       boolOrTrue(ps.MoveY),
				MoveZ:       boolOrTrue(ps.MoveZ),
				Scissor:     ps.Scissor,
				Retractable: ps.Retractable,
			})
		}
		machines = append(machines, m)
	}

	return machines, nil
}

// SaveCatalog writes a machine catalog to a YAML file.
func SaveCatalog(path string, machines []*model.Machine) error {
	file := catalogFile{Machines: make([]machineSpec, 0, len(machines))}
	for _, m := range machines {
		ms := machineSpec{Name: m.Name, Path: m.Path}
		switch m.Kind {
		case model.MachineKindTreatmentHead:
			ms.Kind = "head"
		case model.MachineKindCouch:
			ms.Kind = "couch"
		default:
			return fmt.Errorf("machine %q has unknown kind", m.Name)
		}
		for _, p := range m.Parts {
			p := p
			ms.Parts = append(ms.Parts, partSpec{
				Name:        p.Name,
				File:        p.FileName,
				Color:       p.Color,
				Active:      &p.Active,
				MoveX:       &p.MoveX,
				MoveY:       &p.MoveY,
				MoveZ:       &p.MoveZ,
				Scissor:     p.Scissor,
				Retractable: p.Retractable,
			})
		}
		file.Machines = append(file.Machines, ms)
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("marshaling catalog YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing catalog file: %w", err)
	}
	return nil
}

// DefaultCatalog returns the built-in machines: a proton treatment head with
// a retractable snout and a scissor-robot couch.
func DefaultCatalog() []*model.Machine {
	return []*model.Machine{
		{
			Name: "proteus-head",
			Kind: model.MachineKindTreatmentHead,
			Path: "models/proteus",
			Parts: []model.Part{
				{Name: "Nozzle", FileName: "nozzle.stl", Color: "#9ea7ad", Active: true, MoveX: true, MoveY: true, MoveZ: true},
				{Name: "Snout", FileName: "snout.stl", Color: "#c8cdd1", Active: true, MoveX: true, MoveY: true, MoveZ: true, Retractable: true},
				{Name: "XrayPanel", FileName: "xray_panel.stl", Color: "#5d6d7e", Active: false, MoveX: true, MoveY: true, MoveZ: true},
			},
		},
		{
			Name: "sciss-robot-couch",
			Kind: model.MachineKindCouch,
			Path: "models/sciss",
			Parts: []model.Part{
				{Name: "CouchTop", FileName: "couch_top.stl", Color: "#2e86c1", Active: true, MoveX: true, MoveY: true, MoveZ: true},
				{Name: "BaseArm", FileName: "base_arm.stl", Color: "#839192", Active: true, MoveY: true, Scissor: true},
				{Name: "TopArm", FileName: "top_arm.stl", Color: "#839192", Active: true, MoveX: true, MoveY: true, MoveZ: true, Scissor: true},
				{Name: "Pedestal", FileName: "pedestal.stl", Color: "#616a6b", Active: true, MoveY: true, Scissor: true},
			},
		},
	}
}

func boolOrTrue(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}
