// Package solids keeps a signed-distance-field proxy of every part's
// geometry and answers overlap queries against it. It stands in for the
// rendering host's mesh store: parts are registered as simple solids, moved
// by the same incremental transforms the engine emits, and compared by
// voxel sampling.
package solids

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/mghro/radcollide/collision"
	"github.com/mghro/radcollide/core"
)

// Compile-time interface checks.
var (
	_ core.TransformSink = (*Store)(nil)
	_ collision.Oracle   = (*Store)(nil)
)

// defaultResolution is the per-axis sample count of an overlap query.
const defaultResolution = 32

// solid is one registered part: its shape in the local (authoring) frame and
// the accumulated world transform.
type solid struct {
	shape sdf.SDF3
	world core.Mat4
	inv   core.Mat4
}

// Store is a thread-safe collection of part solids.
type Store struct {
	mu         sync.RWMutex
	parts      map[string]*solid
	resolution int
}

// NewStore returns an empty store with the default sampling resolution.
func NewStore() *Store {
	return &Store{
		parts:      make(map[string]*solid),
		resolution: defaultResolution,
	}
}

// SetResolution overrides the per-axis sample count (minimum 8).
func (s *Store) SetResolution(n int) {
	if n < 8 {
		n = 8
	}
	s.mu.Lock()
	s.resolution = n
	s.mu.Unlock()
}

// AddBox registers a part as an axis-aligned box of the given size, centered
// on the origin of its local frame.
func (s *Store) AddBox(name string, size core.Vec3) error {
	shape, err := sdf.Box3D(v3.Vec{X: size.X, Y: size.Y, Z: size.Z}, 0)
	if err != nil {
		return fmt.Errorf("box for %s: %w", name, err)
	}
	return s.add(name, shape)
}

// AddCylinder registers a part as a cylinder with the given height and
// radius, axis along local Y.
func (s *Store) AddCylinder(name string, height, radius float64) error {
	shape, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return fmt.Errorf("cylinder for %s: %w", name, err)
	}
	// sdf.Cylinder3D extends along Z; machine parts hang along Y.
	return s.add(name, sdf.Transform3D(shape, sdf.RotateX(math.Pi/2)))
}

func (s *Store) add(name string, shape sdf.SDF3) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.parts[name]; exists {
		return fmt.Errorf("part %q already registered", name)
	}
	s.parts[name] = &solid{
		shape: shape,
		world: core.Identity4(),
		inv:   core.Identity4(),
	}
	return nil
}

// Names returns the registered part names.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.parts))
	for n := range s.parts {
		out = append(out, n)
	}
	return out
}

// ApplyTransform moves a part by the given incremental transform, composing
// it onto the accumulated world placement.
func (s *Store) ApplyTransform(partName string, m core.Mat4) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[partName]
	if !ok {
		return fmt.Errorf("part %q not registered", partName)
	}
	p.world = m.Mul(p.world)
	p.inv = p.world.RigidInverse()
	return nil
}

// WorldTransform returns the accumulated placement of a part.
func (s *Store) WorldTransform(partName string) (core.Mat4, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parts[partName]
	if !ok {
		return core.Mat4{}, fmt.Errorf("part %q not registered", partName)
	}
	return p.world, nil
}

// aabb is an axis-aligned box in the room frame.
type aabb struct {
	min, max core.Vec3
}

// worldBounds transforms the local bounding box of a solid into a room-frame
// axis-aligned box by taking the hull of the eight transformed corners.
func worldBounds(p *solid) aabb {
	bb := p.shape.BoundingBox()
	lo := core.Vec3{X: bb.Min.X, Y: bb.Min.Y, Z: bb.Min.Z}
	hi := core.Vec3{X: bb.Max.X, Y: bb.Max.Y, Z: bb.Max.Z}

	out := aabb{
		min: core.Vec3{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		max: core.Vec3{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
	}
	for i := 0; i < 8; i++ {
		c := core.Vec3{X: lo.X, Y: lo.Y, Z: lo.Z}
		if i&1 != 0 {
			c.X = hi.X
		}
		if i&2 != 0 {
			c.Y = hi.Y
		}
		if i&4 != 0 {
			c.Z = hi.Z
		}
		w := p.world.MulPoint(c)
		out.min.X = math.Min(out.min.X, w.X)
		out.min.Y = math.Min(out.min.Y, w.Y)
		out.min.Z = math.Min(out.min.Z, w.Z)
		out.max.X = math.Max(out.max.X, w.X)
		out.max.Y = math.Max(out.max.Y, w.Y)
		out.max.Z = math.Max(out.max.Z, w.Z)
	}
	return out
}

func (b aabb) intersects(o aabb) bool {
	return b.min.X <= o.max.X && o.min.X <= b.max.X &&
		b.min.Y <= o.max.Y && o.min.Y <= b.max.Y &&
		b.min.Z <= o.max.Z && o.min.Z <= b.max.Z
}

func (b aabb) union(o aabb) aabb {
	return aabb{
		min: core.Vec3{
			X: math.Min(b.min.X, o.min.X),
			Y: math.Min(b.min.Y, o.min.Y),
			Z: math.Min(b.min.Z, o.min.Z),
		},
		max: core.Vec3{
			X: math.Max(b.max.X, o.max.X),
			Y: math.Max(b.max.Y, o.max.Y),
			Z: math.Max(b.max.Z, o.max.Z),
		},
	}
}

// Overlaps voxel-samples both parts over the union of their room-frame
// bounds and reports whether any sample lies inside both, together with the
// Dice similarity 2·|A∩B| / (|A|+|B|) of the occupied sample sets. The
// bounding-box prefilter answers clearly-separated pairs without sampling.
func (s *Store) Overlaps(ctx context.Context, partA, partB string) (bool, float64, error) {
	s.mu.RLock()
	a, okA := s.parts[partA]
	b, okB := s.parts[partB]
	res := s.resolution
	s.mu.RUnlock()
	if !okA {
		return false, 0, fmt.Errorf("part %q not registered", partA)
	}
	if !okB {
		return false, 0, fmt.Errorf("part %q not registered", partB)
	}

	boundsA := worldBounds(a)
	boundsB := worldBounds(b)
	if !boundsA.intersects(boundsB) {
		return false, 0, nil
	}

	grid := boundsA.union(boundsB)
	step := core.Vec3{
		X: (grid.max.X - grid.min.X) / float64(res-1),
		Y: (grid.max.Y - grid.min.Y) / float64(res-1),
		Z: (grid.max.Z - grid.min.Z) / float64(res-1),
	}

	var insideA, insideB, insideBoth int
	for i := 0; i < res; i++ {
		if err := ctx.Err(); err != nil {
			return false, 0, err
		}
		x := grid.min.X + float64(i)*step.X
		for j := 0; j < res; j++ {
			y := grid.min.Y + float64(j)*step.Y
			for k := 0; k < res; k++ {
				p := core.Vec3{X: x, Y: y, Z: grid.min.Z + float64(k)*step.Z}

				la := a.inv.MulPoint(p)
				inA := a.shape.Evaluate(v3.Vec{X: la.X, Y: la.Y, Z: la.Z}) <= 0
				lb := b.inv.MulPoint(p)
				inB := b.shape.Evaluate(v3.Vec{X: lb.X, Y: lb.Y, Z: lb.Z}) <= 0

				if inA {
					insideA++
				}
				if inB {
					insideB++
				}
				if inA && inB {
					insideBoth++
				}
			}
		}
	}

	if insideA+insideB == 0 {
		return false, 0, nil
	}
	dice := 2 * float64(insideBoth) / float64(insideA+insideB)
	return insideBoth > 0, dice, nil
}
