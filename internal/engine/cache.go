package engine

import (
	"fmt"

	"github.com/roach88/netsim/internal/ir"
	"github.com/roach88/netsim/internal/netlist"
)

// Cache memoises the frames of one root component, one per time step.
//
// Invalidation is explicit: the caller invokes Sync before GetOrCompute,
// and Sync drops every frame when the netlist+input fingerprint changed.
// A Cache belongs to one editing session; it is not safe for concurrent use.
type Cache struct {
	component   ir.ComponentID
	opts        []Option
	eval        *Evaluator
	inputs      Inputs
	fingerprint string
	frames      []*Frame
}

// NewCache creates an empty cache for component. opts configure the
// evaluator built on every Sync.
func NewCache(component ir.ComponentID, opts ...Option) *Cache {
	return &Cache{
		component: component,
		opts:      opts,
	}
}

// Sync points the cache at model and inputs. It returns true when the
// fingerprint changed, in which case all cached frames were dropped.
func (c *Cache) Sync(model netlist.Model, inputs Inputs) (bool, error) {
	fp, err := Fingerprint(model, c.component, inputs)
	if err != nil {
		return false, err
	}
	if fp == c.fingerprint && c.eval != nil {
		return false, nil
	}

	if c.eval != nil {
		c.eval.logger.Debug("frame cache invalidated",
			"component", c.component,
			"old_fingerprint", c.fingerprint,
			"new_fingerprint", fp,
			"dropped", len(c.frames))
	}
	c.fingerprint = fp
	c.inputs = inputs.Clone()
	c.frames = nil
	c.eval = NewEvaluator(model, c.opts...)
	return true, nil
}

// GetOrCompute returns the frame of step, computing every missing step
// from the last cached one forward. Cached steps are never recomputed.
// A failed step is not cached; the returned error is a *StepError.
func (c *Cache) GetOrCompute(step int) (*Frame, error) {
	if c.eval == nil {
		return nil, ErrNotSynced
	}
	if step < 0 {
		return nil, fmt.Errorf("time step must be >= 0, got %d", step)
	}
	for len(c.frames) <= step {
		var prev *Frame
		if n := len(c.frames); n > 0 {
			prev = c.frames[n-1]
		}
		f, err := c.eval.EvaluateComponent(c.component, c.inputs, prev)
		if err != nil {
			return nil, &StepError{Step: len(c.frames), Err: err}
		}
		c.frames = append(c.frames, f)
		c.eval.logger.Debug("step computed",
			"component", c.component,
			"step", f.Step)
	}
	return c.frames[step], nil
}

// Len returns the number of cached steps.
func (c *Cache) Len() int { return len(c.frames) }

// Frames returns the cached frames in step order.
func (c *Cache) Frames() []*Frame { return append([]*Frame(nil), c.frames...) }

// Fingerprint returns the fingerprint of the last Sync.
func (c *Cache) Fingerprint() string { return c.fingerprint }

// Component returns the root component the cache simulates.
func (c *Cache) Component() ir.ComponentID { return c.component }

// Fingerprint hashes everything a simulation of component depends on: the
// ordered node ids with the component each instantiates, every user pin
// width, every connection id, every interface pin implementation and the
// external inputs.
func Fingerprint(m netlist.Model, component ir.ComponentID, inputs Inputs) (string, error) {
	nodes := m.Nodes()
	nodeIDs := make([]string, len(nodes))
	instances := make(map[string]any, len(nodes))
	for i, n := range nodes {
		nodeIDs[i] = string(n.ID)
		instances[string(n.ID)] = string(n.ComponentID)
	}

	widths := make(map[string]any)
	for _, np := range m.NodePins() {
		if np.Width != nil {
			widths[string(np.ID)] = *np.Width
		}
	}

	conns := m.Connections()
	connIDs := make([]string, len(conns))
	for i, c := range conns {
		connIDs[i] = string(c.ID)
	}

	impls := make(map[string]any)
	for _, cp := range m.ComponentPins() {
		if cp.Implementation != nil {
			impls[string(cp.ID)] = string(*cp.Implementation)
		}
	}

	in := make(map[string]any, len(inputs))
	for k, v := range inputs {
		in[string(k)] = v
	}

	return ir.Hash(ir.DomainFingerprint, map[string]any{
		"component":       string(component),
		"nodes":           nodeIDs,
		"instances":       instances,
		"widths":          widths,
		"connections":     connIDs,
		"implementations": impls,
		"inputs":          in,
	})
}
