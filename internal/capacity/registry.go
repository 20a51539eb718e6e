// Package capacity holds the locked per-model table of how many bars of each
// size a machine may process in one run, and which sizes it must refuse.
//
// The table is compiled in. There is no override path: every caller,
// whatever its role, gets the same answer, and Check never takes a user or
// role argument. Capability checks run before any planning or authorization.
package capacity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
)

// ErrCapability matches every *CapabilityError via errors.Is.
var ErrCapability = errors.New("machine capability violation")

// Reason classifies a capability violation.
type Reason string

const (
	ReasonUnknownModel    Reason = "unknown_model"
	ReasonBlockedSize     Reason = "blocked_size"
	ReasonUnsupportedSize Reason = "unsupported_size"
	ReasonExceedsLimit    Reason = "exceeds_limit"
	ReasonNoBars          Reason = "no_bars"
)

// CapabilityError is a hard stop: the requested run is not mechanically safe.
type CapabilityError struct {
	Model   string
	BarSize model.BarSize
	Bars    int
	Limit   int
	Reason  Reason
}

func (e *CapabilityError) Error() string {
	switch e.Reason {
	case ReasonUnknownModel:
		return fmt.Sprintf("unknown machine model %q", e.Model)
	case ReasonBlockedSize:
		return fmt.Sprintf("%s is blocked on %s", e.BarSize, e.Model)
	case ReasonUnsupportedSize:
		return fmt.Sprintf("%s is not supported on %s", e.BarSize, e.Model)
	case ReasonExceedsLimit:
		return fmt.Sprintf("%d bars of %s exceeds the %s limit of %d", e.Bars, e.BarSize, e.Model, e.Limit)
	case ReasonNoBars:
		return fmt.Sprintf("bar count must be positive, got %d", e.Bars)
	default:
		return fmt.Sprintf("capability violation on %s", e.Model)
	}
}

func (e *CapabilityError) Is(target error) bool {
	return target == ErrCapability
}

// Registry is a read-only view over a machine table.
type Registry struct {
	specs map[string]model.MachineSpec
}

// Default returns the registry for the shop's machine models.
func Default() *Registry {
	return newRegistry(machineTable)
}

// newRegistry copies specs so later edits to the source slice cannot leak in.
func newRegistry(specs []model.MachineSpec) *Registry {
	r := &Registry{specs: make(map[string]model.MachineSpec, len(specs))}
	for _, s := range specs {
		r.specs[s.Model] = copySpec(s)
	}
	return r
}

// MaxBars returns the locked per-run bar limit for model and size, or false
// when the pair is unsupported. Blocked sizes never report a limit.
func (r *Registry) MaxBars(machineModel string, size model.BarSize) (int, bool) {
	spec, ok := r.specs[machineModel]
	if !ok || spec.Blocked[size] {
		return 0, false
	}
	n, ok := spec.MaxBars[size]
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}

// IsBlocked reports whether model refuses size. Unknown models refuse
// everything, and a size with no positive limit is refused like an explicitly
// blocked one.
func (r *Registry) IsBlocked(machineModel string, size model.BarSize) bool {
	_, limited := r.MaxBars(machineModel, size)
	return !limited
}

// Check validates a requested run against the table.
func (r *Registry) Check(machineModel string, size model.BarSize, bars int) error {
	spec, ok := r.specs[machineModel]
	if !ok {
		return &CapabilityError{Model: machineModel, BarSize: size, Bars: bars, Reason: ReasonUnknownModel}
	}
	if spec.Blocked[size] {
		return &CapabilityError{Model: machineModel, BarSize: size, Bars: bars, Reason: ReasonBlockedSize}
	}
	limit, ok := r.MaxBars(machineModel, size)
	if !ok {
		return &CapabilityError{Model: machineModel, BarSize: size, Bars: bars, Reason: ReasonUnsupportedSize}
	}
	if bars <= 0 {
		return &CapabilityError{Model: machineModel, BarSize: size, Bars: bars, Limit: limit, Reason: ReasonNoBars}
	}
	if bars > limit {
		return &CapabilityError{Model: machineModel, BarSize: size, Bars: bars, Limit: limit, Reason: ReasonExceedsLimit}
	}
	return nil
}

// Lookup returns a copy of the spec for model.
func (r *Registry) Lookup(machineModel string) (model.MachineSpec, bool) {
	spec, ok := r.specs[machineModel]
	if !ok {
		return model.MachineSpec{}, false
	}
	return copySpec(spec), true
}

// Models returns every registered model name, sorted.
func (r *Registry) Models() []string {
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SupportedSizes returns the sizes model can run, smallest first.
func (r *Registry) SupportedSizes(machineModel string) []model.BarSize {
	var sizes []model.BarSize
	for _, size := range model.BarSizes {
		if _, ok := r.MaxBars(machineModel, size); ok {
			sizes = append(sizes, size)
		}
	}
	return sizes
}

// Validate reports table inconsistencies: a size both blocked and limited,
// or a non-positive limit.
func (r *Registry) Validate() error {
	var errs []error
	for _, name := range r.Models() {
		spec := r.specs[name]
		for size, n := range spec.MaxBars {
			if spec.Blocked[size] {
				errs = append(errs, fmt.Errorf("%s: %s is both blocked and limited", name, size))
			}
			if n <= 0 {
				errs = append(errs, fmt.Errorf("%s: %s has non-positive limit %d", name, size, n))
			}
			if !size.Valid() {
				errs = append(errs, fmt.Errorf("%s: unknown bar size %q", name, size))
			}
		}
	}
	return errors.Join(errs...)
}

func copySpec(s model.MachineSpec) model.MachineSpec {
	out := model.MachineSpec{
		Model:   s.Model,
		Kind:    s.Kind,
		MaxBars: make(map[model.BarSize]int, len(s.MaxBars)),
		Blocked: make(map[model.BarSize]bool, len(s.Blocked)),
	}
	for k, v := range s.MaxBars {
		out.MaxBars[k] = v
	}
	for k, v := range s.Blocked {
		if v {
			out.Blocked[k] = true
		}
	}
	return out
}
