package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/lockdown/internal/composite"
	"github.com/roach88/lockdown/internal/descriptor"
	"github.com/roach88/lockdown/internal/host"
	"github.com/roach88/lockdown/internal/testutil"
	"github.com/roach88/lockdown/internal/types"
)

// OutcomeNotComposite is the outcome of a step addressed to a value that
// has no manager, such as a primitive.
const OutcomeNotComposite = "NOT_COMPOSITE"

// Harness is the scenario execution engine.
// It runs one scenario against a fresh registry with a deterministic clock.
type Harness struct {
	reg    *composite.Registry
	clock  *testutil.DeterministicClock
	types  map[string]*types.CompositeType
	values map[string]any
	logger *slog.Logger
}

// Option configures a run.
type Option func(*Harness)

// WithLogger sets the logger handed to the registry. Default: logs are
// discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Build the registry from the scenario's capabilities
//  2. Enrich the type descriptors and build the values
//  3. Execute the steps, checking each expect clause
//  4. Evaluate the assertions against the final state
//
// An error is returned only when the scenario cannot be set up; failed
// expectations are reported in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		clock:  testutil.NewDeterministicClock(),
		types:  make(map[string]*types.CompositeType, len(scenario.Types)),
		values: make(map[string]any, len(scenario.Values)),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	caps := host.Default()
	if scenario.Capabilities != nil {
		caps = *scenario.Capabilities
	}
	h.reg = composite.NewRegistry(caps, composite.WithLogger(h.logger))

	if err := h.buildTypes(scenario.Types); err != nil {
		return nil, err
	}
	if err := h.buildValues(scenario.Values); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		event := h.execute(step)
		result.Trace = append(result.Trace, event)
		if err := checkExpect(i, step, event, result.Trace); err != nil {
			result.AddError(err.Error())
		}
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, h.values) {
		result.AddError(errMsg)
	}

	h.logger.Debug("scenario finished",
		"scenario", scenario.Name,
		"steps", len(result.Trace),
		"pass", result.Pass,
	)
	return result, nil
}

func (h *Harness) buildTypes(descriptors map[string]any) error {
	for _, name := range sortedKeys(descriptors) {
		t, err := descriptor.EnrichType(descriptors[name])
		if err != nil {
			return fmt.Errorf("type %q: %w", name, err)
		}
		ct, ok := t.(*types.CompositeType)
		if !ok {
			return fmt.Errorf("type %q: %s is not a composite type", name, t)
		}
		h.types[name] = ct
	}
	return nil
}

func (h *Harness) buildValues(plain map[string]any) error {
	for _, name := range sortedKeys(plain) {
		v, err := composite.FromPlain(plain[name])
		if err != nil {
			return fmt.Errorf("value %q: %w", name, err)
		}
		h.values[name] = v
	}
	return nil
}

// execute runs one step. Host-fatal panics raised by the manager are
// recorded as the step's outcome.
func (h *Harness) execute(step Step) (event TraceEvent) {
	event = TraceEvent{
		Seq:     h.clock.Next(),
		Op:      step.Op,
		Value:   step.Value,
		Type:    step.Type,
		Outcome: OutcomeOK,
	}
	if step.Key != nil {
		event.Key = step.Key
		if k, ok := types.NormalizePrimitive(step.Key); ok {
			event.Key = k
		}
	}

	defer func() {
		if r := recover(); r != nil {
			fe, ok := r.(*types.FatalError)
			if !ok {
				panic(r)
			}
			event.fail(fe)
		}
	}()

	c, ok := h.values[step.Value].(*composite.Composite)
	if !ok {
		event.Outcome = OutcomeNotComposite
		event.Err = fmt.Errorf("value %q is not a composite", step.Value)
		return event
	}
	m := h.reg.ManagerFor(c)

	switch step.Op {
	case OpAttach:
		t := h.types[step.Type]
		event.fail(m.AddCompositeType(t, step.Verified))
		event.Count = m.AttachedCount(t)
	case OpDetach:
		t := h.types[step.Type]
		event.fail(m.RemoveCompositeType(t))
		event.Count = m.AttachedCount(t)
	case OpGet:
		v, err := m.Get(step.Key)
		if err != nil {
			event.fail(err)
			return event
		}
		if p, err := composite.Plain(v); err == nil {
			event.Result = p
		}
		if step.As != "" {
			h.values[step.As] = v
		}
	case OpSet, OpInsert:
		v, err := h.written(step, &event)
		if err != nil {
			event.fail(err)
			return event
		}
		if step.Op == OpSet {
			event.fail(m.Set(step.Key, v))
		} else {
			event.fail(m.Insert(step.Key, v))
		}
	case OpDelete:
		event.fail(m.Delete(step.Key))
	}
	return event
}

// written returns the value a set or insert step writes and records it on
// the event.
func (h *Harness) written(step Step, event *TraceEvent) (any, error) {
	if step.Ref != "" {
		event.Ref = step.Ref
		return h.values[step.Ref], nil
	}
	v, err := composite.FromPlain(step.Data)
	if err != nil {
		return nil, err
	}
	if p, err := composite.Plain(v); err == nil {
		event.Data = p
	}
	return v, nil
}

// fail records err as the outcome. A nil err leaves the event untouched.
func (e *TraceEvent) fail(err error) {
	if err == nil {
		return
	}
	e.Err = err
	e.Outcome, e.Tolerant = errorCode(err)
}

// errorCode classifies a step failure. Attach errors are checked first
// because an unsatisfied attach wraps the failure of a child value.
func errorCode(err error) (string, bool) {
	var ae *composite.AttachError
	if errors.As(err, &ae) {
		return string(ae.Code), false
	}
	var ie *composite.InvocationError
	if errors.As(err, &ie) {
		return string(ie.Code), ie.Tolerant
	}
	var fe *types.FatalError
	if errors.As(err, &fe) {
		return string(fe.Code), false
	}
	return "ERROR", false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
