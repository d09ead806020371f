package harness

// OutcomeOK is the outcome of a step that succeeded. Failed steps carry
// their error code instead.
const OutcomeOK = "ok"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq   int64  `json:"seq"`
	Op    string `json:"op"`
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
	Key   any    `json:"key,omitempty"`

	// Data is the plain value written by set and insert.
	Data any `json:"data,omitempty"`

	// Ref names the scenario value written instead of Data.
	Ref string `json:"ref,omitempty"`

	// Outcome is OutcomeOK or an error code.
	Outcome string `json:"outcome"`

	// Tolerant is only meaningful when the step failed.
	Tolerant bool `json:"tolerant,omitempty"`

	// Result is the plain value read by get.
	Result any `json:"result,omitempty"`

	// Count is the attach count of Type after an attach or detach.
	Count int `json:"count,omitempty"`

	// Err is the error of a failed step; it is not part of the snapshot.
	Err error `json:"-"`
}

// Failed reports whether the step ended in an error.
func (e TraceEvent) Failed() bool {
	return e.Outcome != OutcomeOK
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// CountOutcome returns how many steps ended with outcome.
func (r *Result) CountOutcome(outcome string) int {
	n := 0
	for _, e := range r.Trace {
		if e.Outcome == outcome {
			n++
		}
	}
	return n
}
