package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/lockdown/internal/composite"
)

// AssertionError is returned when an expectation or assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // step or assertion that failed
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // trace up to the failure
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.Op, event.Value)
		if event.Key != nil {
			fmt.Fprintf(&buf, "[%v]", event.Key)
		}
		if event.Type != "" {
			fmt.Fprintf(&buf, " %s", event.Type)
		}
		fmt.Fprintf(&buf, " -> %s\n", event.Outcome)
	}
	return buf.String()
}

// checkExpect validates one executed step against its expect clause.
// Without a clause, or with one that names no failure, the step must
// succeed.
func checkExpect(index int, step Step, event TraceEvent, trace []TraceEvent) error {
	fail := func(expected, actual string) error {
		return &AssertionError{
			Type:     fmt.Sprintf("steps[%d] %s %s", index, step.Op, step.Value),
			Expected: expected,
			Actual:   actual,
			Trace:    trace,
		}
	}
	actual := event.Outcome
	if event.Err != nil {
		actual = event.Err.Error()
	}

	e := step.Expect
	if e == nil || (e.OK == nil && e.Error == "" && e.Tolerant == nil) {
		if event.Failed() {
			return fail("success", actual)
		}
	}
	if e == nil {
		return nil
	}

	if e.OK != nil && *e.OK == event.Failed() {
		return fail(fmt.Sprintf("ok=%v", *e.OK), actual)
	}
	if e.Error != "" && e.Error != event.Outcome {
		return fail("error "+e.Error, actual)
	}
	if e.Tolerant != nil {
		if !event.Failed() {
			return fail(fmt.Sprintf("a failure with tolerant=%v", *e.Tolerant), "success")
		}
		if *e.Tolerant != event.Tolerant {
			return fail(fmt.Sprintf("tolerant=%v", *e.Tolerant), fmt.Sprintf("tolerant=%v: %s", event.Tolerant, actual))
		}
	}
	if e.Value != nil {
		want, err := normalizePlain(e.Value)
		if err != nil {
			return fail(fmt.Sprintf("a valid expected value (%v)", err), fmt.Sprintf("%v", e.Value))
		}
		if !reflect.DeepEqual(want, event.Result) {
			return fail(fmt.Sprintf("value %v", want), fmt.Sprintf("value %v", event.Result))
		}
	}
	if e.Count != nil && *e.Count != event.Count {
		return fail(fmt.Sprintf("count %d", *e.Count), fmt.Sprintf("count %d", event.Count))
	}
	return nil
}

// EvaluateAssertions checks every assertion against the finished run.
// Returns the failure messages; empty if all assertions held.
func EvaluateAssertions(result *Result, assertions []Assertion, values map[string]any) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertFinalValue:
			err = assertFinalValue(result.Trace, a, values)
		case AssertOutcomeCount:
			err = assertOutcomeCount(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertFinalValue compares the plain content of a value with the
// expected data.
func assertFinalValue(trace []TraceEvent, a Assertion, values map[string]any) error {
	got, err := composite.Plain(values[a.Value])
	if err != nil {
		return fmt.Errorf("final_value %s: %w", a.Value, err)
	}
	want, err := normalizePlain(a.Expect)
	if err != nil {
		return fmt.Errorf("final_value %s: expected value: %w", a.Value, err)
	}
	if !reflect.DeepEqual(want, got) {
		return &AssertionError{
			Type:     "final_value " + a.Value,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertOutcomeCount checks how many steps ended with the outcome.
func assertOutcomeCount(result *Result, a Assertion) error {
	if n := result.CountOutcome(a.Outcome); n != a.Count {
		return &AssertionError{
			Type:     "outcome_count " + a.Outcome,
			Expected: fmt.Sprintf("%d steps", a.Count),
			Actual:   fmt.Sprintf("%d steps", n),
			Trace:    result.Trace,
		}
	}
	return nil
}

// normalizePlain maps YAML data onto the plain form composite.Plain
// produces, so that the two can be compared directly.
func normalizePlain(v any) (any, error) {
	rv, err := composite.FromPlain(v)
	if err != nil {
		return nil, err
	}
	return composite.Plain(rv)
}
