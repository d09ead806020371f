package function

import (
	"context"

	"github.com/roach88/lockdown/internal/ast"
	"github.com/roach88/lockdown/internal/composite"
	"github.com/roach88/lockdown/internal/types"
)

// Break modes with a meaning to this package. Any other mode string is
// passed through untouched.
const (
	ModeValue     = "value"
	ModeException = "exception"
)

// Outcome is how control left an evaluated sub-tree: the mode it broke out
// with and the value it carried.
type Outcome struct {
	Mode  string
	Value any

	// Cause is the tolerated fault an exception outcome was built from.
	Cause error

	// Opcode is the node that produced the outcome, when known.
	Opcode *ast.Node
}

// IsValue reports whether the outcome is a normal completion.
func (o Outcome) IsValue() bool {
	return o.Mode == ModeValue
}

// Evaluator runs opcode trees. It is owned by the embedding interpreter.
type Evaluator interface {
	// Evaluate runs node with scope as its context value.
	Evaluate(ctx context.Context, node *ast.Node, scope *composite.Composite, frames FrameManager) (Outcome, error)

	// BreakTypes infers every way node may break when run in a context of
	// type scopeType.
	BreakTypes(ctx context.Context, node *ast.Node, scopeType *types.CompositeType, frames FrameManager) (types.BreakTypes, error)
}

// FrameManager owns the frames of suspended and resumed evaluations.
type FrameManager interface {
	// Acquire returns the frame of owner and a func releasing it.
	Acquire(owner any) (Frame, func())

	// FullyWound reports whether every captured frame is back on the stack,
	// i.e. a restart may begin.
	FullyWound() bool

	// PrepareRestart hands value to the frames that will resume.
	PrepareRestart(frames []Frame, value any) error
}

// Frame memoizes the steps of one evaluation so that a restarted
// evaluation replays completed steps instead of re-running them.
type Frame interface {
	Step(label string, thunk func() (any, error)) (any, error)
	HasRestartValue() bool
}
