package function

import (
	"context"

	"github.com/roach88/lockdown/internal/composite"
	"github.com/roach88/lockdown/internal/types"
)

// Continuation is the rest of a computation captured at a suspension
// point. Invoking it resumes the computation with a value of its restart
// type. It may be invoked once.
type Continuation struct {
	manager     FrameManager
	frames      []Frame
	callback    func(ctx context.Context) (Outcome, error)
	restartType types.Type
	breaks      types.BreakTypes
	resumed     bool
}

// NewContinuation captures frames of manager. callback continues the
// computation once the frames are primed with the restart value.
//
// Capturing frames that already hold a restart value would resume them
// twice and is fatal, as is a nil break table.
func NewContinuation(manager FrameManager, frames []Frame, callback func(ctx context.Context) (Outcome, error), restartType types.Type, breaks types.BreakTypes) (*Continuation, error) {
	if breaks == nil {
		return nil, types.Fatalf(types.FatalContinuation, "continuation without break types")
	}
	for i, frame := range frames {
		if frame.HasRestartValue() {
			return nil, types.Fatalf(types.FatalContinuation, "frame %d already holds a restart value", i)
		}
	}
	return &Continuation{
		manager:     manager,
		frames:      frames,
		callback:    callback,
		restartType: restartType,
		breaks:      breaks,
	}, nil
}

// Type returns the function type of the continuation: it takes the restart
// value and breaks like the rest of the computation.
func (c *Continuation) Type() types.Type {
	return &types.ClosedFunctionType{Argument: c.restartType, Breaks: c.breaks}
}

// Resumed reports whether the continuation was invoked.
func (c *Continuation) Resumed() bool {
	return c.resumed
}

// Invoke resumes the computation with value. The frames are primed only
// when the frame manager reports them fully wound; otherwise the callback
// replays into frames that are still being restored.
func (c *Continuation) Invoke(ctx context.Context, value any, _ FrameManager) (Outcome, error) {
	if c.resumed {
		return Outcome{}, types.Fatalf(types.FatalContinuation, "continuation already resumed")
	}
	if !c.restartType.IsCopyableFrom(composite.TypeOf(value)) {
		return Outcome{}, types.Fatalf(types.FatalContinuation, "restart value of type %s does not match %s", composite.TypeOf(value), c.restartType)
	}
	c.resumed = true
	if c.manager.FullyWound() {
		if err := c.manager.PrepareRestart(c.frames, value); err != nil {
			return Outcome{}, err
		}
	}
	return c.callback(ctx)
}
