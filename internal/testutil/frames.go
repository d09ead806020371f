package testutil

import (
	"fmt"

	"github.com/roach88/lockdown/internal/function"
)

// Frames is a memoizing function.FrameManager for tests.
//
// Acquiring the same owner twice returns the same frame, so a second run
// of a function replays the steps the first run completed. Log records
// acquisitions, releases, executed steps and replayed steps in order.
type Frames struct {
	// Wound is what FullyWound reports.
	Wound bool

	Log []string

	frames map[any]*Frame
}

// NewFrames returns a frame manager reporting fully wound.
func NewFrames() *Frames {
	return &Frames{Wound: true, frames: make(map[any]*Frame)}
}

// Acquire implements function.FrameManager.
func (f *Frames) Acquire(owner any) (function.Frame, func()) {
	frame, ok := f.frames[owner]
	if !ok {
		frame = &Frame{manager: f, memo: make(map[string]any)}
		f.frames[owner] = frame
	}
	f.Log = append(f.Log, "acquire")
	return frame, func() { f.Log = append(f.Log, "release") }
}

// FullyWound implements function.FrameManager.
func (f *Frames) FullyWound() bool {
	return f.Wound
}

// PrepareRestart implements function.FrameManager.
func (f *Frames) PrepareRestart(frames []function.Frame, value any) error {
	for _, fr := range frames {
		frame, ok := fr.(*Frame)
		if !ok {
			return fmt.Errorf("foreign frame %T", fr)
		}
		frame.restart = value
		frame.hasRestart = true
	}
	f.Log = append(f.Log, fmt.Sprintf("restart %v", value))
	return nil
}

// Forget drops the frame of owner so the next run starts afresh.
func (f *Frames) Forget(owner any) {
	delete(f.frames, owner)
}

// Frame is one memoizing frame of Frames.
type Frame struct {
	manager    *Frames
	memo       map[string]any
	restart    any
	hasRestart bool
}

// NewFrame returns a detached frame, e.g. for capturing in a Continuation.
func (f *Frames) NewFrame() *Frame {
	return &Frame{manager: f, memo: make(map[string]any)}
}

// Step implements function.Frame. Failed steps are not memoized.
func (fr *Frame) Step(label string, thunk func() (any, error)) (any, error) {
	if v, ok := fr.memo[label]; ok {
		fr.manager.Log = append(fr.manager.Log, "replay "+label)
		return v, nil
	}
	fr.manager.Log = append(fr.manager.Log, "step "+label)
	v, err := thunk()
	if err != nil {
		return nil, err
	}
	fr.memo[label] = v
	return v, nil
}

// HasRestartValue implements function.Frame.
func (fr *Frame) HasRestartValue() bool {
	return fr.hasRestart
}

// RestartValue returns the value the frame will resume with.
func (fr *Frame) RestartValue() any {
	return fr.restart
}
