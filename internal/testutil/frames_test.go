package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockdown/internal/function"
)

func TestFrames_ReplaysCompletedSteps(t *testing.T) {
	frames := NewFrames()
	owner := new(int)
	runs := 0
	step := func() (any, error) { runs++; return runs, nil }

	frame, release := frames.Acquire(owner)
	v, err := frame.Step("a", step)
	require.NoError(t, err)
	release()

	frame, release = frames.Acquire(owner)
	again, err := frame.Step("a", step)
	require.NoError(t, err)
	release()

	assert.Equal(t, v, again)
	assert.Equal(t, 1, runs)
	assert.Equal(t, []string{"acquire", "step a", "release", "acquire", "replay a", "release"}, frames.Log)

	frames.Forget(owner)
	frame, _ = frames.Acquire(owner)
	_, err = frame.Step("a", step)
	require.NoError(t, err)
	assert.Equal(t, 2, runs)
}

func TestFrames_FailedStepsRunAgain(t *testing.T) {
	frames := NewFrames()
	frame := frames.NewFrame()
	fail := true
	step := func() (any, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return "ok", nil
	}

	_, err := frame.Step("s", step)
	require.Error(t, err)
	fail = false
	v, err := frame.Step("s", step)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

type foreignFrame struct{}

func (foreignFrame) Step(string, func() (any, error)) (any, error) { return nil, nil }
func (foreignFrame) HasRestartValue() bool                          { return false }

func TestFrames_PrepareRestart(t *testing.T) {
	frames := NewFrames()
	frame := frames.NewFrame()

	require.NoError(t, frames.PrepareRestart([]function.Frame{frame}, "v"))
	assert.True(t, frame.HasRestartValue())
	assert.Equal(t, "v", frame.RestartValue())

	assert.Error(t, frames.PrepareRestart([]function.Frame{foreignFrame{}}, "v"))
}
