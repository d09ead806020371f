package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subtypeJSON(t *testing.T, args ...string) (SubtypeResult, error) {
	t.Helper()
	out, err := execute(t, append(args, "--format", "json")...)
	var resp struct {
		Status string        `json:"status"`
		Data   SubtypeResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp.Data, err
}

func TestSubtypeCommand_Accepts(t *testing.T) {
	out, err := execute(t, "subtype", signaturesDir, "ReadonlyX", "Point")
	require.NoError(t, err)
	assert.Equal(t, "ReadonlyX accepts Point\n", out)
}

func TestSubtypeCommand_Rejects(t *testing.T) {
	out, err := execute(t, "subtype", signaturesDir, "Point", "ReadonlyX")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "Point rejects ReadonlyX\n", out)
}

func TestSubtypeCommand_UnknownType(t *testing.T) {
	out, err := execute(t, "subtype", signaturesDir, "Point", "Nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
	assert.Contains(t, out, `"Nope"`)
}

func TestSubtypeCommand_CachedWithStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "verdicts.db")

	first, err := subtypeJSON(t, "subtype", signaturesDir, "ReadonlyX", "Point", "--db", dbPath)
	require.NoError(t, err)
	assert.True(t, first.Copyable)
	assert.False(t, first.Cached)
	assert.NotEmpty(t, first.RunID)

	second, err := subtypeJSON(t, "subtype", signaturesDir, "ReadonlyX", "Point", "--db", dbPath)
	require.NoError(t, err)
	assert.True(t, second.Copyable)
	assert.True(t, second.Cached)
	assert.NotEqual(t, first.RunID, second.RunID)

	out, err := execute(t, "subtype", signaturesDir, "ReadonlyX", "Point", "--db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "ReadonlyX accepts Point (cached)\n", out)
}

func TestSubtypeCommand_ReusesCheckVerdicts(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "verdicts.db")

	_, err := execute(t, "check", signaturesDir, "--db", dbPath)
	require.NoError(t, err)

	result, err := subtypeJSON(t, "subtype", signaturesDir, "Point", "ReadonlyX", "--db", dbPath)
	require.Error(t, err)
	assert.False(t, result.Copyable)
	assert.True(t, result.Cached)
}
