package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileCommand_Text(t *testing.T) {
	out, err := execute(t, "compile", signaturesDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled 3 type(s), 2 function(s), 2 relation(s)")
	assert.Contains(t, out, "Types:")
	assert.Contains(t, out, "  Point ")
}

func TestCompileCommand_JSON(t *testing.T) {
	out, err := execute(t, "compile", signaturesDir, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"norm", "counter"}, resp.Data.Functions)
	assert.Equal(t, 2, resp.Data.Relations)

	require.Len(t, resp.Data.Types, 3)
	ids := make(map[string]bool)
	for _, ct := range resp.Data.Types {
		assert.NotEmpty(t, ct.ID, ct.Name)
		ids[ct.ID] = true
	}
	assert.Len(t, ids, 3, "distinct types have distinct IDs")
}

func TestCompileCommand_IDsStableAcrossRuns(t *testing.T) {
	first, err := execute(t, "compile", signaturesDir, "--format", "json")
	require.NoError(t, err)
	second, err := execute(t, "compile", signaturesDir, "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompileCommand_MissingDir(t *testing.T) {
	out, err := execute(t, "compile", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestCompileCommand_NoFiles(t *testing.T) {
	_, err := execute(t, "compile", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
}

func TestCompileCommand_CompileErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(`
types: {
	Good: {type: "Integer"}
	Bad: {type: "Nonsense"}
}
`), 0o644))

	out, err := execute(t, "compile", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, "Bad")
}
