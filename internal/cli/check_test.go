package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockdown/internal/store"
)

const failingSignatures = `
types: {
	Count: {type: "Integer"}
}
functions: {
	leaky: {
		break_types: value: [{out: {type: "Integer"}}]
		observed: code: {
			value: [{out: {type: "Integer"}}]
			exception: [{out: {type: "String"}}]
		}
	}
}
relations: [
	{target: "Count", candidate: "Count", expect: false},
]
`

func writeSignatures(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sig.cue"), []byte(content), 0o644))
	return dir
}

func checkJSON(t *testing.T, args ...string) (CheckResult, error) {
	t.Helper()
	out, err := execute(t, append(args, "--format", "json")...)
	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp.Data, err
}

func TestCheckCommand_Passes(t *testing.T) {
	out, err := execute(t, "check", signaturesDir)
	require.NoError(t, err)
	assert.Contains(t, out, "check(s) passed")
	assert.NotContains(t, out, "✗")
	assert.NotContains(t, out, "Run:")
}

func TestCheckCommand_VerboseListsFindings(t *testing.T) {
	out, err := execute(t, "check", signaturesDir, "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ breaks functions.norm")
}

func TestCheckCommand_Failures(t *testing.T) {
	dir := writeSignatures(t, failingSignatures)

	out, err := execute(t, "check", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "[E207]")
	assert.Contains(t, out, "[E205]")
	assert.Contains(t, out, "check(s) failed")

	result, err := checkJSON(t, "check", dir)
	require.Error(t, err)
	assert.Equal(t, 2, result.Failed)
	for _, fd := range result.Findings {
		if !fd.OK {
			assert.Positive(t, fd.Line, fd.Subject)
		}
	}
}

func TestCheckCommand_RecordsVerdicts(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "verdicts.db")

	result, err := checkJSON(t, "check", signaturesDir, "--db", dbPath)
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	verdicts, err := st.Verdicts(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Len(t, verdicts, result.Passed+result.Failed)

	var relations int
	for i, v := range verdicts {
		assert.Equal(t, int64(i+1), v.Seq)
		if v.Kind == store.KindRelation {
			relations++
			assert.NotEmpty(t, v.TargetID)
			assert.NotEmpty(t, v.CandidateID)
		}
	}
	assert.Equal(t, 2, relations)
}

func TestCheckCommand_RelationsReusedAcrossRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "verdicts.db")

	first, err := checkJSON(t, "check", signaturesDir, "--db", dbPath)
	require.NoError(t, err)
	second, err := checkJSON(t, "check", signaturesDir, "--db", dbPath)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	verdicts, err := st.Verdicts(context.Background(), second.RunID)
	require.NoError(t, err)
	for _, v := range verdicts {
		assert.NotEqual(t, store.KindRelation, v.Kind, "relation answers come from the first run")
	}
	assert.Len(t, verdicts, second.Passed+second.Failed-2)
}
