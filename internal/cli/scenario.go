package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/lockdown/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Trace bool // print each scenario's canonical trace
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string          `json:"name"`
	File   string          `json:"file"`
	Pass   bool            `json:"pass"`
	Steps  int             `json:"steps"`
	Errors []string        `json:"errors,omitempty"`
	Trace  json.RawMessage `json:"trace,omitempty"`
}

// ScenarioSummary is the outcome of a scenario command run.
type ScenarioSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file>...",
		Short: "Run manager scenarios",
		Long: `Run YAML scenarios that attach types to values and drive the
accessor micro-ops, checking every expectation.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (unreadable or invalid scenario file)

Examples:
  lockdown scenario testdata/scenarios/*.yaml
  lockdown scenario point.yaml --trace --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print the canonical trace of each scenario")

	return cmd
}

func runScenarios(opts *ScenarioOptions, files []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	summary := ScenarioSummary{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}

	for _, file := range files {
		scenario, err := harness.LoadScenario(file)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeScenario, fmt.Sprintf("%s: %v", file, err), nil)
		}
		f.VerboseLog("Running scenario %s (%s)", scenario.Name, file)

		res, err := harness.Run(scenario, harness.WithLogger(opts.logger(cmd)))
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeScenario, fmt.Sprintf("%s: %v", file, err), nil)
		}

		sr := ScenarioResult{
			Name:   scenario.Name,
			File:   filepath.Base(file),
			Pass:   res.Pass,
			Steps:  len(res.Trace),
			Errors: res.Errors,
		}
		if opts.Trace {
			if sr.Trace, err = harness.MarshalTrace(scenario.Name, res.Trace); err != nil {
				return f.Fail(ExitCommandError, ErrCodeScenario, fmt.Sprintf("%s: %v", file, err), nil)
			}
		}
		summary.Scenarios = append(summary.Scenarios, sr)
		if res.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	status := "ok"
	if summary.Failed > 0 {
		status = "fail"
	}
	if err := f.Result(status, summary, func(w io.Writer) { outputScenarioText(w, summary) }); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}

func outputScenarioText(w io.Writer, summary ScenarioSummary) {
	for _, sr := range summary.Scenarios {
		mark := "✓"
		if !sr.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s (%s, %d step(s))\n", mark, sr.Name, sr.File, sr.Steps)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
		if sr.Trace != nil {
			fmt.Fprintf(w, "    %s\n", sr.Trace)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
}
