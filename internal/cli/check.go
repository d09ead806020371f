package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/lockdown/internal/compiler"
	"github.com/roach88/lockdown/internal/store"
)

// CheckedFinding is one finding in check output.
type CheckedFinding struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
	Detail  string `json:"detail"`
	Line    int    `json:"line,omitempty"`
}

// CheckResult is the outcome of a check run.
type CheckResult struct {
	RunID    string           `json:"run_id,omitempty"`
	Findings []CheckedFinding `json:"findings"`
	Passed   int              `json:"passed"`
	Failed   int              `json:"failed"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <signatures-dir>",
		Short: "Validate signatures and record the verdicts",
		Long: `Run every static check over a signature directory: self-consistency
and the tolerance gate for declared types, inference and break-type
matching for functions, and the declared relations.

When a verdict store is configured (--db, LOCKDOWN_DB or db: in
lockdown.yaml) every finding is recorded under a new run.

Exit codes:
  0 - All checks passed
  1 - One or more checks failed
  2 - Command error (compile error, unreadable store, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}
}

func runCheck(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	cfg := opts.config()

	m, err := loadModule(f, dir)
	if err != nil {
		return err
	}
	findings := compiler.Check(m, cfg.Capabilities)

	result := CheckResult{Findings: make([]CheckedFinding, 0, len(findings))}
	for _, fd := range findings {
		result.Findings = append(result.Findings, CheckedFinding{
			Kind:    fd.Kind,
			Subject: fd.Subject,
			OK:      fd.OK,
			Code:    fd.Code,
			Detail:  fd.Detail,
			Line:    fd.Pos.Line(),
		})
		if fd.OK {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if cfg.DB != "" {
		runID, err := recordFindings(cmd.Context(), cfg.DB, dir, findings)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		result.RunID = runID
		f.VerboseLog("Recorded %d verdict(s) in run %s", len(findings), runID)
	}

	status := "ok"
	if result.Failed > 0 {
		status = "fail"
	}
	if err := f.Result(status, result, func(w io.Writer) { outputCheckText(w, opts.Verbose, result) }); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d check(s) failed", result.Failed))
	}
	return nil
}

func outputCheckText(w io.Writer, verbose bool, result CheckResult) {
	for _, fd := range result.Findings {
		switch {
		case !fd.OK:
			e := compiler.ValidationError{Field: fd.Subject, Message: fd.Detail, Code: fd.Code, Line: fd.Line}
			fmt.Fprintf(w, "✗ %s\n", e.Error())
		case verbose:
			fmt.Fprintf(w, "✓ %s %s: %s\n", fd.Kind, fd.Subject, fd.Detail)
		}
	}
	total := result.Passed + result.Failed
	if result.Failed > 0 {
		fmt.Fprintf(w, "\n%d of %d check(s) failed\n", result.Failed, total)
	} else {
		fmt.Fprintf(w, "✓ %d check(s) passed\n", total)
	}
	if result.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", result.RunID)
	}
}

// recordFindings stores every finding as a verdict of a new run. Relation
// findings record the relation answer itself, so later subtype queries can
// reuse it.
func recordFindings(ctx context.Context, path, label string, findings []compiler.Finding) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer st.Close()

	run, err := st.BeginRun(ctx, label)
	if err != nil {
		return "", err
	}
	for _, fd := range findings {
		if fd.Kind == compiler.KindRelation && fd.Target != nil && fd.Candidate != nil {
			if _, _, err := run.CheckRelation(ctx, fd.Subject, fd.Target, fd.Candidate); err != nil {
				return "", err
			}
			continue
		}

		v := store.Verdict{
			Kind:    store.VerdictKind(fd.Kind),
			Subject: fd.Subject,
			OK:      fd.OK,
			Detail:  fd.Detail,
		}
		if fd.Target != nil {
			if v.TargetID, err = st.WriteType(ctx, fd.Subject, fd.Target); err != nil {
				return "", err
			}
		}
		if _, err := run.Record(ctx, v); err != nil {
			return "", err
		}
	}
	return run.ID, nil
}
