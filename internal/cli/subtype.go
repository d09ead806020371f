package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/lockdown/internal/store"
)

// SubtypeResult answers one relation query.
type SubtypeResult struct {
	Target    string `json:"target"`
	Candidate string `json:"candidate"`
	Copyable  bool   `json:"copyable"`
	Cached    bool   `json:"cached"`
	RunID     string `json:"run_id,omitempty"`
}

// NewSubtypeCommand creates the subtype command.
func NewSubtypeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "subtype <signatures-dir> <target> <candidate>",
		Short: "Ask whether a candidate type is copyable into a target type",
		Long: `Decide whether values of the candidate type may be copied into a
location of the target type. Both are names declared under types: in the
signature directory.

With a verdict store configured, answers recorded by earlier runs are
reused and fresh answers are recorded.

Exit codes:
  0 - The target accepts the candidate
  1 - The target rejects the candidate
  2 - Command error (unknown type, compile error, unreadable store)`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubtype(rootOpts, args[0], args[1], args[2], cmd)
		},
	}
}

func runSubtype(opts *RootOptions, dir, targetName, candidateName string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	cfg := opts.config()

	m, err := loadModule(f, dir)
	if err != nil {
		return err
	}
	target, ok := m.Type(targetName)
	if !ok {
		return f.Fail(ExitCommandError, ErrCodeUnknownType, fmt.Sprintf("unknown target type %q", targetName), nil)
	}
	candidate, ok := m.Type(candidateName)
	if !ok {
		return f.Fail(ExitCommandError, ErrCodeUnknownType, fmt.Sprintf("unknown candidate type %q", candidateName), nil)
	}

	result := SubtypeResult{Target: targetName, Candidate: candidateName}
	if cfg.DB == "" {
		result.Copyable = target.IsCopyableFrom(candidate)
	} else {
		st, err := store.Open(cfg.DB)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		defer st.Close()

		run, err := st.BeginRun(cmd.Context(), "subtype")
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		subject := fmt.Sprintf("%s <- %s", targetName, candidateName)
		result.Copyable, result.Cached, err = run.CheckRelation(cmd.Context(), subject, target, candidate)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		result.RunID = run.ID
	}

	status := "ok"
	if !result.Copyable {
		status = "fail"
	}
	err = f.Result(status, result, func(w io.Writer) {
		verb := "accepts"
		if !result.Copyable {
			verb = "rejects"
		}
		fmt.Fprintf(w, "%s %s %s", targetName, verb, candidateName)
		if result.Cached {
			fmt.Fprint(w, " (cached)")
		}
		fmt.Fprintln(w)
		f.VerboseLog("%s\n%s", target, candidate)
	})
	if err != nil {
		return err
	}
	if !result.Copyable {
		return NewExitError(ExitFailure, fmt.Sprintf("%s rejects %s", targetName, candidateName))
	}
	return nil
}
