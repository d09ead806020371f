package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/lockdown/internal/types"
)

// CompiledType is one declared type in compile output.
type CompiledType struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Type string `json:"type"`
}

// CompilationResult summarizes a compiled signature directory.
type CompilationResult struct {
	Types     []CompiledType `json:"types"`
	Functions []string       `json:"functions"`
	Relations int            `json:"relations"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compile <signatures-dir>",
		Short: "Compile CUE signature files and print type IDs",
		Long: `Compile the CUE signature files of a directory and print every declared
type with its content-addressed ID.

Exit codes:
  0 - Compiled
  2 - Compile error or missing directory`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(rootOpts, args[0], cmd)
		},
	}
}

func runCompile(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	m, err := loadModule(f, dir)
	if err != nil {
		return err
	}

	result := CompilationResult{
		Types:     make([]CompiledType, 0, len(m.Types)),
		Functions: make([]string, 0, len(m.Functions)),
		Relations: len(m.Relations),
	}
	for _, nt := range m.Types {
		id, err := types.TypeID(nt.Type)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("type %s: %v", nt.Name, err), nil)
		}
		result.Types = append(result.Types, CompiledType{Name: nt.Name, ID: id, Type: nt.Type.String()})
	}
	for _, sig := range m.Functions {
		result.Functions = append(result.Functions, sig.Name)
	}

	return f.Result("ok", result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Compiled %d type(s), %d function(s), %d relation(s)\n",
			len(result.Types), len(result.Functions), result.Relations)
		if len(result.Types) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Types:")
			for _, ct := range result.Types {
				fmt.Fprintf(w, "  %s %s\n    %s\n", ct.Name, ct.ID, ct.Type)
			}
		}
	})
}
