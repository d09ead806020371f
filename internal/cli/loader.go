package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/roach88/lockdown/internal/compiler"
)

// loadModule compiles the signature directory dir. Any compile error is
// written through f and returned as an ExitCommandError, so callers only
// ever see a complete module.
func loadModule(f *OutputFormatter, dir string) (*compiler.Module, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("signature directory not found: %s", dir), nil)
	}

	result, errs := compiler.LoadDir(dir)
	if result == nil && len(errs) > 0 {
		code := ErrCodeCompile
		if strings.Contains(errs[0].Error(), "no CUE files") {
			code = ErrCodeNoFiles
		}
		return nil, f.Fail(ExitCommandError, code, errs[0].Error(), nil)
	}
	if len(errs) > 0 {
		return nil, outputCompileErrors(f, errs)
	}

	f.VerboseLog("Compiled %d CUE file(s) in %s", result.FileCount, dir)
	return result.Module, nil
}

// outputCompileErrors outputs every compilation error.
func outputCompileErrors(f *OutputFormatter, errs []error) error {
	cliErrors := make([]CLIError, len(errs))
	for i, err := range errs {
		cliErrors[i] = CLIError{Code: ErrCodeCompile, Message: err.Error()}
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			cliErrors[i].Message = ce.Message
			cliErrors[i].Details = map[string]any{"field": ce.Field, "position": ce.Pos.String()}
		}
	}

	_ = f.Result("error", cliErrors, func(w io.Writer) {
		fmt.Fprintln(w, "✗ Compilation failed")
		fmt.Fprintln(w)
		for _, err := range errs {
			fmt.Fprintf(w, "  %s\n", err)
		}
	})
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}
