package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadResult is a compiled signature directory.
type LoadResult struct {
	Module    *Module
	FileCount int
}

// LoadDir loads every CUE file of the package in dir and compiles it.
// A nil result means nothing could be compiled at all; otherwise errs
// lists the declarations that failed.
func LoadDir(dir string) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, []error{&CompileError{Field: "dir", Message: fmt.Sprintf("cannot access %s: %v", dir, err)}}
	}
	if !info.IsDir() {
		return nil, []error{&CompileError{Field: "dir", Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, []error{&CompileError{Field: "dir", Message: err.Error()}}
	}
	if len(files) == 0 {
		return nil, []error{&CompileError{Field: "dir", Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&CompileError{Field: "load", Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{formatCUEError(inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	m, errs := CompileModule(value)
	if m == nil {
		return nil, errs
	}
	return &LoadResult{Module: m, FileCount: len(files)}, errs
}

// CompileString compiles CUE source held in memory, e.g. in tests.
func CompileString(src, filename string) (*Module, []error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	return CompileModule(v)
}
