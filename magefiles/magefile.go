//go:build mage

// Package main provides build targets for lockdown using Mage.
//
// Usage:
//
//	mage build    Compile the lockdown binary to bin/
//	mage test     Run all tests
//	mage golden   Regenerate the harness golden traces
//	mage check    Check the example signatures with the built binary
//	mage clean    Remove build artifacts
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "lockdown"
	binaryDir  = "bin"
	cmdDir     = "./cmd/lockdown"
)

// Build compiles the lockdown binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs all tests.
func Test() error {
	return sh.RunV(binGo, "test", "./...")
}

// Golden regenerates the golden traces of the scenario harness.
func Golden() error {
	return sh.RunV(binGo, "test", "./internal/harness", "-run", "Golden", "-update")
}

// Check builds the binary and checks the example signatures.
func Check() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binaryDir, binaryName), "check", "testdata/signatures")
}

// Clean removes build artifacts.
func Clean() error {
	return os.RemoveAll(binaryDir)
}
