//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Fetch builds the CLI and fetches the papers listed in the file named by
// $INPUT (default papers.ris).
func Fetch() error {
	mg.Deps(Build, Init)

	input := os.Getenv("INPUT")
	if input == "" {
		input = "papers.ris"
	}
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("input %s: %w", input, err)
	}
	return sh.RunV(filepath.Join(binDir, binName), "fetch", "--input", input)
}

// Validate checks the PDFs already in papers/ and removes invalid ones.
func Validate() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "check", "--clean", "papers")
}
