package main

import (
	"github.com/vinayprograms/pilot/internal/setup"
)

// runSetup launches the interactive setup wizard.
func runSetup() error {
	return setup.Run()
}
