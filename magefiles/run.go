//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed with the configuration in xrender.toml.
func (Run) Demo() error {
	fmt.Println("Run testbed...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "xrender.toml"), withEnv("CGO_ENABLED=1"), withStream()); err != nil {
		return err
	}
	return nil
}
