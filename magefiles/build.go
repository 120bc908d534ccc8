//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Builds the testbed binary into bin/.
func (Build) Demo() error {
	if err := tidy(); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("build", "-o", "bin/xrender", "."), withEnv("CGO_ENABLED=1"), withStream())
	return err
}

type Test mg.Namespace

// Runs the whole test suite, SDL2 packages included.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withEnv("CGO_ENABLED=1"), withStream())
	return err
}

// Runs the test suite with the race detector, the job and asset watcher tests rely on it.
func (Test) Race() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withEnv("CGO_ENABLED=1"), withStream())
	return err
}

// Runs the tests of every package that builds without SDL2, for machines without it.
func (Test) Core() error {
	pkgs, err := pureGoPackages()
	if err != nil {
		return err
	}
	_, err = executeCmd("go", withArgs(append([]string{"test"}, pkgs...)...), withEnv("CGO_ENABLED=0"), withStream())
	return err
}
