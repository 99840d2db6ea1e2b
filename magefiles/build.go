//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Compiles the GLSL compute shaders to SPIR-V.
func (Build) Shaders() error {
	if _, err := executeCmd("glslc", withArgs("assets/shaders/double.comp", "-o", "assets/shaders/double.comp.spv"), withStream()); err != nil {
		return err
	}
	return nil
}

// Builds the magma binary.
func (Build) Binary() error {
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/magma", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the full test suite.
func (Build) Test() error {
	if _, err := executeCmd("go", withArgs("test", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}

// Removes build artifacts.
func (Build) Clean() error {
	if _, err := executeCmd("rm", withArgs("-rf", "bin")); err != nil {
		return err
	}
	return nil
}
