//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs a single dispatch.
func (Run) Dispatch() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run dispatch...")
	if _, err := executeCmd("go", withArgs("run", "main.go", "run"), withStream()); err != nil {
		return err
	}
	return nil
}

// Compiles the shaders and starts watch mode.
func (Run) Watch() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run watch mode...")
	if _, err := executeCmd("go", withArgs("run", "main.go", "watch"), withStream()); err != nil {
		return err
	}
	return nil
}
