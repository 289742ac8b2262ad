//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target when running mage without arguments.
var Default = Build

// Build builds the server binary.
func Build() error {
	fmt.Println("Building server...")
	return sh.Run("go", "build", "-o", "bin/imagegen", "./cmd/server")
}

// Test runs all tests.
func Test() error {
	fmt.Println("Running tests...")
	return sh.Run("go", "test", "-race", "./...")
}

// TestCover runs tests with coverage.
func TestCover() error {
	fmt.Println("Running tests with coverage...")
	return sh.Run("go", "test", "-cover", "-coverprofile=coverage.out", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	fmt.Println("Running linter...")
	return sh.Run("golangci-lint", "run", "./...")
}

// Vet runs go vet.
func Vet() error {
	fmt.Println("Running go vet...")
	return sh.Run("go", "vet", "./...")
}

// Tidy runs go mod tidy.
func Tidy() error {
	fmt.Println("Running go mod tidy...")
	return sh.Run("go", "mod", "tidy")
}

// Clean removes build artifacts.
func Clean() error {
	fmt.Println("Cleaning...")
	if err := os.RemoveAll("bin"); err != nil {
		return err
	}
	_ = os.Remove("coverage.out")
	return nil
}

// CI runs the CI pipeline (tidy, vet, test with coverage).
func CI() error {
	mg.SerialDeps(Tidy, Vet, TestCover)
	return nil
}

// Dev builds and runs the server for development.
func Dev() error {
	mg.Deps(Build)
	fmt.Println("Starting server...")
	cmd := exec.Command("./bin/imagegen")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Install installs development tools.
func Install() error {
	fmt.Println("Installing development tools...")
	return sh.Run("go", "install", "github.com/golangci/golangci-lint/cmd/golangci-lint@latest")
}
