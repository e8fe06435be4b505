//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/sh"
)

// Variables
const (
	binaryDir = "bin"
	binary    = "socialauth"
	mainPkg   = "./services/auth/cmd"
	goFlags   = "-v"
	ldFlags   = "-s -w"
)

// ============================================================================
// Build targets
// ============================================================================

// Build builds the socialauth command.
func Build() error {
	fmt.Println("Building socialauth...")
	if err := os.MkdirAll(binaryDir, 0755); err != nil {
		return err
	}
	return sh.Run("go", "build", goFlags, "-ldflags", ldFlags, "-o", filepath.Join(binaryDir, binary), mainPkg)
}

// ============================================================================
// Development targets
// ============================================================================

// Login runs an interactive login (usage: mage login google).
func Login(provider string) error {
	args := []string{"run", mainPkg, "login", strings.ToLower(provider)}
	if strings.EqualFold(provider, "facebook") {
		args = append(args, "--sync-profile")
	}
	return sh.RunV("go", args...)
}

// Serve runs the redirect receiver with health and metrics endpoints.
func Serve() error {
	return sh.RunV("go", "run", mainPkg, "serve")
}

// ============================================================================
// Testing
// ============================================================================

// Test runs all tests.
func Test() error {
	return sh.Run("go", "test", "-v", "-race", "-cover", "./...")
}

// TestUnit runs unit tests only.
func TestUnit() error {
	return sh.Run("go", "test", "-v", "-race", "-cover", "-short", "./...")
}

// TestIntegration runs the end-to-end facade tests.
func TestIntegration() error {
	return sh.Run("go", "test", "-v", "-race", "-cover", "-run", "EndToEnd", "./...")
}

// TestCoverage generates test coverage report.
func TestCoverage() error {
	if err := sh.Run("go", "test", "-v", "-race", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	if err := sh.Run("go", "tool", "cover", "-html=coverage.out", "-o", "coverage.html"); err != nil {
		return err
	}
	fmt.Println("Coverage report generated: coverage.html")
	return nil
}

// ============================================================================
// Code quality
// ============================================================================

// Lint runs the linter.
func Lint() error {
	return sh.Run("golangci-lint", "run", "./...")
}

// Fmt formats code.
func Fmt() error {
	if err := sh.Run("go", "fmt", "./..."); err != nil {
		return err
	}
	return sh.Run("gofumpt", "-l", "-w", ".")
}

// Vet runs go vet.
func Vet() error {
	return sh.Run("go", "vet", "./...")
}

// Tidy tidies and verifies go modules.
func Tidy() error {
	if err := sh.Run("go", "mod", "tidy"); err != nil {
		return err
	}
	return sh.Run("go", "mod", "verify")
}

// ============================================================================
// Security
// ============================================================================

// GenerateAppleKey generates a P-256 key for signing Sign in with Apple
// client secrets during local development.
func GenerateAppleKey() error {
	fmt.Println("Generating P-256 key pair...")
	if err := os.MkdirAll("keys", 0755); err != nil {
		return err
	}
	if err := sh.Run("openssl", "ecparam", "-name", "prime256v1", "-genkey", "-noout", "-out", "keys/apple.pem"); err != nil {
		return err
	}
	if err := os.Chmod("keys/apple.pem", 0600); err != nil {
		return err
	}
	fmt.Println("Key generated at ./keys/apple.pem (set providers.apple.private_key_path)")
	return nil
}

// SecurityScan runs security scanner.
func SecurityScan() error {
	return sh.Run("gosec", "./...")
}

// ============================================================================
// Cleanup
// ============================================================================

// Clean cleans build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	_ = os.Remove("coverage.out")
	_ = os.Remove("coverage.html")
	return sh.Run("go", "clean", "-cache")
}

// ============================================================================
// Installation
// ============================================================================

// InstallTools installs development tools.
func InstallTools() error {
	fmt.Println("Installing development tools...")
	tools := []string{
		"github.com/golangci/golangci-lint/cmd/golangci-lint@latest",
		"mvdan.cc/gofumpt@latest",
		"github.com/securego/gosec/v2/cmd/gosec@latest",
	}
	for _, module := range tools {
		if err := sh.Run("go", "install", module); err != nil {
			return err
		}
	}
	return nil
}

// Deps downloads dependencies.
func Deps() error {
	return sh.Run("go", "mod", "download")
}
