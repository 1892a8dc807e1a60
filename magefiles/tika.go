//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Tika manages a local Apache Tika server in a container.
type Tika mg.Namespace

const (
	tikaImage     = "apache/tika:latest-full"
	tikaContainer = "docwalk-tika"
)

// Up starts the Tika server on localhost:9998.
func (Tika) Up() error {
	if err := sh.RunV(containerCLI(), "run", "-d", "--rm", "--name", tikaContainer, "-p", "9998:9998", tikaImage); err != nil {
		return fmt.Errorf("starting tika: %w", err)
	}
	fmt.Println("Tika listening on http://localhost:9998")
	return nil
}

// Down stops the Tika server.
func (Tika) Down() error {
	return sh.RunV(containerCLI(), "stop", tikaContainer)
}

// containerCLI prefers docker and falls back to podman.
func containerCLI() string {
	if err := sh.Run("docker", "version"); err == nil {
		return "docker"
	}
	return "podman"
}
