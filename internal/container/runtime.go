// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container detects a container runtime and runs one-shot
// containers with piped stdio. It backs the containerised pandoc converter
// used when no local pandoc is installed.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

var (
	// ErrNoRuntime means neither docker nor podman is usable.
	ErrNoRuntime = errors.New("no container runtime available")

	// ErrImageMissing means the image is not present locally.
	ErrImageMissing = errors.New("image not present")
)

// Runtime is a container engine able to run pandoc images.
type Runtime interface {
	// Name returns the engine binary ("docker" or "podman").
	Name() string

	// ImageExists returns nil when image is present locally and an error
	// wrapping ErrImageMissing otherwise.
	ImageExists(ctx context.Context, image string) error

	// Pull fetches image from its registry.
	Pull(ctx context.Context, image string) error

	// Run starts image with args in a throwaway container without network
	// access. stdin is attached; the container is removed on exit.
	Run(ctx context.Context, image string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

// executor runs engine commands. Tests substitute a recorder.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osExecutor) Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// engine describes how one container CLI checks for a local image.
type engine struct {
	bin        string
	imageProbe []string
}

// engines lists the supported CLIs in detection order.
var engines = []engine{
	{bin: "docker", imageProbe: []string{"image", "inspect"}},
	{bin: "podman", imageProbe: []string{"image", "exists"}},
}

type cli struct {
	engine
	exec executor
}

func (c *cli) Name() string { return c.bin }

// usable reports whether the binary is on PATH and its daemon answers.
func (c *cli) usable(ctx context.Context) bool {
	if _, err := c.exec.LookPath(c.bin); err != nil {
		return false
	}
	return c.exec.Run(ctx, c.bin, []string{"info"}, nil, io.Discard, io.Discard) == nil
}

func (c *cli) ImageExists(ctx context.Context, image string) error {
	args := append(append([]string{}, c.imageProbe...), image)
	if err := c.exec.Run(ctx, c.bin, args, nil, io.Discard, io.Discard); err != nil {
		return fmt.Errorf("%s: %w: %s", c.bin, ErrImageMissing, image)
	}
	return nil
}

func (c *cli) Pull(ctx context.Context, image string) error {
	var stderr strings.Builder
	if err := c.exec.Run(ctx, c.bin, []string{"pull", "--quiet", image}, nil, io.Discard, &stderr); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s pull %s: %w: %s", c.bin, image, err, msg)
		}
		return fmt.Errorf("%s pull %s: %w", c.bin, image, err)
	}
	return nil
}

func (c *cli) Run(ctx context.Context, image string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	full := append([]string{"run", "--rm", "-i", "--network", "none", image}, args...)
	if err := c.exec.Run(ctx, c.bin, full, stdin, stdout, stderr); err != nil {
		return fmt.Errorf("%s run %s: %w", c.bin, image, err)
	}
	return nil
}

// Detect returns the first usable engine. A non-empty prefer restricts
// detection to that engine.
func Detect(ctx context.Context, prefer string) (Runtime, error) {
	return detect(ctx, osExecutor{}, prefer)
}

func detect(ctx context.Context, exec executor, prefer string) (Runtime, error) {
	var tried []string
	for _, e := range engines {
		if prefer != "" && e.bin != prefer {
			continue
		}
		tried = append(tried, e.bin)
		c := &cli{engine: e, exec: exec}
		if c.usable(ctx) {
			return c, nil
		}
	}
	if len(tried) == 0 {
		return nil, fmt.Errorf("%w: unknown runtime %q (want docker or podman)", ErrNoRuntime, prefer)
	}
	return nil, fmt.Errorf("%w: tried %s", ErrNoRuntime, strings.Join(tried, ", "))
}
