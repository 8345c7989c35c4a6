// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pandoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mudcube/gdoc-to-md/internal/container"
)

// Container runs pandoc from a container image (e.g. pandoc/core) for
// hosts without a local install. The DOCX is piped in on stdin and the
// Markdown read from stdout, so no volumes are mounted.
type Container struct {
	rt      container.Runtime
	image   string
	timeout time.Duration
}

// NewContainer returns a Container that runs image on rt, with each run
// bounded by timeout (default 120s).
func NewContainer(rt container.Runtime, image string, timeout time.Duration) *Container {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Container{rt: rt, image: image, timeout: timeout}
}

// Name identifies the runtime and image.
func (c *Container) Name() string { return c.rt.Name() + " " + c.image }

// Probe checks that the image answers --version, pulling it first when
// it is not present locally.
func (c *Container) Probe(ctx context.Context) (string, error) {
	if err := c.rt.ImageExists(ctx, c.image); err != nil {
		if !errors.Is(err, container.ErrImageMissing) {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if err := c.rt.Pull(ctx, c.image); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out bytes.Buffer
	if err := c.rt.Run(ctx, c.image, []string{"--version"}, strings.NewReader(""), &out, io.Discard); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	line, _, _ := strings.Cut(out.String(), "\n")
	return strings.TrimSpace(line), nil
}

// Convert pipes the DOCX at docxPath through the container and writes the
// Markdown to mdPath. On failure mdPath is removed.
func (c *Container) Convert(ctx context.Context, docxPath, mdPath string) error {
	in, err := os.Open(docxPath)
	if err != nil {
		return &Error{Input: docxPath, Err: err}
	}
	defer in.Close()

	out, err := os.Create(mdPath)
	if err != nil {
		return &Error{Input: docxPath, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var stderr bytes.Buffer
	runErr := c.rt.Run(ctx, c.image, []string{"-f", "docx", "-t", "markdown"}, in, out, &stderr)
	closeErr := out.Close()
	if runErr == nil && closeErr == nil {
		return nil
	}
	os.Remove(mdPath)

	if runErr == nil {
		return &Error{Input: docxPath, Err: closeErr}
	}
	perr := &Error{Input: docxPath, Stderr: trimStderr(stderr.String()), Err: runErr}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		perr.Code = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		perr.Code = 0
		perr.Err = fmt.Errorf("timed out after %s: %w", c.timeout, ctx.Err())
	}
	return perr
}
