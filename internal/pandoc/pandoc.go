// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pandoc runs the pandoc binary to turn DOCX files into Markdown.
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
)

const (
	defaultBin     = "pandoc"
	defaultTimeout = 120 * time.Second
	maxStderr      = 2048
)

// ErrUnavailable means the pandoc binary is missing or does not run.
var ErrUnavailable = errors.New("pandoc: converter unavailable")

// Error is a pandoc run that started but did not produce Markdown: a
// non-zero exit, a timeout, or missing output.
type Error struct {
	Input  string
	Code   int
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("pandoc: conversion error for %s", e.Input)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.Code)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Pandoc converts DOCX to Markdown with an external pandoc binary.
type Pandoc struct {
	bin     string
	timeout time.Duration
	exec    executor
}

// New returns a Pandoc using bin (default "pandoc") with each run bounded
// by timeout (default 120s).
func New(bin string, timeout time.Duration) *Pandoc {
	return newPandoc(bin, timeout, &osExecutor{})
}

func newPandoc(bin string, timeout time.Duration, exec executor) *Pandoc {
	if bin == "" {
		bin = defaultBin
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Pandoc{bin: bin, timeout: timeout, exec: exec}
}

// Name returns the configured binary.
func (p *Pandoc) Name() string { return p.bin }

// Probe checks that pandoc is installed and answers --version. It returns
// the first line of the version banner (e.g. "pandoc 3.1.11").
func (p *Pandoc) Probe(ctx context.Context) (string, error) {
	if _, err := p.exec.LookPath(p.bin); err != nil {
		return "", fmt.Errorf("%w: %s not found in PATH", ErrUnavailable, p.bin)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var out bytes.Buffer
	if err := p.exec.Run(ctx, p.bin, []string{"--version"}, &out, io.Discard); err != nil {
		return "", fmt.Errorf("%w: %s --version: %v", ErrUnavailable, p.bin, err)
	}
	line, _, _ := strings.Cut(out.String(), "\n")
	return strings.TrimSpace(line), nil
}

// Convert runs pandoc on the DOCX at docxPath and writes Markdown to
// mdPath.
func (p *Pandoc) Convert(ctx context.Context, docxPath, mdPath string) error {
	if _, err := p.exec.LookPath(p.bin); err != nil {
		return fmt.Errorf("%w: %s not found in PATH", ErrUnavailable, p.bin)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{docxPath, "-f", "docx", "-t", "markdown", "-o", mdPath}
	var stderr bytes.Buffer
	err := p.exec.Run(ctx, p.bin, args, io.Discard, &stderr)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		perr := &Error{Input: docxPath, Stderr: trimStderr(stderr.String()), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			perr.Code = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			perr.Code = 0
			perr.Err = fmt.Errorf("timed out after %s: %w", p.timeout, ctx.Err())
		}
		return perr
	}

	if _, err := os.Stat(mdPath); err != nil {
		return &Error{Input: docxPath, Err: fmt.Errorf("no output produced: %w", err)}
	}
	return nil
}

func trimStderr(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = s[:maxStderr] + "..."
	}
	return s
}
