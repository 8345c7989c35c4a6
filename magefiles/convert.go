//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Doctor checks the local prerequisites of a conversion run: pandoc (or a
// container runtime for --pandoc-image) and the OAuth files.
func Doctor() {
	if out, err := sh.Output("pandoc", "--version"); err != nil {
		fmt.Println("pandoc:      not found (use --pandoc-image or --converter html for Google Docs)")
		if rt := containerRuntime(); rt != "" {
			fmt.Printf("container:   %s available for --pandoc-image\n", rt)
		} else {
			fmt.Println("container:   none; only --converter html will convert Google Docs")
		}
	} else {
		fmt.Println("pandoc:     ", firstLine(out))
	}

	for _, f := range []string{"credentials.json", "token.json"} {
		if _, err := os.Stat(f); err == nil {
			fmt.Printf("%-12s present\n", f+":")
		} else {
			fmt.Printf("%-12s missing\n", f+":")
		}
	}
}

// Preview builds the binary and runs a dry run over $GDOC_SOURCE.
func Preview() error {
	mg.Deps(Build)
	src := os.Getenv("GDOC_SOURCE")
	if src == "" {
		return errors.New("set GDOC_SOURCE to the directory to preview")
	}
	return sh.RunV("./"+binDir+"/"+binName, "--dry-run", src)
}

func containerRuntime() string {
	for _, name := range []string{"docker", "podman"} {
		if _, err := exec.LookPath(name); err == nil {
			return name
		}
	}
	return ""
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
