/*
 * Copyright (C) 2019 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package collector runs external trace-collection scripts and captures
// their output for parsing.
//
// The collectors themselves (container-based tracing, the debops/ansible
// playbook walker, the Dockerfile corpus miner) are out of scope for this
// module; this package only knows how to invoke one and capture what it
// produced.
package collector

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
)

// helper function to make testing easier
var execCommandCombinedOutput = func(prog string, args ...string) ([]byte, error) {
	return exec.Command(prog, args...).CombinedOutput()
}

// Run executes the named collector script with args, trying both a script on
// $PATH as well as one in the current working directory, so that collectors
// can be invoked without spelling out a full path every time. The script's
// combined stdout/stderr is returned so callers can hand it to the trace
// parser or log it on failure.
func Run(fname string, args ...string) ([]byte, error) {
	path, err := exec.LookPath(fname)
	if err != nil {
		// try the current directory
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(cwd, fname)
	}
	return execCommandCombinedOutput(path, args...)
}

// RunInto runs a collector script and returns its output verbatim,
// trimming a single trailing newline that scripts conventionally add.
func RunInto(fname string, args []string) ([]byte, error) {
	out, err := Run(fname, args...)
	if err != nil {
		return out, err
	}
	return bytes.TrimSuffix(out, []byte("\n")), nil
}
