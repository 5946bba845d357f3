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

// Package validate implements migrate.Validator. The Docker-based validator
// that runs both executables in fresh sandboxes and diffs filesystem state
// is explicitly out of scope; Local instead runs both invocations directly
// on this host and compares exit codes and stdout, enough to drive migration
// search end to end without the sandboxed implementation a production
// deployment would swap in.
package validate

import (
	"bytes"
	"fmt"
	"os/exec"
	"sync"

	"github.com/anonymouse64/tracemigrate/internal/migrate"
	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// Local is a migrate.Validator that executes the source command once,
// lazily, and a candidate target command on every Validate call, memoizing
// by (system, executable, hashable arguments) as the interface requires.
type Local struct {
	SourceExecutable string
	SourceArgs       []string

	mu     sync.Mutex
	cache  map[string]migrate.ValidationResult
	source *invocationResult
}

// NewLocal returns a Local validator bound to one source invocation.
func NewLocal(sourceExecutable string, sourceArgs ...string) *Local {
	return &Local{
		SourceExecutable: sourceExecutable,
		SourceArgs:       sourceArgs,
		cache:            make(map[string]migrate.ValidationResult),
	}
}

type invocationResult struct {
	exitCode int
	stdout   []byte
}

// Validate implements migrate.Validator.
func (l *Local) Validate(system, executable string, arguments trace.ArgNode) (migrate.ValidationResult, error) {
	args, err := argsOf(arguments)
	if err != nil {
		return migrate.ValidationResult{}, err
	}
	key := system + "\x1f" + executable + "\x1f" + argsKey(args)

	l.mu.Lock()
	defer l.mu.Unlock()

	if cached, ok := l.cache[key]; ok {
		return cached, nil
	}

	if l.source == nil {
		src, err := invoke(l.SourceExecutable, l.SourceArgs)
		if err != nil {
			return migrate.ValidationResult{}, fmt.Errorf("validate: source invocation: %w", err)
		}
		l.source = src
	}

	tgt, err := invoke(executable, args)
	if err != nil {
		return migrate.ValidationResult{}, fmt.Errorf("validate: target invocation: %w", err)
	}

	result := migrate.ValidationResult{
		Score:          agreementScore(l.source, tgt),
		SourceExitCode: l.source.exitCode,
		TargetExitCode: tgt.exitCode,
	}
	l.cache[key] = result
	return result, nil
}

func invoke(name string, args []string) (*invocationResult, error) {
	cmd := exec.Command(name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	exitCode := 0
	if err := cmd.Run(); err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, err
		}
		exitCode = exitErr.ExitCode()
	}
	return &invocationResult{exitCode: exitCode, stdout: out.Bytes()}, nil
}

// agreementScore is a cheap stand-in for the filesystem diff a sandboxed
// validator would compute instead: matching exit codes is worth half the
// score, and the other half scales with the length of the two outputs'
// common prefix as a fraction of the longer output.
func agreementScore(a, b *invocationResult) float64 {
	score := 0.0
	if a.exitCode == b.exitCode {
		score += 0.5
	}
	score += 0.5 * outputSimilarity(a.stdout, b.stdout)
	return score
}

func outputSimilarity(a, b []byte) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	shortest := len(a)
	if len(b) < shortest {
		shortest = len(b)
	}
	n := 0
	for n < shortest && a[n] == b[n] {
		n++
	}
	return float64(n) / float64(longest)
}

// argsOf renders a command-line-system arguments node as the []string a
// local process invocation needs; module systems (MapArg) have no local
// invocation shape, so Local only ever supports ListArg (or no arguments at
// all).
func argsOf(n trace.ArgNode) ([]string, error) {
	if n == nil {
		return nil, nil
	}
	list, ok := n.(trace.ListArg)
	if !ok {
		return nil, fmt.Errorf("validate: local validator only supports command-line argument lists, got %T", n)
	}
	args := make([]string, 0, len(list))
	for _, item := range list {
		text, ok := trace.ScalarText(item)
		if !ok {
			return nil, fmt.Errorf("validate: argument %v is not a scalar", item)
		}
		args = append(args, text)
	}
	return args, nil
}

func argsKey(args []string) string {
	s := ""
	for i, a := range args {
		if i > 0 {
			s += "\x1f"
		}
		s += a
	}
	return s
}
