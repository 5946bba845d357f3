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

// Package commands wraps the external commands the pipeline shells out to:
// strace itself (package collector) and the sudo re-exec AddSudoIfNeeded
// adds when the caller isn't already root. A migration search can call
// validate.Local hundreds of times in one run, each spawning a traced
// candidate process, so the uid lookup AddSudoIfNeeded depends on is
// cached rather than re-queried on every invocation.
package commands

import (
	"fmt"
	"os/exec"
	"os/user"
)

var userCurrentFn = user.Current

var (
	cachedUser  *user.User
	cachedErr   error
	initialized bool
)

func currentUser() (*user.User, error) {
	if !initialized {
		cachedUser, cachedErr = userCurrentFn()
		initialized = true
	}
	return cachedUser, cachedErr
}

// AddSudoIfNeeded prefixes cmd with sudo (and sudoArgs) if the calling
// process isn't already root. The uid lookup is cached for the life of the
// process: a parameter-mapping search or a migration refinement validates
// many candidate commands in a row and they all share the same caller.
func AddSudoIfNeeded(cmd *exec.Cmd, sudoArgs ...string) error {
	current, err := currentUser()
	if err != nil {
		return err
	}
	if current.Uid != "0" {
		sudoPath, err := exec.LookPath("sudo")
		if err != nil {
			return fmt.Errorf("cannot use strace without running as root or without sudo: %s", err)
		}

		// prepend the command with sudo and any sudo args
		cmd.Path = sudoPath
		cmd.Args = append(
			append([]string{sudoPath}, sudoArgs...),
			cmd.Args...,
		)
	}
	return nil
}

// MockUID is a convenience wrapper around MockUserCurrent for tests that
// only need to fix the uid and don't care how many times the lookup runs.
func MockUID(uid string) (restore func()) {
	return MockUserCurrent(func() (*user.User, error) {
		return &user.User{Uid: uid}, nil
	})
}

// MockUserCurrent overrides the user lookup AddSudoIfNeeded caches,
// clearing the cache so the override takes effect on the very next call;
// the returned restore func puts the original lookup back and clears the
// cache again.
func MockUserCurrent(fn func() (*user.User, error)) (restore func()) {
	old := userCurrentFn
	userCurrentFn = fn
	initialized = false
	return func() {
		userCurrentFn = old
		initialized = false
	}
}

// ResetInitialized drops the cached lookup result, forcing the next
// AddSudoIfNeeded call to re-query userCurrentFn. Tests call this between
// table-driven cases that each mock a different uid.
func ResetInitialized() {
	initialized = false
}
