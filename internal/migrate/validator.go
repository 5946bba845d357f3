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

package migrate

import "github.com/anonymouse64/tracemigrate/internal/trace"

// ValidationResult is what a Validator returns for one candidate target
// executable: a numeric score in [0,1] plus enough metadata (an exit code
// from each side at minimum) to diagnose a bad validation run.
type ValidationResult struct {
	Score                          float64
	SourceExitCode, TargetExitCode int
}

// Validator executes a source executable once (fixed for the lifetime of
// the value) and, for each call to Validate, a candidate target executable
// in a fresh sandbox, returning how well they agree. It is the systems-
// language rendering of a generator coroutine driven by send: a blocking
// request/response instead of a coroutine the caller pumps.
//
// Implementations must memoize by (system, executable, hashable(arguments))
// since refinement calls Validate many times over trees that often repeat
// an earlier candidate exactly.
type Validator interface {
	Validate(system, executable string, arguments trace.ArgNode) (ValidationResult, error)
}
