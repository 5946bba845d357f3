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

// Package preprocess implements the in-place trace transformations that run
// before scoring and parameter-mapping search: selecting syscall lines,
// resolving file descriptors to paths, masking PIDs, punching known-variable
// argument holes, tagging values that derive from the executable's own
// command-line/module arguments, and (for a pair about to be scored)
// stripping shared prefixes/suffixes and corpus-wide boilerplate.
//
// Every preprocessor here operates idempotently: running it twice on the
// same input leaves the second run a no-op. Single-trace preprocessors take
// one *trace.Trace; pair preprocessors take two and may remove lines from
// both.
package preprocess

import "github.com/anonymouse64/tracemigrate/internal/trace"

// Single is a preprocessor that transforms one trace in place.
type Single func(t *trace.Trace)

// Pair is a preprocessor that transforms two traces in place, in light of
// each other (e.g. stripping a shared prefix).
type Pair func(a, b *trace.Trace)

// Standard runs the single-trace preprocessors required before scoring, in
// the order the ordering constraints demand: selection before file
// descriptors and PID masking (so paths exist to rewrite), PID masking
// before hole punching (so a masked path's PID isn't separately punched),
// hole punching after file descriptors (holes may target an fd-resolved
// argument), the Ansible write strip before synthetic-value generation (so
// the stripped write never becomes a spurious parameter use), and synthetic
// values last.
func Standard(t *trace.Trace, holes HoleSet) {
	SelectSyscalls(t)
	ReplaceFileDescriptors(t)
	PIDInLockFiles(t)
	PIDInProcfs(t)
	PunchHoles(t, holes)
	AnsibleStripLastWrite(t)
	GenerateSyntheticValues(t)
}

// PairStandard runs the pair preprocessors scoring needs against a and b,
// which must already have had Standard applied. globalHashes is the output
// of ComputeGlobalSyscalls for whatever corpus the pair was drawn from, or
// nil to skip global-syscall stripping.
func PairStandard(a, b *trace.Trace, globalHashes map[string]bool) {
	if globalHashes != nil {
		StripGlobalSyscalls(a, globalHashes)
		StripGlobalSyscalls(b, globalHashes)
	}
	StripCommonPrefixSuffix(a, b)
}
