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

package preprocess

import (
	"github.com/anonymouse64/tracemigrate/internal/equality"
	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// StripCommonPrefixSuffix removes the longest shared leading run and the
// longest shared trailing run of syscalls between a and b, comparing under
// name equality. Two traces of the same executable typically share a large
// amount of dynamic-linker and libc startup/teardown boilerplate at each
// end; stripping it leaves scoring to focus on what the invocation actually
// did differently. Both traces must already have had SelectSyscalls applied,
// since every remaining line is asserted to be a *trace.Syscall.
func StripCommonPrefixSuffix(a, b *trace.Trace) {
	release := equality.Acquire(equality.NameEquality)
	defer release()

	ai, bi := 0, 0
	for ai < len(a.Lines) && bi < len(b.Lines) && equality.Equal(a.Lines[ai].(*trace.Syscall), b.Lines[bi].(*trace.Syscall)) {
		ai++
		bi++
	}
	a.Lines = a.Lines[ai:]
	b.Lines = b.Lines[bi:]

	aj, bj := len(a.Lines), len(b.Lines)
	for aj > 0 && bj > 0 && equality.Equal(a.Lines[aj-1].(*trace.Syscall), b.Lines[bj-1].(*trace.Syscall)) {
		aj--
		bj--
	}
	a.Lines = a.Lines[:aj]
	b.Lines = b.Lines[:bj]
}

// ComputeGlobalSyscalls returns, under ctx, the set of syscall hashes that
// appear in every trace of corpus -- syscalls so common they carry no
// discriminating information for scoring. Syscalls carrying a
// SyntheticValue (a literal that came from the invocation's own arguments)
// are never counted, since StripGlobalSyscalls must never remove one of
// those regardless of how common its hash is.
func ComputeGlobalSyscalls(corpus []*trace.Trace, ctx equality.Context) map[string]bool {
	release := equality.Acquire(ctx)
	defer release()

	if len(corpus) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, t := range corpus {
		seen := make(map[string]bool)
		for _, sc := range t.Syscalls() {
			if hasSyntheticValue(sc) {
				continue
			}
			seen[equality.Hash(sc)] = true
		}
		for h := range seen {
			counts[h]++
		}
	}
	global := make(map[string]bool)
	for h, n := range counts {
		if n == len(corpus) {
			global[h] = true
		}
	}
	return global
}

// StripGlobalSyscalls removes every syscall whose ctx hash is in
// globalHashes, skipping any syscall carrying a SyntheticValue (those are
// tied to this particular invocation's own arguments and are never
// boilerplate, however common their shape).
func StripGlobalSyscalls(t *trace.Trace, globalHashes map[string]bool) {
	StripGlobalSyscallsUnder(t, globalHashes, equality.CanonicalEquality)
}

// StripGlobalSyscallsUnder is StripGlobalSyscalls parameterized on the
// equality context, so callers matching ComputeGlobalSyscalls's ctx
// argument get consistent hashing.
func StripGlobalSyscallsUnder(t *trace.Trace, globalHashes map[string]bool, ctx equality.Context) {
	if len(globalHashes) == 0 {
		return
	}
	release := equality.Acquire(ctx)
	defer release()

	kept := t.Lines[:0]
	for _, l := range t.Lines {
		sc, ok := l.(*trace.Syscall)
		if !ok {
			kept = append(kept, l)
			continue
		}
		if !hasSyntheticValue(sc) && globalHashes[equality.Hash(sc)] {
			continue
		}
		kept = append(kept, l)
	}
	t.Lines = kept
}

func hasSyntheticValue(sc *trace.Syscall) bool {
	found := false
	sc.EachLiteral(func(lit *trace.Literal) {
		if _, ok := lit.Value.(trace.SyntheticValue); ok {
			found = true
		}
	})
	return found
}
