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

// Package paramsearch finds the best correspondence between two traces'
// command-line/module parameters, so that scoring can stop giving credit
// for "these two syscalls both touched some synthetic value" and start
// giving credit only when they touched corresponding arguments.
package paramsearch

import (
	"github.com/anonymouse64/tracemigrate/internal/equality"
	"github.com/anonymouse64/tracemigrate/internal/matching"
	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// Search returns the parameter mapping between a and b that, once scoring
// is repeated under equality.CompareByMap with it installed, best explains
// the syscall pairs whose equality depends on how their synthetic
// parameters line up. It never installs a Context of its own beyond the
// three stages below; the caller is responsible for the surrounding
// equality.CanonicalEquality scoring pass this feeds into.
func Search(a, b *trace.Trace) *equality.Mapping {
	if a.Params == nil || b.Params == nil {
		return equality.NewMapping()
	}

	candidates := candidatePairs(a, b)
	if len(candidates) == 0 {
		return equality.NewMapping()
	}

	paramsA := a.Params.All()
	paramsB := b.Params.All()

	var edges []matching.Edge
	for i, pA := range paramsA {
		for j, pB := range paramsB {
			w := pairWeight(pA, pB, candidates)
			if w > 0 {
				edges = append(edges, matching.Edge{Left: i, Right: j, Weight: w})
			}
		}
	}

	matched, _ := matching.MaxWeight(len(paramsA), len(paramsB), edges)
	m := equality.NewMapping()
	for i, j := range matched {
		m.Add(paramsA[i], paramsB[j])
	}
	return m
}

type candidate struct {
	a, b *trace.Syscall
}

// candidatePairs implements step 1: syscall pairs that compare equal under
// compare-equal synthetic mode but not under compare-by-id. Since
// ExecutableParameters are arena-owned per trace, a and b's synthetic
// values can never share a Param pointer across traces, so compare-by-id
// fails for exactly the pairs whose match depends on some SyntheticValue
// being present -- pairs equal for reasons having nothing to do with
// synthetic values remain equal under either mode and are correctly
// excluded.
func candidatePairs(a, b *trace.Trace) []candidate {
	var loose []candidate
	func() {
		release := equality.Acquire(equality.SyntheticAwareEquality(equality.CompareEqual, nil))
		defer release()
		for _, sa := range a.Syscalls() {
			for _, sb := range b.Syscalls() {
				if equality.Equal(sa, sb) {
					loose = append(loose, candidate{a: sa, b: sb})
				}
			}
		}
	}()

	release := equality.Acquire(equality.SyntheticAwareEquality(equality.CompareByID, nil))
	defer release()

	var out []candidate
	for _, cd := range loose {
		if !equality.Equal(cd.a, cd.b) {
			out = append(out, cd)
		}
	}
	return out
}

// pairWeight implements step 2 for one (pA, pB) pair: install the
// provisional mapping, then for each candidate sum (occurrences of pA in a
// + occurrences of pB in b) / (total synthetic occurrences in a + in b)
// over every candidate pair that agrees under it.
func pairWeight(pA, pB *trace.ExecutableParameter, candidates []candidate) float64 {
	provisional := equality.NewMapping()
	provisional.Add(pA, pB)
	release := equality.Acquire(equality.SyntheticAwareEquality(equality.CompareByMap, provisional))
	defer release()

	total := 0.0
	for _, cd := range candidates {
		occA := countParam(cd.a, pA)
		occB := countParam(cd.b, pB)
		if occA == 0 || occB == 0 {
			continue
		}
		if !equality.Equal(cd.a, cd.b) {
			continue
		}
		denom := totalSynthetic(cd.a) + totalSynthetic(cd.b)
		if denom == 0 {
			continue
		}
		total += float64(occA+occB) / float64(denom)
	}
	return total
}

func countParam(sc *trace.Syscall, p *trace.ExecutableParameter) int {
	n := 0
	sc.EachLiteral(func(lit *trace.Literal) {
		if sv, ok := lit.Value.(trace.SyntheticValue); ok && sv.Param == p {
			n++
		}
	})
	return n
}

func totalSynthetic(sc *trace.Syscall) int {
	n := 0
	sc.EachLiteral(func(lit *trace.Literal) {
		if _, ok := lit.Value.(trace.SyntheticValue); ok {
			n++
		}
	})
	return n
}
