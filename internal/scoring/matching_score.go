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

package scoring

import (
	"github.com/anonymouse64/tracemigrate/internal/equality"
	"github.com/anonymouse64/tracemigrate/internal/matching"
	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// MaxCardinalityScore builds a bipartite graph over positions in A and B
// (edge (i,j) iff A[i] == B[j] under the current equality.Context), takes
// its maximum-cardinality matching, and divides by min(|A|,|B|): the
// fraction of the shorter trace that could be lined up with something in
// the other, allowing syscalls to be reordered rather than requiring a
// common subsequence.
func MaxCardinalityScore(a, b *trace.Trace) float64 {
	if sc, ok := emptyScore(a, b); ok {
		return sc
	}
	aScs, bScs := a.Syscalls(), b.Syscalls()
	edges := equalityEdges(aScs, bScs)
	m := matching.MaxCardinality(len(aScs), len(bScs), edges)
	return float64(len(m)) / float64(min(len(aScs), len(bScs)))
}

// MaxWeightScore is MaxCardinalityScore's weighted sibling: among matchings
// of maximum cardinality, it picks the one maximizing total edge weight,
// weight(i,j) = tf_A(A[i])·idf(A[i]) · tf_B(B[j])·idf(B[j]), and divides by
// min(|A|,|B|).
func MaxWeightScore(a, b *trace.Trace, corpus []*trace.Trace) float64 {
	if sc, ok := emptyScore(a, b); ok {
		return sc
	}
	aScs, bScs := a.Syscalls(), b.Syscalls()
	aCounts, bCounts := syscallCounts(a), syscallCounts(b)
	aMax, bMax := maxFreq(aCounts), maxFreq(bCounts)

	var edges []matching.Edge
	for i, as := range aScs {
		for j, bs := range bScs {
			if !equality.Equal(as, bs) {
				continue
			}
			hash := equality.Hash(as)
			weight := tf(aCounts[hash], aMax) * idf(hash, corpus) * tf(bCounts[hash], bMax) * idf(hash, corpus)
			edges = append(edges, matching.Edge{Left: i, Right: j, Weight: weight})
		}
	}
	_, weight := matching.MaxWeight(len(aScs), len(bScs), edges)
	return weight / float64(min(len(aScs), len(bScs)))
}

// equalityEdges is the naive O(|A|·|B|) bipartite edge construction common
// to both matching-based metrics; the sparse adjacency matching.MaxCardinality
// actually walks is built from this list, not from these nested loops.
func equalityEdges(a, b []*trace.Syscall) []matching.Edge {
	var edges []matching.Edge
	for i, as := range a {
		for j, bs := range b {
			if equality.Equal(as, bs) {
				edges = append(edges, matching.Edge{Left: i, Right: j})
			}
		}
	}
	return edges
}
