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
	"math"

	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// TFIDFScore treats b's syscalls as a document and a's as query terms:
// total = Σ_{s ∈ S_A} tf(s,B)·idf(s), divided by |S_A| (the number of
// distinct syscalls in A, not the number of syscall occurrences).
func TFIDFScore(a, b *trace.Trace, corpus []*trace.Trace) float64 {
	if sc, ok := emptyScore(a, b); ok {
		return sc
	}
	aSet := syscallCounts(a)
	bCounts := syscallCounts(b)
	bMax := maxFreq(bCounts)

	total := 0.0
	for s := range aSet {
		total += tf(bCounts[s], bMax) * idf(s, corpus)
	}
	return total / float64(len(aSet))
}

// idf is log(|corpus| / df(s)), falling back to 1 when the corpus is too
// small to say anything meaningful (a single-trace corpus makes every
// syscall's document frequency trivially equal to the corpus size, which
// would otherwise compute log(1) = 0 and erase every term).
func idf(hash string, corpus []*trace.Trace) float64 {
	if len(corpus) <= 1 {
		return 1
	}
	df := documentFrequency(hash, corpus)
	if df <= 0 {
		// s doesn't occur anywhere in corpus -- can only happen if the
		// traces being compared aren't themselves part of it. Contributes
		// nothing rather than dividing by zero.
		return 0
	}
	return math.Log(float64(len(corpus)) / float64(df))
}
