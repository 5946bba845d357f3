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

// NICScore is the normalized-information-content similarity: syscalls that
// are rare across the corpus (and hence informative) count for more than
// ones every trace makes, such as the C library's startup boilerplate.
//
//	common(s) = min(count_A(s), count_B(s))
//	score = 2 · Σ common(s)·ic(s) / (|A| + |B|)
func NICScore(a, b *trace.Trace, corpus []*trace.Trace) float64 {
	if sc, ok := emptyScore(a, b); ok {
		return sc
	}
	aCounts := syscallCounts(a)
	bCounts := syscallCounts(b)

	sum := 0.0
	for s, na := range aCounts {
		nb := bCounts[s]
		common := na
		if nb < common {
			common = nb
		}
		if common == 0 {
			continue
		}
		sum += float64(common) * informationContent(s, corpus)
	}
	return 2 * sum / float64(len(a.Syscalls())+len(b.Syscalls()))
}

// informationContent is ic(s) = log(df(s)/|corpus|) / log(1/|corpus|),
// normalized so the rarest possible syscall (df=1) scores 1 and one
// present in every trace (df=|corpus|) scores 0. Falls back to 1 for the
// same too-small-corpus reason idf does.
func informationContent(hash string, corpus []*trace.Trace) float64 {
	n := len(corpus)
	if n <= 1 {
		return 1
	}
	df := documentFrequency(hash, corpus)
	if df <= 0 {
		return 0
	}
	return math.Log(float64(df)/float64(n)) / math.Log(1/float64(n))
}
