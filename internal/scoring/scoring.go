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

// Package scoring computes similarity between two preprocessed traces.
// Every function here trusts whatever equality.Context is currently
// installed by its caller -- the orchestrator is responsible for acquiring
// equality.CanonicalEquality before scoring, not this package, since a
// caller doing a coarse pre-filter under a different context is equally
// entitled to call these.
package scoring

import (
	"fmt"

	"github.com/anonymouse64/tracemigrate/internal/equality"
	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// Method names one of the required scoring functions, for callers (the CLI
// in particular) that select a metric by flag rather than by Go identifier.
type Method string

const (
	Jaccard        Method = "jaccard"
	TFIDF          Method = "tfidf"
	NIC            Method = "nic"
	MaxCardinality Method = "max-cardinality"
	MaxWeight      Method = "max-weight"
)

// Score dispatches to the named method. corpus is required by tfidf, nic
// and max-weight; jaccard and max-cardinality ignore it.
func Score(method Method, a, b *trace.Trace, corpus []*trace.Trace) (float64, error) {
	switch method {
	case Jaccard:
		return JaccardScore(a, b), nil
	case TFIDF:
		return TFIDFScore(a, b, corpus), nil
	case NIC:
		return NICScore(a, b, corpus), nil
	case MaxCardinality:
		return MaxCardinalityScore(a, b), nil
	case MaxWeight:
		return MaxWeightScore(a, b, corpus), nil
	default:
		return 0, fmt.Errorf("scoring: unknown method %q", method)
	}
}

// emptyScore implements the shared "either trace is empty" edge case: two
// traces that do nothing at all are trivially identical as far as scoring
// is concerned, whatever the rest of the metric would otherwise compute
// (some would divide by zero without this check).
func emptyScore(a, b *trace.Trace) (float64, bool) {
	if len(a.Syscalls()) == 0 || len(b.Syscalls()) == 0 {
		return 1, true
	}
	return 0, false
}

// syscallCounts returns, for every syscall in t, how many times its hash
// (under the currently installed equality.Context) occurs.
func syscallCounts(t *trace.Trace) map[string]int {
	counts := make(map[string]int)
	for _, sc := range t.Syscalls() {
		counts[equality.Hash(sc)]++
	}
	return counts
}

func maxFreq(counts map[string]int) int {
	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	return max
}

func tf(count, max int) float64 {
	if max == 0 {
		return 0
	}
	return float64(count) / float64(max)
}

// documentFrequency is |{T in corpus : s in T}|, the shared count behind
// both idf and the NIC information-content term.
func documentFrequency(hash string, corpus []*trace.Trace) int {
	n := 0
	for _, t := range corpus {
		for _, sc := range t.Syscalls() {
			if equality.Hash(sc) == hash {
				n++
				break
			}
		}
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
