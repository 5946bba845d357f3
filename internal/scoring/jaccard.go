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

import "github.com/anonymouse64/tracemigrate/internal/trace"

// JaccardScore is |S_A ∩ S_B| / |S_A ∪ S_B|, where S_X is the set of
// distinct syscalls (by equality hash) appearing anywhere in X. It ignores
// repetition entirely; MaxCardinalityScore is the metric to reach for when
// how many times something happened matters.
func JaccardScore(a, b *trace.Trace) float64 {
	if sc, ok := emptyScore(a, b); ok {
		return sc
	}
	aSet := syscallCounts(a)
	bSet := syscallCounts(b)

	union := make(map[string]bool, len(aSet)+len(bSet))
	for k := range aSet {
		union[k] = true
	}
	for k := range bSet {
		union[k] = true
	}

	inter := 0
	for k := range union {
		if aSet[k] > 0 && bSet[k] > 0 {
			inter++
		}
	}
	return float64(inter) / float64(len(union))
}
