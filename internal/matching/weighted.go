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

package matching

import "math"

// MaxWeight computes a matching that is simultaneously of maximum
// cardinality and, among matchings of that cardinality, of maximum total
// weight. It models the bipartite graph as a unit-capacity min-cost flow
// network (source -> left -> right -> sink, left-right edge cost = -weight)
// and runs successive shortest augmenting paths via Bellman-Ford, which
// tolerates the negative-cost edges this reduction produces; no negative
// cycle can ever appear since every residual edge crosses source/left/
// right/sink in one direction or its exact reverse.
//
// It returns the matching as left index -> right index, and the sum of the
// matched edges' weights.
func MaxWeight(nLeft, nRight int, edges []Edge) (map[int]int, float64) {
	source := nLeft + nRight
	sink := nLeft + nRight + 1
	n := nLeft + nRight + 2

	type flowEdge struct {
		to, rev int
		cap     int
		cost    float64
	}
	adj := make([][]flowEdge, n)
	addEdge := func(from, to int, cap int, cost float64) {
		adj[from] = append(adj[from], flowEdge{to: to, rev: len(adj[to]), cap: cap, cost: cost})
		adj[to] = append(adj[to], flowEdge{to: from, rev: len(adj[from]) - 1, cap: 0, cost: -cost})
	}
	for l := 0; l < nLeft; l++ {
		addEdge(source, l, 1, 0)
	}
	for r := 0; r < nRight; r++ {
		addEdge(nLeft+r, sink, 1, 0)
	}
	for _, e := range edges {
		if e.Left < 0 || e.Left >= nLeft || e.Right < 0 || e.Right >= nRight {
			continue
		}
		addEdge(e.Left, nLeft+e.Right, 1, -e.Weight)
	}

	totalWeight := 0.0
	for {
		dist := make([]float64, n)
		inQueue := make([]bool, n)
		prevEdge := make([]int, n)
		prevNode := make([]int, n)
		for i := range dist {
			dist[i] = math.Inf(1)
			prevNode[i] = -1
		}
		dist[source] = 0
		queue := []int{source}
		inQueue[source] = true
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			inQueue[u] = false
			for i, fe := range adj[u] {
				if fe.cap <= 0 {
					continue
				}
				if nd := dist[u] + fe.cost; nd < dist[fe.to] {
					dist[fe.to] = nd
					prevNode[fe.to] = u
					prevEdge[fe.to] = i
					if !inQueue[fe.to] {
						queue = append(queue, fe.to)
						inQueue[fe.to] = true
					}
				}
			}
		}
		if prevNode[sink] == -1 {
			break
		}

		pathCost := dist[sink]
		for v := sink; v != source; v = prevNode[v] {
			u := prevNode[v]
			fe := &adj[u][prevEdge[v]]
			fe.cap--
			adj[v][fe.rev].cap++
		}
		totalWeight -= pathCost
	}

	result := make(map[int]int)
	for l := 0; l < nLeft; l++ {
		for _, fe := range adj[l] {
			if fe.to >= nLeft && fe.to < nLeft+nRight && fe.cap == 0 {
				result[l] = fe.to - nLeft
			}
		}
	}
	return result, totalWeight
}
