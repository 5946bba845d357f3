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

package matching_test

import (
	"testing"

	"github.com/anonymouse64/tracemigrate/internal/matching"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type matchingTestSuite struct{}

var _ = Suite(&matchingTestSuite{})

func (s *matchingTestSuite) TestMaxCardinalityPerfectMatching(c *C) {
	edges := []matching.Edge{
		{Left: 0, Right: 0}, {Left: 0, Right: 1},
		{Left: 1, Right: 0},
		{Left: 2, Right: 1}, {Left: 2, Right: 2},
	}
	m := matching.MaxCardinality(3, 3, edges)
	c.Assert(m, HasLen, 3)

	seen := map[int]bool{}
	for _, r := range m {
		c.Check(seen[r], Equals, false)
		seen[r] = true
	}
}

func (s *matchingTestSuite) TestMaxCardinalityNoEdges(c *C) {
	m := matching.MaxCardinality(2, 2, nil)
	c.Check(m, HasLen, 0)
}

func (s *matchingTestSuite) TestMaxCardinalityBlockedNeedsAugmentingPath(c *C) {
	// Every left vertex wants right 0: once 0-0 is taken greedily, 1 (or 2)
	// only gets right 0 through an augmenting path that moves 0 over to right
	// 1. With two right vertices the maximum is 2, leaving one left vertex
	// unmatched.
	edges := []matching.Edge{
		{Left: 0, Right: 0}, {Left: 0, Right: 1},
		{Left: 1, Right: 0},
		{Left: 2, Right: 0},
	}
	m := matching.MaxCardinality(3, 2, edges)
	c.Assert(m, HasLen, 2)
}

func (s *matchingTestSuite) TestMaxWeightPrefersHeavierMatching(c *C) {
	// 0 can only pair with 0; 1 can pair with 0 or 1. A greedy scan that
	// gives 0 to vertex 1 first would strand vertex 0 entirely; the
	// maximum-weight maximum-cardinality matching must still pick both
	// pairs, even though that gives up 1's heavier edge (to 0, weight 5) for
	// its lighter one (to 1, weight 2): cardinality comes before weight.
	edges := []matching.Edge{
		{Left: 0, Right: 0, Weight: 1},
		{Left: 1, Right: 0, Weight: 5},
		{Left: 1, Right: 1, Weight: 2},
	}
	m, weight := matching.MaxWeight(2, 2, edges)
	c.Assert(m, HasLen, 2)
	c.Check(m[0], Equals, 0)
	c.Check(m[1], Equals, 1)
	c.Check(weight, Equals, 3.0)
}

func (s *matchingTestSuite) TestMaxWeightEmpty(c *C) {
	m, weight := matching.MaxWeight(0, 0, nil)
	c.Check(m, HasLen, 0)
	c.Check(weight, Equals, 0.0)
}
