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

package equality_test

import (
	"testing"

	"github.com/anonymouse64/tracemigrate/internal/equality"
	"github.com/anonymouse64/tracemigrate/internal/straceparse"
	"github.com/anonymouse64/tracemigrate/internal/trace"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type equalityTestSuite struct{}

var _ = Suite(&equalityTestSuite{})

func syscallOf(c *C, line string) *trace.Syscall {
	tr, err := straceparse.Parse(line)
	c.Assert(err, IsNil)
	sc, ok := tr.Lines[0].(*trace.Syscall)
	c.Assert(ok, Equals, true)
	return sc
}

func (s *equalityTestSuite) TestNameEqualityIgnoresArguments(c *C) {
	a := syscallOf(c, `open("/a", O_RDONLY) = 3`)
	b := syscallOf(c, `open("/b", O_WRONLY) = 4`)
	c.Check(equality.NameEquality.Equal(a, b), Equals, true)
	c.Check(equality.NameEquality.Hash(a), Equals, equality.NameEquality.Hash(b))
}

func (s *equalityTestSuite) TestStrictEqualityDistinguishesArguments(c *C) {
	a := syscallOf(c, `open("/a", O_RDONLY) = 3`)
	b := syscallOf(c, `open("/a", O_RDONLY) = 3`)
	d := syscallOf(c, `open("/b", O_RDONLY) = 3`)
	c.Check(equality.StrictEquality.Equal(a, b), Equals, true)
	c.Check(equality.StrictEquality.Equal(a, d), Equals, false)
	c.Check(equality.StrictEquality.Hash(a), Equals, equality.StrictEquality.Hash(b))
	c.Check(equality.StrictEquality.Hash(a) == equality.StrictEquality.Hash(d), Equals, false)
}

func (s *equalityTestSuite) TestCanonicalEqualityCollapsesVariants(c *C) {
	a := syscallOf(c, `open("/etc/passwd", O_RDONLY) = 3`)
	b := syscallOf(c, `openat(AT_FDCWD, "/etc/passwd", O_RDONLY) = 3`)
	c.Check(equality.CanonicalEquality.Equal(a, b), Equals, true)
	c.Check(equality.StrictEquality.Equal(a, b), Equals, false)
	c.Check(equality.CanonicalEquality.Hash(a), Equals, equality.CanonicalEquality.Hash(b))
}

func (s *equalityTestSuite) TestAcquireRestoresPreviousContext(c *C) {
	c.Check(equality.Current(), Equals, equality.StrictEquality)
	release := equality.Acquire(equality.CanonicalEquality)
	c.Check(equality.Current(), Equals, equality.CanonicalEquality)
	release2 := equality.Acquire(equality.NameEquality)
	c.Check(equality.Current(), Equals, equality.NameEquality)
	release2()
	c.Check(equality.Current(), Equals, equality.CanonicalEquality)
	release()
	c.Check(equality.Current(), Equals, equality.StrictEquality)
}

func (s *equalityTestSuite) TestAcquireRestoresOnPanic(c *C) {
	func() {
		defer func() { recover() }()
		release := equality.Acquire(equality.CanonicalEquality)
		defer release()
		panic("boom")
	}()
	c.Check(equality.Current(), Equals, equality.StrictEquality)
}

func (s *equalityTestSuite) TestConflictingSyntheticModesPanic(c *C) {
	outer := equality.Acquire(equality.SyntheticAwareEquality(equality.CompareEqual, nil))
	defer outer()
	c.Check(func() {
		inner := equality.Acquire(equality.SyntheticAwareEquality(equality.CompareByID, nil))
		inner()
	}, Panics, "equality: acquired context contradicts the one already active")
}

func literalArg(v trace.LiteralValue) *trace.Literal {
	return &trace.Literal{Value: v}
}

func syntheticSyscall(name string, sv trace.SyntheticValue) *trace.Syscall {
	return &trace.Syscall{Name: name, Arguments: []trace.Argument{literalArg(sv)}}
}

func (s *equalityTestSuite) TestSyntheticCompareEqual(c *C) {
	arena := trace.NewParameterArena()
	p1 := arena.GetOrCreate([]string{"0"}, trace.StringArg("alice"))
	p2 := arena.GetOrCreate([]string{"1"}, trace.StringArg("bob"))

	a := syntheticSyscall("open", trace.SyntheticValue{Original: trace.StringValue{Raw: "/home/alice"}, Param: p1, Template: trace.StringTemplate{Pattern: "/home/{0}"}})
	b := syntheticSyscall("open", trace.SyntheticValue{Original: trace.StringValue{Raw: "/home/bob"}, Param: p2, Template: trace.StringTemplate{Pattern: "/home/{0}"}})

	ctx := equality.SyntheticAwareEquality(equality.CompareEqual, nil)
	c.Check(ctx.Equal(a, b), Equals, true)
	c.Check(ctx.Hash(a), Equals, ctx.Hash(b))
}

func (s *equalityTestSuite) TestSyntheticCompareByID(c *C) {
	arena := trace.NewParameterArena()
	p1 := arena.GetOrCreate([]string{"0"}, trace.StringArg("alice"))
	p2 := arena.GetOrCreate([]string{"1"}, trace.StringArg("bob"))

	a := syntheticSyscall("open", trace.SyntheticValue{Original: trace.StringValue{Raw: "/home/alice"}, Param: p1})
	b := syntheticSyscall("open", trace.SyntheticValue{Original: trace.StringValue{Raw: "/home/alice"}, Param: p1})
	d := syntheticSyscall("open", trace.SyntheticValue{Original: trace.StringValue{Raw: "/home/bob"}, Param: p2})

	ctx := equality.SyntheticAwareEquality(equality.CompareByID, nil)
	c.Check(ctx.Equal(a, b), Equals, true)
	c.Check(ctx.Equal(a, d), Equals, false)
}

func (s *equalityTestSuite) TestSyntheticCompareByMap(c *C) {
	arena := trace.NewParameterArena()
	p1 := arena.GetOrCreate([]string{"0"}, trace.StringArg("alice"))
	p2 := arena.GetOrCreate([]string{"1"}, trace.StringArg("bob"))
	unmapped := arena.GetOrCreate([]string{"2"}, trace.StringArg("carol"))

	mapping := equality.NewMapping()
	mapping.Add(p1, p2)

	a := syntheticSyscall("open", trace.SyntheticValue{Original: trace.StringValue{Raw: "/home/alice"}, Param: p1})
	b := syntheticSyscall("open", trace.SyntheticValue{Original: trace.StringValue{Raw: "/home/bob"}, Param: p2})
	d := syntheticSyscall("open", trace.SyntheticValue{Original: trace.StringValue{Raw: "/home/carol"}, Param: unmapped})

	ctx := equality.SyntheticAwareEquality(equality.CompareByMap, mapping)
	c.Check(ctx.Equal(a, b), Equals, true)
	c.Check(ctx.Equal(a, d), Equals, false)
	c.Check(ctx.Hash(a), Equals, ctx.Hash(b))
}

func (s *equalityTestSuite) TestSyntheticModeAppliesInsideCollections(c *C) {
	arena := trace.NewParameterArena()
	p1 := arena.GetOrCreate([]string{"0"}, trace.StringArg("alice"))
	p2 := arena.GetOrCreate([]string{"1"}, trace.StringArg("bob"))

	nestedA := trace.CollectionValue{Bracket: trace.BracketList, Items: []*trace.Literal{
		literalArg(trace.SyntheticValue{Original: trace.StringValue{Raw: "/home/alice"}, Param: p1}),
	}}
	nestedB := trace.CollectionValue{Bracket: trace.BracketList, Items: []*trace.Literal{
		literalArg(trace.SyntheticValue{Original: trace.StringValue{Raw: "/home/bob"}, Param: p2}),
	}}
	a := &trace.Syscall{Name: "execve", Arguments: []trace.Argument{literalArg(nestedA)}}
	b := &trace.Syscall{Name: "execve", Arguments: []trace.Argument{literalArg(nestedB)}}

	ctx := equality.SyntheticAwareEquality(equality.CompareEqual, nil)
	c.Check(ctx.Equal(a, b), Equals, true)

	idCtx := equality.SyntheticAwareEquality(equality.CompareByID, nil)
	c.Check(idCtx.Equal(a, b), Equals, false)
}
