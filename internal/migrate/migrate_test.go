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

package migrate_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/anonymouse64/tracemigrate/internal/migrate"
	"github.com/anonymouse64/tracemigrate/internal/trace"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type migrateTestSuite struct{}

var _ = Suite(&migrateTestSuite{})

func (s *migrateTestSuite) TestWalkerNavigation(c *C) {
	root := migrate.FromArgNode(trace.ListArg{trace.StringArg("a"), trace.StringArg("b")})
	w := migrate.NewWalker(root)

	c.Assert(w.Down(), Equals, true)
	c.Check(w.Current().(*migrate.ValueNode).Value, Equals, trace.ArgNode(trace.StringArg("a")))
	c.Assert(w.Next(), Equals, true)
	c.Check(w.Current().(*migrate.ValueNode).Value, Equals, trace.ArgNode(trace.StringArg("b")))
	c.Check(w.Next(), Equals, false)
	c.Assert(w.Previous(), Equals, true)
	c.Check(w.Current().(*migrate.ValueNode).Value, Equals, trace.ArgNode(trace.StringArg("a")))
	c.Assert(w.Up(), Equals, true)
	c.Check(w.Current(), Equals, root)
}

func (s *migrateTestSuite) TestWalkerDownToKeyMapAndList(c *C) {
	root := migrate.FromArgNode(trace.MapArg{
		{Key: "name", Value: trace.StringArg("alice")},
		{Key: "items", Value: trace.ListArg{trace.NumberArg(1), trace.NumberArg(2)}},
	})
	w := migrate.NewWalker(root)
	c.Assert(w.DownToKey("items", "1"), Equals, true)
	c.Check(w.Current().(*migrate.ValueNode).Value, Equals, trace.ArgNode(trace.NumberArg(2)))
}

func (s *migrateTestSuite) TestWalkerReplaceAndRemove(c *C) {
	root := migrate.FromArgNode(trace.ListArg{trace.StringArg("a"), trace.StringArg("b")})
	w := migrate.NewWalker(root)
	w.DownToKey("0")
	w.Replace(&migrate.ValueNode{Value: trace.StringArg("replaced")})
	wantAfterReplace := trace.ArgNode(trace.ListArg{trace.StringArg("replaced"), trace.StringArg("b")})
	c.Check(cmp.Diff(wantAfterReplace, migrate.ToArgNode(w.Root())), Equals, "")

	w.Reset()
	w.DownToKey("0")
	key, removed := w.Remove()
	c.Check(key, Equals, "0")
	c.Check(removed.(*migrate.ValueNode).Value, Equals, trace.ArgNode(trace.StringArg("replaced")))
	wantAfterRemove := trace.ArgNode(trace.ListArg{trace.StringArg("b")})
	c.Check(cmp.Diff(wantAfterRemove, migrate.ToArgNode(w.Root())), Equals, "")
}

func (s *migrateTestSuite) TestWalkerMapAndUnmap(c *C) {
	root := migrate.FromArgNode(trace.ListArg{trace.StringArg("bob")})
	w := migrate.NewWalker(root)
	w.DownToKey("0")
	w.Map([]string{"0"}, trace.StringArg("alice"))

	mv, ok := w.Current().(*migrate.MappedValueNode)
	c.Assert(ok, Equals, true)
	c.Check(mv.Original, Equals, trace.ArgNode(trace.StringArg("bob")))
	c.Check(mv.Value, Equals, trace.ArgNode(trace.StringArg("alice")))

	w.Unmap()
	c.Check(w.Current().(*migrate.ValueNode).Value, Equals, trace.ArgNode(trace.StringArg("bob")))
}

// fakeValidator scores a candidate by how many of its list elements equal
// want, letting tests drive Refine's passes deterministically without a
// real sandboxed executable.
type fakeValidator struct {
	want []string
}

func (f *fakeValidator) Validate(system, executable string, args trace.ArgNode) (migrate.ValidationResult, error) {
	list, ok := args.(trace.ListArg)
	if !ok {
		return migrate.ValidationResult{Score: 0}, nil
	}
	matches := 0
	for i, w := range f.want {
		if i >= len(list) {
			continue
		}
		if text, ok := trace.ScalarText(list[i]); ok && text == w {
			matches++
		}
	}
	return migrate.ValidationResult{Score: float64(matches) / float64(len(f.want))}, nil
}

func (s *migrateTestSuite) TestRefineMapsSourceParameterIntoTarget(c *C) {
	v := &fakeValidator{want: []string{"alice"}}
	target := trace.ListArg{trace.StringArg("bob")}
	sourceParams := []migrate.SourceParam{
		{Key: []string{"0"}, Value: trace.StringArg("alice")},
	}

	result, err := migrate.Refine("linux", "useradd", target, sourceParams, v)
	c.Assert(err, IsNil)
	c.Check(result.Score, Equals, 1.0)
	c.Check(result.Mapping["0"], Equals, "0")

	list := result.Arguments.(trace.ListArg)
	text, ok := trace.ScalarText(list[0])
	c.Assert(ok, Equals, true)
	c.Check(text, Equals, "alice")
}

func (s *migrateTestSuite) TestRefineLeavesAlreadyPerfectTargetUnchanged(c *C) {
	v := &fakeValidator{want: []string{"alice"}}
	target := trace.ListArg{trace.StringArg("alice")}

	result, err := migrate.Refine("linux", "useradd", target, nil, v)
	c.Assert(err, IsNil)
	c.Check(result.Score, Equals, 1.0)
}
