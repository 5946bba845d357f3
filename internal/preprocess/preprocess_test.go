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

package preprocess_test

import (
	"strings"
	"testing"

	"github.com/anonymouse64/tracemigrate/internal/equality"
	"github.com/anonymouse64/tracemigrate/internal/preprocess"
	"github.com/anonymouse64/tracemigrate/internal/straceparse"
	"github.com/anonymouse64/tracemigrate/internal/trace"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type preprocessTestSuite struct{}

var _ = Suite(&preprocessTestSuite{})

func parse(c *C, lines ...string) *trace.Trace {
	tr, err := straceparse.Parse(strings.Join(lines, "\n"))
	c.Assert(err, IsNil)
	return tr
}

func (s *preprocessTestSuite) TestSelectSyscallsDropsSignalsAndExits(c *C) {
	tr := parse(c,
		`open("/a", O_RDONLY) = 3`,
		`--- SIGCHLD {si_signo=SIGCHLD} ---`,
		`+++ exited with 0 +++`,
	)
	preprocess.SelectSyscalls(tr)
	c.Assert(tr.Lines, HasLen, 1)
	_, ok := tr.Lines[0].(*trace.Syscall)
	c.Check(ok, Equals, true)
}

func (s *preprocessTestSuite) TestReplaceFileDescriptorsOpenThenRead(c *C) {
	tr := parse(c,
		`open("/etc/passwd", O_RDONLY) = 3`,
		`read(3, "root", 4) = 4`,
		`close(3) = 0`,
	)
	preprocess.SelectSyscalls(tr)
	preprocess.ReplaceFileDescriptors(tr)

	readSc := tr.Lines[1].(*trace.Syscall)
	v, ok := readSc.Arguments[0].(*trace.Literal).Value.(trace.StringValue)
	c.Assert(ok, Equals, true)
	c.Check(v.Raw, Equals, "/etc/passwd")

	closeSc := tr.Lines[2].(*trace.Syscall)
	cv, ok := closeSc.Arguments[0].(*trace.Literal).Value.(trace.StringValue)
	c.Assert(ok, Equals, true)
	c.Check(cv.Raw, Equals, "/etc/passwd")
}

func (s *preprocessTestSuite) TestReplaceFileDescriptorsDup(c *C) {
	tr := parse(c,
		`open("/etc/passwd", O_RDONLY) = 3`,
		`dup2(3, 5) = 5`,
		`read(5, "root", 4) = 4`,
	)
	preprocess.SelectSyscalls(tr)
	preprocess.ReplaceFileDescriptors(tr)

	readSc := tr.Lines[2].(*trace.Syscall)
	v, ok := readSc.Arguments[0].(*trace.Literal).Value.(trace.StringValue)
	c.Assert(ok, Equals, true)
	c.Check(v.Raw, Equals, "/etc/passwd")
}

func (s *preprocessTestSuite) TestReplaceFileDescriptorsPipe(c *C) {
	tr := parse(c,
		`pipe([3, 4]) = 0`,
		`read(3, "hi", 2) = 2`,
		`write(4, "hi", 2) = 2`,
	)
	preprocess.SelectSyscalls(tr)
	preprocess.ReplaceFileDescriptors(tr)

	readSc := tr.Lines[1].(*trace.Syscall)
	v := readSc.Arguments[0].(*trace.Literal).Value.(trace.StringValue)
	c.Check(v.Raw, Equals, "pipe_read")

	writeSc := tr.Lines[2].(*trace.Syscall)
	w := writeSc.Arguments[0].(*trace.Literal).Value.(trace.StringValue)
	c.Check(w.Raw, Equals, "pipe_write")
}

func (s *preprocessTestSuite) TestPIDInLockFiles(c *C) {
	tr := parse(c,
		`651 openat(AT_FDCWD, "/etc/passwd.651", O_CREAT) = 5`,
		`651 write(5, "651\0", 4) = 4`,
		`651 link("/etc/passwd.651", "/etc/passwd.lock") = 0`,
		`651 unlink("/etc/passwd.651") = 0`,
	)
	preprocess.SelectSyscalls(tr)
	preprocess.PIDInLockFiles(tr)

	openatSc := tr.Lines[0].(*trace.Syscall)
	p := openatSc.Arguments[1].(*trace.Literal).Value.(trace.StringValue)
	c.Check(p.Raw, Equals, "/etc/passwd.PID")

	writeSc := tr.Lines[1].(*trace.Syscall)
	w := writeSc.Arguments[1].(*trace.Literal).Value.(trace.StringValue)
	c.Check(w.Raw, Equals, "PID\x00")

	linkSc := tr.Lines[2].(*trace.Syscall)
	l := linkSc.Arguments[0].(*trace.Literal).Value.(trace.StringValue)
	c.Check(l.Raw, Equals, "/etc/passwd.PID")

	unlinkSc := tr.Lines[3].(*trace.Syscall)
	u := unlinkSc.Arguments[0].(*trace.Literal).Value.(trace.StringValue)
	c.Check(u.Raw, Equals, "/etc/passwd.PID")
}

func (s *preprocessTestSuite) TestPIDInProcfs(c *C) {
	tr := parse(c, `651 open("/proc/651/status", O_RDONLY) = 3`)
	preprocess.SelectSyscalls(tr)
	preprocess.PIDInProcfs(tr)

	sc := tr.Lines[0].(*trace.Syscall)
	p := sc.Arguments[0].(*trace.Literal).Value.(trace.StringValue)
	c.Check(p.Raw, Equals, "/proc/self/status")
}

func (s *preprocessTestSuite) TestPunchHoles(c *C) {
	tr := parse(c, `open("/tmp/abc123", O_RDONLY) = 3`)
	preprocess.SelectSyscalls(tr)
	preprocess.PunchHoles(tr, preprocess.HoleSet{"open": {0}})

	sc := tr.Lines[0].(*trace.Syscall)
	_, ok := sc.Arguments[0].(*trace.Literal).Value.(trace.Hole)
	c.Check(ok, Equals, true)
}

func (s *preprocessTestSuite) TestPunchHolesIdempotent(c *C) {
	tr := parse(c, `open("/tmp/abc123", O_RDONLY) = 3`)
	preprocess.SelectSyscalls(tr)
	holes := preprocess.HoleSet{"open": {0}}
	preprocess.PunchHoles(tr, holes)
	preprocess.PunchHoles(tr, holes)

	sc := tr.Lines[0].(*trace.Syscall)
	_, ok := sc.Arguments[0].(*trace.Literal).Value.(trace.Hole)
	c.Check(ok, Equals, true)
}

func (s *preprocessTestSuite) TestAnsibleStripLastWrite(c *C) {
	tr := parse(c,
		`open("/tmp/x", O_RDONLY) = 3`,
		`write(1, "{\"changed\": true}", 17) = 17`,
	)
	tr.System = "ansible"
	preprocess.SelectSyscalls(tr)
	preprocess.AnsibleStripLastWrite(tr)

	c.Assert(tr.Lines, HasLen, 1)
	c.Check(tr.Lines[0].(*trace.Syscall).Name, Equals, "open")
}

func (s *preprocessTestSuite) TestAnsibleStripLastWriteIgnoresLinuxSystem(c *C) {
	tr := parse(c,
		`open("/tmp/x", O_RDONLY) = 3`,
		`write(1, "hi", 2) = 2`,
	)
	tr.System = "linux"
	preprocess.SelectSyscalls(tr)
	preprocess.AnsibleStripLastWrite(tr)
	c.Assert(tr.Lines, HasLen, 2)
}

func (s *preprocessTestSuite) TestGenerateSyntheticValuesSubstring(c *C) {
	tr := parse(c, `open("/home/alice/.bashrc", O_RDONLY) = 3`)
	tr.Arguments = trace.ListArg{trace.StringArg("alice")}
	preprocess.SelectSyscalls(tr)
	preprocess.GenerateSyntheticValues(tr)

	sc := tr.Lines[0].(*trace.Syscall)
	sv, ok := sc.Arguments[0].(*trace.Literal).Value.(trace.SyntheticValue)
	c.Assert(ok, Equals, true)
	c.Check(sv.Param.KeyString(), Equals, "0")
	c.Check(sv.Template.Render("bob"), Equals, "/home/bob/.bashrc")
}

func (s *preprocessTestSuite) TestGenerateSyntheticValuesNumber(c *C) {
	tr := parse(c, `kill(4242, SIGTERM) = 0`)
	tr.Arguments = trace.ListArg{trace.NumberArg(4242)}
	preprocess.SelectSyscalls(tr)
	preprocess.GenerateSyntheticValues(tr)

	sc := tr.Lines[0].(*trace.Syscall)
	sv, ok := sc.Arguments[0].(*trace.Literal).Value.(trace.SyntheticValue)
	c.Assert(ok, Equals, true)
	c.Check(sv.Template.Render("9999"), Equals, "9999")
}

func (s *preprocessTestSuite) TestStripCommonPrefixSuffix(c *C) {
	// open/close bracket both traces and match under name equality; the
	// mkdir/rmdir pair in between does not, so only it should survive.
	a := parse(c, `open("/a", O_RDONLY) = 3`, `mkdir("/tmp/x", 0755) = 0`, `close(3) = 0`)
	b := parse(c, `open("/b", O_RDONLY) = 4`, `rmdir("/tmp/x") = 0`, `close(4) = 0`)
	preprocess.SelectSyscalls(a)
	preprocess.SelectSyscalls(b)
	preprocess.StripCommonPrefixSuffix(a, b)

	c.Assert(a.Lines, HasLen, 1)
	c.Assert(b.Lines, HasLen, 1)
	c.Check(a.Lines[0].(*trace.Syscall).Name, Equals, "mkdir")
	c.Check(b.Lines[0].(*trace.Syscall).Name, Equals, "rmdir")
}

func (s *preprocessTestSuite) TestComputeAndStripGlobalSyscalls(c *C) {
	corpus := []*trace.Trace{
		parse(c, `brk(0) = 0`, `mkdir("/tmp/a", 0755) = 0`),
		parse(c, `brk(0) = 0`, `mkdir("/tmp/b", 0755) = 0`),
		parse(c, `brk(0) = 0`, `mkdir("/tmp/c", 0755) = 0`),
	}
	for _, t := range corpus {
		preprocess.SelectSyscalls(t)
	}

	global := preprocess.ComputeGlobalSyscalls(corpus, equality.StrictEquality)
	c.Assert(global, HasLen, 1)

	tr := parse(c, `brk(0) = 0`, `mkdir("/tmp/d", 0755) = 0`)
	preprocess.SelectSyscalls(tr)
	preprocess.StripGlobalSyscallsUnder(tr, global, equality.StrictEquality)

	c.Assert(tr.Lines, HasLen, 1)
	c.Check(tr.Lines[0].(*trace.Syscall).Name, Equals, "mkdir")
}
