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

package straceparse_test

import (
	"testing"

	"github.com/anonymouse64/tracemigrate/internal/straceparse"
	"github.com/anonymouse64/tracemigrate/internal/trace"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type parserTestSuite struct{}

var _ = Suite(&parserTestSuite{})

func (s *parserTestSuite) TestSimpleSyscall(c *C) {
	tr, err := straceparse.Parse(`open("/etc/passwd", O_RDONLY) = 3`)
	c.Assert(err, IsNil)
	c.Assert(tr.Lines, HasLen, 1)

	sc, ok := tr.Lines[0].(*trace.Syscall)
	c.Assert(ok, Equals, true)
	c.Check(sc.Name, Equals, "open")
	c.Assert(sc.Arguments, HasLen, 2)
	c.Check(sc.Arguments[0].(*trace.Literal).Value, DeepEquals, trace.StringValue{Raw: "/etc/passwd"})
	c.Check(sc.Arguments[1].(*trace.Literal).Value, DeepEquals, trace.IdentifierValue{Name: "O_RDONLY"})
	c.Assert(sc.Exit, NotNil)
	c.Check(sc.Exit.Known, Equals, true)
	c.Check(sc.Exit.Value, Equals, int64(3))
}

func (s *parserTestSuite) TestLeadingPID(c *C) {
	tr, err := straceparse.Parse(`12345 close(3) = 0`)
	c.Assert(err, IsNil)
	sc := tr.Lines[0].(*trace.Syscall)
	c.Check(sc.PID, Equals, "12345")
	c.Check(sc.Name, Equals, "close")
}

func (s *parserTestSuite) TestNamedArgumentAndOmitted(c *C) {
	tr, err := straceparse.Parse(`fcntl(3, F_SETFD, FD_CLOEXEC, ...) = 0`)
	c.Assert(err, IsNil)
	sc := tr.Lines[0].(*trace.Syscall)
	c.Assert(sc.Arguments, HasLen, 4)
	_, omitted := sc.Arguments[3].(trace.Omitted)
	c.Check(omitted, Equals, true)
}

func (s *parserTestSuite) TestNumericExprFlags(c *C) {
	tr, err := straceparse.Parse(`openat(AT_FDCWD, "/tmp/foo", O_RDONLY|O_NOFOLLOW|O_CLOEXEC) = 4`)
	c.Assert(err, IsNil)
	sc := tr.Lines[0].(*trace.Syscall)
	v := sc.Arguments[2].(*trace.Literal).Value
	c.Check(v, DeepEquals, trace.NumericExpr{Text: "O_RDONLY|O_NOFOLLOW|O_CLOEXEC"})
}

func (s *parserTestSuite) TestPathFileDescriptor(c *C) {
	tr, err := straceparse.Parse(`read(3</etc/passwd>, "root:x", 6) = 6`)
	c.Assert(err, IsNil)
	sc := tr.Lines[0].(*trace.Syscall)
	v := sc.Arguments[0].(*trace.Literal).Value
	c.Check(v, DeepEquals, trace.PathFileDescriptor{FD: 3, Path: "/etc/passwd"})
}

func (s *parserTestSuite) TestDeviceFileDescriptor(c *C) {
	tr, err := straceparse.Parse(`ioctl(3<char 136:1>, TCGETS, {B38400}) = 0`)
	c.Assert(err, IsNil)
	sc := tr.Lines[0].(*trace.Syscall)
	v := sc.Arguments[0].(*trace.Literal).Value
	c.Check(v, DeepEquals, trace.DeviceFileDescriptor{FD: 3, DevType: "char", Major: 136, Minor: 1})
}

func (s *parserTestSuite) TestSocketFileDescriptor(c *C) {
	tr, err := straceparse.Parse(`write(9<socket:[624422]>, "ping", 4) = 4`)
	c.Assert(err, IsNil)
	sc := tr.Lines[0].(*trace.Syscall)
	v := sc.Arguments[0].(*trace.Literal).Value
	c.Check(v, DeepEquals, trace.SocketFileDescriptor{FD: 9, Protocol: "socket", Inode: "624422"})
}

func (s *parserTestSuite) TestIPSocketFileDescriptor(c *C) {
	tr, err := straceparse.Parse(`recvfrom(6<TCP:[127.0.0.1:5353->127.0.0.53:53]>, "", 512, 0, NULL, NULL) = 0`)
	c.Assert(err, IsNil)
	sc := tr.Lines[0].(*trace.Syscall)
	v := sc.Arguments[0].(*trace.Literal).Value
	c.Check(v, DeepEquals, trace.IPSocketFileDescriptor{
		FD: 6, Protocol: "TCP", HasSource: true, Source: "127.0.0.1:5353", Dest: "127.0.0.53:53",
	})
}

func (s *parserTestSuite) TestNetlinkFileDescriptor(c *C) {
	tr, err := straceparse.Parse(`bind(3<NETLINK:[ROUTE:1234]>, {sa_family=AF_NETLINK}, 12) = 0`)
	c.Assert(err, IsNil)
	sc := tr.Lines[0].(*trace.Syscall)
	v := sc.Arguments[0].(*trace.Literal).Value
	c.Check(v, DeepEquals, trace.NetlinkFileDescriptor{FD: 3, Protocol: "NETLINK", SubProtocol: "ROUTE", PID: "1234"})
}

func (s *parserTestSuite) TestStructArgument(c *C) {
	tr, err := straceparse.Parse(`stat("/etc/passwd", {st_mode=S_IFREG|0644, st_size=1234}) = 0`)
	c.Assert(err, IsNil)
	sc := tr.Lines[0].(*trace.Syscall)
	v := sc.Arguments[1].(*trace.Literal).Value.(trace.CollectionValue)
	c.Check(v.Bracket, Equals, trace.BracketStruct)
	c.Assert(v.Items, HasLen, 2)
	c.Check(v.Items[0].Identifier, Equals, "st_mode")
	c.Check(v.Items[1].Identifier, Equals, "st_size")
	c.Check(v.Items[1].Value, DeepEquals, trace.NumberValue{Text: "1234", Value: 1234})
}

func (s *parserTestSuite) TestListArgument(c *C) {
	tr, err := straceparse.Parse(`select(4, [3, 4], NULL, NULL, NULL) = 1`)
	c.Assert(err, IsNil)
	sc := tr.Lines[0].(*trace.Syscall)
	v := sc.Arguments[1].(*trace.Literal).Value.(trace.CollectionValue)
	c.Check(v.Bracket, Equals, trace.BracketList)
	c.Assert(v.Items, HasLen, 2)
}

func (s *parserTestSuite) TestFunctionCallArgument(c *C) {
	tr, err := straceparse.Parse(`bind(3, {sa_family=AF_INET, sin_port=htons(53)}, 16) = 0`)
	c.Assert(err, IsNil)
	sc := tr.Lines[0].(*trace.Syscall)
	st := sc.Arguments[1].(*trace.Literal).Value.(trace.CollectionValue)
	portField := st.Items[1].Value.(trace.FunctionCallValue)
	c.Check(portField.Identifier, Equals, "htons")
	c.Assert(portField.Arguments, HasLen, 1)
	c.Check(portField.Arguments[0].Value, DeepEquals, trace.NumberValue{Text: "53", Value: 53})
}

func (s *parserTestSuite) TestInetAddrArgument(c *C) {
	tr, err := straceparse.Parse(`connect(3, {sa_family=AF_INET, sin_addr=inet_addr("93.184.216.34")}, 16) = 0`)
	c.Assert(err, IsNil)
	c.Assert(tr.Lines, HasLen, 1)
}

func (s *parserTestSuite) TestArrowMapping(c *C) {
	tr, err := straceparse.Parse(`getsockname(3, {sa_family=AF_INET} => {sa_family=AF_INET, sin_port=htons(0)}, [16]) = 0`)
	c.Assert(err, IsNil)
	sc := tr.Lines[0].(*trace.Syscall)
	lit := sc.Arguments[1].(*trace.Literal)
	c.Assert(lit.MapsTo, NotNil)
	dest := lit.MapsTo.Value.(trace.CollectionValue)
	c.Assert(dest.Items, HasLen, 2)
}

func (s *parserTestSuite) TestUnfinishedResumedMerge(c *C) {
	input := "3918  futex(0x7f1, FUTEX_WAIT, 2, NULL <unfinished ...>\n" +
		"3917  write(1, \"hi\\n\", 2) = 2\n" +
		"3918  <... futex resumed>) = 0\n"
	tr, err := straceparse.Parse(input)
	c.Assert(err, IsNil)
	c.Assert(tr.Lines, HasLen, 2)

	fu := tr.Lines[0].(*trace.Syscall)
	c.Check(fu.Name, Equals, "futex")
	c.Check(fu.Unfinished, Equals, true)
	c.Check(fu.Resumed, Equals, true)
	c.Assert(fu.Exit, NotNil)
	c.Check(fu.Exit.Value, Equals, int64(0))

	wr := tr.Lines[1].(*trace.Syscall)
	c.Check(wr.Name, Equals, "write")
	c.Check(wr.PID, Equals, "3917")
}

func (s *parserTestSuite) TestExitStatementWithStatus(c *C) {
	tr, err := straceparse.Parse(`+++ exited with 0 +++`)
	c.Assert(err, IsNil)
	es := tr.Lines[0].(*trace.ExitStatement)
	c.Check(es.HasStatus, Equals, true)
	c.Check(es.Status, Equals, 0)
}

func (s *parserTestSuite) TestExitStatementKilledBySignal(c *C) {
	tr, err := straceparse.Parse(`+++ killed by SIGKILL +++`)
	c.Assert(err, IsNil)
	es := tr.Lines[0].(*trace.ExitStatement)
	c.Check(es.HasStatus, Equals, false)
	c.Check(es.SignalName, Equals, "SIGKILL")
}

func (s *parserTestSuite) TestSignalWithPayload(c *C) {
	tr, err := straceparse.Parse(`--- SIGCHLD {si_signo=SIGCHLD, si_pid=123, si_status=0} ---`)
	c.Assert(err, IsNil)
	sig := tr.Lines[0].(*trace.Signal)
	c.Check(sig.Name, Equals, "SIGCHLD")
	c.Assert(sig.Payload, HasLen, 3)
	c.Check(sig.Payload[1].Name, Equals, "si_pid")
	c.Check(sig.Payload[1].Value, DeepEquals, trace.NumberValue{Text: "123", Value: 123})
}

func (s *parserTestSuite) TestUnknownExitValue(c *C) {
	tr, err := straceparse.Parse(`exit_group(0) = ?`)
	c.Assert(err, IsNil)
	sc := tr.Lines[0].(*trace.Syscall)
	c.Check(sc.Exit.Known, Equals, false)
}

func (s *parserTestSuite) TestTruncatedMarker(c *C) {
	tr, err := straceparse.Parse("open(\"/etc/passwd\", O_RDONLY) = 3\nTRUNCATED\n")
	c.Assert(err, IsNil)
	c.Check(tr.Truncated, Equals, true)
	c.Assert(tr.Lines, HasLen, 1)
}

func (s *parserTestSuite) TestBooleanExprFallback(c *C) {
	tr, err := straceparse.Parse(`wait4(-1, [{WIFEXITED(s) && WEXITSTATUS(s) == 0}], 0, NULL) = 1234`)
	c.Assert(err, IsNil)
	sc := tr.Lines[0].(*trace.Syscall)
	list := sc.Arguments[1].(*trace.Literal).Value.(trace.CollectionValue)
	_, ok := list.Items[0].Value.(trace.BooleanExpr)
	c.Check(ok, Equals, true)
}

func (s *parserTestSuite) TestParseErrorHasContext(c *C) {
	_, err := straceparse.Parse(`open("/etc/passwd" O_RDONLY) = 3`)
	c.Assert(err, NotNil)
	perr, ok := err.(*straceparse.ParseError)
	c.Assert(ok, Equals, true)
	c.Check(perr.Line, Equals, 1)
	c.Check(len(perr.Context) > 0, Equals, true)
}
