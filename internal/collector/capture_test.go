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

package collector_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/anonymouse64/tracemigrate/internal/collector"
	"github.com/anonymouse64/tracemigrate/internal/commands"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type captureTestSuite struct{}

var _ = Suite(&captureTestSuite{})

// fakeStrace writes a fixed trace log to whatever path follows "-o" on its
// own command line, mimicking strace well enough to exercise Capture's own
// plumbing without a real strace binary.
const fakeStraceScript = `#!/bin/sh
prev=""
for arg in "$@"; do
	if [ "$prev" = "-o" ]; then
		echo "execve(\"/bin/true\", [\"true\"], 0x0 /* 0 vars */) = 0" > "$arg"
	fi
	prev="$arg"
done
`

func (s *captureTestSuite) TestCapture(c *C) {
	restore := commands.MockUID("0")
	defer restore()

	tmpDir := c.MkDir()
	stracePath := filepath.Join(tmpDir, "strace")
	c.Assert(ioutil.WriteFile(stracePath, []byte(fakeStraceScript), 0755), IsNil)

	oldPath := os.Getenv("PATH")
	os.Setenv("PATH", tmpDir+string(os.PathListSeparator)+oldPath)
	defer os.Setenv("PATH", oldPath)

	out, err := collector.Capture("/bin/true")
	c.Assert(err, IsNil)
	c.Assert(out, Matches, `(?s).*execve\("/bin/true".*`)
}

func (s *captureTestSuite) TestCaptureMissingStrace(c *C) {
	tmpDir := c.MkDir()
	oldPath := os.Getenv("PATH")
	os.Setenv("PATH", tmpDir)
	defer os.Setenv("PATH", oldPath)

	_, err := collector.Capture("/bin/true")
	c.Assert(err, ErrorMatches, `cannot find an installed strace.*`)
}
