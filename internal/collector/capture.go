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

package collector

import (
	"fmt"
	"io/ioutil"
	"os/exec"

	"github.com/anonymouse64/tracemigrate/internal/commands"
	"github.com/anonymouse64/tracemigrate/internal/files"
)

// excludedSyscalls are calls whose tracing is known to hang or stall on
// some architectures (gettimeofday on arm64 in particular).
const excludedSyscalls = "!select,pselect6,_newselect,clock_gettime,sigaltstack,gettid,gettimeofday,nanosleep"

// Capture runs name under strace, sudo-wrapped if needed, recording every
// syscall (not just execve/execveat the way a performance-timing capture
// would) to a temporary log file, and returns the log's contents for the
// parser to consume. Unlike RunInto, which hands an already-captured
// script's own output straight to the caller, Capture owns the strace
// invocation itself: the traced program's stdout/stderr must not be mixed
// into the trace log, so strace writes to -o rather than this process's
// output streams.
func Capture(name string, args ...string) (string, error) {
	stracePath, err := exec.LookPath("strace")
	if err != nil {
		return "", fmt.Errorf("cannot find an installed strace: %w", err)
	}

	logFile, err := ioutil.TempFile("", "tracemigrate-capture-*.log")
	if err != nil {
		return "", err
	}
	logPath := logFile.Name()
	logFile.Close()

	// strace truncates -o itself, but clear any leftover content first so a
	// failed previous run never leaks into this capture's trace text.
	if err := files.EnsureFileIsDeleted(logPath); err != nil {
		return "", err
	}
	defer files.EnsureFileIsDeleted(logPath)

	straceArgs := []string{"-f", "-v", "-s", "65536", "-yy", "-e", excludedSyscalls, "-o", logPath, name}
	straceArgs = append(straceArgs, args...)

	cmd := exec.Command(stracePath, straceArgs...)
	if err := commands.AddSudoIfNeeded(cmd, "-E"); err != nil {
		return "", err
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("strace failed: %w: %s", err, out)
	}

	b, err := ioutil.ReadFile(logPath)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
