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

package preprocess

import (
	"strings"

	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// PIDInLockFiles masks the PID embedded in /etc/<name>.<pid> lock-file
// paths (and the matching "<pid>\0" write payload) with the literal symbol
// PID, so two runs of the same lock-acquisition sequence compare equal
// despite having run under different pids. See link/stat/unlink/write and
// openat's path argument below.
func PIDInLockFiles(t *trace.Trace) {
	for _, sc := range t.Syscalls() {
		switch sc.Name {
		case "link", "stat", "unlink":
			maskLockPath(sc.Arg(0), sc.PID)
		case "openat":
			maskLockPath(sc.Arg(1), sc.PID)
		case "write":
			maskLockWrite(sc.Arg(1), sc.PID)
		}
	}
}

func maskLockPath(lit *trace.Literal, pid string) {
	if lit == nil || pid == "" {
		return
	}
	s, ok := lit.Value.(trace.StringValue)
	if !ok {
		return
	}
	suffix := "." + pid
	if strings.HasPrefix(s.Raw, "/etc/") && strings.HasSuffix(s.Raw, suffix) {
		trace.SubstituteValue(lit, trace.StringValue{Raw: strings.TrimSuffix(s.Raw, suffix) + ".PID"})
	}
}

func maskLockWrite(lit *trace.Literal, pid string) {
	if lit == nil || pid == "" {
		return
	}
	s, ok := lit.Value.(trace.StringValue)
	if !ok {
		return
	}
	if s.Raw == pid+"\x00" {
		trace.SubstituteValue(lit, trace.StringValue{Raw: "PID\x00"})
	}
}

// PIDInProcfs rewrites /proc/<pid> path prefixes (where <pid> is the
// syscall's own pid) to /proc/self, so a process inspecting its own procfs
// entry compares equal across runs regardless of the pid it happened to get.
func PIDInProcfs(t *trace.Trace) {
	for _, sc := range t.Syscalls() {
		switch sc.Name {
		case "open", "stat":
			maskProcfsPath(sc.Arg(0), sc.PID)
		case "openat":
			maskProcfsAt(sc.Arg(0), sc.Arg(1), sc.PID)
		}
	}
}

func maskProcfsPath(lit *trace.Literal, pid string) {
	if lit == nil || pid == "" {
		return
	}
	s, ok := lit.Value.(trace.StringValue)
	if !ok {
		return
	}
	prefix := "/proc/" + pid
	if strings.HasPrefix(s.Raw, prefix) {
		trace.SubstituteValue(lit, trace.StringValue{Raw: "/proc/self" + strings.TrimPrefix(s.Raw, prefix)})
	}
}

func maskProcfsAt(dirLit, pathLit *trace.Literal, pid string) {
	if pid == "" {
		return
	}
	prefix := "/proc/" + pid
	if pathLit != nil {
		if s, ok := pathLit.Value.(trace.StringValue); ok && strings.HasPrefix(s.Raw, "/") && strings.HasPrefix(s.Raw, prefix) {
			trace.SubstituteValue(pathLit, trace.StringValue{Raw: "/proc/self" + strings.TrimPrefix(s.Raw, prefix)})
			return
		}
	}
	if dirLit != nil {
		if s, ok := dirLit.Value.(trace.StringValue); ok && strings.HasPrefix(s.Raw, prefix) {
			trace.SubstituteValue(dirLit, trace.StringValue{Raw: "/proc/self" + strings.TrimPrefix(s.Raw, prefix)})
		}
	}
}
