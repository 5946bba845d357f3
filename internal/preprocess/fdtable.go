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

// fdTable maps a process/thread's open file descriptors to the path (or
// pipe_read/pipe_write/... marker) they were last opened or duplicated as.
// It is a map so that CLONE_FILES sharing can alias two pids' tables
// instead of copying them.
type fdTable map[int64]string

func (tb fdTable) copy() fdTable {
	cp := make(fdTable, len(tb))
	for k, v := range tb {
		cp[k] = v
	}
	return cp
}

// ReplaceFileDescriptors resolves the first argument of every syscall whose
// first argument is a known file descriptor to the path it refers to,
// maintaining one file-descriptor table per pid. Tables are populated by
// open/openat/creat, retired by close, copied or shared (per CLONE_FILES)
// across clone/fork/vfork, and dropped on process/thread exit.
func ReplaceFileDescriptors(t *trace.Trace) {
	tables := make(map[string]fdTable)

	tableFor := func(pid string) fdTable {
		tb, ok := tables[pid]
		if !ok {
			tb = fdTable{}
			tables[pid] = tb
		}
		return tb
	}

	for _, sc := range t.Syscalls() {
		switch sc.Name {
		case "clone":
			current := tableFor(sc.PID)
			child, ok := exitPID(sc)
			if !ok {
				continue
			}
			if sharesFiles(sc) {
				tables[child] = current
			} else {
				tables[child] = current.copy()
			}
			continue
		case "__clone2", "clone3", "fork", "vfork":
			current := tableFor(sc.PID)
			if child, ok := exitPID(sc); ok {
				tables[child] = current.copy()
			}
			continue
		case "_exit", "_Exit", "exit_group":
			delete(tables, sc.PID)
			continue
		}

		tb := tableFor(sc.PID)
		if h, ok := fdHandlers[sc.Name]; ok {
			h(sc, tb)
		}
	}
}

// exitPID reads a syscall's exit status as a pid string, the form the
// child/duplicate fd table is keyed under.
func exitPID(sc *trace.Syscall) (string, bool) {
	if sc.Exit == nil || !sc.Exit.Known {
		return "", false
	}
	return formatInt(sc.Exit.Value), true
}

func formatInt(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// sharesFiles reports whether a clone syscall's flags argument carries
// CLONE_FILES, i.e. the child shares (rather than copies) its parent's
// file-descriptor table.
func sharesFiles(sc *trace.Syscall) bool {
	lit := sc.Arg(1)
	if lit == nil {
		return false
	}
	var text string
	switch v := lit.Value.(type) {
	case trace.IdentifierValue:
		text = v.Name
	case trace.NumericExpr:
		text = v.Text
	default:
		return false
	}
	for _, word := range strings.Split(text, "|") {
		if strings.TrimSpace(word) == "CLONE_FILES" {
			return true
		}
	}
	return false
}

func fdOK(sc *trace.Syscall) bool {
	return sc.Exit == nil || !sc.Exit.Known || sc.Exit.Value != -1
}

func resolveFD(lit *trace.Literal, tb fdTable) (int64, bool) {
	if lit == nil {
		return 0, false
	}
	if n, ok := lit.Value.(trace.NumberValue); ok {
		return n.Value, true
	}
	return trace.FDNumber(lit.Value)
}

// replaceFirst rewrites a syscall's first argument in place with its
// resolved path, if the argument is a known file descriptor.
func replaceFirst(sc *trace.Syscall, tb fdTable) {
	lit := sc.Arg(0)
	fd, ok := resolveFD(lit, tb)
	if !ok {
		return
	}
	if path, known := tb[fd]; known {
		trace.SubstituteValue(lit, trace.StringValue{Raw: path})
	}
}

func processClose(sc *trace.Syscall, tb fdTable) {
	lit := sc.Arg(0)
	fd, ok := resolveFD(lit, tb)
	if !ok {
		return
	}
	if path, known := tb[fd]; known {
		trace.SubstituteValue(lit, trace.StringValue{Raw: path})
		delete(tb, fd)
	}
}

func processDup(sc *trace.Syscall, tb fdTable) {
	if !fdOK(sc) {
		return
	}
	lit := sc.Arg(0)
	oldFD, ok := resolveFD(lit, tb)
	if !ok {
		return
	}
	path, known := tb[oldFD]
	if !known {
		return
	}
	trace.SubstituteValue(lit, trace.StringValue{Raw: path})
	if newFD, ok := exitAsFD(sc); ok {
		tb[newFD] = path
	}
}

func processFcntl(sc *trace.Syscall, tb fdTable) {
	if !fdOK(sc) {
		return
	}
	cmdLit := sc.Arg(1)
	if cmdLit == nil {
		return
	}
	ident, ok := cmdLit.Value.(trace.IdentifierValue)
	if !ok || !fcntlDupCommands[ident.Name] {
		return
	}
	lit := sc.Arg(0)
	oldFD, ok := resolveFD(lit, tb)
	if !ok {
		return
	}
	path, known := tb[oldFD]
	if !known {
		return
	}
	trace.SubstituteValue(lit, trace.StringValue{Raw: path})
	if newFD, ok := exitAsFD(sc); ok {
		tb[newFD] = path
	}
}

// fcntlDupCommands names the fcntl commands that return a new fd
// duplicating the first argument, so the fd table needs updating exactly as
// for dup/dup2/dup3.
var fcntlDupCommands = map[string]bool{
	"F_DUPFD":         true,
	"F_DUPFD_CLOEXEC": true,
}

func exitAsFD(sc *trace.Syscall) (int64, bool) {
	if sc.Exit == nil || !sc.Exit.Known {
		return 0, false
	}
	return sc.Exit.Value, true
}

func processOpen(sc *trace.Syscall, tb fdTable) {
	if !fdOK(sc) {
		return
	}
	pathLit := sc.Arg(0)
	if pathLit == nil {
		return
	}
	path, ok := pathLit.Value.(trace.StringValue)
	if !ok {
		return
	}
	if fd, ok := exitAsFD(sc); ok {
		tb[fd] = path.Raw
	}
}

func processOpenat(sc *trace.Syscall, tb fdTable) {
	if !fdOK(sc) {
		return
	}
	dirLit := sc.Arg(0)
	pathLit := sc.Arg(1)
	if pathLit == nil {
		return
	}
	path, ok := pathLit.Value.(trace.StringValue)
	if !ok {
		return
	}
	full := path.Raw
	if dirFD, ok := resolveFD(dirLit, tb); ok {
		if base, known := tb[dirFD]; known && len(full) > 0 && full[0] != '/' {
			full = base + "/" + full
		}
	}
	if fd, ok := exitAsFD(sc); ok {
		tb[fd] = full
	}
	if dirFD, ok := resolveFD(dirLit, tb); ok {
		if base, known := tb[dirFD]; known {
			trace.SubstituteValue(dirLit, trace.StringValue{Raw: base})
		}
	}
}

func processPipe(sc *trace.Syscall, tb fdTable) {
	lit := sc.Arg(0)
	if lit == nil {
		return
	}
	coll, ok := lit.Value.(trace.CollectionValue)
	if !ok || len(coll.Items) != 2 {
		return
	}
	assign := func(item *trace.Literal, name string) {
		if n, ok := item.Value.(trace.NumberValue); ok {
			tb[n.Value] = name
		}
		trace.SubstituteValue(item, trace.StringValue{Raw: name})
	}
	assign(coll.Items[0], "pipe_read")
	assign(coll.Items[1], "pipe_write")
}

func processSelect(sc *trace.Syscall, tb fdTable) {
	for _, idx := range []int{1, 2, 3} {
		lit := sc.Arg(idx)
		if lit == nil {
			continue
		}
		coll, ok := lit.Value.(trace.CollectionValue)
		if !ok {
			continue
		}
		for _, item := range coll.Items {
			if n, ok := item.Value.(trace.NumberValue); ok {
				if path, known := tb[n.Value]; known {
					trace.SubstituteValue(item, trace.StringValue{Raw: path})
				}
			}
		}
	}
}

var fdHandlers = map[string]func(sc *trace.Syscall, tb fdTable){
	"connect":      replaceFirst,
	"faccessat":    replaceFirst,
	"fchdir":       replaceFirst,
	"fchmod":       replaceFirst,
	"fchmodat":     replaceFirst,
	"fchown":       replaceFirst,
	"fchown32":     replaceFirst,
	"fchownat":     replaceFirst,
	"fsync":        replaceFirst,
	"fdatasync":    replaceFirst,
	"getdents":     replaceFirst,
	"getdents64":   replaceFirst,
	"linkat":       replaceFirst,
	"lseek":        replaceFirst,
	"read":         replaceFirst,
	"readlinkat":   replaceFirst,
	"recv":         replaceFirst,
	"recvfrom":     replaceFirst,
	"recvmsg":      replaceFirst,
	"send":         replaceFirst,
	"sendto":       replaceFirst,
	"sendmsg":      replaceFirst,
	"fstat":        replaceFirst,
	"fstat64":      replaceFirst,
	"fstatat":      replaceFirst,
	"fstatat64":    replaceFirst,
	"newfstatat":   replaceFirst,
	"fstatfs":      replaceFirst,
	"fstatfs64":    replaceFirst,
	"unlinkat":     replaceFirst,
	"utimensat":    replaceFirst,
	"futimens":     replaceFirst,
	"write":        replaceFirst,
	"close":        processClose,
	"dup":          processDup,
	"dup2":         processDup,
	"dup3":         processDup,
	"fcntl":        processFcntl,
	"fcntl64":      processFcntl,
	"open":         processOpen,
	"creat":        processOpen,
	"openat":       processOpenat,
	"pipe":         processPipe,
	"pipe2":        processPipe,
	"select":       processSelect,
	"pselect6":     processSelect,
}
