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

package canon

import (
	"sort"
	"strings"

	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// structField finds a named field inside a struct-bracketed collection
// literal, e.g. structField(lit, "sa_family") on {sa_family=AF_INET, ...}.
func structField(lit *trace.Literal, name string) *trace.Literal {
	if lit == nil {
		return nil
	}
	coll, ok := lit.Value.(trace.CollectionValue)
	if !ok {
		return nil
	}
	for _, item := range coll.Items {
		if item.HasIdentifier && item.Identifier == name {
			return item
		}
	}
	return nil
}

// collectionInts reads a list-bracketed collection of plain integers, used
// for fd_set style arguments ("[3, 4]").
func collectionInts(lit *trace.Literal) ([]int64, bool) {
	if lit == nil {
		return nil, false
	}
	coll, ok := lit.Value.(trace.CollectionValue)
	if !ok {
		return nil, false
	}
	out := make([]int64, 0, len(coll.Items))
	for _, item := range coll.Items {
		n, ok := item.Value.(trace.NumberValue)
		if !ok {
			return nil, false
		}
		out = append(out, n.Value)
	}
	return out, true
}

func intsToStr(xs []int64) string {
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = Int(x).nativeString()
	}
	return strings.Join(parts, ",")
}

// ruleOpen collapses open/openat/creat into a single "open" form: the path,
// the flags (normalized by sorting the or'd components so flag order in
// the trace doesn't matter), and the mode — only when O_CREAT is present,
// since the kernel ignores mode otherwise and its presence would produce a
// spurious inequality between an openat with and without a stray mode
// argument.
func ruleOpen(s *trace.Syscall) Form {
	pathIdx, flagsIdx, modeIdx := 0, 1, 2
	if s.Name == "openat" {
		pathIdx, flagsIdx, modeIdx = 1, 2, 3
	}

	path, _ := argString(s, pathIdx)
	flagsLit := s.Arg(flagsIdx)
	flags := normalizeFlags(flagsLit)

	values := []Native{Str(path), Str(flags)}

	// A relative path resolved against a directory fd other than AT_FDCWD
	// is not equivalent to resolving the same relative path against the
	// process's own cwd, so the dirfd is kept whenever it's non-default.
	if s.Name == "openat" {
		if dirfd, ok := fdArg(s, 0); ok && dirfd != atFDCWD {
			values = append(values, Int(dirfd))
		}
	}

	hasCreat := hasFlag(flagsLit, "O_CREAT") || hasFlag(flagsLit, "O_TMPFILE")
	if s.Name == "creat" {
		hasCreat = true
		modeIdx = 1
	}
	if hasCreat {
		if mode, ok := argNumber(s, modeIdx); ok {
			values = append(values, Int(mode))
		}
	}
	return Form{Name: "open", Values: values}
}

func normalizeFlags(lit *trace.Literal) string {
	words := flagWords(lit)
	sort.Strings(words)
	return strings.Join(words, "|")
}

// ruleDup collapses dup/dup2/dup3 into a single "dup" form: the source fd,
// and the destination fd — taken from the explicit newfd argument for
// dup2/dup3, or from the syscall's own return value for plain dup, since
// that's the fd the kernel chose.
func ruleDup(s *trace.Syscall) Form {
	oldfd, _ := fdArg(s, 0)
	var newfd Native = Unknown{seq: -1}
	switch s.Name {
	case "dup2", "dup3":
		if nf, ok := fdArg(s, 1); ok {
			newfd = Int(nf)
		}
	default:
		if s.Exit != nil && s.Exit.Known {
			newfd = Int(s.Exit.Value)
		}
	}
	return Form{Name: "dup", Values: []Native{Int(oldfd), newfd}}
}

// ruleWait collapses wait4/waitpid/waitid into a single "wait" form keyed
// by the POSIX id-type/id pair they all reduce to: a negative pid waits on
// a process group, -1 waits on any child, a positive pid waits on exactly
// that child.
func ruleWait(s *trace.Syscall) Form {
	if s.Name == "waitid" {
		idtype, _ := argIdentifier(s, 0)
		id, _ := argNumber(s, 1)
		return Form{Name: "wait", Values: []Native{Str(idtype), Int(id)}}
	}
	pid, ok := argNumber(s, 0)
	if !ok {
		seq := 0
		if len(s.Arguments) == 0 {
			return Form{Name: "wait", Values: []Native{Unknown{seq: seq}}}
		}
		return Form{Name: "wait", Values: []Native{nativeOf(s.Arguments[0], &seq)}}
	}
	switch {
	case pid == -1:
		return Form{Name: "wait", Values: []Native{Str("P_ALL"), Int(0)}}
	case pid < -1:
		return Form{Name: "wait", Values: []Native{Str("P_PGID"), Int(-pid)}}
	case pid == 0:
		return Form{Name: "wait", Values: []Native{Str("P_PGID"), Int(0)}}
	default:
		return Form{Name: "wait", Values: []Native{Str("P_PID"), Int(pid)}}
	}
}

// ruleClone keeps the full flags value and the child-stack argument: later
// preprocessing stages (fd-table propagation) need the whole flags word,
// not just CLONE_FILES. The stack argument is kept as printed, pointer
// value included, not reduced to a null-vs-non-null shape.
func ruleClone(s *trace.Syscall) Form {
	seq := 0
	return Form{Name: "clone", Values: []Native{argNativeAt(s, 0, &seq), argNativeAt(s, 1, &seq)}}
}

// argNativeAt canonicalizes the syscall's i'th argument in isolation,
// minting Unknown values from seq so repeated calls within one rule stay
// distinct from each other.
func argNativeAt(s *trace.Syscall, i int, seq *int) Native {
	if i < 0 || i >= len(s.Arguments) {
		*seq++
		return Unknown{seq: *seq}
	}
	return nativeOf(s.Arguments[i], seq)
}

// ruleExecve collapses execveat into execve: the dirfd/flags that execveat
// adds only matter when the path is relative, which is already captured by
// the path string itself, and envp is dropped since two runs legitimately
// differing only in inherited environment should still compare equal.
func ruleExecve(s *trace.Syscall) Form {
	pathIdx, argvIdx := 0, 1
	if s.Name == "execveat" {
		pathIdx, argvIdx = 1, 2
	}
	path, _ := argString(s, pathIdx)
	argv := ""
	if argvLit := s.Arg(argvIdx); argvLit != nil {
		if list, ok := argvLit.Value.(trace.CollectionValue); ok {
			parts := make([]string, 0, len(list.Items))
			for _, item := range list.Items {
				if sv, ok := item.Value.(trace.StringValue); ok {
					parts = append(parts, sv.Raw)
				}
			}
			argv = strings.Join(parts, "\x00")
		}
	}
	return Form{Name: "execve", Values: []Native{Str(path), Str(argv)}}
}

// ruleFcntl keeps the fd and a normalized command name, plus a
// command-dependent treatment of the third argument: the lock commands
// (F_SETLK/F_SETLKW/F_GETLK and their 64-bit and OFD variants) take a
// struct flock whose only comparison-relevant field is l_type, since
// l_whence/l_start/l_len vary with the file's size and the process's own
// layout; F_GETOWN_EX's third argument is an output-only struct populated
// by the kernel and dropped entirely; everything else (F_SETFD, F_SETFL,
// the F_DUPFD family, ...) keeps its third argument as given.
func ruleFcntl(s *trace.Syscall) Form {
	fd, _ := fdArg(s, 0)
	cmd, _ := argIdentifier(s, 1)
	values := []Native{Int(fd), Str(cmd)}
	switch {
	case fcntlLockCommands[cmd]:
		if lock := s.Arg(2); lock != nil {
			if lt := structField(lock, "l_type"); lt != nil {
				name, _ := argIdentifierFromLiteral(lt)
				values = append(values, Str(name))
			}
		}
	case cmd == "F_GETOWN_EX":
		// third argument is a kernel-populated return struct, not input.
	default:
		if third := s.Arg(2); third != nil {
			seq := 0
			values = append(values, nativeOf(third, &seq))
		}
	}
	return Form{Name: "fcntl", Values: values}
}

// rulePipe collapses pipe/pipe2 into the pair of fds the kernel assigned,
// read back from the resolved out-parameter collection; pipe2's flags
// argument is dropped since it only affects how the fds behave afterward,
// not which fds were created.
func rulePipe(s *trace.Syscall) Form {
	if fds, ok := collectionInts(s.Arg(0)); ok && len(fds) == 2 {
		return Form{Name: "pipe", Values: []Native{Int(fds[0]), Int(fds[1])}}
	}
	seq := 0
	return Form{Name: "pipe", Values: []Native{Unknown{seq: seq}}}
}

// ruleSelect collapses select/pselect6 to the fd sets actually examined
// plus the timeout folded to a single integer (microseconds for select's
// timeval, nanoseconds for pselect6's timespec, so the two families remain
// comparable at the unit a preprocessing stage later punches to a hole); a
// NULL timeout (wait forever) stays distinguishable from any finite one.
// The sigmask argument pselect6 adds is dropped as non-reproducible noise.
func ruleSelect(s *trace.Syscall) Form {
	read, _ := collectionInts(s.Arg(1))
	write, _ := collectionInts(s.Arg(2))
	errs, _ := collectionInts(s.Arg(3))
	timeout := selectTimeout(s.Arg(4), s.Name == "pselect6")
	return Form{Name: "select", Values: []Native{Str(intsToStr(read)), Str(intsToStr(write)), Str(intsToStr(errs)), timeout}}
}

// selectTimeout folds a select/pselect6 timeout struct to a single integer
// in the unit appropriate to its field names (tv_usec vs tv_nsec), or
// reports "no timeout" for a NULL/omitted argument.
func selectTimeout(lit *trace.Literal, nanos bool) Native {
	if lit == nil {
		return Str("NULL")
	}
	if _, ok := lit.Value.(trace.NullValue); ok {
		return Str("NULL")
	}
	secField := structField(lit, "tv_sec")
	fracName := "tv_usec"
	unit := int64(1000000)
	if nanos {
		fracName = "tv_nsec"
		unit = 1000000000
	}
	fracField := structField(lit, fracName)
	sec, secOK := numberFromLiteral(secField)
	frac, fracOK := numberFromLiteral(fracField)
	if !secOK || !fracOK {
		return Unknown{}
	}
	return Int(sec*unit + frac)
}

func numberFromLiteral(lit *trace.Literal) (int64, bool) {
	if lit == nil {
		return 0, false
	}
	n, ok := lit.Value.(trace.NumberValue)
	if !ok {
		return 0, false
	}
	return n.Value, true
}

// ruleSigaltstack keeps only the query/install flags and size, dropping
// the stack base pointer (kernel/allocator-assigned, never reproducible).
func ruleSigaltstack(s *trace.Syscall) Form {
	newStack := s.Arg(0)
	if newStack == nil {
		return Form{Name: "sigaltstack", Values: []Native{Str("query")}}
	}
	if _, ok := newStack.Value.(trace.NullValue); ok {
		return Form{Name: "sigaltstack", Values: []Native{Str("query")}}
	}
	flags := structField(newStack, "ss_flags")
	size := structField(newStack, "ss_size")
	var sizeVal Native = Unknown{}
	if size != nil {
		if n, ok := size.Value.(trace.NumberValue); ok {
			sizeVal = Int(n.Value)
		}
	}
	return Form{Name: "sigaltstack", Values: []Native{Str(normalizeFlags(flags)), sizeVal}}
}

// ruleSigaction collapses sigaction/rt_sigaction to the signal number, the
// new action's sa_mask and sa_flags (sa_handler and sa_restorer are
// addresses with no stable value across runs), and whether an oldact
// out-parameter was requested at all. Its contents are kernel-populated
// and not input, but whether the caller asked for them is observable.
func ruleSigaction(s *trace.Syscall) Form {
	seq := 0
	signum := argNativeAt(s, 0, &seq)
	act := s.Arg(1)
	mask := structField(act, "sa_mask")
	saFlags := structField(act, "sa_flags")
	oldact := s.Arg(2)
	hadOldact := oldact != nil
	if hadOldact {
		if _, ok := oldact.Value.(trace.NullValue); ok {
			hadOldact = false
		}
	}
	maskInts, _ := collectionInts(mask)
	return Form{Name: "sigaction", Values: []Native{signum, Str(intsToStr(maskInts)), Str(normalizeFlags(saFlags)), Bool(hadOldact)}}
}

// ruleSigprocmask collapses rt_sigprocmask/sigprocmask to the how-verb and
// the normalized signal set, dropping the old-set out-parameter.
func ruleSigprocmask(s *trace.Syscall) Form {
	how, _ := argIdentifier(s, 0)
	set, _ := collectionInts(s.Arg(1))
	return Form{Name: "sigprocmask", Values: []Native{Str(how), Str(intsToStr(set))}}
}

// ruleSend collapses send/sendto to the fd, message bytes, and flags; of a
// sendto destination address, only its sa_family is kept, and only when
// present.
func ruleSend(s *trace.Syscall) Form {
	fd, _ := fdArg(s, 0)
	msg, _ := argString(s, 1)
	flags := s.Arg(3)
	values := []Native{Int(fd), Str(msg), Str(normalizeFlags(flags))}
	if s.Name == "sendto" && len(s.Arguments) > 4 {
		if addr := s.Arg(4); addr != nil {
			if fam := structField(addr, "sa_family"); fam != nil {
				name, _ := argIdentifierFromLiteral(fam)
				values = append(values, Str(name))
			}
		}
	}
	return Form{Name: "send", Values: values}
}

func argIdentifierFromLiteral(lit *trace.Literal) (string, bool) {
	if lit == nil {
		return "", false
	}
	v, ok := lit.Value.(trace.IdentifierValue)
	return v.Name, ok
}

// ruleSetTidAddress drops its single pointer argument entirely: the
// address is an allocator artifact with no comparison value, so every
// set_tid_address call canonicalizes identically.
func ruleSetTidAddress(s *trace.Syscall) Form {
	return Form{Name: "set_tid_address", Values: nil}
}

// ruleUnlink collapses unlink/unlinkat to the path; an unlinkat called
// with AT_REMOVEDIR removes a directory, which is rmdir's job, not a
// variant of unlink's, so it canonicalizes to the same "rmdir" form the
// plain rmdir syscall does rather than carrying the distinction as a
// boolean field on "unlink".
func ruleUnlink(s *trace.Syscall) Form {
	pathIdx := 0
	if s.Name == "unlinkat" {
		pathIdx = 1
	}
	path, _ := argString(s, pathIdx)
	if s.Name == "unlinkat" && hasFlag(s.Arg(2), "AT_REMOVEDIR") {
		return Form{Name: "rmdir", Values: []Native{Str(path)}}
	}
	return Form{Name: "unlink", Values: []Native{Str(path)}}
}

// ruleRmdir canonicalizes the plain rmdir syscall to the same "rmdir" form
// an unlinkat(..., AT_REMOVEDIR) produces.
func ruleRmdir(s *trace.Syscall) Form {
	path, _ := argString(s, 0)
	return Form{Name: "rmdir", Values: []Native{Str(path)}}
}

// ruleUtime collapses the utime/utimes/utimensat/futimesat family to the
// path; the actual timestamps are dropped since they vary run to run and
// are expected to be punched to holes upstream regardless.
func ruleUtime(s *trace.Syscall) Form {
	pathIdx := 0
	switch s.Name {
	case "utimensat", "futimesat":
		pathIdx = 1
	}
	path, _ := argString(s, pathIdx)
	return Form{Name: "utime", Values: []Native{Str(path)}}
}

// ruleWrite keeps the fd, the buffer contents in full, and the byte count.
func ruleWrite(s *trace.Syscall) Form {
	fd, _ := fdArg(s, 0)
	buf, _ := argString(s, 1)
	count, _ := argNumber(s, 2)
	return Form{Name: "write", Values: []Native{Int(fd), Str(buf), Int(count)}}
}

// ruleStat collapses the stat/lstat/fstat/fstatat family to the path (or
// fd, for fstat) plus whether the call followed symlinks, dropping the
// returned struct stat entirely since its numeric fields (inode, device,
// timestamps) are host-specific.
func ruleStat(s *trace.Syscall) Form {
	switch s.Name {
	case "fstat", "fstat64":
		fd, _ := fdArg(s, 0)
		return Form{Name: "stat", Values: []Native{Int(fd)}}
	case "fstatat64", "newfstatat":
		path, _ := argString(s, 1)
		noFollow := hasFlag(s.Arg(3), "AT_SYMLINK_NOFOLLOW")
		return Form{Name: "stat", Values: []Native{Str(path), Bool(noFollow)}}
	case "lstat", "lstat64":
		path, _ := argString(s, 0)
		return Form{Name: "stat", Values: []Native{Str(path), Bool(true)}}
	default:
		path, _ := argString(s, 0)
		return Form{Name: "stat", Values: []Native{Str(path), Bool(false)}}
	}
}

// ruleMmap drops the address hint (always a kernel-assigned pointer) and
// keeps length, protection, and flags, since those determine observable
// memory-safety behavior.
func ruleMmap(s *trace.Syscall) Form {
	length, _ := argNumber(s, 1)
	prot := normalizeFlags(s.Arg(2))
	flags := normalizeFlags(s.Arg(3))
	return Form{Name: "mmap", Values: []Native{Int(length), Str(prot), Str(flags)}}
}

// ruleGetdents drops the returned directory-entry buffer contents (already
// captured structurally by the preprocessor that inspects path accesses)
// and keeps only the fd.
func ruleGetdents(s *trace.Syscall) Form {
	fd, _ := fdArg(s, 0)
	return Form{Name: "getdents", Values: []Native{Int(fd)}}
}
