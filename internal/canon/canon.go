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

// Package canon rewrites the thousands of observed syscall variants into a
// small set of semantic equivalence classes: open/openat/creat collapse to
// one form, dup/dup2/dup3 to another, the wait family dispatches on its
// first argument's sign, and so on. A CanonicalForm is a name plus an
// ordered tuple of the native values that matter for comparison; arguments
// that don't affect externally observable behavior (return-only buffers,
// unused output parameters) are dropped.
package canon

import (
	"fmt"
	"strings"

	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// Native is one element of a CanonicalForm's value tuple. The concrete
// types are restricted to comparable Go primitives so two Forms can be
// compared with plain ==.
type Native interface {
	nativeString() string
}

// Int is an integral native value.
type Int int64

func (n Int) nativeString() string { return fmt.Sprintf("%d", int64(n)) }

// Str is a string native value.
type Str string

func (n Str) nativeString() string { return string(n) }

// Bool is a boolean native value.
type Bool bool

func (n Bool) nativeString() string { return fmt.Sprintf("%t", bool(n)) }

// Unknown marks a position whose value could not be classified. Two Unknown
// values at the same position are never considered equal to each other;
// this keeps UnknownSyscallArgumentShape from silently producing false
// equivalences.
type Unknown struct{ seq int }

func (u Unknown) nativeString() string { return fmt.Sprintf("<unknown#%d>", u.seq) }

// Form is a syscall's canonical representation: a semantic name (which may
// differ from the syscall's own name, e.g. "wait" for waitpid/wait4/waitid)
// plus the ordered tuple of values that matter for comparison.
type Form struct {
	Name   string
	Values []Native
}

// Equal reports structural equality: same name, same arity, pairwise-equal
// values. Two Unknown values are never equal, even at the same position,
// reflecting that the canonicalizer could not establish their meaning.
func (f Form) Equal(o Form) bool {
	if f.Name != o.Name || len(f.Values) != len(o.Values) {
		return false
	}
	for i := range f.Values {
		if _, ok := f.Values[i].(Unknown); ok {
			return false
		}
		if _, ok := o.Values[i].(Unknown); ok {
			return false
		}
		if f.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}

// HashKey returns a string uniquely determined by a Form's structural
// identity, suitable as a map key. An Unknown value renders by its per-call
// sequence number, so two Forms holding Unknown values at the same positions
// can share a HashKey even though Equal never holds for them.
func (f Form) HashKey() string {
	var sb strings.Builder
	sb.WriteString(f.Name)
	for _, v := range f.Values {
		sb.WriteByte('\x1f')
		sb.WriteString(v.nativeString())
	}
	return sb.String()
}

// rule canonicalizes one syscall. A rule that mints Unknown values keeps
// its own sequence counter (see argNativeAt) so they stay distinct from
// each other within one call.
type rule func(s *trace.Syscall) Form

var rules = map[string]rule{
	"open":             ruleOpen,
	"openat":           ruleOpen,
	"creat":            ruleOpen,
	"dup":              ruleDup,
	"dup2":              ruleDup,
	"dup3":              ruleDup,
	"wait4":            ruleWait,
	"waitid":           ruleWait,
	"waitpid":          ruleWait,
	"clone":            ruleClone,
	"execve":           ruleExecve,
	"execveat":         ruleExecve,
	"fcntl":            ruleFcntl,
	"fcntl64":          ruleFcntl,
	"pipe":             rulePipe,
	"pipe2":            rulePipe,
	"select":           ruleSelect,
	"pselect6":         ruleSelect,
	"sigaltstack":      ruleSigaltstack,
	"sigaction":        ruleSigaction,
	"rt_sigaction":     ruleSigaction,
	"rt_sigprocmask":   ruleSigprocmask,
	"sigprocmask":      ruleSigprocmask,
	"send":             ruleSend,
	"sendto":           ruleSend,
	"set_tid_address":  ruleSetTidAddress,
	"unlink":           ruleUnlink,
	"unlinkat":         ruleUnlink,
	"rmdir":            ruleRmdir,
	"utime":            ruleUtime,
	"utimes":           ruleUtime,
	"utimensat":        ruleUtime,
	"futimesat":        ruleUtime,
	"write":            ruleWrite,
	"stat":             ruleStat,
	"stat64":           ruleStat,
	"lstat":            ruleStat,
	"lstat64":          ruleStat,
	"fstat":            ruleStat,
	"fstat64":          ruleStat,
	"fstatat64":        ruleStat,
	"newfstatat":       ruleStat,
	"mmap":             ruleMmap,
	"mmap2":            ruleMmap,
	"getdents":         ruleGetdents,
	"getdents64":       ruleGetdents,
}

// Canonicalize dispatches s to its registered rule, or the default rule
// (take all argument values in order, with file descriptors reduced to
// their fd number) when the syscall has no specific rule.
func Canonicalize(s *trace.Syscall) Form {
	if r, ok := rules[s.Name]; ok {
		return r(s)
	}
	return ruleDefault(s)
}

// HasSpecificRule reports whether s.Name dispatches to something other
// than the default rule. Strict equality refines canonical equality
// exactly on syscalls for which this is false, per the comparison
// invariant that strict equality only ever adds discriminating power for
// default-canonicalized syscalls.
func HasSpecificRule(name string) bool {
	_, ok := rules[name]
	return ok
}

func ruleDefault(s *trace.Syscall) Form {
	vals := make([]Native, 0, len(s.Arguments))
	seq := 0
	for _, a := range s.Arguments {
		vals = append(vals, nativeOf(a, &seq))
	}
	return Form{Name: s.Name, Values: vals}
}

func nativeOf(a trace.Argument, seq *int) Native {
	lit, ok := a.(*trace.Literal)
	if !ok {
		*seq++
		return Unknown{seq: *seq}
	}
	return nativeOfValue(lit.Value, seq)
}

func nativeOfValue(v trace.LiteralValue, seq *int) Native {
	switch val := v.(type) {
	case trace.NumberValue:
		return Int(val.Value)
	case trace.StringValue:
		return Str(val.Raw)
	case trace.IdentifierValue:
		return Str(val.Name)
	case trace.NumericExpr:
		return Str(val.Text)
	case trace.NullValue:
		return Int(0)
	case trace.Hole:
		return Str("<hole>")
	default:
		if fd, ok := trace.FDNumber(v); ok {
			return Int(fd)
		}
		*seq++
		return Unknown{seq: *seq}
	}
}

func argNumber(s *trace.Syscall, i int) (int64, bool) {
	lit := s.Arg(i)
	if lit == nil {
		return 0, false
	}
	if n, ok := lit.Value.(trace.NumberValue); ok {
		return n.Value, true
	}
	return 0, false
}

func argString(s *trace.Syscall, i int) (string, bool) {
	lit := s.Arg(i)
	if lit == nil {
		return "", false
	}
	if v, ok := lit.Value.(trace.StringValue); ok {
		return v.Raw, true
	}
	return "", false
}

func argIdentifier(s *trace.Syscall, i int) (string, bool) {
	lit := s.Arg(i)
	if lit == nil {
		return "", false
	}
	if v, ok := lit.Value.(trace.IdentifierValue); ok {
		return v.Name, true
	}
	return "", false
}

// flagWords splits an identifier-or-or'd-flags value into its constituent
// names, e.g. "O_RDONLY|O_NOFOLLOW" -> ["O_RDONLY", "O_NOFOLLOW"]. A bare
// identifier yields a single-element slice.
func flagWords(lit *trace.Literal) []string {
	if lit == nil {
		return nil
	}
	switch v := lit.Value.(type) {
	case trace.IdentifierValue:
		return []string{v.Name}
	case trace.NumericExpr:
		return strings.Split(v.Text, "|")
	case trace.NumberValue:
		return []string{v.Text}
	default:
		return nil
	}
}

func hasFlag(lit *trace.Literal, flag string) bool {
	for _, w := range flagWords(lit) {
		if w == flag {
			return true
		}
	}
	return false
}

func fdArg(s *trace.Syscall, i int) (int64, bool) {
	lit := s.Arg(i)
	if lit == nil {
		return 0, false
	}
	if n, ok := lit.Value.(trace.NumberValue); ok {
		return n.Value, true
	}
	return trace.FDNumber(lit.Value)
}
