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

// Package equality implements dynamically-scoped equality and hashing for
// trace.Syscall values. Scoring and searching need several different
// notions of "the same syscall" depending on what's being compared, and
// callers several frames away from the comparison site (a matching
// algorithm, a set dedup) need to see whichever notion is currently in
// force without threading a comparator through every signature.
//
// The source this is ported from gets this by monkey-patching Syscall's
// __eq__/__hash__ for the duration of a call. Go has no equivalent, so the
// same discipline is expressed as an explicit capability: a Context is
// acquired onto a process-wide stack, every comparison consults whatever
// Context is on top, and releasing restores whatever was active before.
package equality

import (
	"fmt"
	"strings"

	"github.com/anonymouse64/tracemigrate/internal/canon"
	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// Context is one notion of Syscall equality plus a hash consistent with it
// (equal syscalls under this Context must hash equal).
type Context interface {
	Equal(a, b *trace.Syscall) bool
	Hash(s *trace.Syscall) string
}

// stack holds every currently-acquired Context, innermost last. It is
// process-wide and not goroutine-safe by design: it mirrors the source's
// single-threaded monkey-patched global, and scoring/search are themselves
// single-threaded per comparison.
var stack []Context

// Acquire installs ctx as the current Context and returns a release
// function that restores whatever was current before. Release must run on
// every exit path, typically via defer:
//
//	release := equality.Acquire(equality.CanonicalEquality)
//	defer release()
//
// Acquire panics if the Context currently on top of the stack vetoes ctx
// (see conflicter), since overlapping contradictory contexts would make
// Equal's result depend on which frame asks, silently. Contexts further down
// the stack are not consulted.
func Acquire(ctx Context) func() {
	if len(stack) > 0 {
		if c, ok := stack[len(stack)-1].(conflicter); ok && c.conflicts(ctx) {
			panic("equality: acquired context contradicts the one already active")
		}
	}
	stack = append(stack, ctx)
	depth := len(stack)
	return func() {
		if len(stack) != depth {
			panic("equality: release called out of stack order")
		}
		stack = stack[:depth-1]
	}
}

// conflicter lets a Context veto acquiring another one over it. Only the
// synthetic-aware context uses this, to stop two contradictory submodes
// from being active at once (see synthetic.go).
type conflicter interface {
	conflicts(Context) bool
}

// Current returns the innermost acquired Context, or StrictEquality if
// none has been acquired (strict equality is the only context under which
// DeepEqual-style round-trip tests are meaningful, so it's the safe
// default for code that forgot to acquire one explicitly).
func Current() Context {
	if len(stack) == 0 {
		return StrictEquality
	}
	return stack[len(stack)-1]
}

// Equal compares a and b under the current Context.
func Equal(a, b *trace.Syscall) bool { return Current().Equal(a, b) }

// Hash hashes s under the current Context.
func Hash(s *trace.Syscall) string { return Current().Hash(s) }

// NameEquality treats two syscalls as equal iff they share a name. It
// discards every argument, and is used for coarse overlap checks (e.g.
// "does this trace ever call execve") rather than for scoring.
var NameEquality Context = nameEquality{}

type nameEquality struct{}

func (nameEquality) Equal(a, b *trace.Syscall) bool { return a.Name == b.Name }
func (nameEquality) Hash(s *trace.Syscall) string   { return s.Name }

// StrictEquality is full structural equality over name, arguments (in
// order, with identifiers, mappings and omitted positions significant) and
// exit status. Anything strict-equal is also name-equal, and canonical-equal
// unless its canonical Form holds an Unknown value (such Forms are never
// equal, see canon.Form.Equal).
var StrictEquality Context = strictEquality{}

type strictEquality struct{}

func (strictEquality) Equal(a, b *trace.Syscall) bool { return trace.StrictSyscallEqual(a, b) }
func (strictEquality) Hash(s *trace.Syscall) string   { return strictHash(s) }

func strictHash(s *trace.Syscall) string {
	var sb strings.Builder
	sb.WriteString(s.Name)
	for _, a := range s.Arguments {
		sb.WriteByte('\x1f')
		sb.WriteString(argumentHash(a))
	}
	if s.Exit != nil {
		fmt.Fprintf(&sb, "\x1e%v", *s.Exit)
	}
	return sb.String()
}

func argumentHash(a trace.Argument) string {
	switch v := a.(type) {
	case trace.Omitted:
		return "..."
	case *trace.Literal:
		h := v.Value.CanonicalString()
		if v.HasIdentifier {
			h = v.Identifier + "=" + h
		}
		if v.MapsTo != nil {
			h += "=>" + argumentHash(v.MapsTo)
		}
		return h
	default:
		return "?"
	}
}

// CanonicalEquality treats two syscalls as equal iff they canonicalize
// (package canon) to the same Form. It collapses syscall variants with the
// same observable effect (open/openat/creat, dup family, wait family, ...)
// and is the context scoring uses by default.
var CanonicalEquality Context = canonicalEquality{}

type canonicalEquality struct{}

func (canonicalEquality) Equal(a, b *trace.Syscall) bool {
	return canon.Canonicalize(a).Equal(canon.Canonicalize(b))
}
func (canonicalEquality) Hash(s *trace.Syscall) string {
	return canon.Canonicalize(s).HashKey()
}
