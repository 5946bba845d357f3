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

package trace

// DeepEqual reports full structural equality between two traces, including
// exit codes and pid-dependent fields. This is the fixed, context-free
// equality used by round-trip and idempotence tests; it is unrelated to the
// dynamically-scoped Syscall equality used during scoring (see package
// equality), which is deliberately coarser.
func DeepEqual(a, b *Trace) bool {
	if a.System != b.System || a.Executable != b.Executable || a.Truncated != b.Truncated {
		return false
	}
	if !argNodeEqual(a.Arguments, b.Arguments) {
		return false
	}
	if len(a.Lines) != len(b.Lines) {
		return false
	}
	for i := range a.Lines {
		if !lineEqual(a.Lines[i], b.Lines[i]) {
			return false
		}
	}
	return true
}

func lineEqual(a, b Line) bool {
	switch av := a.(type) {
	case *Syscall:
		bv, ok := b.(*Syscall)
		return ok && syscallStrictEqual(av, bv)
	case *Signal:
		bv, ok := b.(*Signal)
		if !ok || av.Name != bv.Name || av.PID != bv.PID || len(av.Payload) != len(bv.Payload) {
			return false
		}
		for i := range av.Payload {
			if av.Payload[i].Name != bv.Payload[i].Name ||
				!literalValueEqual(av.Payload[i].Value, bv.Payload[i].Value) {
				return false
			}
		}
		return true
	case *ExitStatement:
		bv, ok := b.(*ExitStatement)
		return ok && *av == *bv
	default:
		return false
	}
}

// syscallStrictEqual is the StrictEquality rule from package equality,
// exposed here so package trace itself can verify round-trip properties
// without importing its own dynamically-scoped equality context consumer.
func syscallStrictEqual(a, b *Syscall) bool {
	if a.Name != b.Name || a.Unfinished != b.Unfinished || a.Resumed != b.Resumed || a.PID != b.PID {
		return false
	}
	if (a.Exit == nil) != (b.Exit == nil) {
		return false
	}
	if a.Exit != nil && *a.Exit != *b.Exit {
		return false
	}
	if len(a.Arguments) != len(b.Arguments) {
		return false
	}
	for i := range a.Arguments {
		if !argumentEqual(a.Arguments[i], b.Arguments[i]) {
			return false
		}
	}
	return true
}

func argumentEqual(a, b Argument) bool {
	switch av := a.(type) {
	case Omitted:
		_, ok := b.(Omitted)
		return ok
	case *Literal:
		bv, ok := b.(*Literal)
		if !ok || av.HasIdentifier != bv.HasIdentifier || av.Identifier != bv.Identifier {
			return false
		}
		if (av.MapsTo == nil) != (bv.MapsTo == nil) {
			return false
		}
		if av.MapsTo != nil && !argumentEqual(av.MapsTo, bv.MapsTo) {
			return false
		}
		return literalValueEqual(av.Value, bv.Value)
	default:
		return false
	}
}

// LiteralValueEqual exposes the strict, type-discriminating literal
// comparison package equality's SyntheticAwareEquality falls back to for
// any LiteralValue kind it doesn't special-case itself: never a bare
// string-form comparison, since two different kinds can render to the
// same CanonicalString.
func LiteralValueEqual(a, b LiteralValue) bool {
	return literalValueEqual(a, b)
}

func literalValueEqual(a, b LiteralValue) bool {
	switch av := a.(type) {
	case NullValue:
		_, ok := b.(NullValue)
		return ok
	case NumberValue:
		bv, ok := b.(NumberValue)
		return ok && av.Value == bv.Value
	case StringValue:
		bv, ok := b.(StringValue)
		return ok && av.Raw == bv.Raw && av.Truncated == bv.Truncated
	case IdentifierValue:
		bv, ok := b.(IdentifierValue)
		return ok && av.Name == bv.Name
	case NumericExpr:
		bv, ok := b.(NumericExpr)
		return ok && av.Text == bv.Text
	case BooleanExpr:
		bv, ok := b.(BooleanExpr)
		return ok && av.Text == bv.Text
	case FunctionCallValue:
		bv, ok := b.(FunctionCallValue)
		if !ok || av.Identifier != bv.Identifier || len(av.Arguments) != len(bv.Arguments) {
			return false
		}
		for i := range av.Arguments {
			if !argumentEqual(av.Arguments[i], bv.Arguments[i]) {
				return false
			}
		}
		return true
	case CollectionValue:
		bv, ok := b.(CollectionValue)
		if !ok || av.Bracket != bv.Bracket || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !argumentEqual(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	case Hole:
		_, ok := b.(Hole)
		return ok
	case PathFileDescriptor:
		bv, ok := b.(PathFileDescriptor)
		return ok && av == bv
	case DeviceFileDescriptor:
		bv, ok := b.(DeviceFileDescriptor)
		return ok && av == bv
	case SocketFileDescriptor:
		bv, ok := b.(SocketFileDescriptor)
		return ok && av == bv
	case IPSocketFileDescriptor:
		bv, ok := b.(IPSocketFileDescriptor)
		return ok && av == bv
	case NetlinkFileDescriptor:
		bv, ok := b.(NetlinkFileDescriptor)
		return ok && av == bv
	case SyntheticValue:
		bv, ok := b.(SyntheticValue)
		return ok && av.Param == bv.Param && literalValueEqual(av.Original, bv.Original)
	default:
		return false
	}
}

func argNodeEqual(a, b ArgNode) bool {
	switch av := a.(type) {
	case ListArg:
		bv, ok := b.(ListArg)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !argNodeEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case MapArg:
		bv, ok := b.(MapArg)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i].Key != bv[i].Key || !argNodeEqual(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	case StringArg:
		bv, ok := b.(StringArg)
		return ok && av == bv
	case NumberArg:
		bv, ok := b.(NumberArg)
		return ok && av == bv
	case BoolArg:
		bv, ok := b.(BoolArg)
		return ok && av == bv
	case NilArg:
		_, ok := b.(NilArg)
		return ok
	default:
		return a == nil && b == nil
	}
}

// StrictSyscallEqual exposes syscallStrictEqual to other packages (notably
// package equality, which implements StrictEquality in terms of it).
func StrictSyscallEqual(a, b *Syscall) bool { return syscallStrictEqual(a, b) }
