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

import "strings"

// ExecutableParameter is a value extracted from a trace's command-line or
// module Arguments, identified by its path into the arguments tree: list
// indices and/or mapping keys, always represented as a tuple of strings,
// with "" standing in for "the whole scalar argument list has no further
// path" (used by list-valued Arguments addressed positionally).
//
// ExecutableParameter values are owned by a ParameterArena: the source of
// truth for "does this parameter still exist" that invariant 3 (every
// SyntheticValue's parameter reference must remain reachable) depends on.
type ExecutableParameter struct {
	Key   []string
	Value ArgNode

	arena *ParameterArena
}

// KeyString renders the parameter's path as a single string for logging
// and map keys, e.g. `0` or `ANSIBLE_MODULE_ARGS.name`.
func (p *ExecutableParameter) KeyString() string {
	return strings.Join(p.Key, ".")
}

// SameKey reports whether two parameters were extracted from the same path.
// Per the data model, two parameters are "the same" iff their keys are
// equal, independent of which trace produced them.
func SameKey(a, b *ExecutableParameter) bool {
	if len(a.Key) != len(b.Key) {
		return false
	}
	for i := range a.Key {
		if a.Key[i] != b.Key[i] {
			return false
		}
	}
	return true
}

// ParameterArena owns every ExecutableParameter extracted from one trace's
// Arguments. A SyntheticValue holds a direct pointer to its parameter.
// Cloning a trace copies its arena, but the clone shares the original's
// Literals, so its SyntheticValues still point at the original arena's
// parameters.
type ParameterArena struct {
	params []*ExecutableParameter
	byKey  map[string]int
}

// NewParameterArena returns an empty arena.
func NewParameterArena() *ParameterArena {
	return &ParameterArena{byKey: make(map[string]int)}
}

// GetOrCreate returns the existing parameter for key, or creates one
// wrapping value.
func (a *ParameterArena) GetOrCreate(key []string, value ArgNode) *ExecutableParameter {
	k := strings.Join(key, "\x00")
	if idx, ok := a.byKey[k]; ok {
		return a.params[idx]
	}
	p := &ExecutableParameter{Key: append([]string(nil), key...), Value: value, arena: a}
	a.byKey[k] = len(a.params)
	a.params = append(a.params, p)
	return p
}

// All returns every parameter in the arena, in extraction order.
func (a *ParameterArena) All() []*ExecutableParameter {
	return a.params
}

// Contains reports whether p is still owned by this arena, i.e. is
// reachable from it. Used to check invariant 3 after preprocessing.
func (a *ParameterArena) Contains(p *ExecutableParameter) bool {
	idx, ok := a.byKey[strings.Join(p.Key, "\x00")]
	return ok && a.params[idx] == p
}

func (a *ParameterArena) clone() *ParameterArena {
	clone := &ParameterArena{
		params: make([]*ExecutableParameter, len(a.params)),
		byKey:  make(map[string]int, len(a.byKey)),
	}
	for i, p := range a.params {
		np := *p
		np.arena = clone
		clone.params[i] = &np
	}
	for k, v := range a.byKey {
		clone.byKey[k] = v
	}
	return clone
}

// ValueTemplate describes how to reconstruct a concrete literal value from
// whatever parameter gets substituted for a SyntheticValue's key.
type ValueTemplate interface {
	isValueTemplate()
	// Render reconstructs a concrete primitive string given the
	// replacement parameter's stringified value.
	Render(paramText string) string
}

// IntTemplate means the whole value is the parameter, stringified.
type IntTemplate struct{}

func (IntTemplate) isValueTemplate()              {}
func (IntTemplate) Render(paramText string) string { return paramText }

// StringTemplate holds the original primitive string with the matched
// parameter text replaced by "{0}", e.g. "/home/{0}/.bashrc" for a
// substring match of "alice", or "/etc/{0}.conf" for a glob match.
type StringTemplate struct {
	Pattern string
}

func (StringTemplate) isValueTemplate() {}
func (t StringTemplate) Render(paramText string) string {
	return strings.Replace(t.Pattern, "{0}", paramText, 1)
}

// SyntheticValue wraps a literal whose original value has been found to
// derive from one of the trace's ExecutableParameters, enabling mapping
// search without losing the ability to reconstruct the concrete value.
type SyntheticValue struct {
	Original LiteralValue
	Param    *ExecutableParameter
	Template ValueTemplate
}

func (SyntheticValue) isLiteralValue() {}
func (s SyntheticValue) CanonicalString() string {
	return "~" + s.Original.CanonicalString() + "~[" + s.Param.KeyString() + "]"
}
