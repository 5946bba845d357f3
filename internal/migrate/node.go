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

// Package migrate searches for the best way to rewrite a target
// executable's arguments so that it becomes a plausible migration of a
// source executable, refining a candidate parameter mapping against an
// external validator that actually runs both commands.
package migrate

import (
	"strconv"

	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// Node is one element of a mutable argument tree undergoing refinement.
// trace.ArgNode is immutable and has no parent links, which the Walker
// needs for replace/remove/insert; Node mirrors its three shapes plus a
// fourth, MappedValueNode, for a leaf currently standing in for a source
// parameter.
type Node interface {
	isNode()
	// toArgNode renders this subtree back to the immutable form a
	// trace.Trace (and hence a validator) can consume.
	toArgNode() trace.ArgNode
}

// ListNode is a mutable list, addressed by index.
type ListNode struct {
	Items []Node
}

func (*ListNode) isNode() {}
func (n *ListNode) toArgNode() trace.ArgNode {
	items := make(trace.ListArg, len(n.Items))
	for i, c := range n.Items {
		items[i] = c.toArgNode()
	}
	return items
}

// Entry is one key/value pair of a MapNode, order-preserving like
// trace.MapArg.
type Entry struct {
	Key   string
	Value Node
}

// MapNode is a mutable mapping, addressed by key.
type MapNode struct {
	Entries []Entry
}

func (*MapNode) isNode() {}
func (n *MapNode) toArgNode() trace.ArgNode {
	m := make(trace.MapArg, len(n.Entries))
	for i, e := range n.Entries {
		m[i] = trace.MapEntry{Key: e.Key, Value: e.Value.toArgNode()}
	}
	return m
}

// ValueNode is a scalar leaf untouched by mapping.
type ValueNode struct {
	Value trace.ArgNode
}

func (*ValueNode) isNode() {}
func (n *ValueNode) toArgNode() trace.ArgNode { return n.Value }

// MappedValueNode is a leaf rewritten to carry a source parameter's value
// in place of the target's own. Original is kept so Unmap can restore it
// exactly, and SourceKey records which source parameter is standing in,
// for the final reported mapping.
type MappedValueNode struct {
	Original  trace.ArgNode
	SourceKey []string
	Value     trace.ArgNode
}

func (*MappedValueNode) isNode() {}
func (n *MappedValueNode) toArgNode() trace.ArgNode { return n.Value }

// FromArgNode builds a mutable Node tree from an immutable trace.ArgNode.
func FromArgNode(n trace.ArgNode) Node {
	switch v := n.(type) {
	case trace.ListArg:
		items := make([]Node, len(v))
		for i, c := range v {
			items[i] = FromArgNode(c)
		}
		return &ListNode{Items: items}
	case trace.MapArg:
		entries := make([]Entry, len(v))
		for i, e := range v {
			entries[i] = Entry{Key: e.Key, Value: FromArgNode(e.Value)}
		}
		return &MapNode{Entries: entries}
	default:
		return &ValueNode{Value: v}
	}
}

// ToArgNode renders a Node tree back to the immutable trace.ArgNode shape.
func ToArgNode(n Node) trace.ArgNode { return n.toArgNode() }

// KeyString joins a path the same way trace.ExecutableParameter.KeyString
// does, so migration-reported keys compare equal to parameter keys.
func KeyString(path []string) string {
	s := ""
	for i, p := range path {
		if i > 0 {
			s += "."
		}
		s += p
	}
	return s
}

func indexKey(i int) string { return strconv.Itoa(i) }
