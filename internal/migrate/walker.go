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

package migrate

import (
	"strconv"

	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// frame is one level of the Walker's path stack: which container the
// cursor descended from, and where in it.
type frame struct {
	parent Node
	index  int // position within parent.Items or parent.Entries
}

// Walker is a zipper-style cursor over a Node tree, giving the refinement
// passes the preorder/postorder-agnostic navigation and in-place edits
// described for mapping refinement: up/down/next/previous/first/last,
// addressing by key path, replace, remove, insert-next, and map/unmap of
// the current leaf.
type Walker struct {
	root Node
	path []frame
	cur  Node
}

// NewWalker returns a Walker positioned at root.
func NewWalker(root Node) *Walker {
	return &Walker{root: root, cur: root}
}

// Root returns the tree's current root, reflecting any edits made so far.
func (w *Walker) Root() Node { return w.root }

// Reset returns the cursor to the root, discarding the path stack. Each
// refinement pass addresses the tree by absolute path from the root, so it
// resets between positions rather than navigating sibling to sibling.
func (w *Walker) Reset() {
	w.path = nil
	w.cur = w.root
}

// Current returns the node under the cursor.
func (w *Walker) Current() Node { return w.cur }

func children(n Node) int {
	switch v := n.(type) {
	case *ListNode:
		return len(v.Items)
	case *MapNode:
		return len(v.Entries)
	default:
		return 0
	}
}

func childAt(n Node, i int) Node {
	switch v := n.(type) {
	case *ListNode:
		return v.Items[i]
	case *MapNode:
		return v.Entries[i].Value
	default:
		return nil
	}
}

// Down moves to the first child of the current node. It fails (returns
// false, cursor unchanged) on a leaf or an empty container.
func (w *Walker) Down() bool {
	if children(w.cur) == 0 {
		return false
	}
	w.path = append(w.path, frame{parent: w.cur, index: 0})
	w.cur = childAt(w.cur, 0)
	return true
}

// Up moves to the parent of the current node. It fails at the root.
func (w *Walker) Up() bool {
	if len(w.path) == 0 {
		return false
	}
	top := w.path[len(w.path)-1]
	w.path = w.path[:len(w.path)-1]
	w.cur = top.parent
	return true
}

// Next moves to the following sibling. It fails past the last child; the
// refinement passes that need to address the one-past-the-end position of
// a list use DownToKey with that index instead (see Replace).
func (w *Walker) Next() bool {
	if len(w.path) == 0 {
		return false
	}
	top := &w.path[len(w.path)-1]
	if top.index+1 >= children(top.parent) {
		return false
	}
	top.index++
	w.cur = childAt(top.parent, top.index)
	return true
}

// Previous moves to the preceding sibling. It fails on the first child.
func (w *Walker) Previous() bool {
	if len(w.path) == 0 {
		return false
	}
	top := &w.path[len(w.path)-1]
	if top.index == 0 {
		return false
	}
	top.index--
	w.cur = childAt(top.parent, top.index)
	return true
}

// First moves to the first sibling under the current parent.
func (w *Walker) First() bool {
	if len(w.path) == 0 {
		return false
	}
	top := &w.path[len(w.path)-1]
	top.index = 0
	w.cur = childAt(top.parent, 0)
	return true
}

// Last moves to the last sibling under the current parent.
func (w *Walker) Last() bool {
	if len(w.path) == 0 {
		return false
	}
	top := &w.path[len(w.path)-1]
	n := children(top.parent)
	if n == 0 {
		return false
	}
	top.index = n - 1
	w.cur = childAt(top.parent, n-1)
	return true
}

// DownToKey descends through a sequence of list indices and/or map keys in
// one call, the path-addressing shorthand the refinement passes use to
// revisit a position found during an earlier traversal of the tree.
func (w *Walker) DownToKey(keys ...string) bool {
	for _, k := range keys {
		switch n := w.cur.(type) {
		case *ListNode:
			idx, err := strconv.Atoi(k)
			if err != nil || idx < 0 || idx > len(n.Items) {
				return false
			}
			w.path = append(w.path, frame{parent: n, index: idx})
			if idx == len(n.Items) {
				// one past the end: a legal position to Replace (extend)
				// into but not yet a node of its own.
				w.cur = nil
			} else {
				w.cur = n.Items[idx]
			}
		case *MapNode:
			found := -1
			for i, e := range n.Entries {
				if e.Key == k {
					found = i
					break
				}
			}
			if found == -1 {
				return false
			}
			w.path = append(w.path, frame{parent: n, index: found})
			w.cur = n.Entries[found].Value
		default:
			return false
		}
	}
	return true
}

// Replace substitutes n for the node under the cursor. If the cursor was
// positioned one past the end of a list (DownToKey with index len(items)),
// Replace extends the list up to that index with null placeholders first,
// per the "falling off the end" addressing mode the mapping-growth pass
// uses to try appending a brand new argument.
func (w *Walker) Replace(n Node) {
	w.cur = n
	if len(w.path) == 0 {
		w.root = n
		return
	}
	top := &w.path[len(w.path)-1]
	switch p := top.parent.(type) {
	case *ListNode:
		for len(p.Items) < top.index {
			p.Items = append(p.Items, &ValueNode{Value: trace.NilArg{}})
		}
		if top.index == len(p.Items) {
			p.Items = append(p.Items, n)
		} else {
			p.Items[top.index] = n
		}
	case *MapNode:
		p.Entries[top.index].Value = n
	}
}

// Remove deletes the node under the cursor from its parent, returning its
// key (list index as a string, or map key) and the removed node, and moves
// the cursor up to the parent.
func (w *Walker) Remove() (string, Node) {
	if len(w.path) == 0 {
		return "", nil
	}
	top := w.path[len(w.path)-1]
	w.path = w.path[:len(w.path)-1]
	switch p := top.parent.(type) {
	case *ListNode:
		removed := p.Items[top.index]
		p.Items = append(p.Items[:top.index], p.Items[top.index+1:]...)
		w.cur = p
		return indexKey(top.index), removed
	case *MapNode:
		removed := p.Entries[top.index].Value
		key := p.Entries[top.index].Key
		p.Entries = append(p.Entries[:top.index], p.Entries[top.index+1:]...)
		w.cur = p
		return key, removed
	}
	return "", nil
}

// InsertNext inserts n as the sibling immediately following the current
// node, under the same parent. key names it when the parent is a MapNode;
// it is ignored for a ListNode parent, whose positions are addressed by
// index.
func (w *Walker) InsertNext(key string, n Node) bool {
	if len(w.path) == 0 {
		return false
	}
	top := &w.path[len(w.path)-1]
	idx := top.index + 1
	switch p := top.parent.(type) {
	case *ListNode:
		p.Items = append(p.Items, nil)
		copy(p.Items[idx+1:], p.Items[idx:])
		p.Items[idx] = n
	case *MapNode:
		p.Entries = append(p.Entries, Entry{})
		copy(p.Entries[idx+1:], p.Entries[idx:])
		p.Entries[idx] = Entry{Key: key, Value: n}
	default:
		return false
	}
	return true
}

// Map rewrites the current leaf into a MappedValueNode carrying value, a
// source parameter's rendered replacement, remembering sourceKey and the
// leaf's original value so Unmap can restore it.
func (w *Walker) Map(sourceKey []string, value trace.ArgNode) {
	var original trace.ArgNode
	switch n := w.cur.(type) {
	case nil:
		// the one-past-the-end slot of a list: nothing was there before.
		original = nil
	case *MappedValueNode:
		original = n.Original
	case *ValueNode:
		original = n.Value
	default:
		original = n.toArgNode()
	}
	w.Replace(&MappedValueNode{
		Original:  original,
		SourceKey: append([]string(nil), sourceKey...),
		Value:     value,
	})
}

// Unmap restores a MappedValueNode to a plain leaf holding its original
// value. It is a no-op on anything else.
func (w *Walker) Unmap() {
	if mv, ok := w.cur.(*MappedValueNode); ok {
		w.Replace(&ValueNode{Value: mv.Original})
	}
}
