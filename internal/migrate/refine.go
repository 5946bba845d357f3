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

// SourceParam is one source-trace parameter available to the mapping-growth
// pass: its key path and the concrete value it would contribute if mapped
// into the target.
type SourceParam struct {
	Key   []string
	Value trace.ArgNode
}

// Result is the outcome of refining one candidate target against a source.
type Result struct {
	Arguments trace.ArgNode
	// Mapping is target key string -> source key string, one entry per
	// MappedValueNode that survived the mapping-growth pass.
	Mapping map[string]string
	Score   float64
}

// Refine runs the list-replacement, mapping-growth and removal passes over
// target, keeping whichever change the validator confirms is an
// improvement (or, for list-replacement, exactly neutral). sourceParams is
// consumed at most once each: a source parameter mapped into the target is
// removed from consideration for the rest of the pass.
func Refine(system, executable string, target trace.ArgNode, sourceParams []SourceParam, v Validator) (*Result, error) {
	root := FromArgNode(target)
	w := NewWalker(root)

	validate := func() (float64, error) {
		res, err := v.Validate(system, executable, ToArgNode(w.Root()))
		if err != nil {
			return 0, err
		}
		return res.Score, nil
	}

	current, err := validate()
	if err != nil {
		return nil, err
	}

	listReplacementPass(w, validate)
	mapping := mappingGrowthPass(w, sourceParams, validate, &current)
	removalPass(w, &current, validate)

	final, err := validate()
	if err != nil {
		return nil, err
	}
	return &Result{Arguments: ToArgNode(w.Root()), Mapping: mapping, Score: final}, nil
}

// pathSpec is one address produced by the postorder walk below, plus
// whether it names an existing node or the one-past-the-end slot of a
// list (only meaningful to the mapping-growth pass, which may insert
// there).
type pathSpec struct {
	path    []string
	virtual bool
}

// postorderPaths lists every node's path, children before their parent, so
// a pass can safely replace a node without invalidating paths to nodes it
// hasn't visited yet (they're always deeper, hence already visited).
// reverse controls sibling order within each list/map, which the removal
// pass needs high-to-low so deleting a later sibling doesn't shift the
// index of one not yet visited.
func postorderPaths(n Node, prefix []string, reverse, includeVirtual bool) []pathSpec {
	var out []pathSpec
	switch v := n.(type) {
	case *ListNode:
		idxs := make([]int, len(v.Items))
		for i := range idxs {
			idxs[i] = i
		}
		if reverse {
			for i, j := 0, len(idxs)-1; i < j; i, j = i+1, j-1 {
				idxs[i], idxs[j] = idxs[j], idxs[i]
			}
		}
		for _, i := range idxs {
			out = append(out, postorderPaths(v.Items[i], append(append([]string(nil), prefix...), indexKey(i)), reverse, includeVirtual)...)
		}
		if includeVirtual {
			out = append(out, pathSpec{path: append(append([]string(nil), prefix...), indexKey(len(v.Items))), virtual: true})
		}
	case *MapNode:
		keys := make([]string, len(v.Entries))
		for i, e := range v.Entries {
			keys[i] = e.Key
		}
		if reverse {
			for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
		for _, k := range keys {
			val, _ := v.Get(k)
			out = append(out, postorderPaths(val, append(append([]string(nil), prefix...), k), reverse, includeVirtual)...)
		}
	}
	out = append(out, pathSpec{path: append([]string(nil), prefix...)})
	return out
}

// Get looks up a MapNode entry by key, mirroring trace.MapArg.Get.
func (m *MapNode) Get(key string) (Node, bool) {
	for _, e := range m.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// listReplacementPass normalizes argument shape: wrap each node in a
// singleton list, keeping the wrap only when it leaves validation exactly
// unchanged (shape-insensitive positions), reverting otherwise.
func listReplacementPass(w *Walker, validate func() (float64, error)) {
	for _, p := range postorderPaths(w.Root(), nil, false, false) {
		if len(p.path) == 0 || (len(p.path) == 1 && p.path[0] == "") {
			continue
		}
		w.Reset()
		if !w.DownToKey(p.path...) {
			continue
		}
		before, err := validate()
		if err != nil {
			continue
		}
		original := w.Current()
		w.Replace(&ListNode{Items: []Node{original}})
		after, err := validate()
		if err != nil || after != before {
			w.Reset()
			w.DownToKey(p.path...)
			w.Replace(original)
		}
	}
}

// mappingGrowthPass tries substituting, and appending, each unused source
// parameter at each target position (including one past the end of every
// list), keeping a substitution only when it strictly improves *current.
func mappingGrowthPass(w *Walker, sourceParams []SourceParam, validate func() (float64, error), current *float64) map[string]string {
	mapping := make(map[string]string)
	used := make([]bool, len(sourceParams))

	for _, p := range postorderPaths(w.Root(), nil, false, true) {
		for i, sp := range sourceParams {
			if used[i] {
				continue
			}
			w.Reset()
			if !w.DownToKey(p.path...) {
				continue
			}
			var previous Node
			if !p.virtual {
				previous = w.Current()
			}
			w.Map(sp.Key, sp.Value)
			after, err := validate()
			if err == nil && after > *current {
				*current = after
				used[i] = true
				mapping[KeyString(p.path)] = KeyString(sp.Key)
				break
			}
			w.Reset()
			w.DownToKey(p.path...)
			if previous != nil {
				w.Replace(previous)
			} else {
				w.Remove()
			}
		}
	}
	return mapping
}

// removalPass tries dropping each node entirely, keeping the removal only
// when it strictly improves *current, in reverse sibling order so an
// accepted removal never invalidates a not-yet-visited sibling's index.
func removalPass(w *Walker, current *float64, validate func() (float64, error)) {
	for _, p := range postorderPaths(w.Root(), nil, true, false) {
		if len(p.path) == 0 {
			continue
		}
		w.Reset()
		if !w.DownToKey(p.path...) {
			continue
		}
		parentPath := p.path[:len(p.path)-1]
		w.Reset()
		w.DownToKey(parentPath...)
		w.DownToKey(p.path[len(p.path)-1])
		_, removed := w.Remove()
		after, err := validate()
		if err != nil || after <= *current {
			// restore: re-insert at the same position.
			w.Reset()
			w.DownToKey(parentPath...)
			restoreAt(w, p.path[len(p.path)-1], removed)
			continue
		}
		*current = after
	}
}

// restoreAt re-inserts a removed child back into its parent (the node the
// Walker is currently positioned on) at key (a list index or map key),
// undoing removalPass's speculative Remove.
func restoreAt(w *Walker, key string, n Node) {
	switch p := w.Current().(type) {
	case *ListNode:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx > len(p.Items) {
			idx = len(p.Items)
		}
		p.Items = append(p.Items, nil)
		copy(p.Items[idx+1:], p.Items[idx:])
		p.Items[idx] = n
	case *MapNode:
		p.Entries = append(p.Entries, Entry{Key: key, Value: n})
	}
}
