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

package equality

import (
	"fmt"

	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// SyntheticMode selects how two trace.SyntheticValue literals compare
// under SyntheticAwareEquality. All three modes otherwise perform the same
// structural comparison as StrictEquality.
type SyntheticMode int

const (
	// CompareEqual treats any two SyntheticValues as equal regardless of
	// which parameter they reference, i.e. "this position was rewritten
	// from some executable argument" is itself the only thing compared.
	CompareEqual SyntheticMode = iota
	// CompareByID treats two SyntheticValues as equal iff they reference
	// the identical ExecutableParameter object. Since parameters are
	// arena-owned per trace, this only ever holds within one trace's own
	// arguments (e.g. comparing two lines of the same trace).
	CompareByID
	// CompareByMap treats two SyntheticValues as equal iff their
	// parameters are related under the Mapping installed alongside this
	// mode, the granularity parameter-mapping search needs: "does the
	// candidate mapping make these two positions line up."
	CompareByMap
)

// Mapping is a symmetric correspondence between ExecutableParameters of
// two traces, as produced by parameter-mapping search. It backs
// CompareByMap; nil means no correspondence has been established, under
// which CompareByMap relates a parameter only to itself.
type Mapping struct {
	pairs map[*trace.ExecutableParameter]*trace.ExecutableParameter
}

// NewMapping returns an empty Mapping.
func NewMapping() *Mapping {
	return &Mapping{pairs: make(map[*trace.ExecutableParameter]*trace.ExecutableParameter)}
}

// Add records that a and b correspond, in both directions.
func (m *Mapping) Add(a, b *trace.ExecutableParameter) {
	m.pairs[a] = b
	m.pairs[b] = a
}

// Related reports whether a and b are recorded as corresponding (in
// either order), or are the identical parameter.
func (m *Mapping) Related(a, b *trace.ExecutableParameter) bool {
	if m == nil || a == nil || b == nil {
		return a == b
	}
	if a == b {
		return true
	}
	return m.pairs[a] == b
}

// Partner returns whatever parameter p is recorded as corresponding to, or
// nil if none. Used to render a Mapping as a list of key pairs once search
// has finished, rather than for the Equal-time lookups Related is for.
func (m *Mapping) Partner(p *trace.ExecutableParameter) *trace.ExecutableParameter {
	if m == nil {
		return nil
	}
	return m.pairs[p]
}

// canonicalKey returns a key identical for p and whatever p is mapped to,
// so that Hash stays consistent with Related ("equal under Related must
// hash equal"): the lexicographically smaller of the pair's two key
// strings, picked the same way from either side.
func (m *Mapping) canonicalKey(p *trace.ExecutableParameter) string {
	key := p.KeyString()
	if m == nil {
		return key
	}
	if partner, ok := m.pairs[p]; ok {
		if pk := partner.KeyString(); pk < key {
			return pk
		}
	}
	return key
}

// SyntheticAwareEquality returns a Context implementing mode, consulting
// mapping (which may be nil unless mode is CompareByMap). The spec's open
// question of whether a synthetic rewrite nested inside a collection or
// function-call argument should use the same mode as a top-level one is
// resolved here as "yes": the mode applies to every SyntheticValue
// encountered anywhere in the literal tree, matching how the monkey-patched
// __eq__ this is ported from would recurse into nested objects uniformly.
func SyntheticAwareEquality(mode SyntheticMode, mapping *Mapping) Context {
	return &syntheticEquality{mode: mode, mapping: mapping}
}

type syntheticEquality struct {
	mode    SyntheticMode
	mapping *Mapping
}

// conflicts implements conflicter: two synthetic-aware contexts with
// different modes (or different mappings under CompareByMap) must not be
// nested, since the inner one would silently change the meaning of
// equality for the same SyntheticValue positions the outer comparison is
// mid-way through evaluating.
func (s *syntheticEquality) conflicts(other Context) bool {
	o, ok := other.(*syntheticEquality)
	if !ok {
		return false
	}
	if o.mode != s.mode {
		return true
	}
	return o.mode == CompareByMap && o.mapping != s.mapping
}

func (s *syntheticEquality) Equal(a, b *trace.Syscall) bool {
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
		if !s.argumentEqual(a.Arguments[i], b.Arguments[i]) {
			return false
		}
	}
	return true
}

func (s *syntheticEquality) argumentEqual(a, b trace.Argument) bool {
	switch av := a.(type) {
	case trace.Omitted:
		_, ok := b.(trace.Omitted)
		return ok
	case *trace.Literal:
		bv, ok := b.(*trace.Literal)
		if !ok || av.HasIdentifier != bv.HasIdentifier || av.Identifier != bv.Identifier {
			return false
		}
		if (av.MapsTo == nil) != (bv.MapsTo == nil) {
			return false
		}
		if av.MapsTo != nil && !s.argumentEqual(av.MapsTo, bv.MapsTo) {
			return false
		}
		return s.literalValueEqual(av.Value, bv.Value)
	default:
		return false
	}
}

func (s *syntheticEquality) literalValueEqual(a, b trace.LiteralValue) bool {
	as, aIsSynthetic := a.(trace.SyntheticValue)
	bs, bIsSynthetic := b.(trace.SyntheticValue)
	if aIsSynthetic || bIsSynthetic {
		if !aIsSynthetic || !bIsSynthetic {
			return false
		}
		switch s.mode {
		case CompareEqual:
			return true
		case CompareByID:
			return as.Param == bs.Param
		case CompareByMap:
			return s.mapping.Related(as.Param, bs.Param)
		default:
			return false
		}
	}
	switch av := a.(type) {
	case trace.FunctionCallValue:
		bv, ok := b.(trace.FunctionCallValue)
		if !ok || av.Identifier != bv.Identifier || len(av.Arguments) != len(bv.Arguments) {
			return false
		}
		for i := range av.Arguments {
			if !s.argumentEqual(av.Arguments[i], bv.Arguments[i]) {
				return false
			}
		}
		return true
	case trace.CollectionValue:
		bv, ok := b.(trace.CollectionValue)
		if !ok || av.Bracket != bv.Bracket || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !s.argumentEqual(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	default:
		return trace.LiteralValueEqual(av, b)
	}
}

func (s *syntheticEquality) Hash(sc *trace.Syscall) string {
	var sb []byte
	sb = append(sb, sc.Name...)
	for _, a := range sc.Arguments {
		sb = append(sb, '\x1f')
		sb = append(sb, s.argumentHash(a)...)
	}
	return string(sb)
}

func (s *syntheticEquality) argumentHash(a trace.Argument) string {
	switch v := a.(type) {
	case trace.Omitted:
		return "..."
	case *trace.Literal:
		return s.literalValueHash(v.Value)
	default:
		return "?"
	}
}

func (s *syntheticEquality) literalValueHash(v trace.LiteralValue) string {
	if sv, ok := v.(trace.SyntheticValue); ok {
		switch s.mode {
		case CompareEqual:
			return "~synthetic~"
		case CompareByID:
			return fmt.Sprintf("~synthetic:%p~", sv.Param)
		case CompareByMap:
			return "~synthetic:" + s.mapping.canonicalKey(sv.Param) + "~"
		}
	}
	return v.CanonicalString()
}
