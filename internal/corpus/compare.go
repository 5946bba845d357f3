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

package corpus

import (
	"sort"

	"github.com/anonymouse64/tracemigrate/internal/equality"
	"github.com/anonymouse64/tracemigrate/internal/paramsearch"
	"github.com/anonymouse64/tracemigrate/internal/preprocess"
	"github.com/anonymouse64/tracemigrate/internal/scoring"
	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// ParameterMapping is one entry of a Result's parameter-mapping output: a
// source-trace argument path paired with the corresponding target-trace
// path (§6: "a list of (source-key, target-key) tuples").
type ParameterMapping struct {
	SourceKey []string
	TargetKey []string
}

// Result is the outcome of comparing two preprocessed traces (§6 "Output:
// scoring result"). Score is computed under canonical equality, the
// context the orchestrator always scores under; NormalizedScore re-scores
// the same method under compare-by-map once a parameter mapping has been
// found, crediting syscalls whose equality depended on corresponding
// parameters rather than on canonicalization alone. NormalizedScore is the
// zero value when no parameters could be mapped (e.g. neither trace
// generated any synthetic values).
type Result struct {
	Method          scoring.Method
	Score           float64
	NormalizedScore float64
	HasNormalized   bool
	Mapping         []ParameterMapping
}

// Compare runs preprocessing, parameter-mapping search and scoring over a
// and b, which must already have had preprocess.Standard applied; globalHashes
// is ComputeGlobalSyscalls's output for corpus, or nil to skip global-strip.
// Preprocessing, equality-context acquisition and release are handled here
// so callers never have to remember the ordering constraints themselves.
func Compare(method scoring.Method, a, b *trace.Trace, corpus []*trace.Trace, globalHashes map[string]bool) (*Result, error) {
	preprocess.PairStandard(a, b, globalHashes)

	res := &Result{Method: method}

	err := func() error {
		release := equality.Acquire(equality.CanonicalEquality)
		defer release()
		score, err := scoring.Score(method, a, b, corpus)
		if err != nil {
			return err
		}
		res.Score = score
		return nil
	}()
	if err != nil {
		return nil, err
	}

	mapping := paramsearch.Search(a, b)
	pairs := mappingPairs(a, mapping)
	if len(pairs) > 0 {
		release := equality.Acquire(equality.SyntheticAwareEquality(equality.CompareByMap, mapping))
		score, err := scoring.Score(method, a, b, corpus)
		release()
		if err != nil {
			return nil, err
		}
		res.NormalizedScore = score
		res.HasNormalized = true
		res.Mapping = pairs
	}

	return res, nil
}

// mappingPairs renders the equality.Mapping paramsearch.Search found as the
// (source-key, target-key) tuples §6 specifies, one per parameter of a that
// the mapping relates to some parameter of b.
func mappingPairs(a *trace.Trace, mapping *equality.Mapping) []ParameterMapping {
	if a.Params == nil {
		return nil
	}
	var out []ParameterMapping
	for _, pA := range a.Params.All() {
		for _, pB := range otherParams(mapping, pA) {
			out = append(out, ParameterMapping{SourceKey: pA.Key, TargetKey: pB.Key})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return keyString(out[i].SourceKey) < keyString(out[j].SourceKey)
	})
	return out
}

func otherParams(mapping *equality.Mapping, p *trace.ExecutableParameter) []*trace.ExecutableParameter {
	partner := mapping.Partner(p)
	if partner == nil {
		return nil
	}
	return []*trace.ExecutableParameter{partner}
}

func keyString(path []string) string {
	s := ""
	for i, p := range path {
		if i > 0 {
			s += "."
		}
		s += p
	}
	return s
}
