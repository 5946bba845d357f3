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

package preprocess

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/anonymouse64/tracemigrate/internal/trace"
)

// GenerateSyntheticValues extracts ExecutableParameter objects from the
// trace's command-line/module Arguments and rewrites every literal whose
// primitive value matches one of them (by substring containment, or glob
// matching when the parameter itself contains a `*`) into a SyntheticValue
// wrapping that parameter. It must run after file-descriptor resolution,
// PID masking and the Ansible write strip, since all three can change
// which strings end up being compared against the parameters.
func GenerateSyntheticValues(t *trace.Trace) {
	if t.Params == nil {
		t.Params = trace.NewParameterArena()
	}
	params := extractParameters(t.Params, nil, t.Arguments)

	for _, sc := range t.Syscalls() {
		sc.EachLiteral(func(lit *trace.Literal) {
			matchLiteral(lit, params)
		})
	}
}

// extractParameters walks an ArgNode tree, registering one ExecutableParameter
// per scalar leaf, keyed by its path (list indices and map keys as strings).
func extractParameters(arena *trace.ParameterArena, key []string, node trace.ArgNode) []*trace.ExecutableParameter {
	var out []*trace.ExecutableParameter
	switch v := node.(type) {
	case trace.ListArg:
		for i, item := range v {
			out = append(out, extractParameters(arena, append(append([]string(nil), key...), strconv.Itoa(i)), item)...)
		}
	case trace.MapArg:
		for _, entry := range v {
			out = append(out, extractParameters(arena, append(append([]string(nil), key...), entry.Key), entry.Value)...)
		}
	case trace.StringArg, trace.NumberArg, trace.BoolArg:
		out = append(out, arena.GetOrCreate(key, node))
	}
	return out
}

func paramString(p *trace.ExecutableParameter) (s string, isNumber bool) {
	switch v := p.Value.(type) {
	case trace.StringArg:
		return string(v), false
	case trace.NumberArg:
		return trimTrailingZeros(float64(v)), true
	case trace.BoolArg:
		if v {
			return "True", false
		}
		return "False", false
	default:
		return "", false
	}
}

func trimTrailingZeros(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// primitiveOf reduces a literal value to the (type, text) pair the matching
// rules compare parameters against, or ok=false for values with no
// meaningful primitive rendering (collections, holes, identifiers, ...).
func primitiveOf(v trace.LiteralValue) (text string, isNumber, ok bool) {
	switch val := v.(type) {
	case trace.NumberValue:
		return strconv.FormatInt(val.Value, 10), true, true
	case trace.StringValue:
		return val.Raw, false, true
	case trace.PathFileDescriptor:
		return val.Path, false, true
	case trace.DeviceFileDescriptor:
		return val.Path, false, true
	case trace.IPSocketFileDescriptor:
		return val.Dest, false, true
	default:
		return "", false, false
	}
}

func matchLiteral(lit *trace.Literal, params []*trace.ExecutableParameter) {
	if _, already := lit.Value.(trace.SyntheticValue); already {
		return
	}
	text, isNumber, ok := primitiveOf(lit.Value)
	if !ok {
		return
	}
	for _, p := range params {
		pstr, pIsNumber := paramString(p)
		if pstr == "" {
			continue
		}
		if isNumber != pIsNumber {
			continue
		}
		if isNumber {
			if text != pstr {
				continue
			}
			trace.SubstituteValue(lit, trace.SyntheticValue{
				Original: lit.Value, Param: p, Template: trace.IntTemplate{},
			})
			return
		}
		if matched, glob := stringMatches(text, pstr); matched {
			var tmpl trace.ValueTemplate
			if glob {
				tmpl = trace.StringTemplate{Pattern: "{0}"}
			} else {
				tmpl = trace.StringTemplate{Pattern: strings.Replace(text, pstr, "{0}", 1)}
			}
			trace.SubstituteValue(lit, trace.SyntheticValue{
				Original: lit.Value, Param: p, Template: tmpl,
			})
			return
		}
	}
}

// stringMatches reports whether argument text matches parameter pstr, and
// whether the match was via glob (as opposed to plain substring
// containment) -- the two use different synthetic templates.
func stringMatches(text, pstr string) (matched, glob bool) {
	if pstr == "" {
		return false, false
	}
	if strings.Contains(pstr, "*") {
		if re := globPattern(pstr); re != nil && re.MatchString(text) {
			return true, true
		}
		return false, false
	}
	return strings.Contains(text, pstr), false
}

var globCache = map[string]*regexp.Regexp{}

// globPattern builds the same regex the original shell-glob matcher builds:
// ** expands to a recursive-path wildcard and * to a single-segment
// wildcard excluding a leading dot, applied as sequential text
// replacements (so a ** contributes its own literal *'s to the later *
// pass, exactly as the rule it's ported from does).
func globPattern(pstr string) *regexp.Regexp {
	if re, ok := globCache[pstr]; ok {
		return re
	}
	pattern := strings.ReplaceAll(pstr, "**", `[^.].*?`)
	pattern = strings.ReplaceAll(pattern, "*", `[^.][^/]*`)
	re, err := regexp.Compile("^" + pattern)
	if err != nil {
		globCache[pstr] = nil
		return nil
	}
	globCache[pstr] = re
	return re
}
