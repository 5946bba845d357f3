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

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ArgNode is the JSON-shaped value carried by Trace.Arguments: a list for
// command-line systems, a mapping for module systems like Ansible, bottoming
// out in string/number/bool/nil scalars.
//
// MapArg preserves insertion order (unlike a bare Go map) so that hashing
// and round-tripping are deterministic.
type ArgNode interface {
	isArgNode()
}

// ListArg is an ordered list of argument nodes, addressed by index.
type ListArg []ArgNode

func (ListArg) isArgNode() {}

// MapEntry is one key/value pair of a MapArg.
type MapEntry struct {
	Key   string
	Value ArgNode
}

// MapArg is an ordered mapping of string keys to argument nodes.
type MapArg []MapEntry

func (MapArg) isArgNode() {}

// MarshalJSON renders m as a genuine JSON object, in entry order, rather
// than the array-of-{Key,Value} shape Go's default struct-slice encoding
// would produce -- executable records round-trip through real JSON tools
// that expect module arguments to look like an object.
func (m MapArg) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value for key, or nil, false if absent.
func (m MapArg) Get(key string) (ArgNode, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// StringArg is a scalar string argument value.
type StringArg string

func (StringArg) isArgNode() {}

// NumberArg is a scalar numeric argument value.
type NumberArg float64

func (NumberArg) isArgNode() {}

// BoolArg is a scalar boolean argument value.
type BoolArg bool

func (BoolArg) isArgNode() {}

// NilArg is the scalar null/None argument value.
type NilArg struct{}

func (NilArg) isArgNode() {}

// MarshalJSON renders NilArg as JSON null instead of the empty-struct "{}"
// the default encoding would produce.
func (NilArg) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// ScalarText renders a scalar ArgNode the way its string form would have
// appeared as a raw command-line argument or JSON value, for use by the
// synthetic-value matching rules. The second return is false for container
// nodes (ListArg/MapArg), which never themselves become a parameter.
func ScalarText(n ArgNode) (string, bool) {
	switch v := n.(type) {
	case StringArg:
		return string(v), true
	case NumberArg:
		if v == NumberArg(int64(v)) {
			return fmt.Sprintf("%d", int64(v)), true
		}
		return fmt.Sprintf("%g", float64(v)), true
	case BoolArg:
		if v {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}

// Walk calls visit for every scalar reachable from n, passing its path. The
// root path segment is "" for a bare scalar at the top of a list (per the
// data model: "" stands for scalar arguments).
func Walk(n ArgNode, path []string, visit func(path []string, scalar ArgNode)) {
	switch v := n.(type) {
	case ListArg:
		for i, item := range v {
			Walk(item, append(append([]string(nil), path...), fmt.Sprintf("%d", i)), visit)
		}
	case MapArg:
		for _, e := range v {
			Walk(e.Value, append(append([]string(nil), path...), e.Key), visit)
		}
	default:
		visit(path, n)
	}
}

// ParseArguments decodes a JSON-encoded executable-record arguments value
// (§6: a list for command-line systems, an object for module systems) into
// an ArgNode tree, preserving object key order with json.Decoder.Token
// instead of the order-losing map[string]interface{} encoding/json would
// otherwise produce.
func ParseArguments(raw []byte) (ArgNode, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return decodeArgNode(dec)
}

func decodeArgNode(dec *json.Decoder) (ArgNode, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeArgToken(dec, tok)
}

func decodeArgToken(dec *json.Decoder, tok json.Token) (ArgNode, error) {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '[':
			var items ListArg
			for dec.More() {
				item, err := decodeArgNode(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return items, nil
		case '{':
			var entries MapArg
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("trace: non-string object key %v", keyTok)
				}
				val, err := decodeArgNode(dec)
				if err != nil {
					return nil, err
				}
				entries = append(entries, MapEntry{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return entries, nil
		}
		return nil, fmt.Errorf("trace: unexpected delimiter %v", v)
	case string:
		return StringArg(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return NumberArg(f), nil
	case bool:
		return BoolArg(v), nil
	case nil:
		return NilArg{}, nil
	default:
		return nil, fmt.Errorf("trace: unexpected JSON token %v", tok)
	}
}
