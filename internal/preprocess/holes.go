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
	"io/ioutil"

	"github.com/anonymouse64/tracemigrate/internal/trace"
	"gopkg.in/yaml.v2"
)

// HoleSet is, for each syscall name, the set of argument indices whose
// value varies across repeated runs of the same invocation and must
// therefore never contribute to comparison. It is produced offline (by the
// out-of-scope corpus-collection tooling) by diffing several traces of the
// same executable with identical inputs.
type HoleSet map[string][]int

// holeFile is HoleSet's on-disk shape: the same mapping, with each
// syscall's indices written as a YAML list.
type holeFile map[string][]int

// LoadHoleSet reads a HoleSet from a YAML file shaped like:
//
//	open: [0]
//	write: [1]
func LoadHoleSet(path string) (HoleSet, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var hf holeFile
	if err := yaml.Unmarshal(b, &hf); err != nil {
		return nil, err
	}
	return HoleSet(hf), nil
}

// Save writes hs to path as YAML.
func (hs HoleSet) Save(path string) error {
	b, err := yaml.Marshal(holeFile(hs))
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, b, 0644)
}

// PunchHoles replaces every argument value at a known hole position with
// the Hole sentinel, for every syscall whose name appears in holes.
func PunchHoles(t *trace.Trace, holes HoleSet) {
	if len(holes) == 0 {
		return
	}
	for _, sc := range t.Syscalls() {
		idxs, ok := holes[sc.Name]
		if !ok {
			continue
		}
		for _, idx := range idxs {
			lit := sc.Arg(idx)
			if lit == nil {
				continue
			}
			trace.SubstituteValue(lit, trace.Hole{})
		}
	}
}
