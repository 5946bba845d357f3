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

import "github.com/anonymouse64/tracemigrate/internal/trace"

// AnsibleStripLastWrite removes the final write syscall from a trace tagged
// "ansible": every Ansible module ends by writing its JSON result to
// stdout, a call with no bearing on what the module actually changed on the
// system. Traces from any other system are left untouched; the condition
// is kept exactly as narrow as the source's, since a write carrying a real
// side effect must never be the one removed.
func AnsibleStripLastWrite(t *trace.Trace) {
	if t.System != "ansible" {
		return
	}
	for i := len(t.Lines) - 1; i >= 0; i-- {
		sc, ok := t.Lines[i].(*trace.Syscall)
		if !ok {
			continue
		}
		if sc.Name == "write" {
			t.Lines = append(t.Lines[:i], t.Lines[i+1:]...)
			return
		}
	}
}
