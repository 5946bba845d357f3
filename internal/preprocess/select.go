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

// SelectSyscalls drops every Signal and ExitStatement line, keeping only
// Syscall lines. It must run before every other preprocessor: file
// descriptor resolution, PID masking and hole punching all assume every
// remaining line is a *trace.Syscall.
func SelectSyscalls(t *trace.Trace) {
	kept := t.Lines[:0]
	for _, l := range t.Lines {
		if sc, ok := l.(*trace.Syscall); ok {
			kept = append(kept, sc)
		}
	}
	t.Lines = kept
}
