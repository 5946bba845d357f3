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

package straceparse

import "fmt"

// ParseError is a fatal failure to recognize the input at a given
// position. Parsing fails fast: the first recognition failure aborts the
// trace, it is never partially recovered from.
type ParseError struct {
	Line, Col int
	Message   string
	// Context is the up-to-five tokens preceding the offending one, for
	// diagnostics.
	Context []Token
	// Expected names the token kinds that would have been accepted here, if
	// known.
	Expected []Kind
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Col, e.Message)
	if len(e.Context) > 0 {
		msg += " (preceded by:"
		for _, t := range e.Context {
			msg += " " + t.String()
		}
		msg += ")"
	}
	if len(e.Expected) > 0 {
		msg += " (expected one of:"
		for _, k := range e.Expected {
			msg += " " + k.String()
		}
		msg += ")"
	}
	return msg
}
