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

package canon

// Linux constants, kept as named values rather than inlined magic numbers.
// Of these, only atFDCWD is used by a rule (the open family's dirfd check);
// the other rules match flags by their symbolic spelling.
const (
	atFDCWD      = -100
	atRemoveDir  = 0x200
	cloneFiles   = 0x400
	pAll         = 0
	pPID         = 1
	pPGID        = 2
	pPIDFD       = 3
)

// fcntlLockCommands names the commands whose third argument is a struct
// flock: only the lock-type field of that struct survives canonicalization,
// the rest (l_whence, l_start, l_len) being file-size- and layout-dependent.
var fcntlLockCommands = map[string]bool{
	"F_SETLK":      true,
	"F_SETLKW":     true,
	"F_GETLK":      true,
	"F_SETLK64":    true,
	"F_SETLKW64":   true,
	"F_GETLK64":    true,
	"F_OFD_SETLK":  true,
	"F_OFD_SETLKW": true,
	"F_OFD_GETLK":  true,
}
