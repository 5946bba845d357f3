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

// Package files gives corpus.Record.Save and collector.Capture the two
// filesystem operations they both need around an on-disk artifact they
// own outright: get a clean handle to write it to, and guarantee it's
// gone once it's no longer wanted. Neither caller treats the path as
// something a concurrent writer might also touch.
package files

import "os"

func regularFileExists(fname string) bool {
	info, err := os.Stat(fname)
	if os.IsNotExist(err) {
		return false
	}
	// if err is not nil and it's not a directory then it must be a file
	return err == nil && !info.IsDir()
}

// EnsureExistsAndOpen returns a writable handle to fname, creating it if
// necessary. With overwrite set, any existing content is discarded first
// (corpus.Record.Save's re-running-the-same-capture case); without it,
// writes append to whatever's already there.
func EnsureExistsAndOpen(fname string, overwrite bool) (*os.File, error) {
	fExists := regularFileExists(fname)
	switch {
	case fExists && !overwrite:
		return os.OpenFile(fname, os.O_WRONLY|os.O_APPEND, 0644)
	case fExists && overwrite:
		if err := os.Remove(fname); err != nil {
			return nil, err
		}
		fallthrough
	default:
		// file doesn't exist, or stat failed, in which case Create will
		// fail too and the caller can inspect that error for details.
		return os.Create(fname)
	}
}

// EnsureFileIsDeleted removes fname if it exists, and is a no-op
// otherwise. collector.Capture uses this both to clear any stale log
// before a capture and to clean up after, since strace truncates its -o
// target rather than refusing to write over it.
func EnsureFileIsDeleted(fname string) error {
	if regularFileExists(fname) {
		return os.Remove(fname)
	}
	return nil
}
