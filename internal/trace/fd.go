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

import "fmt"

// PathFileDescriptor is an fd annotated with the path it refers to, e.g.
// "3</snap/chromium/958/usr/sbin/update-icon-caches>".
type PathFileDescriptor struct {
	FD   int64
	Path string
}

func (PathFileDescriptor) isLiteralValue() {}
func (f PathFileDescriptor) CanonicalString() string {
	return fmt.Sprintf("%d<%s>", f.FD, f.Path)
}

// DeviceFileDescriptor is an fd backed by a device node, annotated with its
// type and major/minor numbers, e.g. "3<char 136:1>".
type DeviceFileDescriptor struct {
	FD       int64
	DevType  string
	Major    int64
	Minor    int64
	Path     string
}

func (DeviceFileDescriptor) isLiteralValue() {}
func (f DeviceFileDescriptor) CanonicalString() string {
	return fmt.Sprintf("%d<%s %d:%d %s>", f.FD, f.DevType, f.Major, f.Minor, f.Path)
}

// SocketFileDescriptor is an fd backed by a Unix domain socket or pipe, e.g.
// "9<socket:[624422]>" or "9<pipe:[200089]>".
type SocketFileDescriptor struct {
	FD        int64
	Protocol  string
	Inode     string
	HasPeer   bool
	PeerInode string
	HasName   bool
	BoundName string
}

func (SocketFileDescriptor) isLiteralValue() {}
func (f SocketFileDescriptor) CanonicalString() string {
	s := fmt.Sprintf("%d<%s:[%s]", f.FD, f.Protocol, f.Inode)
	if f.HasPeer {
		s += fmt.Sprintf("->%s", f.PeerInode)
	}
	if f.HasName {
		s += fmt.Sprintf(",%s", f.BoundName)
	}
	return s + ">"
}

// IPSocketFileDescriptor is an fd backed by an IP socket, e.g.
// "6<TCP:[127.0.0.1:5353->127.0.0.53:53]>".
type IPSocketFileDescriptor struct {
	FD         int64
	Protocol   string
	HasSource  bool
	Source     string
	Dest       string
}

func (IPSocketFileDescriptor) isLiteralValue() {}
func (f IPSocketFileDescriptor) CanonicalString() string {
	if f.HasSource {
		return fmt.Sprintf("%d<%s:[%s->%s]>", f.FD, f.Protocol, f.Source, f.Dest)
	}
	return fmt.Sprintf("%d<%s:[%s]>", f.FD, f.Protocol, f.Dest)
}

// NetlinkFileDescriptor is an fd backed by a NETLINK socket, e.g.
// "3<NETLINK:[NETLINK_ROUTE:1234]>".
type NetlinkFileDescriptor struct {
	FD          int64
	Protocol    string
	SubProtocol string
	PID         string
}

func (NetlinkFileDescriptor) isLiteralValue() {}
func (f NetlinkFileDescriptor) CanonicalString() string {
	return fmt.Sprintf("%d<NETLINK:[%s:%s]>", f.FD, f.SubProtocol, f.PID)
}

// fdNumber extracts the fd integer shared by all file-descriptor value
// kinds, or ok==false if v isn't one.
func fdNumber(v LiteralValue) (fd int64, ok bool) {
	switch f := v.(type) {
	case PathFileDescriptor:
		return f.FD, true
	case DeviceFileDescriptor:
		return f.FD, true
	case SocketFileDescriptor:
		return f.FD, true
	case IPSocketFileDescriptor:
		return f.FD, true
	case NetlinkFileDescriptor:
		return f.FD, true
	default:
		return 0, false
	}
}

// FDNumber returns the fd integer for any of the five file-descriptor
// value kinds.
func FDNumber(v LiteralValue) (int64, bool) { return fdNumber(v) }

// IsFileDescriptor reports whether v is one of the file-descriptor value
// kinds.
func IsFileDescriptor(v LiteralValue) bool {
	_, ok := fdNumber(v)
	return ok
}
