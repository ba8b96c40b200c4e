// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fusekernel contains constants and structs from the FUSE kernel
// interface. Derived from FUSE's fuse_kernel.h, which carries this notice:
/*
   This file defines the kernel interface of FUSE
   Copyright (C) 2001-2007  Miklos Szeredi <miklos@szeredi.hu>

   This -- and only this -- header file may also be distributed under
   the terms of the BSD Licence as follows:

   Copyright (C) 2001-2007 Miklos Szeredi. All rights reserved.

   Redistribution and use in source and binary forms, with or without
   modification, are permitted provided that the following conditions
   are met:
   1. Redistributions of source code must retain the above copyright
      notice, this list of conditions and the following disclaimer.
   2. Redistributions in binary form must reproduce the above copyright
      notice, this list of conditions and the following disclaimer in the
      documentation and/or other materials provided with the distribution.

   THIS SOFTWARE IS PROVIDED BY AUTHOR AND CONTRIBUTORS ``AS IS'' AND
   ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
   IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
   ARE DISCLAIMED.  IN NO EVENT SHALL AUTHOR OR CONTRIBUTORS BE LIABLE
   FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
   DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS
   OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION)
   HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT
   LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY
   OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF
   SUCH DAMAGE.
*/
package fusekernel

import (
	"fmt"
	"unsafe"
)

// The FUSE protocol versions implemented by this package. A session never
// speaks a minor version above the one the kernel announced during init.
const (
	ProtoVersionMinMajor = 7
	ProtoVersionMinMinor = 6
	ProtoVersionMaxMajor = 7
	ProtoVersionMaxMinor = 19
)

// The inode number of the root of a mounted file system.
const RootID = 1

// Protocol is a FUSE protocol version number, negotiated during init.
type Protocol struct {
	Major uint32
	Minor uint32
}

func (p Protocol) String() string {
	return fmt.Sprintf("%d.%d", p.Major, p.Minor)
}

// LT returns whether a is less than b.
func (a Protocol) LT(b Protocol) bool {
	return a.Major < b.Major ||
		(a.Major == b.Major && a.Minor < b.Minor)
}

// GE returns whether a is greater than or equal to b.
func (a Protocol) GE(b Protocol) bool {
	return a.Major > b.Major ||
		(a.Major == b.Major && a.Minor >= b.Minor)
}

// Opcodes sent by the kernel in InHeader.Opcode.
const (
	OpLookup      uint32 = 1
	OpForget      uint32 = 2 // No reply.
	OpGetattr     uint32 = 3
	OpSetattr     uint32 = 4
	OpReadlink    uint32 = 5
	OpSymlink     uint32 = 6
	OpMknod       uint32 = 8
	OpMkdir       uint32 = 9
	OpUnlink      uint32 = 10
	OpRmdir       uint32 = 11
	OpRename      uint32 = 12
	OpLink        uint32 = 13
	OpOpen        uint32 = 14
	OpRead        uint32 = 15
	OpWrite       uint32 = 16
	OpStatfs      uint32 = 17
	OpRelease     uint32 = 18
	OpFsync       uint32 = 20
	OpSetxattr    uint32 = 21
	OpGetxattr    uint32 = 22
	OpListxattr   uint32 = 23
	OpRemovexattr uint32 = 24
	OpFlush       uint32 = 25
	OpInit        uint32 = 26
	OpOpendir     uint32 = 27
	OpReaddir     uint32 = 28
	OpReleasedir  uint32 = 29
	OpFsyncdir    uint32 = 30
	OpGetlk       uint32 = 31
	OpSetlk       uint32 = 32
	OpSetlkw      uint32 = 33
	OpAccess      uint32 = 34
	OpCreate      uint32 = 35
	OpInterrupt   uint32 = 36
	OpBmap        uint32 = 37
	OpDestroy     uint32 = 38

	// Android-specific: ask the daemon for the canonical path of a node, used
	// by the sdcard wrapper. Numbered far outside the upstream opcode space.
	OpCanonicalPath uint32 = 2016
)

// InHeader is the header sent by the kernel at the start of every request.
type InHeader struct {
	Len    uint32
	Opcode uint32
	Unique uint64
	Nodeid uint64
	Uid    uint32
	Gid    uint32
	Pid    uint32
	_      uint32
}

const InHeaderSize = int(unsafe.Sizeof(InHeader{}))

// OutHeader is the header we send at the start of every reply. Error is zero
// on success and a negated errno on failure, in which case no payload may
// follow.
type OutHeader struct {
	Len    uint32
	Error  int32
	Unique uint64
}

const OutHeaderSize = int(unsafe.Sizeof(OutHeader{}))

// Attr is the wire form of a node's attributes, embedded in EntryOut and
// AttrOut. Layout and padding must match struct fuse_attr exactly.
type Attr struct {
	Ino       uint64
	Size      uint64
	Blocks    uint64
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
	AtimeNsec uint32
	MtimeNsec uint32
	CtimeNsec uint32
	Mode      uint32
	Nlink     uint32
	Uid       uint32
	Gid       uint32
	Rdev      uint32
	Blksize   uint32
	_         uint32
}

type Kstatfs struct {
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Bsize   uint32
	Namelen uint32
	Frsize  uint32
	_       uint32
	Spare   [6]uint32
}

type EntryOut struct {
	Nodeid         uint64 // Inode ID
	Generation     uint64 // Inode generation
	EntryValid     uint64 // Cache timeout for the name
	AttrValid      uint64 // Cache timeout for the attributes
	EntryValidNsec uint32
	AttrValidNsec  uint32
	Attr           Attr
}

// EntryOutSize returns the size of an EntryOut in the given protocol version,
// which gained the Blksize tail in 7.9.
func EntryOutSize(p Protocol) uintptr {
	switch {
	case p.LT(Protocol{7, 9}):
		return unsafe.Offsetof(EntryOut{}.Attr) + unsafe.Offsetof(EntryOut{}.Attr.Blksize)
	default:
		return unsafe.Sizeof(EntryOut{})
	}
}

type ForgetIn struct {
	Nlookup uint64
}

type GetattrIn struct {
	GetattrFlags uint32
	_            uint32
	Fh           uint64
}

type AttrOut struct {
	AttrValid     uint64 // Cache timeout for the attributes
	AttrValidNsec uint32
	_             uint32
	Attr          Attr
}

// AttrOutSize returns the size of an AttrOut in the given protocol version.
func AttrOutSize(p Protocol) uintptr {
	switch {
	case p.LT(Protocol{7, 9}):
		return unsafe.Offsetof(AttrOut{}.Attr) + unsafe.Offsetof(AttrOut{}.Attr.Blksize)
	default:
		return unsafe.Sizeof(AttrOut{})
	}
}

type MknodIn struct {
	Mode  uint32
	Rdev  uint32
	Umask uint32
	_     uint32
	// "filename\x00" follows.
}

func MknodInSize(p Protocol) uintptr {
	switch {
	case p.LT(Protocol{7, 12}):
		return unsafe.Offsetof(MknodIn{}.Umask)
	default:
		return unsafe.Sizeof(MknodIn{})
	}
}

type MkdirIn struct {
	Mode  uint32
	Umask uint32
	// "dirname\x00" follows.
}

func MkdirInSize(p Protocol) uintptr {
	switch {
	case p.LT(Protocol{7, 12}):
		// Mode plus padding; the umask field arrived in 7.12.
		return unsafe.Offsetof(MkdirIn{}.Umask) + 4
	default:
		return unsafe.Sizeof(MkdirIn{})
	}
}

type RenameIn struct {
	Newdir uint64
	// "oldname\x00newname\x00" follows.
}

type LinkIn struct {
	Oldnodeid uint64
	// "newname\x00" follows.
}

type SetattrIn struct {
	Valid     uint32
	_         uint32
	Fh        uint64
	Size      uint64
	LockOwner uint64
	Atime     uint64
	Mtime     uint64
	Unused2   uint64
	AtimeNsec uint32
	MtimeNsec uint32
	Unused3   uint32
	Mode      uint32
	Unused4   uint32
	Uid       uint32
	Gid       uint32
	Unused5   uint32
}

type OpenIn struct {
	Flags uint32
	_     uint32
}

type OpenOut struct {
	Fh        uint64
	OpenFlags uint32
	_         uint32
}

type CreateIn struct {
	Flags uint32
	Mode  uint32
	Umask uint32
	_     uint32
	// "filename\x00" follows.
}

func CreateInSize(p Protocol) uintptr {
	switch {
	case p.LT(Protocol{7, 12}):
		return unsafe.Offsetof(CreateIn{}.Umask)
	default:
		return unsafe.Sizeof(CreateIn{})
	}
}

type ReleaseIn struct {
	Fh           uint64
	Flags        uint32
	ReleaseFlags uint32
	LockOwner    uint64
}

type FlushIn struct {
	Fh        uint64
	_         uint32
	_         uint32
	LockOwner uint64
}

type ReadIn struct {
	Fh        uint64
	Offset    uint64
	Size      uint32
	ReadFlags uint32
	LockOwner uint64
	Flags     uint32
	_         uint32
}

func ReadInSize(p Protocol) uintptr {
	switch {
	case p.LT(Protocol{7, 9}):
		return unsafe.Offsetof(ReadIn{}.LockOwner)
	default:
		return unsafe.Sizeof(ReadIn{})
	}
}

type WriteIn struct {
	Fh         uint64
	Offset     uint64
	Size       uint32
	WriteFlags uint32
	LockOwner  uint64
	Flags      uint32
	_          uint32
	// Size bytes of data follow.
}

func WriteInSize(p Protocol) uintptr {
	switch {
	case p.LT(Protocol{7, 9}):
		return unsafe.Offsetof(WriteIn{}.LockOwner)
	default:
		return unsafe.Sizeof(WriteIn{})
	}
}

type WriteOut struct {
	Size uint32
	_    uint32
}

type StatfsOut struct {
	St Kstatfs
}

type FsyncIn struct {
	Fh         uint64
	FsyncFlags uint32
	_          uint32
}

type SetxattrIn struct {
	Size  uint32
	Flags uint32
	// "name\x00" followed by Size bytes of value.
}

type GetxattrIn struct {
	Size uint32
	_    uint32
	// "name\x00" follows.
}

type GetxattrOut struct {
	Size uint32
	_    uint32
}

type FileLock struct {
	Start uint64
	End   uint64
	Type  uint32
	Pid   uint32
}

type LkIn struct {
	Fh    uint64
	Owner uint64
	Lk    FileLock
}

type LkOut struct {
	Lk FileLock
}

type AccessIn struct {
	Mask uint32
	_    uint32
}

type InitIn struct {
	Major        uint32
	Minor        uint32
	MaxReadahead uint32
	Flags        uint32
}

const InitInSize = int(unsafe.Sizeof(InitIn{}))

type InitOut struct {
	Major               uint32
	Minor               uint32
	MaxReadahead        uint32
	Flags               uint32
	MaxBackground       uint16
	CongestionThreshold uint16
	MaxWrite            uint32
}

const InitOutSize = int(unsafe.Sizeof(InitOut{}))

type InterruptIn struct {
	Unique uint64
}

type BmapIn struct {
	Block     uint64
	BlockSize uint32
	_         uint32
}

type BmapOut struct {
	Block uint64
}

// Dirent is the header of one entry in a readdir reply. Each entry is the
// header, then Namelen bytes of name, then padding to a DirentAlignment
// boundary.
type Dirent struct {
	Ino     uint64
	Off     uint64
	Namelen uint32
	Type    uint32
	// Name follows.
}

const (
	DirentSize      = int(unsafe.Sizeof(Dirent{}))
	DirentAlignment = 8
)

// DirentLen returns the wire length of one directory entry with a name of the
// given length, including alignment padding.
func DirentLen(namelen int) int {
	return (DirentSize + namelen + DirentAlignment - 1) &^ (DirentAlignment - 1)
}
