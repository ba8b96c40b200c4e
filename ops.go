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

package fuse

import (
	"os"
	"time"
)

// Payload structs decoded from kernel requests, one per opcode. The header
// fields common to all requests live in RequestHeader; each struct below
// carries only what is specific to its operation.

////////////////////////////////////////////////////////////////////////
// Inodes
////////////////////////////////////////////////////////////////////////

// Look up a child by name within a parent directory. The header's Node field
// identifies the parent.
type LookupOp struct {
	// The name of the child of interest. The file system should respond
	// with a ChildInodeEntry on success, or ENOENT when the name does not
	// exist.
	Name string
}

// Decrement the kernel's reference count for an inode. The count is
// incremented by each reply carrying a ChildInodeEntry for the inode. When
// it hits zero the file system may forget the inode entirely.
type ForgetOp struct {
	// The amount to decrement the reference count by.
	N uint64
}

// Refresh the attributes for the inode named by the header.
type GetattrOp struct {
	// When non-nil, the request was made through an open handle and the
	// file system may use per-handle state to answer.
	Handle *HandleID
}

// Change attributes for the inode named by the header, e.g. as a result of
// chmod(2) or truncate(2). Only non-nil fields are to be changed.
type SetattrOp struct {
	Handle *HandleID

	Size *uint64
	Mode *os.FileMode
	Uid  *uint32
	Gid  *uint32

	Atime *time.Time
	Mtime *time.Time

	// When set, the respective *time field is nil and the file system
	// should stamp in its own notion of the current time, as for utimes(2)
	// with UTIME_NOW.
	AtimeNow bool
	MtimeNow bool
}

////////////////////////////////////////////////////////////////////////
// Directory tree manipulation
////////////////////////////////////////////////////////////////////////

// Create a file, device, or FIFO inode within the parent directory named by
// the header.
type MknodOp struct {
	Name string
	Mode os.FileMode

	// The device number, meaningful only for character and block devices.
	Rdev uint32
}

// Create a directory inode within the parent named by the header.
type MkdirOp struct {
	Name string
	Mode os.FileMode
}

// Unlink a file or special file from the parent directory named by the
// header. Answer ENOENT when the name does not exist.
type UnlinkOp struct {
	Name string
}

// Remove an empty directory from the parent named by the header. Answer
// ENOTEMPTY when the directory still has children.
type RmdirOp struct {
	Name string
}

// Create a symlink within the parent directory named by the header.
type SymlinkOp struct {
	// The name of the symlink to create, and what it should point to.
	Name   string
	Target string
}

// Move an entry from one parent directory to another, atomically replacing
// any existing entry at the destination.
type RenameOp struct {
	// The name within the old parent, which is the header's Node.
	OldName string

	// The new parent directory and the name within it.
	NewParent InodeID
	NewName   string
}

// Create a hard link to an existing inode within the parent directory named
// by the header.
type LinkOp struct {
	Name   string
	Target InodeID
}

////////////////////////////////////////////////////////////////////////
// File handles
////////////////////////////////////////////////////////////////////////

// Open the file inode named by the header. On success the file system
// chooses an opaque handle echoed back in subsequent ReadOp, WriteOp,
// FlushOp, and ReleaseOp requests for this open.
type OpenOp struct {
	// The open(2) flags the user supplied, e.g. os.O_RDWR.
	Flags uint32
}

// Read data from a file previously opened with Open or Create.
type ReadOp struct {
	Handle HandleID
	Offset int64

	// The number of bytes requested. The reply may be shorter only at end
	// of file.
	Size int
}

// Write data to a file at a particular offset.
type WriteOp struct {
	Handle HandleID
	Offset int64

	// The data to write. The file system must reply with the number of
	// bytes processed; anything short of len(Data) is treated as an error
	// by the kernel.
	Data []byte
}

// Flush the current state of an open file to storage upon close(2). Called
// once per descriptor, so possibly multiple times per handle when the
// descriptor was duplicated.
type FlushOp struct {
	Handle HandleID
}

// Release a file handle previously issued by Open or Create, when all
// descriptors referring to it have been closed. Errors are ignored by the
// kernel.
type ReleaseOp struct {
	Handle HandleID
	Flags  uint32
}

// Flush a file's contents (and, unless DataOnly, its metadata) to storage,
// as in fsync(2) and fdatasync(2).
type FsyncOp struct {
	Handle   HandleID
	DataOnly bool
}

////////////////////////////////////////////////////////////////////////
// Directory handles
////////////////////////////////////////////////////////////////////////

// Open the directory inode named by the header, issuing a handle used by
// subsequent ReaddirOp and ReleasedirOp requests.
type OpendirOp struct {
	Flags uint32
}

// Read entries from a directory previously opened with Opendir. Entries are
// accumulated into the reply until the kernel's size budget is exhausted.
type ReaddirOp struct {
	Handle HandleID

	// The offset to start at, either zero or the Offset field of a
	// previously returned Dirent.
	Offset DirOffset

	// The maximum number of payload bytes the kernel will accept.
	Size int
}

// Release a directory handle. Errors are ignored by the kernel.
type ReleasedirOp struct {
	Handle HandleID
}

// Flush a directory's contents to storage.
type FsyncdirOp struct {
	Handle   HandleID
	DataOnly bool
}

////////////////////////////////////////////////////////////////////////
// Combined create
////////////////////////////////////////////////////////////////////////

// Atomically create and open a file within the parent directory named by
// the header, as for open(2) with O_CREAT. The reply carries both a
// ChildInodeEntry and a fresh handle.
type CreateOp struct {
	Name  string
	Mode  os.FileMode
	Flags uint32
}

////////////////////////////////////////////////////////////////////////
// Extended attributes
////////////////////////////////////////////////////////////////////////

// Set an extended attribute on the inode named by the header.
type SetxattrOp struct {
	Name  string
	Value []byte

	// Creation constraints: syscall.XATTR_CREATE, syscall.XATTR_REPLACE,
	// or zero.
	Flags uint32
}

// Read an extended attribute from the inode named by the header. When Size
// is zero the kernel is probing for the value's length and the file system
// must answer with r.Size rather than r.Value. When Size is too small for
// the value, answer ERANGE.
type GetxattrOp struct {
	Name string
	Size uint32
}

// List the extended attribute names on the inode named by the header, as a
// sequence of NUL-terminated strings. The same size-probing protocol as
// GetxattrOp applies.
type ListxattrOp struct {
	Size uint32
}

// Remove an extended attribute from the inode named by the header.
type RemovexattrOp struct {
	Name string
}

////////////////////////////////////////////////////////////////////////
// Miscellaneous
////////////////////////////////////////////////////////////////////////

// Check access permissions on the inode named by the header, as for
// access(2). Sent only when the kernel does not have default_permissions
// enabled.
type AccessOp struct {
	// The permission mask to test, a subset of R_OK|W_OK|X_OK.
	Mask uint32
}

// Test for the presence of a POSIX record lock conflicting with the given
// one. The reply carries the conflicting lock, or one of type F_UNLCK when
// the range is free.
type GetlkOp struct {
	Handle HandleID
	Owner  uint64
	Lock   FileLock
}

// Acquire, modify, or release a POSIX record lock. When Sleep is set the
// file system should block until the lock can be granted rather than
// answering EAGAIN.
type SetlkOp struct {
	Handle HandleID
	Owner  uint64
	Lock   FileLock
	Sleep  bool
}

// Read the target of the symlink inode named by the header. Carries no
// payload; the handler is FileSystem.Readlink.
type ReadlinkOp struct {
}

// Fetch file system statistics. Carries no payload; the handler is
// FileSystem.Statfs.
type StatfsOp struct {
}

// Fetch the canonical path for the inode named by the header. Carries no
// payload; the handler is FileSystem.CanonicalPath.
type CanonicalPathOp struct {
}

// Map a block index within a file to a device block number, for file
// systems backed by block devices.
type BmapOp struct {
	BlockSize uint32
	Block     uint64
}

// The protocol handshake, decoded from the kernel's first request. Consumed
// by the session itself; file systems observe it only through
// FileSystem.Init.
type InitOp struct {
	// The kernel's protocol version.
	Major uint32
	Minor uint32

	MaxReadahead uint32
	Flags        uint32
}

// Session teardown, decoded from the kernel's final request. Consumed by
// the session itself; file systems observe it through FileSystem.Destroy.
type DestroyOp struct {
}

// A request to interrupt an earlier request, identified by its correlation
// ID. Answered with ENOSYS so the kernel stops sending them.
type InterruptOp struct {
	// The Unique value of the request to interrupt.
	Target uint64
}
