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
	"fmt"
	"os"
	"time"

	"golang.org/x/net/context"

	"github.com/asyade/gofuse/internal/fusekernel"
)

// An interface that must be implemented by file systems to be served with a
// Session. See also the comments on the op and reply structs.
//
// Not all methods need to have interesting implementations. Embed a field of
// type fuseutil.NotImplementedFileSystem to inherit defaults that answer
// ENOSYS to the kernel.
//
// Each method except Init, Destroy, and Forget receives a reply builder and
// must call exactly one terminal method on it before returning. A handler
// that returns without replying is a bug; the dispatcher notices, logs it
// loudly, and forces an EIO reply so the kernel is never left hanging. A
// second terminal call on the same builder panics.
type FileSystem interface {
	// Called once when the kernel opens the session, before any other
	// method. Returning an error vetoes the handshake: the error's errno is
	// sent to the kernel and the session stays un-initialized.
	Init(ctx context.Context, h *RequestHeader) error

	// Called once when the kernel tears the session down. No reply is sent.
	Destroy(ctx context.Context, h *RequestHeader)

	// Look up a name under a parent directory, registering a reference to
	// the child inode on success.
	Lookup(ctx context.Context, h *RequestHeader, op *LookupOp, r *EntryReply)

	// Drop references to an inode previously granted by Lookup, Mknod,
	// Mkdir, Symlink, Link, or Create. The kernel expects no reply.
	Forget(ctx context.Context, h *RequestHeader, op *ForgetOp)

	Getattr(ctx context.Context, h *RequestHeader, op *GetattrOp, r *AttrReply)
	Setattr(ctx context.Context, h *RequestHeader, op *SetattrOp, r *AttrReply)
	Readlink(ctx context.Context, h *RequestHeader, r *DataReply)
	Mknod(ctx context.Context, h *RequestHeader, op *MknodOp, r *EntryReply)
	Mkdir(ctx context.Context, h *RequestHeader, op *MkdirOp, r *EntryReply)
	Unlink(ctx context.Context, h *RequestHeader, op *UnlinkOp, r *AckReply)
	Rmdir(ctx context.Context, h *RequestHeader, op *RmdirOp, r *AckReply)
	Symlink(ctx context.Context, h *RequestHeader, op *SymlinkOp, r *EntryReply)
	Rename(ctx context.Context, h *RequestHeader, op *RenameOp, r *AckReply)
	Link(ctx context.Context, h *RequestHeader, op *LinkOp, r *EntryReply)

	Open(ctx context.Context, h *RequestHeader, op *OpenOp, r *OpenReply)
	Read(ctx context.Context, h *RequestHeader, op *ReadOp, r *DataReply)
	Write(ctx context.Context, h *RequestHeader, op *WriteOp, r *WriteReply)
	Flush(ctx context.Context, h *RequestHeader, op *FlushOp, r *AckReply)
	Release(ctx context.Context, h *RequestHeader, op *ReleaseOp, r *AckReply)
	Fsync(ctx context.Context, h *RequestHeader, op *FsyncOp, r *AckReply)

	Opendir(ctx context.Context, h *RequestHeader, op *OpendirOp, r *OpenReply)
	Readdir(ctx context.Context, h *RequestHeader, op *ReaddirOp, r *DirReply)
	Releasedir(ctx context.Context, h *RequestHeader, op *ReleasedirOp, r *AckReply)
	Fsyncdir(ctx context.Context, h *RequestHeader, op *FsyncdirOp, r *AckReply)

	Statfs(ctx context.Context, h *RequestHeader, r *StatfsReply)

	Setxattr(ctx context.Context, h *RequestHeader, op *SetxattrOp, r *AckReply)
	Getxattr(ctx context.Context, h *RequestHeader, op *GetxattrOp, r *XattrReply)
	Listxattr(ctx context.Context, h *RequestHeader, op *ListxattrOp, r *XattrReply)
	Removexattr(ctx context.Context, h *RequestHeader, op *RemovexattrOp, r *AckReply)

	Access(ctx context.Context, h *RequestHeader, op *AccessOp, r *AckReply)
	Create(ctx context.Context, h *RequestHeader, op *CreateOp, r *CreateReply)

	Getlk(ctx context.Context, h *RequestHeader, op *GetlkOp, r *LockReply)
	Setlk(ctx context.Context, h *RequestHeader, op *SetlkOp, r *AckReply)

	Bmap(ctx context.Context, h *RequestHeader, op *BmapOp, r *BmapReply)

	// Android-specific: return the canonical path of the mounted file
	// system for a given inode, as a NUL-free string via r.Data.
	CanonicalPath(ctx context.Context, h *RequestHeader, r *DataReply)
}

////////////////////////////////////////////////////////////////////////
// Simple types
////////////////////////////////////////////////////////////////////////

// A 64-bit number used to uniquely identify an inode within a mounted file
// system.
//
// InodeIDs are set by the file system in reply to Lookup and friends, and are
// then echoed back by the kernel in the header of further requests
// concerning the same inode.
type InodeID uint64

// A distinguished inode ID that identifies the root of the file system, e.g.
// in a request to open the root directory.
const RootInodeID InodeID = InodeID(fusekernel.RootID)

// A generation number for an inode, allowing inode IDs to be reused after an
// inode is forgotten. File systems that never reuse IDs may leave this zero.
type GenerationNumber uint64

// An opaque 64-bit number chosen by the file system to identify an open file
// or directory handle, echoed back by the kernel in read, write, flush,
// release, and friends.
type HandleID uint64

// An offset into an open directory, in the sense used by Readdir. Zero means
// the beginning of the directory; other values are those previously assigned
// to dirents via Dirent.Offset.
type DirOffset uint64

// Information about a request's origin, decoded from the kernel header.
type RequestHeader struct {
	// A correlation ID for the request, echoed in the reply.
	Unique uint64

	// The inode the request concerns, when meaningful for the opcode.
	Node InodeID

	// Credentials of the process that triggered the request.
	Uid uint32
	Gid uint32
	Pid uint32
}

// Attributes for a file or directory inode, corresponding to struct inode
// (cf. http://goo.gl/tvYyQt).
type InodeAttributes struct {
	Size uint64

	// The number of 512-byte blocks allocated to the file, as reported in
	// the st_blocks field of stat(2).
	Blocks uint64

	// The number of incoming hard links to this inode.
	Nlink uint32

	// The mode of the inode. This is exposed to the user in e.g. the result
	// of fstat(2).
	Mode os.FileMode

	// Time information. See `man 2 stat` for full details.
	Atime  time.Time // Time of last access
	Mtime  time.Time // Time of last modification
	Ctime  time.Time // Time of last modification to inode
	Crtime time.Time // Time of creation (OS X only)

	// Ownership information.
	Uid uint32
	Gid uint32

	// The device number, for character and block device nodes created via
	// Mknod.
	Rdev uint32

	// BSD-style file flags. The Linux wire format has no room for these,
	// so they are dropped there.
	Flags uint32

	// Preferred block size for I/O, in bytes. Zero means kernel default.
	BlockSize uint32
}

func (a *InodeAttributes) DebugString() string {
	return fmt.Sprintf(
		"%d %d %v %d %d",
		a.Size,
		a.Nlink,
		a.Mode,
		a.Uid,
		a.Gid)
}

// Information about a child inode within its parent directory, handed to the
// kernel in reply to Lookup, Mknod, Mkdir, Symlink, Link, and Create.
type ChildInodeEntry struct {
	// The ID of the child inode. The file system must accrue a reference,
	// to be dropped by a later Forget.
	Child      InodeID
	Generation GenerationNumber

	Attributes InodeAttributes

	// The time until which the kernel may maintain the attributes above
	// without re-querying. Zero means "don't cache".
	AttributesExpiration time.Time

	// The time until which the kernel may maintain the name to inode
	// mapping without re-asking. Zero means "don't cache".
	EntryExpiration time.Time
}

// File system statistics delivered in reply to Statfs, corresponding to
// struct statvfs.
type StatfsAttributes struct {
	// Total and available data blocks, in units of FragmentSize.
	Blocks          uint64
	BlocksFree      uint64
	BlocksAvailable uint64

	// Total and free inodes.
	Files     uint64
	FilesFree uint64

	// The preferred I/O transfer size and the fundamental block size. Most
	// file systems set them equal.
	BlockSize    uint32
	FragmentSize uint32

	// Maximum file name length.
	NameLength uint32
}

// A POSIX advisory record lock, as used by Getlk and Setlk.
type FileLock struct {
	// The byte range covered by the lock. End is inclusive, with
	// math.MaxUint64 meaning "to end of file".
	Start uint64
	End   uint64

	// One of syscall.F_RDLCK, syscall.F_WRLCK, or syscall.F_UNLCK.
	Type uint32

	// The PID of the process holding the lock, set in Getlk replies.
	Pid uint32
}
