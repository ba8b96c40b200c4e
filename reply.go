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
	"log"
	"syscall"
	"time"
	"unsafe"

	"github.com/jacobsa/timeutil"

	"github.com/asyade/gofuse/internal/buffer"
	"github.com/asyade/gofuse/internal/fusekernel"
)

// ReplySender knows how to put a framed reply on the wire. Implemented by
// Channel; fakes are used in tests.
type ReplySender interface {
	SendReply(msg []byte) error
}

// State shared by all reply builders. A builder may be used from any
// goroutine, but is good for exactly one terminal call: a second terminal
// call panics, since it would corrupt the kernel's correlation of replies
// to requests.
type replyCommon struct {
	unique   uint64
	node     InodeID
	protocol fusekernel.Protocol
	clock    timeutil.Clock

	sender   ReplySender
	provider MessageProvider

	debugLogger *log.Logger
	errorLogger *log.Logger

	sent bool
}

// Answer the request with an error. The error's errno is sent negated in
// the reply header, with non-errno errors degrading to EIO. Passing a nil
// error is a bug and panics.
func (r *replyCommon) Error(err error) {
	m := r.begin()
	r.finish(m, replyErrno(err))
}

func (r *replyCommon) replied() bool {
	return r.sent
}

func (r *replyCommon) begin() *buffer.OutMessage {
	if r.sent {
		panic(fmt.Sprintf("duplicate reply for request %d", r.unique))
	}

	return r.provider.GetOutMessage()
}

func (r *replyCommon) finish(m *buffer.OutMessage, errno syscall.Errno) {
	if r.sent {
		panic(fmt.Sprintf("duplicate reply for request %d", r.unique))
	}
	r.sent = true

	h := m.OutHeader()
	h.Unique = r.unique
	h.Error = -int32(errno)
	h.Len = uint32(m.Len())

	if r.debugLogger != nil {
		r.debugLogger.Printf(
			"Replying to %d: errno %d, %d bytes",
			r.unique,
			errno,
			m.Len())
	}

	err := r.sender.SendReply(m.Bytes())
	r.provider.PutOutMessage(m)

	if err != nil && r.errorLogger != nil {
		r.errorLogger.Printf("SendReply(%d): %v", r.unique, err)
	}
}

func replyErrno(err error) syscall.Errno {
	if err == nil {
		panic("Error called with a nil error")
	}

	return errno(err)
}

////////////////////////////////////////////////////////////////////////
// Builders
////////////////////////////////////////////////////////////////////////

// Answers Lookup, Mknod, Mkdir, Symlink, and Link.
type EntryReply struct {
	replyCommon
}

// Send a child inode entry. The kernel accrues a reference to e.Child,
// dropped by a later Forget.
func (r *EntryReply) Entry(e *ChildInodeEntry) {
	m := r.begin()
	out := (*fusekernel.EntryOut)(m.Grow(fusekernel.EntryOutSize(r.protocol)))
	convertChildInodeEntry(e, r.clock, out)
	r.finish(m, 0)
}

// Answers Getattr and Setattr.
type AttrReply struct {
	replyCommon
}

// Send the inode's attributes, which the kernel may cache until the given
// expiration time. A zero expiration means "don't cache".
func (r *AttrReply) Attr(attrs *InodeAttributes, expiration time.Time) {
	m := r.begin()
	out := (*fusekernel.AttrOut)(m.Grow(fusekernel.AttrOutSize(r.protocol)))
	out.AttrValid, out.AttrValidNsec = convertExpirationTime(expiration, r.clock)
	convertAttributes(r.node, attrs, &out.Attr)
	r.finish(m, 0)
}

// Answers Open and Opendir.
type OpenReply struct {
	replyCommon
}

// Send a freshly issued handle, echoed back by the kernel in subsequent
// requests for this open.
func (r *OpenReply) Opened(handle HandleID) {
	m := r.begin()
	out := (*fusekernel.OpenOut)(m.Grow(unsafe.Sizeof(fusekernel.OpenOut{})))
	out.Fh = uint64(handle)
	r.finish(m, 0)
}

// Answers Read, Readlink, and CanonicalPath.
type DataReply struct {
	replyCommon
}

// Send raw payload bytes. For Read the data may be shorter than requested
// only at end of file; for Readlink and CanonicalPath it is the target
// path without a trailing NUL.
func (r *DataReply) Data(p []byte) {
	m := r.begin()
	m.Append(p)
	r.finish(m, 0)
}

// Convenience wrapper around Data for string payloads.
func (r *DataReply) DataString(s string) {
	m := r.begin()
	m.AppendString(s)
	r.finish(m, 0)
}

// Answers Write.
type WriteReply struct {
	replyCommon
}

// Acknowledge n bytes as written. The kernel treats n < len(op.Data) as an
// error.
func (r *WriteReply) Written(n int) {
	m := r.begin()
	out := (*fusekernel.WriteOut)(m.Grow(unsafe.Sizeof(fusekernel.WriteOut{})))
	out.Size = uint32(n)
	r.finish(m, 0)
}

// Answers Statfs.
type StatfsReply struct {
	replyCommon
}

func (r *StatfsReply) Statfs(s *StatfsAttributes) {
	m := r.begin()
	out := (*fusekernel.StatfsOut)(m.Grow(unsafe.Sizeof(fusekernel.StatfsOut{})))
	out.St.Blocks = s.Blocks
	out.St.Bfree = s.BlocksFree
	out.St.Bavail = s.BlocksAvailable
	out.St.Files = s.Files
	out.St.Ffree = s.FilesFree
	out.St.Bsize = s.BlockSize
	out.St.Frsize = s.FragmentSize
	out.St.Namelen = s.NameLength
	r.finish(m, 0)
}

// Answers Readdir. Unlike the other builders it accumulates state: entries
// are added one at a time until the kernel's size budget is reached, then
// the batch is sent with Ok.
type DirReply struct {
	replyCommon

	m      *buffer.OutMessage
	budget int
	count  int
}

// Attempt to append a directory entry to the reply. Returns false, leaving
// the reply unchanged, when the entry does not fit in the kernel's budget;
// the caller should then stop iterating and call Ok. An entry's Offset must
// be the offset at which iteration resumes after it, typically its index
// plus one.
func (r *DirReply) Add(d Dirent) bool {
	if r.sent {
		panic(fmt.Sprintf("duplicate reply for request %d", r.unique))
	}

	recordLen := fusekernel.DirentLen(len(d.Name))
	if r.m.Len()+recordLen > r.budget {
		return false
	}

	out := (*fusekernel.Dirent)(r.m.GrowNoZero(uintptr(fusekernel.DirentSize)))
	out.Ino = uint64(d.Inode)
	out.Off = uint64(d.Offset)
	out.Namelen = uint32(len(d.Name))
	out.Type = uint32(d.Type)
	r.m.AppendString(d.Name)

	// Pad the name to the required 8-byte alignment.
	if pad := recordLen - fusekernel.DirentSize - len(d.Name); pad > 0 {
		r.m.Grow(uintptr(pad))
	}

	r.count++
	return true
}

// The number of entries accepted so far.
func (r *DirReply) Count() int {
	return r.count
}

// Send the batch. An empty batch tells the kernel it has hit the end of the
// directory.
func (r *DirReply) Ok() {
	r.finish(r.m, 0)
}

// See replyCommon.Error. Overridden to discard any entries added so far.
func (r *DirReply) Error(err error) {
	if r.sent {
		panic(fmt.Sprintf("duplicate reply for request %d", r.unique))
	}

	r.m.ShrinkTo(buffer.OutMessageHeaderSize)
	r.finish(r.m, replyErrno(err))
}

// Answers Getxattr and Listxattr.
type XattrReply struct {
	replyCommon
}

// Send the attribute value, or for Listxattr the NUL-separated name list.
// Use only when the request's Size was non-zero; answer ERANGE when the
// payload exceeds it.
func (r *XattrReply) Value(v []byte) {
	m := r.begin()
	m.Append(v)
	r.finish(m, 0)
}

// Answer a size probe (request Size of zero) with the number of bytes a
// subsequent request must budget for.
func (r *XattrReply) Size(n uint32) {
	m := r.begin()
	out := (*fusekernel.GetxattrOut)(m.Grow(unsafe.Sizeof(fusekernel.GetxattrOut{})))
	out.Size = n
	r.finish(m, 0)
}

// Answers Getlk.
type LockReply struct {
	replyCommon
}

// Send the lock that conflicts with the queried range, or one of type
// syscall.F_UNLCK when the range is free.
func (r *LockReply) Lock(lk *FileLock) {
	m := r.begin()
	out := (*fusekernel.LkOut)(m.Grow(unsafe.Sizeof(fusekernel.LkOut{})))
	out.Lk.Start = lk.Start
	out.Lk.End = lk.End
	out.Lk.Type = lk.Type
	out.Lk.Pid = lk.Pid
	r.finish(m, 0)
}

// Answers Bmap.
type BmapReply struct {
	replyCommon
}

func (r *BmapReply) Block(block uint64) {
	m := r.begin()
	out := (*fusekernel.BmapOut)(m.Grow(unsafe.Sizeof(fusekernel.BmapOut{})))
	out.Block = block
	r.finish(m, 0)
}

// Answers Create.
type CreateReply struct {
	replyCommon
}

// Send both the new child's entry and a handle for the open file.
func (r *CreateReply) Created(e *ChildInodeEntry, handle HandleID) {
	m := r.begin()

	eOut := (*fusekernel.EntryOut)(m.Grow(fusekernel.EntryOutSize(r.protocol)))
	convertChildInodeEntry(e, r.clock, eOut)

	oOut := (*fusekernel.OpenOut)(m.Grow(unsafe.Sizeof(fusekernel.OpenOut{})))
	oOut.Fh = uint64(handle)

	r.finish(m, 0)
}

// Answers operations whose success carries no payload: Unlink, Rmdir,
// Rename, Flush, Release, Fsync, Setxattr, Removexattr, Access, Setlk, and
// friends.
type AckReply struct {
	replyCommon
}

func (r *AckReply) Ok() {
	m := r.begin()
	r.finish(m, 0)
}
