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

package fuseutil

import (
	"golang.org/x/net/context"

	"github.com/asyade/gofuse"
)

// Embed this within your file system type to inherit default
// implementations that answer fuse.ENOSYS for every method, accept the
// handshake, and ignore teardown.
type NotImplementedFileSystem struct {
}

var _ fuse.FileSystem = &NotImplementedFileSystem{}

func (fs *NotImplementedFileSystem) Init(
	ctx context.Context,
	h *fuse.RequestHeader) error {
	return nil
}

func (fs *NotImplementedFileSystem) Destroy(
	ctx context.Context,
	h *fuse.RequestHeader) {
}

func (fs *NotImplementedFileSystem) Lookup(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.LookupOp,
	r *fuse.EntryReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Forget(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.ForgetOp) {
}

func (fs *NotImplementedFileSystem) Getattr(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.GetattrOp,
	r *fuse.AttrReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Setattr(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.SetattrOp,
	r *fuse.AttrReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Readlink(
	ctx context.Context,
	h *fuse.RequestHeader,
	r *fuse.DataReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Mknod(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.MknodOp,
	r *fuse.EntryReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Mkdir(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.MkdirOp,
	r *fuse.EntryReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Unlink(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.UnlinkOp,
	r *fuse.AckReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Rmdir(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.RmdirOp,
	r *fuse.AckReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Symlink(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.SymlinkOp,
	r *fuse.EntryReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Rename(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.RenameOp,
	r *fuse.AckReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Link(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.LinkOp,
	r *fuse.EntryReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Open(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.OpenOp,
	r *fuse.OpenReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Read(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.ReadOp,
	r *fuse.DataReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Write(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.WriteOp,
	r *fuse.WriteReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Flush(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.FlushOp,
	r *fuse.AckReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Release(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.ReleaseOp,
	r *fuse.AckReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Fsync(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.FsyncOp,
	r *fuse.AckReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Opendir(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.OpendirOp,
	r *fuse.OpenReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Readdir(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.ReaddirOp,
	r *fuse.DirReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Releasedir(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.ReleasedirOp,
	r *fuse.AckReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Fsyncdir(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.FsyncdirOp,
	r *fuse.AckReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Statfs(
	ctx context.Context,
	h *fuse.RequestHeader,
	r *fuse.StatfsReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Setxattr(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.SetxattrOp,
	r *fuse.AckReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Getxattr(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.GetxattrOp,
	r *fuse.XattrReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Listxattr(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.ListxattrOp,
	r *fuse.XattrReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Removexattr(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.RemovexattrOp,
	r *fuse.AckReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Access(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.AccessOp,
	r *fuse.AckReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Create(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.CreateOp,
	r *fuse.CreateReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Getlk(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.GetlkOp,
	r *fuse.LockReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Setlk(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.SetlkOp,
	r *fuse.AckReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) Bmap(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.BmapOp,
	r *fuse.BmapReply) {
	r.Error(fuse.ENOSYS)
}

func (fs *NotImplementedFileSystem) CanonicalPath(
	ctx context.Context,
	h *fuse.RequestHeader,
	r *fuse.DataReply) {
	r.Error(fuse.ENOSYS)
}
