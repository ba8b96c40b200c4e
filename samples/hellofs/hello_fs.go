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

package hellofs

import (
	"io"
	"os"
	"strings"

	"github.com/jacobsa/timeutil"
	"golang.org/x/net/context"

	"github.com/asyade/gofuse"
	"github.com/asyade/gofuse/fuseutil"
)

// A file system with a fixed structure that looks like this:
//
//     hello
//     dir/
//         world
//
// Each file contains the string "Hello, world!".
type HelloFS struct {
	fuseutil.NotImplementedFileSystem
	Clock timeutil.Clock
}

var _ fuse.FileSystem = &HelloFS{}

const (
	rootInode fuse.InodeID = fuse.RootInodeID + iota
	helloInode
	dirInode
	worldInode
)

type inodeInfo struct {
	attributes fuse.InodeAttributes

	// File or directory?
	dir bool

	// For directories, children.
	children []fuse.Dirent
}

// We have a fixed directory structure.
var gInodeInfo = map[fuse.InodeID]inodeInfo{
	// root
	rootInode: inodeInfo{
		attributes: fuse.InodeAttributes{
			Nlink: 1,
			Mode:  0555 | os.ModeDir,
		},
		dir: true,
		children: []fuse.Dirent{
			fuse.Dirent{
				Offset: 1,
				Inode:  helloInode,
				Name:   "hello",
				Type:   fuse.DT_File,
			},
			fuse.Dirent{
				Offset: 2,
				Inode:  dirInode,
				Name:   "dir",
				Type:   fuse.DT_Directory,
			},
		},
	},

	// hello
	helloInode: inodeInfo{
		attributes: fuse.InodeAttributes{
			Nlink: 1,
			Mode:  0444,
			Size:  uint64(len("Hello, world!")),
		},
	},

	// dir
	dirInode: inodeInfo{
		attributes: fuse.InodeAttributes{
			Nlink: 1,
			Mode:  0555 | os.ModeDir,
		},
		dir: true,
		children: []fuse.Dirent{
			fuse.Dirent{
				Offset: 1,
				Inode:  worldInode,
				Name:   "world",
				Type:   fuse.DT_File,
			},
		},
	},

	// world
	worldInode: inodeInfo{
		attributes: fuse.InodeAttributes{
			Nlink: 1,
			Mode:  0444,
			Size:  uint64(len("Hello, world!")),
		},
	},
}

func findChildInode(
	name string,
	children []fuse.Dirent) (fuse.InodeID, error) {
	for _, e := range children {
		if e.Name == name {
			return e.Inode, nil
		}
	}

	return 0, fuse.ENOENT
}

func (fs *HelloFS) patchAttributes(attr *fuse.InodeAttributes) {
	now := fs.Clock.Now()
	attr.Atime = now
	attr.Mtime = now
	attr.Crtime = now
}

func (fs *HelloFS) Lookup(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.LookupOp,
	r *fuse.EntryReply) {
	// Find the info for the parent.
	parentInfo, ok := gInodeInfo[h.Node]
	if !ok {
		r.Error(fuse.ENOENT)
		return
	}

	// Find the child within the parent.
	childInode, err := findChildInode(op.Name, parentInfo.children)
	if err != nil {
		r.Error(err)
		return
	}

	entry := fuse.ChildInodeEntry{
		Child:      childInode,
		Attributes: gInodeInfo[childInode].attributes,
	}
	fs.patchAttributes(&entry.Attributes)

	r.Entry(&entry)
}

func (fs *HelloFS) Getattr(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.GetattrOp,
	r *fuse.AttrReply) {
	// Find the info for this inode.
	info, ok := gInodeInfo[h.Node]
	if !ok {
		r.Error(fuse.ENOENT)
		return
	}

	attrs := info.attributes
	fs.patchAttributes(&attrs)

	r.Attr(&attrs, fs.Clock.Now())
}

func (fs *HelloFS) Opendir(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.OpendirOp,
	r *fuse.OpenReply) {
	// Allow opening any directory.
	r.Opened(0)
}

func (fs *HelloFS) Readdir(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.ReaddirOp,
	r *fuse.DirReply) {
	// Find the info for this inode.
	info, ok := gInodeInfo[h.Node]
	if !ok {
		r.Error(fuse.ENOENT)
		return
	}

	if !info.dir {
		r.Error(fuse.ENOTDIR)
		return
	}

	entries := info.children

	// Resume at the specified offset into the array.
	if op.Offset > fuse.DirOffset(len(entries)) {
		r.Error(fuse.EINVAL)
		return
	}

	for _, e := range entries[op.Offset:] {
		if !r.Add(e) {
			break
		}
	}

	r.Ok()
}

func (fs *HelloFS) Open(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.OpenOp,
	r *fuse.OpenReply) {
	// Allow opening any file.
	r.Opened(0)
}

func (fs *HelloFS) Read(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.ReadOp,
	r *fuse.DataReply) {
	// Let io.ReaderAt deal with the semantics.
	reader := strings.NewReader("Hello, world!")

	data := make([]byte, op.Size)
	n, err := reader.ReadAt(data, op.Offset)

	// Special case: FUSE doesn't expect us to return io.EOF.
	if err != nil && err != io.EOF {
		r.Error(err)
		return
	}

	r.Data(data[:n])
}

func (fs *HelloFS) Releasedir(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.ReleasedirOp,
	r *fuse.AckReply) {
	r.Ok()
}

func (fs *HelloFS) Release(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.ReleaseOp,
	r *fuse.AckReply) {
	r.Ok()
}
