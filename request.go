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
	"bytes"
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/asyade/gofuse/internal/buffer"
	"github.com/asyade/gofuse/internal/fusekernel"
)

// A decoded kernel request: the common header plus a pointer to one of the
// *Op payload structs, to be switched on by type.
type Request struct {
	Header RequestHeader
	Op     interface{}
}

// Returned wrapped in a DecodeError for opcodes this package does not
// understand. The session answers such requests with ENOSYS rather than
// EIO, so newer kernels degrade gracefully.
var errUnknownOpcode = errors.New("unknown opcode")

// Interpret the raw bytes of an incoming message as a request, in light of
// the protocol version negotiated earlier. The InMessage's header must
// already have been validated by the channel.
//
// The returned request aliases the message's storage, and is valid only
// until the message is reused.
func convertInMessage(
	m *buffer.InMessage,
	protocol fusekernel.Protocol) (*Request, error) {
	h := m.Header()

	// The kernel writes exactly one request per read, and the length field
	// must agree with what we were given.
	if h.Len != uint32(m.Len()) {
		return nil, &DecodeError{
			Unique:  h.Unique,
			Wrapped: fmt.Errorf("header says %d bytes, read %d", h.Len, m.Len()),
		}
	}

	r := &Request{
		Header: RequestHeader{
			Unique: h.Unique,
			Node:   InodeID(h.Nodeid),
			Uid:    h.Uid,
			Gid:    h.Gid,
			Pid:    h.Pid,
		},
	}

	op, err := convertBody(m, h.Opcode, protocol)
	if err != nil {
		return nil, &DecodeError{Unique: h.Unique, Wrapped: err}
	}

	r.Op = op
	return r, nil
}

func convertBody(
	m *buffer.InMessage,
	opcode uint32,
	protocol fusekernel.Protocol) (interface{}, error) {
	switch opcode {
	case fusekernel.OpLookup:
		name, err := consumeName(m)
		if err != nil {
			return nil, err
		}
		return &LookupOp{Name: name}, nil

	case fusekernel.OpForget:
		in := (*fusekernel.ForgetIn)(m.Consume(unsafe.Sizeof(fusekernel.ForgetIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &ForgetOp{N: in.Nlookup}, nil

	case fusekernel.OpGetattr:
		op := &GetattrOp{}
		if protocol.GE(fusekernel.Protocol{Major: 7, Minor: 9}) {
			in := (*fusekernel.GetattrIn)(m.Consume(unsafe.Sizeof(fusekernel.GetattrIn{})))
			if in == nil {
				return nil, errTruncated(opcode)
			}
			if fusekernel.GetattrFlags(in.GetattrFlags)&fusekernel.GetattrFh != 0 {
				h := HandleID(in.Fh)
				op.Handle = &h
			}
		}
		return op, nil

	case fusekernel.OpSetattr:
		in := (*fusekernel.SetattrIn)(m.Consume(unsafe.Sizeof(fusekernel.SetattrIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}

		op := &SetattrOp{}
		valid := fusekernel.SetattrValid(in.Valid)
		if valid.Handle() {
			h := HandleID(in.Fh)
			op.Handle = &h
		}
		if valid.Size() {
			op.Size = &in.Size
		}
		if valid.Mode() {
			mode := convertFileMode(in.Mode)
			op.Mode = &mode
		}
		if valid.Uid() {
			op.Uid = &in.Uid
		}
		if valid.Gid() {
			op.Gid = &in.Gid
		}
		if valid.Atime() {
			t := convertInTime(in.Atime, in.AtimeNsec)
			op.Atime = &t
		}
		if valid.Mtime() {
			t := convertInTime(in.Mtime, in.MtimeNsec)
			op.Mtime = &t
		}
		op.AtimeNow = valid.AtimeNow()
		op.MtimeNow = valid.MtimeNow()
		return op, nil

	case fusekernel.OpReadlink:
		return &ReadlinkOp{}, nil

	case fusekernel.OpSymlink:
		// The payload is two NUL-terminated strings: the name to create,
		// then the target.
		buf := m.ConsumeBytes(uintptr(m.RemainingLen()))
		i := bytes.IndexByte(buf, 0)
		if i < 0 || i >= len(buf)-1 || buf[len(buf)-1] != 0 {
			return nil, fmt.Errorf("opcode %d: malformed string pair", opcode)
		}
		return &SymlinkOp{
			Name:   string(buf[:i]),
			Target: string(buf[i+1 : len(buf)-1]),
		}, nil

	case fusekernel.OpMknod:
		in := (*fusekernel.MknodIn)(m.Consume(fusekernel.MknodInSize(protocol)))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		name, err := consumeName(m)
		if err != nil {
			return nil, err
		}
		return &MknodOp{
			Name: name,
			Mode: convertFileMode(in.Mode),
			Rdev: in.Rdev,
		}, nil

	case fusekernel.OpMkdir:
		in := (*fusekernel.MkdirIn)(m.Consume(fusekernel.MkdirInSize(protocol)))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		name, err := consumeName(m)
		if err != nil {
			return nil, err
		}
		return &MkdirOp{
			Name: name,
			// The kernel passes the permission bits only; the directory
			// bit is implied by the opcode.
			Mode: convertFileMode(in.Mode) | os.ModeDir,
		}, nil

	case fusekernel.OpUnlink:
		name, err := consumeName(m)
		if err != nil {
			return nil, err
		}
		return &UnlinkOp{Name: name}, nil

	case fusekernel.OpRmdir:
		name, err := consumeName(m)
		if err != nil {
			return nil, err
		}
		return &RmdirOp{Name: name}, nil

	case fusekernel.OpRename:
		in := (*fusekernel.RenameIn)(m.Consume(unsafe.Sizeof(fusekernel.RenameIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		buf := m.ConsumeBytes(uintptr(m.RemainingLen()))
		i := bytes.IndexByte(buf, 0)
		if i < 0 || i >= len(buf)-1 || buf[len(buf)-1] != 0 {
			return nil, fmt.Errorf("opcode %d: malformed string pair", opcode)
		}
		return &RenameOp{
			OldName:   string(buf[:i]),
			NewParent: InodeID(in.Newdir),
			NewName:   string(buf[i+1 : len(buf)-1]),
		}, nil

	case fusekernel.OpLink:
		in := (*fusekernel.LinkIn)(m.Consume(unsafe.Sizeof(fusekernel.LinkIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		name, err := consumeName(m)
		if err != nil {
			return nil, err
		}
		return &LinkOp{
			Name:   name,
			Target: InodeID(in.Oldnodeid),
		}, nil

	case fusekernel.OpOpen:
		in := (*fusekernel.OpenIn)(m.Consume(unsafe.Sizeof(fusekernel.OpenIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &OpenOp{Flags: in.Flags}, nil

	case fusekernel.OpRead:
		in := (*fusekernel.ReadIn)(m.Consume(fusekernel.ReadInSize(protocol)))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &ReadOp{
			Handle: HandleID(in.Fh),
			Offset: int64(in.Offset),
			Size:   int(in.Size),
		}, nil

	case fusekernel.OpWrite:
		in := (*fusekernel.WriteIn)(m.Consume(fusekernel.WriteInSize(protocol)))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		data := m.ConsumeBytes(uintptr(in.Size))
		if len(data) < int(in.Size) {
			return nil, fmt.Errorf("opcode %d: %d payload bytes for a %d-byte write", opcode, len(data), in.Size)
		}
		return &WriteOp{
			Handle: HandleID(in.Fh),
			Offset: int64(in.Offset),
			Data:   data,
		}, nil

	case fusekernel.OpStatfs:
		return &StatfsOp{}, nil

	case fusekernel.OpRelease:
		in := (*fusekernel.ReleaseIn)(m.Consume(unsafe.Sizeof(fusekernel.ReleaseIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &ReleaseOp{
			Handle: HandleID(in.Fh),
			Flags:  in.Flags,
		}, nil

	case fusekernel.OpFsync:
		in := (*fusekernel.FsyncIn)(m.Consume(unsafe.Sizeof(fusekernel.FsyncIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &FsyncOp{
			Handle:   HandleID(in.Fh),
			DataOnly: in.FsyncFlags&1 != 0,
		}, nil

	case fusekernel.OpSetxattr:
		in := (*fusekernel.SetxattrIn)(m.Consume(unsafe.Sizeof(fusekernel.SetxattrIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		payload := m.ConsumeBytes(uintptr(m.RemainingLen()))
		i := bytes.IndexByte(payload, 0)
		if i < 0 || len(payload)-(i+1) != int(in.Size) {
			return nil, fmt.Errorf("opcode %d: malformed name/value payload", opcode)
		}
		return &SetxattrOp{
			Name:  string(payload[:i]),
			Value: payload[i+1:],
			Flags: in.Flags,
		}, nil

	case fusekernel.OpGetxattr:
		in := (*fusekernel.GetxattrIn)(m.Consume(unsafe.Sizeof(fusekernel.GetxattrIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		name, err := consumeName(m)
		if err != nil {
			return nil, err
		}
		return &GetxattrOp{
			Name: name,
			Size: in.Size,
		}, nil

	case fusekernel.OpListxattr:
		in := (*fusekernel.GetxattrIn)(m.Consume(unsafe.Sizeof(fusekernel.GetxattrIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &ListxattrOp{Size: in.Size}, nil

	case fusekernel.OpRemovexattr:
		name, err := consumeName(m)
		if err != nil {
			return nil, err
		}
		return &RemovexattrOp{Name: name}, nil

	case fusekernel.OpFlush:
		in := (*fusekernel.FlushIn)(m.Consume(unsafe.Sizeof(fusekernel.FlushIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &FlushOp{Handle: HandleID(in.Fh)}, nil

	case fusekernel.OpInit:
		in := (*fusekernel.InitIn)(m.Consume(unsafe.Sizeof(fusekernel.InitIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &InitOp{
			Major:        in.Major,
			Minor:        in.Minor,
			MaxReadahead: in.MaxReadahead,
			Flags:        in.Flags,
		}, nil

	case fusekernel.OpOpendir:
		in := (*fusekernel.OpenIn)(m.Consume(unsafe.Sizeof(fusekernel.OpenIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &OpendirOp{Flags: in.Flags}, nil

	case fusekernel.OpReaddir:
		in := (*fusekernel.ReadIn)(m.Consume(fusekernel.ReadInSize(protocol)))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &ReaddirOp{
			Handle: HandleID(in.Fh),
			Offset: DirOffset(in.Offset),
			Size:   int(in.Size),
		}, nil

	case fusekernel.OpReleasedir:
		in := (*fusekernel.ReleaseIn)(m.Consume(unsafe.Sizeof(fusekernel.ReleaseIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &ReleasedirOp{Handle: HandleID(in.Fh)}, nil

	case fusekernel.OpFsyncdir:
		in := (*fusekernel.FsyncIn)(m.Consume(unsafe.Sizeof(fusekernel.FsyncIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &FsyncdirOp{
			Handle:   HandleID(in.Fh),
			DataOnly: in.FsyncFlags&1 != 0,
		}, nil

	case fusekernel.OpGetlk:
		in := (*fusekernel.LkIn)(m.Consume(unsafe.Sizeof(fusekernel.LkIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &GetlkOp{
			Handle: HandleID(in.Fh),
			Owner:  in.Owner,
			Lock:   convertFileLock(&in.Lk),
		}, nil

	case fusekernel.OpSetlk, fusekernel.OpSetlkw:
		in := (*fusekernel.LkIn)(m.Consume(unsafe.Sizeof(fusekernel.LkIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &SetlkOp{
			Handle: HandleID(in.Fh),
			Owner:  in.Owner,
			Lock:   convertFileLock(&in.Lk),
			Sleep:  opcode == fusekernel.OpSetlkw,
		}, nil

	case fusekernel.OpAccess:
		in := (*fusekernel.AccessIn)(m.Consume(unsafe.Sizeof(fusekernel.AccessIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &AccessOp{Mask: in.Mask}, nil

	case fusekernel.OpCreate:
		in := (*fusekernel.CreateIn)(m.Consume(fusekernel.CreateInSize(protocol)))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		name, err := consumeName(m)
		if err != nil {
			return nil, err
		}
		return &CreateOp{
			Name:  name,
			Mode:  convertFileMode(in.Mode),
			Flags: in.Flags,
		}, nil

	case fusekernel.OpInterrupt:
		in := (*fusekernel.InterruptIn)(m.Consume(unsafe.Sizeof(fusekernel.InterruptIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &InterruptOp{Target: in.Unique}, nil

	case fusekernel.OpBmap:
		in := (*fusekernel.BmapIn)(m.Consume(unsafe.Sizeof(fusekernel.BmapIn{})))
		if in == nil {
			return nil, errTruncated(opcode)
		}
		return &BmapOp{
			BlockSize: in.BlockSize,
			Block:     in.Block,
		}, nil

	case fusekernel.OpDestroy:
		return &DestroyOp{}, nil

	case fusekernel.OpCanonicalPath:
		return &CanonicalPathOp{}, nil

	default:
		return nil, fmt.Errorf("%w: %d", errUnknownOpcode, opcode)
	}
}

// Consume the rest of the message as a single NUL-terminated string.
func consumeName(m *buffer.InMessage) (string, error) {
	buf := m.ConsumeBytes(uintptr(m.RemainingLen()))
	n := len(buf)
	if n == 0 || buf[n-1] != 0 {
		return "", errors.New("string payload missing NUL terminator")
	}
	return string(buf[:n-1]), nil
}

func convertFileLock(in *fusekernel.FileLock) FileLock {
	return FileLock{
		Start: in.Start,
		End:   in.End,
		Type:  in.Type,
		Pid:   in.Pid,
	}
}

func errTruncated(opcode uint32) error {
	return fmt.Errorf("opcode %d: payload truncated", opcode)
}
