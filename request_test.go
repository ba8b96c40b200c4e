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
	"os"
	"syscall"
	"testing"
	"time"
	"unsafe"

	"github.com/kylelemons/godebug/pretty"

	"github.com/asyade/gofuse/internal/buffer"
	"github.com/asyade/gofuse/internal/fusekernel"
)

var latestProtocol = fusekernel.Protocol{
	Major: fusekernel.ProtoVersionMaxMajor,
	Minor: fusekernel.ProtoVersionMaxMinor,
}

// Build the raw bytes of a request as the kernel would write them.
func rawRequest(
	opcode uint32,
	unique uint64,
	nodeid uint64,
	body []byte) []byte {
	h := fusekernel.InHeader{
		Len:    uint32(fusekernel.InHeaderSize + len(body)),
		Opcode: opcode,
		Unique: unique,
		Nodeid: nodeid,
		Uid:    501,
		Gid:    20,
		Pid:    1234,
	}

	buf := append(
		[]byte(nil),
		unsafe.Slice((*byte)(unsafe.Pointer(&h)), fusekernel.InHeaderSize)...)
	return append(buf, body...)
}

func structBytes(p unsafe.Pointer, n uintptr) []byte {
	return append([]byte(nil), unsafe.Slice((*byte)(p), n)...)
}

func decode(
	t *testing.T,
	raw []byte,
	protocol fusekernel.Protocol) (*Request, error) {
	t.Helper()

	var m buffer.InMessage
	if err := m.Init(bytes.NewReader(raw)); err != nil {
		t.Fatalf("Init: %v", err)
	}

	return convertInMessage(&m, protocol)
}

func TestConvertLookup(t *testing.T) {
	raw := rawRequest(fusekernel.OpLookup, 42, 1, []byte("foo\x00"))

	r, err := decode(t, raw, latestProtocol)
	if err != nil {
		t.Fatalf("convertInMessage: %v", err)
	}

	wantHeader := RequestHeader{
		Unique: 42,
		Node:   1,
		Uid:    501,
		Gid:    20,
		Pid:    1234,
	}
	if diff := pretty.Compare(wantHeader, r.Header); diff != "" {
		t.Errorf("header diff (-want +got):\n%s", diff)
	}

	op, ok := r.Op.(*LookupOp)
	if !ok {
		t.Fatalf("unexpected op type %T", r.Op)
	}
	if op.Name != "foo" {
		t.Errorf("want name %q, got %q", "foo", op.Name)
	}
}

func TestConvertLookupMissingNul(t *testing.T) {
	raw := rawRequest(fusekernel.OpLookup, 42, 1, []byte("foo"))

	_, err := decode(t, raw, latestProtocol)

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("want DecodeError, got %v", err)
	}
	if de.Unique != 42 {
		t.Errorf("want unique 42, got %d", de.Unique)
	}
}

func TestConvertHeaderLengthMismatch(t *testing.T) {
	raw := rawRequest(fusekernel.OpLookup, 42, 1, []byte("foo\x00"))

	// Claim one byte more than was actually sent.
	(*fusekernel.InHeader)(unsafe.Pointer(&raw[0])).Len++

	_, err := decode(t, raw, latestProtocol)

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("want DecodeError, got %v", err)
	}
}

func TestConvertUnknownOpcode(t *testing.T) {
	raw := rawRequest(71717, 42, 1, nil)

	_, err := decode(t, raw, latestProtocol)

	if !errors.Is(err, errUnknownOpcode) {
		t.Fatalf("want errUnknownOpcode, got %v", err)
	}

	var de *DecodeError
	if !errors.As(err, &de) || de.Unique != 42 {
		t.Errorf("want DecodeError carrying unique 42, got %v", err)
	}
}

func TestConvertReadOldProtocol(t *testing.T) {
	// Before 7.9 the read struct stops after ReadFlags.
	in := fusekernel.ReadIn{
		Fh:     17,
		Offset: 4096,
		Size:   8192,
	}
	body := structBytes(unsafe.Pointer(&in), fusekernel.ReadInSize(
		fusekernel.Protocol{Major: 7, Minor: 8}))
	raw := rawRequest(fusekernel.OpRead, 7, 3, body)

	r, err := decode(t, raw, fusekernel.Protocol{Major: 7, Minor: 8})
	if err != nil {
		t.Fatalf("convertInMessage: %v", err)
	}

	want := &ReadOp{Handle: 17, Offset: 4096, Size: 8192}
	if diff := pretty.Compare(want, r.Op); diff != "" {
		t.Errorf("op diff (-want +got):\n%s", diff)
	}
}

func TestConvertWrite(t *testing.T) {
	payload := []byte("tacoburrito")
	in := fusekernel.WriteIn{
		Fh:     19,
		Offset: 100,
		Size:   uint32(len(payload)),
	}
	body := structBytes(unsafe.Pointer(&in), fusekernel.WriteInSize(latestProtocol))
	body = append(body, payload...)
	raw := rawRequest(fusekernel.OpWrite, 8, 3, body)

	r, err := decode(t, raw, latestProtocol)
	if err != nil {
		t.Fatalf("convertInMessage: %v", err)
	}

	op, ok := r.Op.(*WriteOp)
	if !ok {
		t.Fatalf("unexpected op type %T", r.Op)
	}
	if op.Handle != 19 || op.Offset != 100 {
		t.Errorf("bad handle/offset: %+v", op)
	}
	if string(op.Data) != string(payload) {
		t.Errorf("want data %q, got %q", payload, op.Data)
	}
}

func TestConvertWriteTruncatedPayload(t *testing.T) {
	in := fusekernel.WriteIn{Fh: 19, Size: 100}
	body := structBytes(unsafe.Pointer(&in), fusekernel.WriteInSize(latestProtocol))
	body = append(body, "short"...)
	raw := rawRequest(fusekernel.OpWrite, 8, 3, body)

	_, err := decode(t, raw, latestProtocol)

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("want DecodeError, got %v", err)
	}
}

func TestConvertSetattr(t *testing.T) {
	in := fusekernel.SetattrIn{
		Valid: uint32(fusekernel.SetattrSize |
			fusekernel.SetattrMode |
			fusekernel.SetattrMtime),
		Size:      456,
		Mode:      syscall.S_IFREG | 0644,
		Mtime:     1000,
		MtimeNsec: 17,
		// Should be ignored, since their valid bits are unset.
		Uid: 99,
		Gid: 99,
	}
	body := structBytes(unsafe.Pointer(&in), unsafe.Sizeof(in))
	raw := rawRequest(fusekernel.OpSetattr, 9, 5, body)

	r, err := decode(t, raw, latestProtocol)
	if err != nil {
		t.Fatalf("convertInMessage: %v", err)
	}

	op, ok := r.Op.(*SetattrOp)
	if !ok {
		t.Fatalf("unexpected op type %T", r.Op)
	}

	if op.Size == nil || *op.Size != 456 {
		t.Errorf("bad size: %+v", op.Size)
	}
	if op.Mode == nil || *op.Mode != os.FileMode(0644) {
		t.Errorf("bad mode: %+v", op.Mode)
	}
	if op.Mtime == nil || !op.Mtime.Equal(time.Unix(1000, 17)) {
		t.Errorf("bad mtime: %+v", op.Mtime)
	}
	if op.Uid != nil || op.Gid != nil || op.Atime != nil || op.Handle != nil {
		t.Errorf("unexpectedly valid fields: %+v", op)
	}
	if op.AtimeNow || op.MtimeNow {
		t.Errorf("unexpected now flags: %+v", op)
	}
}

func TestConvertRename(t *testing.T) {
	in := fusekernel.RenameIn{Newdir: 11}
	body := structBytes(unsafe.Pointer(&in), unsafe.Sizeof(in))
	body = append(body, "old\x00new\x00"...)
	raw := rawRequest(fusekernel.OpRename, 10, 4, body)

	r, err := decode(t, raw, latestProtocol)
	if err != nil {
		t.Fatalf("convertInMessage: %v", err)
	}

	want := &RenameOp{OldName: "old", NewParent: 11, NewName: "new"}
	if diff := pretty.Compare(want, r.Op); diff != "" {
		t.Errorf("op diff (-want +got):\n%s", diff)
	}
}

func TestConvertSymlink(t *testing.T) {
	raw := rawRequest(
		fusekernel.OpSymlink, 11, 4, []byte("link\x00/some/target\x00"))

	r, err := decode(t, raw, latestProtocol)
	if err != nil {
		t.Fatalf("convertInMessage: %v", err)
	}

	want := &SymlinkOp{Name: "link", Target: "/some/target"}
	if diff := pretty.Compare(want, r.Op); diff != "" {
		t.Errorf("op diff (-want +got):\n%s", diff)
	}
}

func TestConvertSymlinkMissingTarget(t *testing.T) {
	// Only one NUL-terminated string where a name/target pair belongs.
	raw := rawRequest(fusekernel.OpSymlink, 11, 4, []byte("link\x00"))

	_, err := decode(t, raw, latestProtocol)

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("want DecodeError, got %v", err)
	}
	if de.Unique != 11 {
		t.Errorf("want unique 11, got %d", de.Unique)
	}
}

func TestConvertRenameMissingNewName(t *testing.T) {
	in := fusekernel.RenameIn{Newdir: 11}
	body := structBytes(unsafe.Pointer(&in), unsafe.Sizeof(in))
	body = append(body, "old\x00"...)
	raw := rawRequest(fusekernel.OpRename, 10, 4, body)

	_, err := decode(t, raw, latestProtocol)

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("want DecodeError, got %v", err)
	}
	if de.Unique != 10 {
		t.Errorf("want unique 10, got %d", de.Unique)
	}
}

func TestConvertMkdirOldProtocol(t *testing.T) {
	// Before 7.12 the mkdir struct has no umask field.
	protocol := fusekernel.Protocol{Major: 7, Minor: 11}
	in := fusekernel.MkdirIn{Mode: syscall.S_IFDIR | 0755}
	body := structBytes(unsafe.Pointer(&in), fusekernel.MkdirInSize(protocol))
	body = append(body, "dir\x00"...)
	raw := rawRequest(fusekernel.OpMkdir, 12, 1, body)

	r, err := decode(t, raw, protocol)
	if err != nil {
		t.Fatalf("convertInMessage: %v", err)
	}

	op, ok := r.Op.(*MkdirOp)
	if !ok {
		t.Fatalf("unexpected op type %T", r.Op)
	}
	if op.Name != "dir" {
		t.Errorf("want name %q, got %q", "dir", op.Name)
	}
	if !op.Mode.IsDir() || op.Mode.Perm() != 0755 {
		t.Errorf("bad mode: %v", op.Mode)
	}
}

func TestConvertSetlkw(t *testing.T) {
	in := fusekernel.LkIn{
		Fh:    23,
		Owner: 777,
		Lk: fusekernel.FileLock{
			Start: 0,
			End:   99,
			Type:  syscall.F_WRLCK,
		},
	}
	body := structBytes(unsafe.Pointer(&in), unsafe.Sizeof(in))
	raw := rawRequest(fusekernel.OpSetlkw, 13, 6, body)

	r, err := decode(t, raw, latestProtocol)
	if err != nil {
		t.Fatalf("convertInMessage: %v", err)
	}

	want := &SetlkOp{
		Handle: 23,
		Owner:  777,
		Lock:   FileLock{Start: 0, End: 99, Type: syscall.F_WRLCK},
		Sleep:  true,
	}
	if diff := pretty.Compare(want, r.Op); diff != "" {
		t.Errorf("op diff (-want +got):\n%s", diff)
	}
}

func TestConvertInit(t *testing.T) {
	in := fusekernel.InitIn{
		Major:        7,
		Minor:        26,
		MaxReadahead: 65536,
		Flags:        uint32(fusekernel.InitAsyncRead | fusekernel.InitBigWrites),
	}
	body := structBytes(unsafe.Pointer(&in), unsafe.Sizeof(in))
	raw := rawRequest(fusekernel.OpInit, 1, 0, body)

	r, err := decode(t, raw, latestProtocol)
	if err != nil {
		t.Fatalf("convertInMessage: %v", err)
	}

	want := &InitOp{
		Major:        7,
		Minor:        26,
		MaxReadahead: 65536,
		Flags:        uint32(fusekernel.InitAsyncRead | fusekernel.InitBigWrites),
	}
	if diff := pretty.Compare(want, r.Op); diff != "" {
		t.Errorf("op diff (-want +got):\n%s", diff)
	}
}

func TestConvertGetattrWithHandle(t *testing.T) {
	in := fusekernel.GetattrIn{
		GetattrFlags: uint32(fusekernel.GetattrFh),
		Fh:           31,
	}
	body := structBytes(unsafe.Pointer(&in), unsafe.Sizeof(in))
	raw := rawRequest(fusekernel.OpGetattr, 14, 2, body)

	r, err := decode(t, raw, latestProtocol)
	if err != nil {
		t.Fatalf("convertInMessage: %v", err)
	}

	op, ok := r.Op.(*GetattrOp)
	if !ok {
		t.Fatalf("unexpected op type %T", r.Op)
	}
	if op.Handle == nil || *op.Handle != 31 {
		t.Errorf("bad handle: %+v", op.Handle)
	}
}

func TestConvertCanonicalPath(t *testing.T) {
	raw := rawRequest(fusekernel.OpCanonicalPath, 15, 2, nil)

	r, err := decode(t, raw, latestProtocol)
	if err != nil {
		t.Fatalf("convertInMessage: %v", err)
	}

	if _, ok := r.Op.(*CanonicalPathOp); !ok {
		t.Fatalf("unexpected op type %T", r.Op)
	}
}
