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

// Package fusetesting provides tools for testing file system sessions at
// the protocol level, without mounting anything or requiring privileges.
package fusetesting

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/asyade/gofuse/internal/buffer"
	"github.com/asyade/gofuse/internal/fusekernel"
)

// A FakeKernel plays the kernel's half of the wire protocol over a
// socketpair. Hand the device end to fuse.NewChannel and speak raw requests
// through the fake.
//
// A SOCK_SEQPACKET pair preserves message boundaries the same way the real
// fuse device does: one request per read, one reply per write.
type FakeKernel struct {
	fd int
}

// Create a fake kernel and the device file for the other end.
func NewFakeKernel() (*FakeKernel, *os.File, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %v", err)
	}

	k := &FakeKernel{fd: fds[0]}
	dev := os.NewFile(uintptr(fds[1]), "/dev/fake-fuse")
	return k, dev, nil
}

// Hang up, as the real kernel does on unmount.
func (k *FakeKernel) Close() error {
	return unix.Close(k.fd)
}

// Send a request with the given header fields and opcode-specific body.
func (k *FakeKernel) WriteRequest(
	opcode uint32,
	unique uint64,
	nodeid uint64,
	body []byte) error {
	h := fusekernel.InHeader{
		Len:    uint32(fusekernel.InHeaderSize + len(body)),
		Opcode: opcode,
		Unique: unique,
		Nodeid: nodeid,
		Uid:    uint32(os.Getuid()),
		Gid:    uint32(os.Getgid()),
		Pid:    uint32(os.Getpid()),
	}

	msg := append(
		[]byte(nil),
		unsafe.Slice((*byte)(unsafe.Pointer(&h)), fusekernel.InHeaderSize)...)
	msg = append(msg, body...)

	_, err := unix.Write(k.fd, msg)
	return err
}

// Send the init request that begins every session.
func (k *FakeKernel) WriteInit(
	unique uint64,
	major uint32,
	minor uint32,
	flags uint32) error {
	in := fusekernel.InitIn{
		Major:        major,
		Minor:        minor,
		MaxReadahead: 65536,
		Flags:        flags,
	}

	return k.WriteRequest(
		fusekernel.OpInit,
		unique,
		0,
		StructBytes(unsafe.Pointer(&in), unsafe.Sizeof(in)))
}

// Convenience wrappers for common requests.

func (k *FakeKernel) WriteLookup(unique uint64, parent uint64, name string) error {
	return k.WriteRequest(
		fusekernel.OpLookup, unique, parent, append([]byte(name), 0))
}

func (k *FakeKernel) WriteStatfs(unique uint64) error {
	return k.WriteRequest(fusekernel.OpStatfs, unique, fusekernel.RootID, nil)
}

func (k *FakeKernel) WriteForget(unique uint64, nodeid uint64, n uint64) error {
	in := fusekernel.ForgetIn{Nlookup: n}
	return k.WriteRequest(
		fusekernel.OpForget,
		unique,
		nodeid,
		StructBytes(unsafe.Pointer(&in), unsafe.Sizeof(in)))
}

func (k *FakeKernel) WriteDestroy(unique uint64) error {
	return k.WriteRequest(fusekernel.OpDestroy, unique, 0, nil)
}

// Read a single framed reply, returning its header and a copy of the
// payload that follows it.
func (k *FakeKernel) ReadReply() (*fusekernel.OutHeader, []byte, error) {
	msg := make([]byte, fusekernel.OutHeaderSize+buffer.MaxReadSize)
	n, err := unix.Read(k.fd, msg)
	if err != nil {
		return nil, nil, err
	}
	if n < fusekernel.OutHeaderSize {
		return nil, nil, fmt.Errorf("reply too short: %d bytes", n)
	}

	h := &fusekernel.OutHeader{}
	*h = *(*fusekernel.OutHeader)(unsafe.Pointer(&msg[0]))
	if int(h.Len) != n {
		return nil, nil, fmt.Errorf("header says %d bytes, read %d", h.Len, n)
	}

	return h, msg[fusekernel.OutHeaderSize:n:n], nil
}

// View a struct's memory as bytes, for building request bodies.
func StructBytes(p unsafe.Pointer, n uintptr) []byte {
	return append([]byte(nil), unsafe.Slice((*byte)(p), n)...)
}
