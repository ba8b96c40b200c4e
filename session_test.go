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

package fuse_test

import (
	"sync"
	"syscall"
	"testing"
	"time"
	"unsafe"

	"golang.org/x/net/context"

	"github.com/asyade/gofuse"
	"github.com/asyade/gofuse/fusetesting"
	"github.com/asyade/gofuse/fuseutil"
	"github.com/asyade/gofuse/internal/fusekernel"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestSession(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

// A file system that records life-cycle events and serves a single file
// named "taco" under the root.
type recordingFS struct {
	fuseutil.NotImplementedFileSystem

	mu        sync.Mutex
	initCount int
	vetoErr   error
	destroyed bool
}

func (fs *recordingFS) Init(
	ctx context.Context,
	h *fuse.RequestHeader) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.initCount++
	return fs.vetoErr
}

func (fs *recordingFS) Destroy(
	ctx context.Context,
	h *fuse.RequestHeader) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.destroyed = true
}

func (fs *recordingFS) Lookup(
	ctx context.Context,
	h *fuse.RequestHeader,
	op *fuse.LookupOp,
	r *fuse.EntryReply) {
	if h.Node != fuse.RootInodeID || op.Name != "taco" {
		r.Error(fuse.ENOENT)
		return
	}

	r.Entry(&fuse.ChildInodeEntry{
		Child: 17,
		Attributes: fuse.InodeAttributes{
			Size:  4,
			Nlink: 1,
			Mode:  0644,
		},
	})
}

func (fs *recordingFS) Statfs(
	ctx context.Context,
	h *fuse.RequestHeader,
	r *fuse.StatfsReply) {
	r.Statfs(&fuse.StatfsAttributes{
		Blocks:    100,
		BlockSize: 4096,
	})
}

func (fs *recordingFS) setVeto(err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.vetoErr = err
}

func (fs *recordingFS) wasDestroyed() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.destroyed
}

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type SessionTest struct {
	kernel  *fusetesting.FakeKernel
	ch      *fuse.Channel
	fs      *recordingFS
	session *fuse.Session

	runResult chan error
}

func init() { RegisterTestSuite(&SessionTest{}) }

var _ SetUpInterface = &SessionTest{}
var _ TearDownInterface = &SessionTest{}

func (t *SessionTest) SetUp(ti *TestInfo) {
	kernel, dev, err := fusetesting.NewFakeKernel()
	AssertEq(nil, err)

	t.kernel = kernel
	t.ch = fuse.NewChannel(dev, "/fake")
	t.fs = &recordingFS{}
	t.session = fuse.NewSession(t.fs, t.ch, nil)

	t.runResult = make(chan error, 1)
	go func() {
		t.runResult <- t.session.Run()
	}()
}

func (t *SessionTest) TearDown() {
	t.kernel.Close()

	select {
	case <-t.runResult:
	case <-time.After(5 * time.Second):
		AddFailure("Run did not return after the kernel hung up.")
	}

	t.ch.Close()
}

// Complete the handshake, checking the session's side of the negotiation.
func (t *SessionTest) doInit() {
	AssertEq(nil, t.kernel.WriteInit(1, 7, 26, 0))

	h, body, err := t.kernel.ReadReply()
	AssertEq(nil, err)
	AssertEq(1, h.Unique)
	AssertEq(0, h.Error)

	out := (*fusekernel.InitOut)(unsafe.Pointer(&body[0]))
	AssertEq(7, out.Major)
	AssertEq(19, out.Minor)

	AssertEq(fuse.SessionActive, t.session.State())
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *SessionTest) RequestBeforeInitGetsEIO() {
	AssertEq(nil, t.kernel.WriteLookup(5, uint64(fuse.RootInodeID), "taco"))

	h, _, err := t.kernel.ReadReply()
	AssertEq(nil, err)
	ExpectEq(5, h.Unique)
	ExpectEq(-int32(syscall.EIO), h.Error)

	ExpectEq(fuse.SessionAwaitingInit, t.session.State())
}

func (t *SessionTest) Handshake() {
	AssertEq(nil, t.kernel.WriteInit(1, 7, 26, 0xffffffff))

	h, body, err := t.kernel.ReadReply()
	AssertEq(nil, err)
	AssertEq(1, h.Unique)
	AssertEq(0, h.Error)

	out := (*fusekernel.InitOut)(unsafe.Pointer(&body[0]))
	ExpectEq(7, out.Major)
	ExpectEq(19, out.Minor)
	ExpectEq(1<<17, out.MaxWrite)

	// Only flags we support come back granted.
	granted := fusekernel.InitFlags(out.Flags)
	ExpectEq(
		fusekernel.InitAsyncRead|fusekernel.InitBigWrites,
		granted)

	major, minor := t.session.Protocol()
	ExpectEq(7, major)
	ExpectEq(19, minor)
	ExpectEq(fuse.SessionActive, t.session.State())
}

func (t *SessionTest) HandshakeWithOlderMinor() {
	// A 7.12 kernel should be taken at its word, not upgraded.
	AssertEq(nil, t.kernel.WriteInit(1, 7, 12, 0))

	h, body, err := t.kernel.ReadReply()
	AssertEq(nil, err)
	AssertEq(0, h.Error)

	out := (*fusekernel.InitOut)(unsafe.Pointer(&body[0]))
	ExpectEq(7, out.Major)
	ExpectEq(12, out.Minor)

	_, minor := t.session.Protocol()
	ExpectEq(12, minor)
}

func (t *SessionTest) AncientKernelRefused() {
	AssertEq(nil, t.kernel.WriteInit(1, 7, 5, 0))

	h, _, err := t.kernel.ReadReply()
	AssertEq(nil, err)
	ExpectEq(-int32(syscall.EPROTO), h.Error)

	// The session gives up on kernels this old.
	select {
	case err := <-t.runResult:
		ExpectEq(nil, err)
		t.runResult <- nil
	case <-time.After(5 * time.Second):
		AddFailure("Run did not wind down.")
	}

	ExpectEq(fuse.SessionDestroyed, t.session.State())
}

func (t *SessionTest) FutureKernelDowngrades() {
	// A kernel speaking a major version from the future announces itself,
	// expects to hear our version, then re-sends init.
	AssertEq(nil, t.kernel.WriteInit(1, 8, 1, 0))

	h, body, err := t.kernel.ReadReply()
	AssertEq(nil, err)
	AssertEq(0, h.Error)

	out := (*fusekernel.InitOut)(unsafe.Pointer(&body[0]))
	ExpectEq(7, out.Major)
	ExpectEq(19, out.Minor)
	AssertEq(fuse.SessionAwaitingInit, t.session.State())

	t.doInit()
}

func (t *SessionTest) InitVeto() {
	t.fs.setVeto(fuse.EACCES)

	AssertEq(nil, t.kernel.WriteInit(1, 7, 26, 0))

	h, _, err := t.kernel.ReadReply()
	AssertEq(nil, err)
	ExpectEq(-int32(syscall.EACCES), h.Error)
	ExpectEq(fuse.SessionAwaitingInit, t.session.State())

	// The file system can change its mind on a later attempt.
	t.fs.setVeto(nil)
	AssertEq(nil, t.kernel.WriteInit(2, 7, 26, 0))

	h, _, err = t.kernel.ReadReply()
	AssertEq(nil, err)
	ExpectEq(0, h.Error)
	ExpectEq(fuse.SessionActive, t.session.State())
}

func (t *SessionTest) LookupHit() {
	t.doInit()

	AssertEq(nil, t.kernel.WriteLookup(10, uint64(fuse.RootInodeID), "taco"))

	h, body, err := t.kernel.ReadReply()
	AssertEq(nil, err)
	ExpectEq(10, h.Unique)
	AssertEq(0, h.Error)

	out := (*fusekernel.EntryOut)(unsafe.Pointer(&body[0]))
	ExpectEq(17, out.Nodeid)
	ExpectEq(4, out.Attr.Size)
}

func (t *SessionTest) LookupMiss() {
	t.doInit()

	AssertEq(nil, t.kernel.WriteLookup(11, uint64(fuse.RootInodeID), "burrito"))

	h, _, err := t.kernel.ReadReply()
	AssertEq(nil, err)
	ExpectEq(11, h.Unique)
	ExpectEq(-int32(syscall.ENOENT), h.Error)
}

func (t *SessionTest) UnimplementedOpGetsENOSYS() {
	t.doInit()

	// recordingFS inherits the default for access.
	in := fusekernel.AccessIn{Mask: 4}
	AssertEq(nil, t.kernel.WriteRequest(
		fusekernel.OpAccess,
		12,
		uint64(fuse.RootInodeID),
		fusetesting.StructBytes(unsafe.Pointer(&in), unsafe.Sizeof(in))))

	h, _, err := t.kernel.ReadReply()
	AssertEq(nil, err)
	ExpectEq(-int32(syscall.ENOSYS), h.Error)
}

func (t *SessionTest) UnknownOpcodeGetsENOSYS() {
	t.doInit()

	AssertEq(nil, t.kernel.WriteRequest(71717, 13, 1, nil))

	h, _, err := t.kernel.ReadReply()
	AssertEq(nil, err)
	ExpectEq(13, h.Unique)
	ExpectEq(-int32(syscall.ENOSYS), h.Error)
}

func (t *SessionTest) SecondInitRejected() {
	t.doInit()

	AssertEq(nil, t.kernel.WriteInit(14, 7, 26, 0))

	h, _, err := t.kernel.ReadReply()
	AssertEq(nil, err)
	ExpectEq(-int32(syscall.EIO), h.Error)
	ExpectEq(fuse.SessionActive, t.session.State())
}

func (t *SessionTest) ForgetWantsNoReply() {
	t.doInit()

	AssertEq(nil, t.kernel.WriteForget(15, 17, 1))
	AssertEq(nil, t.kernel.WriteStatfs(16))

	// The first reply to arrive must belong to statfs.
	h, _, err := t.kernel.ReadReply()
	AssertEq(nil, err)
	ExpectEq(16, h.Unique)
	ExpectEq(0, h.Error)
}

func (t *SessionTest) RepliesPreserveRequestOrder() {
	t.doInit()

	AssertEq(nil, t.kernel.WriteLookup(20, uint64(fuse.RootInodeID), "taco"))
	AssertEq(nil, t.kernel.WriteStatfs(21))
	AssertEq(nil, t.kernel.WriteLookup(22, uint64(fuse.RootInodeID), "nope"))

	var uniques []interface{}
	for i := 0; i < 3; i++ {
		h, _, err := t.kernel.ReadReply()
		AssertEq(nil, err)
		uniques = append(uniques, h.Unique)
	}

	ExpectThat(uniques, ElementsAre(uint64(20), uint64(21), uint64(22)))
}

func (t *SessionTest) DestroyEndsTheSession() {
	t.doInit()

	AssertEq(nil, t.kernel.WriteDestroy(30))

	h, _, err := t.kernel.ReadReply()
	AssertEq(nil, err)
	ExpectEq(30, h.Unique)
	ExpectEq(0, h.Error)

	select {
	case err := <-t.runResult:
		ExpectEq(nil, err)
		t.runResult <- nil
	case <-time.After(5 * time.Second):
		AddFailure("Run did not return after destroy.")
	}

	ExpectTrue(t.fs.wasDestroyed())
	ExpectEq(fuse.SessionDestroyed, t.session.State())
}

func (t *SessionTest) KernelHangupEndsTheSession() {
	t.doInit()

	AssertEq(nil, t.kernel.Close())

	select {
	case err := <-t.runResult:
		ExpectEq(nil, err)
		t.runResult <- nil
	case <-time.After(5 * time.Second):
		AddFailure("Run did not return after hangup.")
	}

	ExpectEq(fuse.SessionDestroyed, t.session.State())
}

func (t *SessionTest) StatfsPayload() {
	t.doInit()

	AssertEq(nil, t.kernel.WriteStatfs(40))

	h, body, err := t.kernel.ReadReply()
	AssertEq(nil, err)
	AssertEq(0, h.Error)

	out := (*fusekernel.StatfsOut)(unsafe.Pointer(&body[0]))
	ExpectEq(100, out.St.Blocks)
	ExpectEq(4096, out.St.Bsize)
}
