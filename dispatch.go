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
	"strings"

	"github.com/jacobsa/reqtrace"
	"github.com/jacobsa/timeutil"

	"golang.org/x/net/context"

	"github.com/asyade/gofuse/internal/buffer"
	"github.com/asyade/gofuse/internal/fusekernel"
)

// A Dispatcher routes decoded requests to the matching FileSystem method,
// handing each handler a freshly bound reply builder and guaranteeing that
// exactly one reply goes out per request that wants one.
//
// Sessions create and drive their own dispatcher; the type is exported for
// tests and for callers composing their own serving loop.
type Dispatcher struct {
	clock    timeutil.Clock
	provider MessageProvider

	debugLogger *log.Logger
	errorLogger *log.Logger

	// The negotiated protocol version, which controls the size of some
	// reply structs. Defaults to the latest we speak; sessions overwrite
	// it after the handshake.
	protocol fusekernel.Protocol
}

type DispatcherConfig struct {
	// A clock used when converting absolute cache expiration times to the
	// relative durations the kernel speaks. Defaults to the real clock.
	Clock timeutil.Clock

	// The source of reply buffers. Defaults to a DefaultMessageProvider.
	MessageProvider MessageProvider

	// Destinations for debug chatter and for errors that cannot be
	// delivered to the kernel. May be nil.
	DebugLogger *log.Logger
	ErrorLogger *log.Logger
}

func NewDispatcher(config *DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		clock:       config.Clock,
		provider:    config.MessageProvider,
		debugLogger: config.DebugLogger,
		errorLogger: config.ErrorLogger,
		protocol: fusekernel.Protocol{
			Major: fusekernel.ProtoVersionMaxMajor,
			Minor: fusekernel.ProtoVersionMaxMinor,
		},
	}

	if d.clock == nil {
		d.clock = timeutil.RealClock()
	}
	if d.provider == nil {
		d.provider = &DefaultMessageProvider{}
	}

	return d
}

func (d *Dispatcher) setProtocol(p fusekernel.Protocol) {
	d.protocol = p
}

// The subset of reply builder behavior the dispatcher needs for its
// exactly-once guarantee. All builders satisfy it.
type terminalReply interface {
	replied() bool
	Error(err error)
}

// Route the request to fs, then verify a reply went out. Ops that expect no
// reply (Forget) are simply delivered. Init and Destroy belong to the
// session's state machine and must not reach the dispatcher; they are
// answered with EIO and logged as errors.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	fs FileSystem,
	r *Request,
	sender ReplySender) {
	name := opName(r.Op)
	ctx, report := reqtrace.StartSpan(ctx, name)

	h := &r.Header
	switch op := r.Op.(type) {
	case *LookupOp:
		reply := &EntryReply{d.newCommon(h, sender)}
		fs.Lookup(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *ForgetOp:
		fs.Forget(ctx, h, op)
		report(nil)

	case *GetattrOp:
		reply := &AttrReply{d.newCommon(h, sender)}
		fs.Getattr(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *SetattrOp:
		reply := &AttrReply{d.newCommon(h, sender)}
		fs.Setattr(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *ReadlinkOp:
		reply := &DataReply{d.newCommon(h, sender)}
		fs.Readlink(ctx, h, reply)
		report(d.ensureReplied(name, reply))

	case *MknodOp:
		reply := &EntryReply{d.newCommon(h, sender)}
		fs.Mknod(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *MkdirOp:
		reply := &EntryReply{d.newCommon(h, sender)}
		fs.Mkdir(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *UnlinkOp:
		reply := &AckReply{d.newCommon(h, sender)}
		fs.Unlink(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *RmdirOp:
		reply := &AckReply{d.newCommon(h, sender)}
		fs.Rmdir(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *SymlinkOp:
		reply := &EntryReply{d.newCommon(h, sender)}
		fs.Symlink(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *RenameOp:
		reply := &AckReply{d.newCommon(h, sender)}
		fs.Rename(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *LinkOp:
		reply := &EntryReply{d.newCommon(h, sender)}
		fs.Link(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *OpenOp:
		reply := &OpenReply{d.newCommon(h, sender)}
		fs.Open(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *ReadOp:
		reply := &DataReply{d.newCommon(h, sender)}
		fs.Read(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *WriteOp:
		reply := &WriteReply{d.newCommon(h, sender)}
		fs.Write(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *FlushOp:
		reply := &AckReply{d.newCommon(h, sender)}
		fs.Flush(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *ReleaseOp:
		reply := &AckReply{d.newCommon(h, sender)}
		fs.Release(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *FsyncOp:
		reply := &AckReply{d.newCommon(h, sender)}
		fs.Fsync(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *OpendirOp:
		reply := &OpenReply{d.newCommon(h, sender)}
		fs.Opendir(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *ReaddirOp:
		reply := d.newDirReply(h, sender, op.Size)
		fs.Readdir(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *ReleasedirOp:
		reply := &AckReply{d.newCommon(h, sender)}
		fs.Releasedir(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *FsyncdirOp:
		reply := &AckReply{d.newCommon(h, sender)}
		fs.Fsyncdir(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *StatfsOp:
		reply := &StatfsReply{d.newCommon(h, sender)}
		fs.Statfs(ctx, h, reply)
		report(d.ensureReplied(name, reply))

	case *SetxattrOp:
		reply := &AckReply{d.newCommon(h, sender)}
		fs.Setxattr(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *GetxattrOp:
		reply := &XattrReply{d.newCommon(h, sender)}
		fs.Getxattr(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *ListxattrOp:
		reply := &XattrReply{d.newCommon(h, sender)}
		fs.Listxattr(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *RemovexattrOp:
		reply := &AckReply{d.newCommon(h, sender)}
		fs.Removexattr(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *AccessOp:
		reply := &AckReply{d.newCommon(h, sender)}
		fs.Access(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *CreateOp:
		reply := &CreateReply{d.newCommon(h, sender)}
		fs.Create(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *GetlkOp:
		reply := &LockReply{d.newCommon(h, sender)}
		fs.Getlk(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *SetlkOp:
		reply := &AckReply{d.newCommon(h, sender)}
		fs.Setlk(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *BmapOp:
		reply := &BmapReply{d.newCommon(h, sender)}
		fs.Bmap(ctx, h, op, reply)
		report(d.ensureReplied(name, reply))

	case *CanonicalPathOp:
		reply := &DataReply{d.newCommon(h, sender)}
		fs.CanonicalPath(ctx, h, reply)
		report(d.ensureReplied(name, reply))

	case *InterruptOp:
		// We never interrupt in-flight requests. ENOSYS tells the kernel
		// to stop asking.
		reply := &AckReply{d.newCommon(h, sender)}
		reply.Error(ENOSYS)
		report(nil)

	default:
		// Init and Destroy are the session's business; anything else here
		// means the decoder and this switch have diverged.
		err := fmt.Errorf("no handler for %s (request %d)", name, h.Unique)
		if d.errorLogger != nil {
			d.errorLogger.Print(err)
		}
		reply := &AckReply{d.newCommon(h, sender)}
		reply.Error(EIO)
		report(err)
	}
}

func (d *Dispatcher) newCommon(h *RequestHeader, sender ReplySender) replyCommon {
	return replyCommon{
		unique:      h.Unique,
		node:        h.Node,
		protocol:    d.protocol,
		clock:       d.clock,
		sender:      sender,
		provider:    d.provider,
		debugLogger: d.debugLogger,
		errorLogger: d.errorLogger,
	}
}

func (d *Dispatcher) newDirReply(
	h *RequestHeader,
	sender ReplySender,
	size int) *DirReply {
	budget := buffer.OutMessageHeaderSize + size
	if max := buffer.OutMessageHeaderSize + buffer.MaxReadSize; budget > max {
		budget = max
	}

	return &DirReply{
		replyCommon: d.newCommon(h, sender),
		m:           d.provider.GetOutMessage(),
		budget:      budget,
	}
}

func (d *Dispatcher) ensureReplied(name string, reply terminalReply) error {
	if reply.replied() {
		return nil
	}

	err := fmt.Errorf("%s returned without replying; sending EIO", name)
	if d.errorLogger != nil {
		d.errorLogger.Print(err)
	}

	reply.Error(EIO)
	return err
}

// Derive a human-readable operation name from an op struct, for tracing and
// logging. "*fuse.LookupOp" becomes "Lookup".
func opName(op interface{}) string {
	s := fmt.Sprintf("%T", op)
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSuffix(s, "Op")
}
