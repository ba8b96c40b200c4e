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
	"errors"
	"fmt"
	"io"
	"log"
	"syscall"
	"unsafe"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"

	"golang.org/x/net/context"

	"github.com/asyade/gofuse/internal/buffer"
	"github.com/asyade/gofuse/internal/fusekernel"
)

// The init flags we are prepared to honor, intersected with whatever the
// kernel offers during the handshake.
const supportedInitFlags = fusekernel.InitAsyncRead | fusekernel.InitBigWrites

// SessionState describes where a session is in its life. Transitions run
// strictly forward; a destroyed session cannot be revived.
type SessionState int

const (
	// No channel is attached. The zero value, seen only by code that
	// creates Session values by hand.
	SessionUnmounted SessionState = iota

	// The channel is open but the kernel has not completed the protocol
	// handshake. All requests other than init are answered with EIO.
	SessionAwaitingInit

	// The handshake succeeded and requests flow normally.
	SessionActive

	// The kernel sent destroy, the device hung up, or Destroy was called.
	// Serving loops observe this and stop.
	SessionDestroyed
)

func (s SessionState) String() string {
	switch s {
	case SessionUnmounted:
		return "Unmounted"
	case SessionAwaitingInit:
		return "AwaitingInit"
	case SessionActive:
		return "Active"
	case SessionDestroyed:
		return "Destroyed"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

type SessionConfig struct {
	// The context from which all op contexts descend. Defaults to
	// context.Background().
	OpContext context.Context

	// See DispatcherConfig. All default to something sensible when nil;
	// DebugLogger defaults to the logger controlled by the --fuse.debug
	// flag.
	Clock           timeutil.Clock
	MessageProvider MessageProvider
	DebugLogger     *log.Logger
	ErrorLogger     *log.Logger
}

// A Session drives a single mounted file system: it reads requests from a
// channel, runs the protocol handshake, routes requests through a
// dispatcher, and winds the file system down when the kernel says so.
//
// A session serves one request at a time. Run it on a goroutine per mount,
// or multiplex several sessions with ServeOne and an epoll loop (see
// EventedChannel).
type Session struct {
	fs         FileSystem
	ch         *Channel
	dispatcher *Dispatcher
	provider   MessageProvider

	opCtx       context.Context
	debugLogger *log.Logger
	errorLogger *log.Logger

	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	state SessionState

	// The protocol version negotiated during the handshake. Meaningful
	// only once state is SessionActive.
	//
	// GUARDED_BY(mu)
	protocol fusekernel.Protocol

	// The init flags granted to the kernel.
	//
	// GUARDED_BY(mu)
	flags fusekernel.InitFlags
}

// Create a session serving fs over ch. The session starts in
// SessionAwaitingInit; call Run (or ServeOne repeatedly) to serve.
func NewSession(fs FileSystem, ch *Channel, config *SessionConfig) *Session {
	if config == nil {
		config = &SessionConfig{}
	}

	s := &Session{
		fs:          fs,
		ch:          ch,
		provider:    config.MessageProvider,
		opCtx:       config.OpContext,
		debugLogger: config.DebugLogger,
		errorLogger: config.ErrorLogger,
		state:       SessionAwaitingInit,
	}

	if s.provider == nil {
		s.provider = &DefaultMessageProvider{}
	}
	if s.opCtx == nil {
		s.opCtx = context.Background()
	}
	if s.debugLogger == nil {
		s.debugLogger = getLogger()
	}

	s.dispatcher = NewDispatcher(&DispatcherConfig{
		Clock:           config.Clock,
		MessageProvider: s.provider,
		DebugLogger:     s.debugLogger,
		ErrorLogger:     s.errorLogger,
	})

	s.mu = syncutil.NewInvariantMutex(s.checkInvariants)
	return s
}

func (s *Session) checkInvariants() {
	if s.state == SessionActive && s.protocol.Major != fusekernel.ProtoVersionMaxMajor {
		panic(fmt.Sprintf("active session with protocol %v", s.protocol))
	}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// The protocol version negotiated with the kernel, or zeroes before the
// handshake completes.
func (s *Session) Protocol() (major, minor uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocol.Major, s.protocol.Minor
}

// Serve requests until the kernel destroys the session or the channel
// fails. Returns nil on a clean shutdown, i.e. after a destroy request or
// after the device reports the file system was unmounted.
//
// Intended for blocking channels. On a non-blocking channel Run returns
// syscall.EAGAIN as soon as no request is pending; use ServeOne instead.
func (s *Session) Run() error {
	m := s.provider.GetInMessage()
	defer s.provider.PutInMessage(m)

	for {
		err := s.ch.ReadMessage(m)
		switch err {
		case nil:

		case io.EOF:
			s.markDestroyed()
			return nil

		case syscall.EAGAIN:
			return syscall.EAGAIN

		default:
			s.markDestroyed()
			return err
		}

		if !s.serveMessage(m) {
			return nil
		}
	}
}

// Serve at most one request, without blocking when the channel is
// non-blocking. Returns syscall.EAGAIN when no request is pending and
// io.EOF once the session is destroyed, after which the caller should
// deregister and close the channel.
func (s *Session) ServeOne() error {
	if s.State() == SessionDestroyed {
		return io.EOF
	}

	m := s.provider.GetInMessage()
	defer s.provider.PutInMessage(m)

	err := s.ch.ReadMessage(m)
	switch err {
	case nil:

	case syscall.EAGAIN:
		return syscall.EAGAIN

	case io.EOF:
		s.markDestroyed()
		return io.EOF

	default:
		s.markDestroyed()
		return err
	}

	if !s.serveMessage(m) {
		return io.EOF
	}

	return nil
}

// Force the session into SessionDestroyed, causing serving loops to wind
// down after their current request. Does not close the channel.
func (s *Session) Destroy() {
	s.markDestroyed()
}

// Decode and serve a single message. Returns false when serving should
// stop.
func (s *Session) serveMessage(m *buffer.InMessage) bool {
	s.mu.Lock()
	state := s.state
	protocol := s.protocol
	s.mu.Unlock()

	r, err := convertInMessage(m, protocol)
	if err != nil {
		return s.handleDecodeError(err)
	}

	if s.debugLogger != nil {
		s.debugLogger.Printf(
			"Received %s (unique %d, node %d)",
			opName(r.Op),
			r.Header.Unique,
			r.Header.Node)
	}

	switch state {
	case SessionAwaitingInit:
		if op, ok := r.Op.(*InitOp); ok {
			return s.handleInit(&r.Header, op)
		}

		// The kernel must not send anything else before the handshake.
		if s.errorLogger != nil {
			s.errorLogger.Printf(
				"Request %d (%s) received before init; sending EIO",
				r.Header.Unique,
				opName(r.Op))
		}
		s.writeErrorReply(r.Header.Unique, EIO)
		return true

	case SessionActive:
		switch r.Op.(type) {
		case *InitOp:
			// A second handshake is a protocol violation.
			s.writeErrorReply(r.Header.Unique, EIO)
			return true

		case *DestroyOp:
			s.fs.Destroy(s.opCtx, &r.Header)
			s.writeErrorReply(r.Header.Unique, 0)
			s.markDestroyed()
			return false

		default:
			s.dispatcher.Dispatch(s.opCtx, s.fs, r, s.ch)
			return true
		}

	default:
		s.writeErrorReply(r.Header.Unique, EIO)
		return false
	}
}

// Decide what to do about a request that would not decode. Requests whose
// header survived get an error reply so the kernel does not wait forever;
// anything worse poisons the stream and kills the session.
func (s *Session) handleDecodeError(err error) bool {
	var de *DecodeError
	if errors.As(err, &de) && de.Unique != 0 {
		errno := EIO
		if errors.Is(de.Wrapped, errUnknownOpcode) {
			errno = ENOSYS
		}

		if s.errorLogger != nil {
			s.errorLogger.Printf("%v; sending %v", err, errno)
		}
		s.writeErrorReply(de.Unique, errno)
		return true
	}

	if s.errorLogger != nil {
		s.errorLogger.Printf("Unrecoverable decode failure: %v", err)
	}
	s.markDestroyed()
	return false
}

func (s *Session) handleInit(h *RequestHeader, op *InitOp) bool {
	if s.debugLogger != nil {
		s.debugLogger.Printf(
			"Init: kernel speaks %d.%d, flags 0x%x",
			op.Major,
			op.Minor,
			op.Flags)
	}

	// Refuse kernels older than we know how to talk to.
	tooOld := op.Major < fusekernel.ProtoVersionMinMajor ||
		(op.Major == fusekernel.ProtoVersionMinMajor &&
			op.Minor < fusekernel.ProtoVersionMinMinor)
	if tooOld {
		if s.errorLogger != nil {
			s.errorLogger.Printf(
				"Kernel protocol %d.%d too old; refusing the handshake",
				op.Major,
				op.Minor)
		}
		s.writeErrorReply(h.Unique, EPROTO)
		s.markDestroyed()
		return false
	}

	// A kernel from the future sends its own version first. Answering with
	// just ours makes it downgrade and re-send init.
	if op.Major > fusekernel.ProtoVersionMaxMajor {
		s.writeInitReply(h.Unique, &fusekernel.InitOut{
			Major: fusekernel.ProtoVersionMaxMajor,
			Minor: fusekernel.ProtoVersionMaxMinor,
		})
		return true
	}

	minor := op.Minor
	if minor > fusekernel.ProtoVersionMaxMinor {
		minor = fusekernel.ProtoVersionMaxMinor
	}
	granted := fusekernel.InitFlags(op.Flags) & supportedInitFlags

	// Give the file system its veto.
	if err := s.fs.Init(s.opCtx, h); err != nil {
		if s.errorLogger != nil {
			s.errorLogger.Printf("Init vetoed: %v", err)
		}
		s.writeErrorReply(h.Unique, errno(err))
		return true
	}

	protocol := fusekernel.Protocol{
		Major: fusekernel.ProtoVersionMaxMajor,
		Minor: minor,
	}

	// Become active before the reply hits the wire, so that anyone watching
	// the reply stream observes the transition as already made.
	s.mu.Lock()
	s.state = SessionActive
	s.protocol = protocol
	s.flags = granted
	s.mu.Unlock()

	s.dispatcher.setProtocol(protocol)

	s.writeInitReply(h.Unique, &fusekernel.InitOut{
		Major:        fusekernel.ProtoVersionMaxMajor,
		Minor:        minor,
		MaxReadahead: op.MaxReadahead,
		Flags:        uint32(granted),
		MaxWrite:     buffer.MaxWriteSize,
	})

	if s.debugLogger != nil {
		s.debugLogger.Printf(
			"Init: negotiated %v, granted flags %v",
			protocol,
			granted)
	}

	return true
}

// Send a header-only reply outside the dispatcher, for the state machine's
// own purposes. An errno of zero acknowledges success.
func (s *Session) writeErrorReply(unique uint64, errno syscall.Errno) {
	m := s.provider.GetOutMessage()
	h := m.OutHeader()
	h.Unique = unique
	h.Error = -int32(errno)
	h.Len = uint32(m.Len())

	if err := s.ch.SendReply(m.Bytes()); err != nil && s.errorLogger != nil {
		s.errorLogger.Printf("SendReply(%d): %v", unique, err)
	}
	s.provider.PutOutMessage(m)
}

func (s *Session) writeInitReply(unique uint64, out *fusekernel.InitOut) {
	m := s.provider.GetOutMessage()
	p := (*fusekernel.InitOut)(m.Grow(unsafe.Sizeof(fusekernel.InitOut{})))
	*p = *out

	h := m.OutHeader()
	h.Unique = unique
	h.Len = uint32(m.Len())

	if err := s.ch.SendReply(m.Bytes()); err != nil && s.errorLogger != nil {
		s.errorLogger.Printf("SendReply(%d): %v", unique, err)
	}
	s.provider.PutOutMessage(m)
}

func (s *Session) markDestroyed() {
	s.mu.Lock()
	s.state = SessionDestroyed
	s.mu.Unlock()
}
