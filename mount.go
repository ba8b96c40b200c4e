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

	"github.com/jacobsa/timeutil"

	"golang.org/x/net/context"
)

type MountConfig struct {
	// The context from which every op served by the mount's session
	// inherits. Defaults to context.Background().
	OpContext context.Context

	// The name and subtype shown for the file system in e.g. the output of
	// `mount`.
	FSName  string
	Subtype string

	// Mount the file system read-only.
	ReadOnly bool

	// Allow users other than the mounting one to access the file system.
	// Requires user_allow_other in /etc/fuse.conf when the mounting user
	// is not root.
	AllowOther bool

	// Have the kernel perform its usual permission checks based on the
	// modes the file system reports, instead of delegating all checking to
	// the file system.
	DefaultPermissions bool

	// See SessionConfig.
	DebugLogger     *log.Logger
	ErrorLogger     *log.Logger
	Clock           timeutil.Clock
	MessageProvider MessageProvider
}

// A struct representing the status of a mount operation, with a method that
// waits for unmounting.
type MountedFileSystem struct {
	dir     string
	session *Session

	// The result to return from Join. Not valid until the channel is
	// closed.
	joinStatus          error
	joinStatusAvailable chan struct{}
}

// Return the directory on which the file system is mounted (or where we
// attempted to mount it.)
func (mfs *MountedFileSystem) Dir() string {
	return mfs.dir
}

// The session serving the mount, e.g. for inspecting its state or forcing
// teardown.
func (mfs *MountedFileSystem) Session() *Session {
	return mfs.session
}

// Block until the file system has been unmounted and its session destroyed.
// The return value will be non-nil if anything unexpected happened while
// serving. May be called multiple times.
func (mfs *MountedFileSystem) Join(ctx context.Context) error {
	select {
	case <-mfs.joinStatusAvailable:
		return mfs.joinStatus
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Attempt to mount a file system on the given directory, serving it with
// the supplied file system on a background goroutine. The protocol
// handshake happens in-band once the kernel speaks up; use Join to wait for
// teardown.
func Mount(
	dir string,
	fs FileSystem,
	config *MountConfig) (*MountedFileSystem, error) {
	if config == nil {
		config = &MountConfig{}
	}

	dev, err := mountDevice(dir, config)
	if err != nil {
		return nil, fmt.Errorf("mounting %s: %v", dir, err)
	}

	ch := NewChannel(dev, dir)
	session := NewSession(fs, ch, &SessionConfig{
		OpContext:       config.OpContext,
		Clock:           config.Clock,
		MessageProvider: config.MessageProvider,
		DebugLogger:     config.DebugLogger,
		ErrorLogger:     config.ErrorLogger,
	})

	mfs := &MountedFileSystem{
		dir:                 dir,
		session:             session,
		joinStatusAvailable: make(chan struct{}),
	}

	go func() {
		mfs.joinStatus = session.Run()
		ch.Close()
		close(mfs.joinStatusAvailable)
	}()

	return mfs, nil
}

// Like Mount, but stop after obtaining a channel for the kernel connection.
// No session is created and nothing is served; the caller is expected to
// build a Session over the returned channel and drive it, typically from an
// external event loop via EventedChannel and Session.ServeOne. The caller
// owns the channel and must close it when done.
func MountChannel(dir string, config *MountConfig) (*Channel, error) {
	if config == nil {
		config = &MountConfig{}
	}

	dev, err := mountDevice(dir, config)
	if err != nil {
		return nil, fmt.Errorf("mounting %s: %v", dir, err)
	}

	return NewChannel(dev, dir), nil
}
