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
	"io"
	"os"
	"syscall"

	"github.com/asyade/gofuse/internal/buffer"
)

// A Channel carries raw requests and replies over the descriptor for a
// mounted fuse device. It owns the descriptor: closing the channel closes
// the device, which the kernel observes as the file system going away.
//
// Reads and writes go through the raw descriptor rather than the runtime's
// poller, so a channel put into non-blocking mode surfaces EAGAIN to its
// caller. See EventedChannel.
type Channel struct {
	dev        *os.File
	fd         int
	mountpoint string
}

// Create a channel wrapping the supplied fuse device, e.g. one returned by
// Mount or received over a socket from a privileged mounting helper.
func NewChannel(dev *os.File, mountpoint string) *Channel {
	return &Channel{
		dev:        dev,
		fd:         int(dev.Fd()),
		mountpoint: mountpoint,
	}
}

// The directory the device was mounted on.
func (c *Channel) Mountpoint() string {
	return c.mountpoint
}

// The underlying descriptor, for readiness polling. The channel retains
// ownership.
func (c *Channel) Fd() int {
	return c.fd
}

func (c *Channel) Close() error {
	return c.dev.Close()
}

// Fill m with the next request from the kernel, blocking unless the device
// is in non-blocking mode. Transient conditions are retried internally:
//
//  *  EINTR means the read was interrupted by a signal.
//
//  *  ENOENT means the request we were about to receive was aborted before
//     we picked it up.
//
// Returns io.EOF once the kernel has hung up, i.e. after unmounting, and
// syscall.EAGAIN when the device is non-blocking and no request is pending.
func (c *Channel) ReadMessage(m *buffer.InMessage) error {
	for {
		err := m.Init(devReader{c.fd})
		switch err {
		case nil:
			return nil

		case syscall.EINTR, syscall.ENOENT:
			continue

		case syscall.EAGAIN:
			return syscall.EAGAIN

		case syscall.ENODEV, io.EOF:
			// The device goes dead when the file system is unmounted.
			return io.EOF

		default:
			return fmt.Errorf("reading fuse device: %v", err)
		}
	}
}

// Write a single framed reply, previously sized by a reply builder. The
// kernel consumes each reply in one atomic write.
func (c *Channel) SendReply(msg []byte) error {
	for {
		n, err := syscall.Write(c.fd, msg)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("writing fuse device: %v", err)
		}
		if n != len(msg) {
			return fmt.Errorf("short write: %d of %d bytes", n, len(msg))
		}
		return nil
	}
}

// An io.Reader over the raw descriptor. Bypassing os.File keeps the runtime
// poller out of the picture and preserves errnos exactly.
type devReader struct {
	fd int
}

func (r devReader) Read(p []byte) (int, error) {
	n, err := syscall.Read(r.fd, p)
	if n < 0 {
		n = 0
	}
	if err == nil && n == 0 {
		return 0, io.EOF
	}
	return n, err
}
