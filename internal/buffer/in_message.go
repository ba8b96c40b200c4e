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

package buffer

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/asyade/gofuse/internal/fusekernel"
)

// MaxWriteSize is the maximum size of a write payload we announce during the
// init handshake. The kernel never sends a write request larger than this, so
// it also bounds the size of incoming messages.
const MaxWriteSize = 1 << 17

// The kernel delivers exactly one request per read, so the receive buffer
// must have room for the largest possible message: a write request header
// plus its payload, with slack for the fixed structs around it.
const inMessageSize = MaxWriteSize + 4096

// An incoming message from the kernel, including the leading
// fusekernel.InHeader struct. Provides storage for messages and convenient
// access to their contents.
type InMessage struct {
	length    int
	remaining []byte
	storage   [inMessageSize]byte
}

// Initialize with the data read by a single call to r.Read. The first call to
// Consume will consume the bytes directly after the fusekernel.InHeader
// struct.
func (m *InMessage) Init(r io.Reader) error {
	n, err := r.Read(m.storage[:])
	if err != nil {
		return err
	}

	if n < fusekernel.InHeaderSize {
		return fmt.Errorf("message too short: %d bytes", n)
	}

	m.length = n
	m.remaining = m.storage[fusekernel.InHeaderSize:n]
	return nil
}

// Return a reference to the header read in the most recent call to Init.
func (m *InMessage) Header() *fusekernel.InHeader {
	return (*fusekernel.InHeader)(unsafe.Pointer(&m.storage[0]))
}

// Return the total number of bytes read in the most recent call to Init.
func (m *InMessage) Len() int {
	return m.length
}

// Return the number of bytes not yet consumed.
func (m *InMessage) RemainingLen() int {
	return len(m.remaining)
}

// Consume the next n bytes from the message, returning a nil pointer if there
// are fewer than n bytes available.
func (m *InMessage) Consume(n uintptr) unsafe.Pointer {
	if n == 0 || uintptr(len(m.remaining)) < n {
		return nil
	}

	p := unsafe.Pointer(&m.remaining[0])
	m.remaining = m.remaining[n:]
	return p
}

// Equivalent to Consume, except returns a slice of bytes. The result will be
// nil if there are fewer than n bytes available.
func (m *InMessage) ConsumeBytes(n uintptr) []byte {
	if uintptr(len(m.remaining)) < n {
		return nil
	}

	b := m.remaining[:n:n]
	m.remaining = m.remaining[n:]
	return b
}
