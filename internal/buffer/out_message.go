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
	"unsafe"

	"github.com/asyade/gofuse/internal/fusekernel"
)

// OutMessageHeaderSize is the size of the leading header in every out
// message.
const OutMessageHeaderSize = int(unsafe.Sizeof(fusekernel.OutHeader{}))

// We size out messages to be large enough to hold a header for the reply plus
// the largest read payload that may go out.
const outMessageSize = OutMessageHeaderSize + MaxReadSize

// MaxReadSize is the maximum read payload we are willing to place in a single
// reply.
const MaxReadSize = 1 << 17

// OutMessage provides a mechanism for constructing a single contiguous fuse
// message from multiple segments, where the first segment is always a
// fusekernel.OutHeader message.
//
// Must be initialized with Reset.
type OutMessage struct {
	offset  uintptr
	storage [outMessageSize]byte
}

// Reset the message so that it is ready to be used again. Afterward, the
// contents are solely a zeroed header.
func (m *OutMessage) Reset() {
	m.offset = uintptr(OutMessageHeaderSize)
	*m.OutHeader() = fusekernel.OutHeader{}
}

// Return a pointer to the header at the start of the message.
func (m *OutMessage) OutHeader() *fusekernel.OutHeader {
	return (*fusekernel.OutHeader)(unsafe.Pointer(&m.storage[0]))
}

// Grow the buffer by the supplied number of bytes, returning a pointer to the
// start of the new segment, which is zeroed. If there is no space left,
// return the nil pointer.
func (m *OutMessage) Grow(size uintptr) unsafe.Pointer {
	p := m.GrowNoZero(size)
	if p != nil {
		s := unsafe.Slice((*byte)(p), size)
		for i := range s {
			s[i] = 0
		}
	}

	return p
}

// Equivalent to Grow, except the new segment is not zeroed. Use with caution!
func (m *OutMessage) GrowNoZero(size uintptr) unsafe.Pointer {
	if m.offset+size > uintptr(len(m.storage)) {
		return nil
	}

	p := unsafe.Pointer(&m.storage[m.offset])
	m.offset += size
	return p
}

// Throw away the last n bytes added by Grow or Append. Panics if fewer than n
// bytes beyond the header are present.
func (m *OutMessage) ShrinkTo(n int) {
	if n < OutMessageHeaderSize || uintptr(n) > m.offset {
		panic(fmt.Sprintf(
			"ShrinkTo(%d) out of range for offset %d",
			n,
			m.offset))
	}

	m.offset = uintptr(n)
}

// Equivalent to growing by the length of p, then copying p over the new
// segment. Panics if there is not enough room available.
func (m *OutMessage) Append(p []byte) {
	dst := m.GrowNoZero(uintptr(len(p)))
	if dst == nil {
		panic(fmt.Sprintf("Can't grow %d bytes", len(p)))
	}

	copy(unsafe.Slice((*byte)(dst), len(p)), p)
}

// Equivalent to growing by the length of s, then copying s over the new
// segment. Panics if there is not enough room available.
func (m *OutMessage) AppendString(s string) {
	dst := m.GrowNoZero(uintptr(len(s)))
	if dst == nil {
		panic(fmt.Sprintf("Can't grow %d bytes", len(s)))
	}

	copy(unsafe.Slice((*byte)(dst), len(s)), s)
}

// Return the current size of the buffer.
func (m *OutMessage) Len() int {
	return int(m.offset)
}

// Return a reference to the current contents of the buffer, including the
// leading header.
func (m *OutMessage) Bytes() []byte {
	return m.storage[:m.offset]
}
