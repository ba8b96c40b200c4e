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
	"sync"
	"unsafe"

	"github.com/asyade/gofuse/internal/buffer"
	"github.com/asyade/gofuse/internal/freelist"
)

// A source of request and reply buffers. Sessions and reply builders obtain
// their messages here, so a custom provider can observe or account for all
// traffic. Must be safe for concurrent access.
type MessageProvider interface {
	GetInMessage() *buffer.InMessage

	// The returned message must already be reset, with space reserved for
	// the reply header.
	GetOutMessage() *buffer.OutMessage

	PutInMessage(*buffer.InMessage)

	PutOutMessage(*buffer.OutMessage)
}

// A MessageProvider that recycles messages through free lists, avoiding
// steady-state allocation. Messages are large (past the kernel's maximum
// request size), so reuse matters. The zero value is ready for use.
type DefaultMessageProvider struct {
	mu sync.Mutex

	inMessages  freelist.Freelist // GUARDED_BY(mu)
	outMessages freelist.Freelist // GUARDED_BY(mu)
}

func (m *DefaultMessageProvider) GetInMessage() *buffer.InMessage {
	m.mu.Lock()
	x := (*buffer.InMessage)(m.inMessages.Get())
	m.mu.Unlock()

	if x == nil {
		x = new(buffer.InMessage)
	}

	return x
}

func (m *DefaultMessageProvider) GetOutMessage() *buffer.OutMessage {
	m.mu.Lock()
	x := (*buffer.OutMessage)(m.outMessages.Get())
	m.mu.Unlock()

	if x == nil {
		x = new(buffer.OutMessage)
	}
	x.Reset()

	return x
}

func (m *DefaultMessageProvider) PutInMessage(x *buffer.InMessage) {
	m.mu.Lock()
	m.inMessages.Put(unsafe.Pointer(x))
	m.mu.Unlock()
}

func (m *DefaultMessageProvider) PutOutMessage(x *buffer.OutMessage) {
	m.mu.Lock()
	m.outMessages.Put(unsafe.Pointer(x))
	m.mu.Unlock()
}
