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
	"bytes"
	"testing"
	"unsafe"

	"github.com/asyade/gofuse/internal/fusekernel"
)

// Build a raw message consisting of an InHeader with the given fields
// followed by the supplied payload.
func rawMessage(opcode uint32, unique uint64, payload []byte) []byte {
	h := fusekernel.InHeader{
		Len:    uint32(fusekernel.InHeaderSize + len(payload)),
		Opcode: opcode,
		Unique: unique,
	}

	hBytes := unsafe.Slice(
		(*byte)(unsafe.Pointer(&h)),
		fusekernel.InHeaderSize)

	return append(append([]byte{}, hBytes...), payload...)
}

func TestInMessageHeader(t *testing.T) {
	var m InMessage
	in := rawMessage(fusekernel.OpFlush, 17, []byte("taco"))

	if err := m.Init(bytes.NewReader(in)); err != nil {
		t.Fatalf("Init: %v", err)
	}

	h := m.Header()
	if h.Opcode != fusekernel.OpFlush {
		t.Errorf("Opcode = %d, want %d", h.Opcode, fusekernel.OpFlush)
	}
	if h.Unique != 17 {
		t.Errorf("Unique = %d, want 17", h.Unique)
	}
	if got, want := m.Len(), len(in); got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
}

func TestInMessageShortRead(t *testing.T) {
	var m InMessage
	in := rawMessage(fusekernel.OpFlush, 17, nil)

	if err := m.Init(bytes.NewReader(in[:fusekernel.InHeaderSize-1])); err == nil {
		t.Error("expected an error for a truncated header")
	}
}

func TestInMessageConsume(t *testing.T) {
	var m InMessage
	in := rawMessage(fusekernel.OpFlush, 17, []byte("burrito"))

	if err := m.Init(bytes.NewReader(in)); err != nil {
		t.Fatalf("Init: %v", err)
	}

	p := m.Consume(3)
	if p == nil {
		t.Fatal("Consume(3) = nil")
	}
	if got := string(unsafe.Slice((*byte)(p), 3)); got != "bur" {
		t.Errorf("Consume(3) = %q, want %q", got, "bur")
	}

	if got := m.ConsumeBytes(4); string(got) != "rito" {
		t.Errorf("ConsumeBytes(4) = %q, want %q", got, "rito")
	}

	// Nothing left.
	if p := m.Consume(1); p != nil {
		t.Error("expected nil consuming past the end")
	}
}

func TestInMessageConsumeTooMuch(t *testing.T) {
	var m InMessage
	in := rawMessage(fusekernel.OpFlush, 17, []byte("taco"))

	if err := m.Init(bytes.NewReader(in)); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if p := m.Consume(5); p != nil {
		t.Error("Consume(5) should fail for a 4-byte payload")
	}

	// The failed consume must not have disturbed the remaining bytes.
	if got := m.ConsumeBytes(4); string(got) != "taco" {
		t.Errorf("ConsumeBytes(4) = %q, want %q", got, "taco")
	}
}
