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
	"fmt"
	"testing"
	"unsafe"

	"github.com/asyade/gofuse/internal/fusekernel"
)

func TestOutMessageReset(t *testing.T) {
	var om OutMessage
	om.Reset()

	if got, want := om.Len(), OutMessageHeaderSize; got != want {
		t.Errorf("om.Len() = %d, want %d", got, want)
	}

	h := om.OutHeader()
	if h.Len != 0 || h.Error != 0 || h.Unique != 0 {
		t.Errorf("header not zeroed after Reset: %+v", *h)
	}
}

func TestOutMessageResetClearsPreviousContents(t *testing.T) {
	var om OutMessage
	om.Reset()

	om.OutHeader().Unique = 17
	om.Append([]byte("taco"))

	om.Reset()
	if got, want := om.Len(), OutMessageHeaderSize; got != want {
		t.Errorf("om.Len() = %d, want %d", got, want)
	}

	if om.OutHeader().Unique != 0 {
		t.Errorf("header not zeroed after second Reset")
	}
}

func TestOutMessageGrow(t *testing.T) {
	var om OutMessage
	om.Reset()

	p := om.Grow(unsafe.Sizeof(fusekernel.EntryOut{}))
	if p == nil {
		t.Fatal("Grow returned nil")
	}

	wantLen := OutMessageHeaderSize + int(unsafe.Sizeof(fusekernel.EntryOut{}))
	if got := om.Len(); got != wantLen {
		t.Errorf("om.Len() = %d, want %d", got, wantLen)
	}

	// The new segment must be zeroed.
	out := (*fusekernel.EntryOut)(p)
	if *out != (fusekernel.EntryOut{}) {
		t.Errorf("Grow returned non-zeroed segment: %+v", *out)
	}
}

func TestOutMessageGrowExhausted(t *testing.T) {
	var om OutMessage
	om.Reset()

	if p := om.Grow(uintptr(len(om.storage))); p != nil {
		t.Error("expected nil when growing past capacity")
	}
}

func TestOutMessageAppend(t *testing.T) {
	var om OutMessage
	om.Reset()

	om.Append([]byte("ta"))
	om.AppendString("co")

	want := append(
		make([]byte, OutMessageHeaderSize),
		"taco"...)

	if got := om.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("om.Bytes() = %q, want %q", got, want)
	}
}

func TestOutMessageShrinkTo(t *testing.T) {
	var om OutMessage
	om.Reset()

	om.Append([]byte("enchilada"))
	om.ShrinkTo(OutMessageHeaderSize + 4)

	if got, want := om.Len(), OutMessageHeaderSize+4; got != want {
		t.Errorf("om.Len() = %d, want %d", got, want)
	}
}

func BenchmarkOutMessageReset(b *testing.B) {
	// A single buffer, which should fit in some level of CPU cache.
	b.Run("Single buffer", func(b *testing.B) {
		b.SetBytes(int64(unsafe.Sizeof(OutMessage{})))

		var om OutMessage
		for i := 0; i < b.N; i++ {
			om.Reset()
		}
	})

	// Many megabytes worth of buffers, which should defeat the CPU cache.
	b.Run("Many buffers", func(b *testing.B) {
		b.SetBytes(int64(unsafe.Sizeof(OutMessage{})))

		// The number of messages; intentionally a power of two.
		const numMessages = 128

		var oms [numMessages]OutMessage
		if s := unsafe.Sizeof(oms); s < 8<<20 {
			panic(fmt.Sprintf("Array is too small; total size: %d", s))
		}

		for i := 0; i < b.N; i++ {
			oms[i%numMessages].Reset()
		}
	})
}
