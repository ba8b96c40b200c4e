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

package fusekernel

import "fmt"

// InitFlags is the capability bitset exchanged during the init handshake. The
// kernel announces what it can do; we answer with the intersection of that
// set and what the library plus the file system support.
type InitFlags uint32

const (
	InitAsyncRead       InitFlags = 1 << 0
	InitPosixLocks      InitFlags = 1 << 1
	InitFileOps         InitFlags = 1 << 2
	InitAtomicTrunc     InitFlags = 1 << 3
	InitExportSupport   InitFlags = 1 << 4
	InitBigWrites       InitFlags = 1 << 5
	InitDontMask        InitFlags = 1 << 6
	InitSpliceWrite     InitFlags = 1 << 7
	InitSpliceMove      InitFlags = 1 << 8
	InitSpliceRead      InitFlags = 1 << 9
	InitFlockLocks      InitFlags = 1 << 10
	InitHasIoctlDir     InitFlags = 1 << 11
	InitAutoInvalData   InitFlags = 1 << 12
	InitDoReaddirplus   InitFlags = 1 << 13
	InitReaddirplusAuto InitFlags = 1 << 14
	InitAsyncDIO        InitFlags = 1 << 15
	InitWritebackCache  InitFlags = 1 << 16
	InitNoOpenSupport   InitFlags = 1 << 17
	InitParallelDirOps  InitFlags = 1 << 18
)

var initFlagNames = []flagName{
	{uint32(InitAsyncRead), "AsyncRead"},
	{uint32(InitPosixLocks), "PosixLocks"},
	{uint32(InitFileOps), "FileOps"},
	{uint32(InitAtomicTrunc), "AtomicTrunc"},
	{uint32(InitExportSupport), "ExportSupport"},
	{uint32(InitBigWrites), "BigWrites"},
	{uint32(InitDontMask), "DontMask"},
	{uint32(InitSpliceWrite), "SpliceWrite"},
	{uint32(InitSpliceMove), "SpliceMove"},
	{uint32(InitSpliceRead), "SpliceRead"},
	{uint32(InitFlockLocks), "FlockLocks"},
	{uint32(InitHasIoctlDir), "HasIoctlDir"},
	{uint32(InitAutoInvalData), "AutoInvalData"},
	{uint32(InitDoReaddirplus), "DoReaddirplus"},
	{uint32(InitReaddirplusAuto), "ReaddirplusAuto"},
	{uint32(InitAsyncDIO), "AsyncDIO"},
	{uint32(InitWritebackCache), "WritebackCache"},
	{uint32(InitNoOpenSupport), "NoOpenSupport"},
	{uint32(InitParallelDirOps), "ParallelDirOps"},
}

func (fl InitFlags) String() string {
	return flagString(uint32(fl), initFlagNames)
}

// GetattrFlags are bit flags seen in GetattrIn.GetattrFlags.
type GetattrFlags uint32

const (
	// The Fh field is valid.
	GetattrFh GetattrFlags = 1 << 0
)

// ReleaseFlags are bit flags seen in ReleaseIn.ReleaseFlags.
type ReleaseFlags uint32

const (
	ReleaseFlush       ReleaseFlags = 1 << 0
	ReleaseFlockUnlock ReleaseFlags = 1 << 1
)

// SetattrValid flags describe which fields of a SetattrIn are meaningful.
type SetattrValid uint32

const (
	SetattrMode     SetattrValid = 1 << 0
	SetattrUid      SetattrValid = 1 << 1
	SetattrGid      SetattrValid = 1 << 2
	SetattrSize     SetattrValid = 1 << 3
	SetattrAtime    SetattrValid = 1 << 4
	SetattrMtime    SetattrValid = 1 << 5
	SetattrHandle   SetattrValid = 1 << 6
	SetattrAtimeNow SetattrValid = 1 << 7
	SetattrMtimeNow SetattrValid = 1 << 8
)

func (fl SetattrValid) Mode() bool     { return fl&SetattrMode != 0 }
func (fl SetattrValid) Uid() bool      { return fl&SetattrUid != 0 }
func (fl SetattrValid) Gid() bool      { return fl&SetattrGid != 0 }
func (fl SetattrValid) Size() bool     { return fl&SetattrSize != 0 }
func (fl SetattrValid) Atime() bool    { return fl&SetattrAtime != 0 }
func (fl SetattrValid) Mtime() bool    { return fl&SetattrMtime != 0 }
func (fl SetattrValid) Handle() bool   { return fl&SetattrHandle != 0 }
func (fl SetattrValid) AtimeNow() bool { return fl&SetattrAtimeNow != 0 }
func (fl SetattrValid) MtimeNow() bool { return fl&SetattrMtimeNow != 0 }

type flagName struct {
	bit  uint32
	name string
}

func flagString(f uint32, names []flagName) string {
	var s string

	if f == 0 {
		return "0"
	}

	for _, n := range names {
		if f&n.bit != 0 {
			s += "+" + n.name
			f &^= n.bit
		}
	}
	if f != 0 {
		s += fmt.Sprintf("%+#x", f)
	}
	return s[1:]
}
