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
	"syscall"
)

const (
	// Errors corresponding to kernel error numbers. These may be handed to
	// a reply builder's Error method and are translated losslessly onto the
	// wire.
	EACCES    = syscall.EACCES
	EEXIST    = syscall.EEXIST
	EINVAL    = syscall.EINVAL
	EIO       = syscall.EIO
	ENOATTR   = syscall.ENODATA
	ENOENT    = syscall.ENOENT
	ENOSYS    = syscall.ENOSYS
	ENOTDIR   = syscall.ENOTDIR
	ENOTEMPTY = syscall.ENOTEMPTY
	EPROTO    = syscall.EPROTO
	ERANGE    = syscall.ERANGE
)

// A DecodeError describes a request that could not be turned into a Request
// struct. When Unique is non-zero the kernel still expects a reply carrying
// that correlation ID, and the session answers it with EIO.
type DecodeError struct {
	Unique uint64
	Wrapped error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding request %d: %v", e.Unique, e.Wrapped)
}

func (e *DecodeError) Unwrap() error {
	return e.Wrapped
}

// errno extracts the errno to put on the wire for an error returned by a
// file system. Non-errno errors degrade to EIO.
func errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	var en syscall.Errno
	if errors.As(err, &en) {
		return en
	}

	return EIO
}
