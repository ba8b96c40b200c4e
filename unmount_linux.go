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
	"bytes"
	"errors"
	"fmt"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Returned by Unmount for /dev/fd/N mount points, whose life cycle belongs
// to the helper that performed the mount.
var ErrExternallyManagedMountPoint = errors.New(
	"unmounting is left to the process that mounted this file system")

// Unmount the file system mounted at the supplied directory. The serving
// session observes the device hanging up and winds down on its own.
func Unmount(dir string) error {
	if _, err := parseFuseFd(dir); err == nil {
		return ErrExternallyManagedMountPoint
	}

	err := unix.Unmount(dir, 0)
	if err == nil {
		return nil
	}

	// umount2 wants privileges an ordinary user does not have, but
	// fusermount will happily undo mounts it is responsible for.
	if err == unix.EPERM {
		return fusermount(dir)
	}

	return err
}

func fusermount(dir string) error {
	cmd := exec.Command("fusermount", "-u", dir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if len(output) > 0 {
			output = bytes.TrimRight(output, "\n")
			return fmt.Errorf("%v: %s", err, output)
		}

		return err
	}

	return nil
}
