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
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Open the fuse device and perform the mount(2) dance for dir, returning
// the device ready for a Channel. Requires CAP_SYS_ADMIN; unprivileged
// callers should mount via an external helper and hand us the device as a
// /dev/fd/N mount point instead.
func mountDevice(dir string, config *MountConfig) (*os.File, error) {
	// Mount points of the form /dev/fd/N mean some privileged helper
	// already performed the mount and passed us the open device.
	if fd, err := parseFuseFd(dir); err == nil {
		return os.NewFile(uintptr(fd), "/dev/fuse"), nil
	}

	fi, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	dev, err := os.OpenFile("/dev/fuse", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening fuse device: %v", err)
	}

	opts := fmt.Sprintf(
		"fd=%d,rootmode=%o,user_id=%d,group_id=%d",
		dev.Fd(),
		convertGoMode(fi.Mode()),
		os.Getuid(),
		os.Getgid())
	if config.DefaultPermissions {
		opts += ",default_permissions"
	}
	if config.AllowOther {
		opts += ",allow_other"
	}

	fstype := "fuse"
	if config.Subtype != "" {
		fstype += "." + config.Subtype
	}

	source := config.FSName
	if source == "" {
		source = "/dev/fuse"
	}

	flags := uintptr(unix.MS_NOSUID | unix.MS_NODEV)
	if config.ReadOnly {
		flags |= unix.MS_RDONLY
	}

	if err := unix.Mount(source, dir, fstype, flags, opts); err != nil {
		dev.Close()
		return nil, fmt.Errorf("mount: %v", err)
	}

	return dev, nil
}

// Interpret a mount point of the form /dev/fd/N, returning the descriptor
// number. Returns -1 and an error for anything else.
func parseFuseFd(dir string) (int, error) {
	trimmed := strings.TrimPrefix(dir, "/dev/fd/")
	if trimmed == dir {
		return -1, fmt.Errorf("%s is not a /dev/fd path", dir)
	}

	fd, err := strconv.Atoi(trimmed)
	if err != nil || fd < 0 {
		return -1, fmt.Errorf("invalid fuse fd in %s", dir)
	}

	return fd, nil
}
