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

// A simple tool that mounts the hellofs sample file system and serves it
// until the mount point is unmounted or the process is interrupted.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jacobsa/timeutil"
	"golang.org/x/net/context"

	"github.com/asyade/gofuse"
	"github.com/asyade/gofuse/samples/hellofs"
)

var fMountPoint = flag.String("mount_point", "", "Path to mount point.")
var fReadOnly = flag.Bool("read_only", false, "Mount in read-only mode.")
var fDebug = flag.Bool("debug", false, "Enable debug logging.")

func main() {
	flag.Parse()

	if *fMountPoint == "" {
		log.Fatalf("You must set --mount_point.")
	}

	cfg := &fuse.MountConfig{
		FSName:   "hellofs",
		ReadOnly: *fReadOnly,
	}

	if *fDebug {
		cfg.DebugLogger = log.New(os.Stderr, "fuse: ", 0)
	}

	mfs, err := fuse.Mount(
		*fMountPoint,
		&hellofs.HelloFS{Clock: timeutil.RealClock()},
		cfg)
	if err != nil {
		log.Fatalf("Mount: %v", err)
	}

	// Attempt a clean unmount on SIGINT or SIGTERM.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		if err := fuse.Unmount(mfs.Dir()); err != nil {
			log.Printf("Unmount: %v", err)
		}
	}()

	// Wait for the file system to be torn down.
	if err := mfs.Join(context.Background()); err != nil {
		log.Fatalf("Join: %v", err)
	}
}
