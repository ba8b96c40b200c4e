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

// A tool that serves the hellofs sample file system on several mount points
// at once from a single goroutine, multiplexing the kernel connections with
// epoll instead of dedicating a serving loop to each mount.
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"syscall"

	"github.com/jacobsa/timeutil"
	"golang.org/x/sys/unix"

	"github.com/asyade/gofuse"
	"github.com/asyade/gofuse/samples/hellofs"
)

var fDebug = flag.Bool("debug", false, "Enable debug logging.")

// One mount being served by the event loop.
type mount struct {
	ec      *fuse.EventedChannel
	session *fuse.Session
}

func main() {
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatalf("Usage: %s mount_point [mount_point ...]", flag.CommandLine.Name())
	}

	epollFd, err := unix.EpollCreate1(0)
	if err != nil {
		log.Fatalf("EpollCreate1: %v", err)
	}

	var sessionCfg *fuse.SessionConfig
	if *fDebug {
		sessionCfg = &fuse.SessionConfig{
			DebugLogger: log.New(os.Stderr, "fuse: ", 0),
		}
	}

	// Mount each directory and register its device with the epoll set,
	// using the index into mounts as the readiness token.
	var mounts []*mount
	for _, dir := range flag.Args() {
		ch, err := fuse.MountChannel(dir, &fuse.MountConfig{FSName: "hellofs"})
		if err != nil {
			log.Fatalf("MountChannel(%q): %v", dir, err)
		}

		ec, err := fuse.NewEventedChannel(ch)
		if err != nil {
			log.Fatalf("NewEventedChannel(%q): %v", dir, err)
		}

		session := fuse.NewSession(
			&hellofs.HelloFS{Clock: timeutil.RealClock()},
			ch,
			sessionCfg)

		token := uint64(len(mounts))
		if err := ec.Register(epollFd, token); err != nil {
			log.Fatalf("Register(%q): %v", dir, err)
		}

		mounts = append(mounts, &mount{ec: ec, session: session})
	}

	// Serve until every session has been torn down.
	remaining := len(mounts)
	events := make([]unix.EpollEvent, 8)
	for remaining > 0 {
		n, err := unix.EpollWait(epollFd, events, -1)
		if err == unix.EINTR {
			continue
		}

		if err != nil {
			log.Fatalf("EpollWait: %v", err)
		}

		for i := 0; i < n; i++ {
			m := mounts[fuse.EventToken(&events[i])]

			// Drain the channel. ServeOne reports EAGAIN once the
			// readiness that woke us up has been consumed.
			for {
				err := m.session.ServeOne()
				if err == syscall.EAGAIN {
					break
				}

				if err == io.EOF {
					m.ec.Deregister(epollFd)
					m.ec.Channel().Close()
					remaining--
					break
				}

				if err != nil {
					log.Fatalf("ServeOne: %v", err)
				}
			}
		}
	}
}
