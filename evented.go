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
	"golang.org/x/sys/unix"
)

// An EventedChannel adapts a Channel for readiness-based serving: the
// device is switched to non-blocking mode and can be registered with an
// epoll instance alongside other descriptors. Combine with Session.ServeOne
// to multiplex several mounts onto a single serving loop.
//
// The underlying channel remains usable directly; the EventedChannel does
// not take ownership.
type EventedChannel struct {
	ch *Channel
}

// Put the channel's device into non-blocking mode and wrap it. From this
// point Channel.ReadMessage returns syscall.EAGAIN when no request is
// pending.
func NewEventedChannel(ch *Channel) (*EventedChannel, error) {
	if err := unix.SetNonblock(ch.Fd(), true); err != nil {
		return nil, err
	}

	return &EventedChannel{ch: ch}, nil
}

func (ec *EventedChannel) Channel() *Channel {
	return ec.ch
}

func (ec *EventedChannel) Fd() int {
	return ec.ch.Fd()
}

// Add the device to the epoll instance, level-triggered for readability.
// The token is round-tripped through the event's data field, so the serving
// loop can tell its channels apart.
func (ec *EventedChannel) Register(epollFd int, token uint64) error {
	return unix.EpollCtl(
		epollFd,
		unix.EPOLL_CTL_ADD,
		ec.ch.Fd(),
		eventFor(token))
}

// Change the token under which the device is registered.
func (ec *EventedChannel) Reregister(epollFd int, token uint64) error {
	return unix.EpollCtl(
		epollFd,
		unix.EPOLL_CTL_MOD,
		ec.ch.Fd(),
		eventFor(token))
}

// Remove the device from the epoll instance, e.g. after its session is
// destroyed.
func (ec *EventedChannel) Deregister(epollFd int) error {
	return unix.EpollCtl(epollFd, unix.EPOLL_CTL_DEL, ec.ch.Fd(), nil)
}

// Recover the token stored by Register from a reaped event.
func EventToken(ev *unix.EpollEvent) uint64 {
	return uint64(uint32(ev.Fd)) | uint64(uint32(ev.Pad))<<32
}

func eventFor(token uint64) *unix.EpollEvent {
	return &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(token),
		Pad:    int32(token >> 32),
	}
}
