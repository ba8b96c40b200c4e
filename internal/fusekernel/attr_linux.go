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

// The Linux fuse_attr layout has no field for creation time; the kernel
// simply never sees it.
func (a *Attr) SetCrtime(secs uint64, nsec uint32) {
}

// BSD-style file flags, likewise absent from the Linux wire format.
func (a *Attr) SetFlags(flags uint32) {
}
