// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

//go:build linux

package evdev

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// evIOCGrab is EVIOCGRAB, _IOW('E', 0x90, int).
const evIOCGrab = 0x40044590

type fileDevice struct {
	*os.File
}

func openDevice(path string) (Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return fileDevice{File: os.NewFile(uintptr(fd), path)}, nil
}

func (d fileDevice) Grab(exclusive bool) error {
	v := 0
	if exclusive {
		v = 1
	}
	rc, err := d.SyscallConn()
	if err != nil {
		return fmt.Errorf("grab %s: %w", d.Name(), err)
	}
	var ioctlErr error
	if err := rc.Control(func(fd uintptr) {
		ioctlErr = unix.IoctlSetInt(int(fd), evIOCGrab, v)
	}); err != nil {
		return fmt.Errorf("grab %s: %w", d.Name(), err)
	}
	if ioctlErr != nil {
		return fmt.Errorf("EVIOCGRAB %s: %w", d.Name(), ioctlErr)
	}
	return nil
}
