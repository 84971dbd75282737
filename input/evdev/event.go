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

// Package evdev reads a local keyboard through the Linux input subsystem and
// holds it grabbed while the bridge is typing, so local keystrokes cannot
// interleave with injected ones.
package evdev

import (
	"encoding/binary"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Event types and key values from linux/input-event-codes.h.
const (
	EvSyn uint16 = 0x00
	EvKey uint16 = 0x01
	EvMsc uint16 = 0x04

	KeyReleased int32 = 0
	KeyPressed  int32 = 1
	KeyRepeated int32 = 2
)

// timevalSize is 16 on 64-bit kernels and 8 on 32-bit ones.
const timevalSize = int(unsafe.Sizeof(unix.Timeval{}))

// EventSize is the size of one struct input_event.
const EventSize = timevalSize + 8

// Event is one decoded input_event record.
type Event struct {
	Time  time.Time
	Type  uint16
	Code  uint16
	Value int32
}

// IsKey reports whether e is a key press, release or repeat.
func (e Event) IsKey() bool {
	return e.Type == EvKey
}

func (e Event) String() string {
	return fmt.Sprintf("type=%d code=%d value=%d", e.Type, e.Code, e.Value)
}

// ParseEvent decodes one input_event from the first EventSize bytes of b.
func ParseEvent(b []byte) (Event, error) {
	if len(b) < EventSize {
		return Event{}, fmt.Errorf("input event: %d bytes, need %d", len(b), EventSize)
	}
	var sec, usec int64
	if timevalSize == 16 {
		sec = int64(binary.NativeEndian.Uint64(b[0:8]))
		usec = int64(binary.NativeEndian.Uint64(b[8:16]))
	} else {
		sec = int64(int32(binary.NativeEndian.Uint32(b[0:4])))
		usec = int64(int32(binary.NativeEndian.Uint32(b[4:8])))
	}
	rest := b[timevalSize:]
	return Event{
		Time:  time.Unix(sec, usec*int64(time.Microsecond)),
		Type:  binary.NativeEndian.Uint16(rest[0:2]),
		Code:  binary.NativeEndian.Uint16(rest[2:4]),
		Value: int32(binary.NativeEndian.Uint32(rest[4:8])),
	}, nil
}

// AppendEvent appends the kernel encoding of e to b.
func AppendEvent(b []byte, e Event) []byte {
	sec := e.Time.Unix()
	usec := int64(e.Time.Nanosecond()) / int64(time.Microsecond)
	if timevalSize == 16 {
		b = binary.NativeEndian.AppendUint64(b, uint64(sec))
		b = binary.NativeEndian.AppendUint64(b, uint64(usec))
	} else {
		b = binary.NativeEndian.AppendUint32(b, uint32(sec))
		b = binary.NativeEndian.AppendUint32(b, uint32(usec))
	}
	b = binary.NativeEndian.AppendUint16(b, e.Type)
	b = binary.NativeEndian.AppendUint16(b, e.Code)
	return binary.NativeEndian.AppendUint32(b, uint32(e.Value))
}
