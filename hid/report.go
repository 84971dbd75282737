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

// Package hid is a USB HID boot keyboard that writes 8-byte input reports
// to a Linux USB gadget.
package hid

import "fmt"

// ReportSize is the size of a boot keyboard input report.
const ReportSize = 8

// maxKeys is the boot protocol's key rollover.
const maxKeys = 6

// ReportDescriptor is the boot keyboard report descriptor to install in the
// gadget's HID function. Report format:
// [modifiers, reserved, key1, key2, key3, key4, key5, key6]
var ReportDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x06, // Usage (Keyboard)
	0xA1, 0x01, // Collection (Application)
	0x05, 0x07, //   Usage Page (Keyboard/Keypad)
	0x19, 0xE0, //   Usage Minimum (Left Control)
	0x29, 0xE7, //   Usage Maximum (Right GUI)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x01, //   Logical Maximum (1)
	0x75, 0x01, //   Report Size (1)
	0x95, 0x08, //   Report Count (8)
	0x81, 0x02, //   Input (Data, Variable, Absolute) - Modifier byte
	0x95, 0x01, //   Report Count (1)
	0x75, 0x08, //   Report Size (8)
	0x81, 0x01, //   Input (Constant) - Reserved byte
	0x95, 0x05, //   Report Count (5)
	0x75, 0x01, //   Report Size (1)
	0x05, 0x08, //   Usage Page (LEDs)
	0x19, 0x01, //   Usage Minimum (Num Lock)
	0x29, 0x05, //   Usage Maximum (Kana)
	0x91, 0x02, //   Output (Data, Variable, Absolute) - LED report
	0x95, 0x01, //   Report Count (1)
	0x75, 0x03, //   Report Size (3)
	0x91, 0x01, //   Output (Constant) - Padding
	0x95, 0x06, //   Report Count (6)
	0x75, 0x08, //   Report Size (8)
	0x15, 0x00, //   Logical Minimum (0)
	0x26, 0xFF, 0x00, // Logical Maximum (255)
	0x05, 0x07, //   Usage Page (Keyboard/Keypad)
	0x19, 0x00, //   Usage Minimum (0)
	0x2A, 0xFF, 0x00, // Usage Maximum (255)
	0x81, 0x00, //   Input (Data, Array) - Key array
	0xC0, // End Collection
}

// Report is one boot keyboard input report.
type Report struct {
	Modifiers byte
	Keys      [maxKeys]byte
}

// MarshalTo writes the report to buf and returns ReportSize, or 0 if buf is
// too short.
func (r *Report) MarshalTo(buf []byte) int {
	if len(buf) < ReportSize {
		return 0
	}
	buf[0] = r.Modifiers
	buf[1] = 0
	copy(buf[2:ReportSize], r.Keys[:])
	return ReportSize
}

// Bytes returns the wire form of the report.
func (r *Report) Bytes() [ReportSize]byte {
	var out [ReportSize]byte
	r.MarshalTo(out[:])
	return out
}

// setKey adds key to the first free slot. It reports false when all six
// slots are taken by other keys.
func (r *Report) setKey(key byte) bool {
	for i := range r.Keys {
		if r.Keys[i] == key {
			return true
		}
	}
	for i := range r.Keys {
		if r.Keys[i] == 0 {
			r.Keys[i] = key
			return true
		}
	}
	return false
}

// clearKey removes key and closes the gap so held keys stay in press order.
func (r *Report) clearKey(key byte) {
	out := 0
	for _, k := range r.Keys {
		if k != key && k != 0 {
			r.Keys[out] = k
			out++
		}
	}
	for ; out < maxKeys; out++ {
		r.Keys[out] = 0
	}
}

// Clear releases every key and modifier.
func (r *Report) Clear() {
	*r = Report{}
}

// Held returns the keys currently in the report.
func (r *Report) Held() []byte {
	var keys []byte
	for _, k := range r.Keys {
		if k != 0 {
			keys = append(keys, k)
		}
	}
	return keys
}

func (r Report) String() string {
	return fmt.Sprintf("mods=0x%02X keys=% X", r.Modifiers, r.Keys)
}
