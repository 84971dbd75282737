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

package textbridge

// HIDSink is the USB keyboard the bridge types into. Press, Release and the
// modifier calls only stage changes; Flush sends the staged report.
type HIDSink interface {
	Press(keycode byte) error
	Release(keycode byte) error
	RegisterModifiers(mask byte) error
	UnregisterModifiers(mask byte) error
	// ClearKeys releases every pressed key and modifier.
	ClearKeys() error
	Flush() error
}

// HostTransport identifies the output path the host keyboard is using.
type HostTransport int

const (
	// HostTransportNone means no USB host is enumerated.
	HostTransportNone HostTransport = iota
	// HostTransportUSB means reports reach the host over USB.
	HostTransportUSB
)

func (t HostTransport) String() string {
	switch t {
	case HostTransportUSB:
		return "usb"
	case HostTransportNone:
		return "none"
	default:
		return "unknown"
	}
}
