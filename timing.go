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

import "time"

// Injection timing defaults.
const (
	DefaultKeyDelay       = 5 * time.Millisecond
	DefaultToggleDelay    = 100 * time.Millisecond
	DefaultSessionTimeout = 30 * time.Second

	// Wire timings are whole milliseconds in 1..255.
	minWireDelay = 1
	maxWireDelay = 255
)

// Timing controls the delays the injector inserts around each key.
type Timing struct {
	// Press is how long a plain key is held down.
	Press time.Duration
	// Release is the gap after releasing a plain key.
	Release time.Duration
	// Combo is the gap after releasing a key that carried a modifier.
	Combo time.Duration
	// TogglePress is how long an input-method toggle key is held down.
	TogglePress time.Duration
	// Toggle is the gap after releasing an input-method toggle key.
	Toggle time.Duration
	// Warmup is the delay before the first key of a batch.
	Warmup time.Duration
}

// DefaultTiming returns the stock timing: 5 ms around every key and
// 100 ms of settle time after toggle keys.
func DefaultTiming() Timing {
	return Timing{
		Press:       DefaultKeyDelay,
		Release:     DefaultKeyDelay,
		Combo:       DefaultKeyDelay,
		TogglePress: DefaultKeyDelay,
		Toggle:      DefaultToggleDelay,
	}
}

// HoldFor returns how long the key of item stays pressed.
func (t Timing) HoldFor(item KeycodeItem) time.Duration {
	if item.IsToggle() {
		return t.TogglePress
	}
	return t.Press
}

// GapAfter returns the delay after item is released.
func (t Timing) GapAfter(item KeycodeItem) time.Duration {
	switch {
	case item.IsToggle():
		return t.Toggle
	case item.Modifier != 0:
		return t.Combo
	default:
		return t.Release
	}
}

// TimingFromWire decodes the six SET_DELAY bytes, clamping each to 1..255 ms.
func TimingFromWire(b []byte) Timing {
	ms := func(v byte) time.Duration {
		return time.Duration(clampWire(int(v))) * time.Millisecond
	}
	return Timing{
		Press:       ms(b[0]),
		Release:     ms(b[1]),
		Combo:       ms(b[2]),
		TogglePress: ms(b[3]),
		Toggle:      ms(b[4]),
		Warmup:      ms(b[5]),
	}
}

// Wire encodes the timing as six SET_DELAY bytes.
func (t Timing) Wire() []byte {
	enc := func(d time.Duration) byte {
		return byte(clampWire(int(d / time.Millisecond)))
	}
	return []byte{
		enc(t.Press), enc(t.Release), enc(t.Combo),
		enc(t.TogglePress), enc(t.Toggle), enc(t.Warmup),
	}
}

func clampWire(v int) int {
	if v < minWireDelay {
		return minWireDelay
	}
	if v > maxWireDelay {
		return maxWireDelay
	}
	return v
}
