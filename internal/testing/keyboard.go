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

// Package testing provides test doubles for the bridge: a recording HID
// keyboard and a wire-level BLE co-processor simulator.
package testing

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ZaparooProject/go-textbridge/internal/syncutil"
)

// ErrRollover mirrors the bridge's rollover error without importing it.
var ErrRollover = errors.New("rollover")

// EventKind identifies a recorded keyboard call.
type EventKind string

// Recorded call kinds.
const (
	EventPress      EventKind = "press"
	EventRelease    EventKind = "release"
	EventRegister   EventKind = "register"
	EventUnregister EventKind = "unregister"
	EventClear      EventKind = "clear"
	EventFlush      EventKind = "flush"
	EventSleep      EventKind = "sleep"
)

// Event is one recorded call.
type Event struct {
	Kind  EventKind
	Delay time.Duration
	Code  byte
}

func (e Event) String() string {
	switch e.Kind {
	case EventSleep:
		return fmt.Sprintf("sleep(%v)", e.Delay)
	case EventClear, EventFlush:
		return string(e.Kind)
	default:
		return fmt.Sprintf("%s(0x%02X)", e.Kind, e.Code)
	}
}

// Report is the keyboard state captured at a flush.
type Report struct {
	Keys      []byte
	Modifiers byte
}

// RecordingKeyboard is an in-memory HID sink. It records every call in
// order, tracks the report it would send, and can stand in for the
// injector's sleep so delays show up in the same event log.
type RecordingKeyboard struct {
	// PressErr, when set, is returned by Press after the key is recorded.
	PressErr error
	gate     chan struct{}
	entered  chan time.Duration
	events   []Event
	reports  []Report
	keys     []byte
	mu       syncutil.Mutex
	mods     byte
	blocking bool
}

// NewRecordingKeyboard creates an empty keyboard.
func NewRecordingKeyboard() *RecordingKeyboard {
	return &RecordingKeyboard{}
}

func (k *RecordingKeyboard) record(e Event) {
	k.events = append(k.events, e)
}

// Press adds keycode to the report.
func (k *RecordingKeyboard) Press(keycode byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.record(Event{Kind: EventPress, Code: keycode})
	if !slices.Contains(k.keys, keycode) {
		if len(k.keys) >= 6 {
			return ErrRollover
		}
		k.keys = append(k.keys, keycode)
	}
	return k.PressErr
}

// Release removes keycode from the report.
func (k *RecordingKeyboard) Release(keycode byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.record(Event{Kind: EventRelease, Code: keycode})
	k.keys = slices.DeleteFunc(k.keys, func(c byte) bool { return c == keycode })
	return nil
}

// RegisterModifiers sets mask bits in the modifier byte.
func (k *RecordingKeyboard) RegisterModifiers(mask byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.record(Event{Kind: EventRegister, Code: mask})
	k.mods |= mask
	return nil
}

// UnregisterModifiers clears mask bits in the modifier byte.
func (k *RecordingKeyboard) UnregisterModifiers(mask byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.record(Event{Kind: EventUnregister, Code: mask})
	k.mods &^= mask
	return nil
}

// ClearKeys empties the report.
func (k *RecordingKeyboard) ClearKeys() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.record(Event{Kind: EventClear})
	k.keys = nil
	k.mods = 0
	return nil
}

// Flush captures the current report.
func (k *RecordingKeyboard) Flush() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.record(Event{Kind: EventFlush})
	k.reports = append(k.reports, Report{Modifiers: k.mods, Keys: slices.Clone(k.keys)})
	return nil
}

// Sleep records a delay. After BlockSleeps it also waits for ReleaseSleep
// or Unblock instead of sleeping.
func (k *RecordingKeyboard) Sleep(d time.Duration) {
	k.mu.Lock()
	k.record(Event{Kind: EventSleep, Delay: d})
	blocking, gate, entered := k.blocking, k.gate, k.entered
	k.mu.Unlock()

	if !blocking {
		return
	}
	entered <- d
	<-gate
}

// BlockSleeps makes Sleep wait to be released one call at a time.
func (k *RecordingKeyboard) BlockSleeps() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.blocking = true
	k.gate = make(chan struct{})
	k.entered = make(chan time.Duration, 64)
}

// WaitSleep waits until a Sleep call is blocked and returns its delay.
func (k *RecordingKeyboard) WaitSleep(timeout time.Duration) (time.Duration, error) {
	k.mu.Lock()
	entered := k.entered
	k.mu.Unlock()
	if entered == nil {
		return 0, errors.New("sleeps are not blocked")
	}
	select {
	case d := <-entered:
		return d, nil
	case <-time.After(timeout):
		return 0, errors.New("timed out waiting for sleep")
	}
}

// ReleaseSleep lets one blocked Sleep return.
func (k *RecordingKeyboard) ReleaseSleep() {
	k.mu.Lock()
	gate := k.gate
	k.mu.Unlock()
	gate <- struct{}{}
}

// Unblock releases every current and future Sleep.
func (k *RecordingKeyboard) Unblock() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.blocking {
		k.blocking = false
		close(k.gate)
	}
}

// Events returns a copy of the call log.
func (k *RecordingKeyboard) Events() []Event {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.events)
}

// HIDEvents returns the call log without sleeps.
func (k *RecordingKeyboard) HIDEvents() []Event {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.DeleteFunc(slices.Clone(k.events), func(e Event) bool { return e.Kind == EventSleep })
}

// Reports returns every flushed report.
func (k *RecordingKeyboard) Reports() []Report {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.reports)
}

// Presses returns the keycodes pressed, in order.
func (k *RecordingKeyboard) Presses() []byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	var out []byte
	for _, e := range k.events {
		if e.Kind == EventPress {
			out = append(out, e.Code)
		}
	}
	return out
}

// State returns the keys and modifiers currently held.
func (k *RecordingKeyboard) State() (keys []byte, mods byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.keys), k.mods
}

// Reset forgets recorded calls and reports but keeps the held state.
func (k *RecordingKeyboard) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.events = nil
	k.reports = nil
}
