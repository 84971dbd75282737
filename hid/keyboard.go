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

package hid

import (
	"fmt"
	"io"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/ZaparooProject/go-textbridge/internal/syncutil"
)

// Keyboard implements textbridge.HIDSink. Press, Release and the modifier
// calls only edit the pending report; Flush sends it.
type Keyboard struct {
	w       io.Writer
	report  Report
	mu      syncutil.Mutex
	flushes int
}

// NewKeyboard creates a keyboard that writes reports to w.
func NewKeyboard(w io.Writer) *Keyboard {
	return &Keyboard{w: w}
}

// Press adds keycode to the pending report. Keycode 0 is ignored.
func (k *Keyboard) Press(keycode byte) error {
	if keycode == 0 {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.report.setKey(keycode) {
		return fmt.Errorf("press 0x%02X with %s: %w", keycode, k.report, textbridge.ErrRollover)
	}
	return nil
}

// Release removes keycode from the pending report.
func (k *Keyboard) Release(keycode byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.report.clearKey(keycode)
	return nil
}

// RegisterModifiers sets mask in the pending report.
func (k *Keyboard) RegisterModifiers(mask byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.report.Modifiers |= mask
	return nil
}

// UnregisterModifiers clears mask in the pending report.
func (k *Keyboard) UnregisterModifiers(mask byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.report.Modifiers &^= mask
	return nil
}

// ClearKeys releases every key and modifier in the pending report.
func (k *Keyboard) ClearKeys() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.report.Clear()
	return nil
}

// Flush writes the pending report.
func (k *Keyboard) Flush() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	buf := k.report.Bytes()
	n, err := k.w.Write(buf[:])
	if err != nil {
		return fmt.Errorf("%w: %w", textbridge.ErrHIDWrite, err)
	}
	if n != ReportSize {
		return fmt.Errorf("%w: short write %d/%d", textbridge.ErrHIDWrite, n, ReportSize)
	}
	k.flushes++
	return nil
}

// Report returns the pending report.
func (k *Keyboard) Report() Report {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.report
}

// Flushes returns how many reports were written.
func (k *Keyboard) Flushes() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.flushes
}

// Close sends an empty report and closes the writer if it can be closed.
func (k *Keyboard) Close() error {
	_ = k.ClearKeys()
	flushErr := k.Flush()
	if c, ok := k.w.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close HID device: %w", err)
		}
	}
	return flushErr
}

var _ textbridge.HIDSink = (*Keyboard)(nil)
