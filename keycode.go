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

import "fmt"

// MaxKeycodes is the capacity of the keycode buffer, i.e. the largest batch
// a single KEYCODE command may carry.
const MaxKeycodes = 32

// Keycodes and modifiers the injector treats specially.
const (
	KeySpace byte = 0x2C
	// KeyLang1 is the Hangul/English toggle on Korean layouts.
	KeyLang1 byte = 0x90
	// KeyLeftCtrl..KeyRightGUI are the eight modifier usages.
	KeyLeftCtrl byte = 0xE0
	KeyRightGUI byte = 0xE7

	ModLeftCtrl   byte = 0x01
	ModLeftShift  byte = 0x02
	ModLeftAlt    byte = 0x04
	ModLeftGUI    byte = 0x08
	ModRightCtrl  byte = 0x10
	ModRightShift byte = 0x20
	ModRightAlt   byte = 0x40
	ModRightGUI   byte = 0x80
)

// KeycodeItem is one staged (keycode, modifier) pair.
type KeycodeItem struct {
	Keycode  byte
	Modifier byte
}

func (k KeycodeItem) String() string {
	return fmt.Sprintf("(0x%02X,0x%02X)", k.Keycode, k.Modifier)
}

// IsToggle reports whether the host may treat this key as an input-method
// toggle, which needs a longer settle time after release.
func (k KeycodeItem) IsToggle() bool {
	switch {
	case k.Keycode == KeyLang1:
		return true
	case k.Keycode >= KeyLeftCtrl && k.Keycode <= KeyRightGUI:
		return true
	case k.Keycode == KeySpace && k.Modifier == ModLeftCtrl:
		return true
	default:
		return false
	}
}

// KeycodeBuffer is the fixed-capacity staging area for one batch.
// It is overwritten wholesale by Load.
type KeycodeBuffer struct {
	items [MaxKeycodes]KeycodeItem
	count int
}

// Load replaces the buffer contents with count pairs decoded from wire
// bytes (keycode, modifier, keycode, modifier, ...). On error the buffer is
// left untouched.
func (b *KeycodeBuffer) Load(count int, pairs []byte) error {
	if count > MaxKeycodes {
		return fmt.Errorf("%d keycodes: %w", count, ErrBatchTooLarge)
	}
	if len(pairs) < 2*count {
		return fmt.Errorf("need %d bytes, got %d: %w", 2*count, len(pairs), ErrBatchTruncated)
	}
	for i := range count {
		b.items[i] = KeycodeItem{Keycode: pairs[2*i], Modifier: pairs[2*i+1]}
	}
	b.count = count
	return nil
}

// Len returns the number of staged pairs.
func (b *KeycodeBuffer) Len() int {
	return b.count
}

// At returns the staged pair at index i.
func (b *KeycodeBuffer) At(i int) KeycodeItem {
	return b.items[i]
}

// Items returns a copy of the staged pairs.
func (b *KeycodeBuffer) Items() []KeycodeItem {
	out := make([]KeycodeItem, b.count)
	copy(out, b.items[:b.count])
	return out
}

// Reset discards the staged pairs.
func (b *KeycodeBuffer) Reset() {
	b.count = 0
}
