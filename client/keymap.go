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

// Package client sends text to a bridge: it converts text to keycode
// pairs, splits them into batches and drives the START, KEYCODE and DONE
// exchange with retries.
package client

import (
	"errors"
	"fmt"

	textbridge "github.com/ZaparooProject/go-textbridge"
)

// Keys the converter emits directly.
const (
	KeyEnter byte = 0x28
	KeyTab   byte = 0x2B
	// KeyF18 switches input method on macOS.
	KeyF18 byte = 0x6D
)

// Input-method toggles for Korean text.
var (
	ToggleWindows = textbridge.KeycodeItem{Keycode: textbridge.KeyLang1}
	ToggleMac     = textbridge.KeycodeItem{Keycode: KeyF18}
)

// ErrUnsupportedRune is returned for characters with no key on the layout.
var ErrUnsupportedRune = errors.New("character has no key on the layout")

func plain(k byte) textbridge.KeycodeItem {
	return textbridge.KeycodeItem{Keycode: k}
}

func shifted(k byte) textbridge.KeycodeItem {
	return textbridge.KeycodeItem{Keycode: k, Modifier: textbridge.ModLeftShift}
}

// usASCII maps printable ASCII plus tab and newline to US layout keys.
var usASCII = func() map[rune]textbridge.KeycodeItem {
	m := map[rune]textbridge.KeycodeItem{
		' ': plain(textbridge.KeySpace), '\n': plain(KeyEnter), '\t': plain(KeyTab),
		'0': plain(0x27), ')': shifted(0x27),
		'-': plain(0x2D), '_': shifted(0x2D),
		'=': plain(0x2E), '+': shifted(0x2E),
		'[': plain(0x2F), '{': shifted(0x2F),
		']': plain(0x30), '}': shifted(0x30),
		'\\': plain(0x31), '|': shifted(0x31),
		';': plain(0x33), ':': shifted(0x33),
		'\'': plain(0x34), '"': shifted(0x34),
		'`': plain(0x35), '~': shifted(0x35),
		',': plain(0x36), '<': shifted(0x36),
		'.': plain(0x37), '>': shifted(0x37),
		'/': plain(0x38), '?': shifted(0x38),
	}
	for i := range 26 {
		m['a'+rune(i)] = plain(0x04 + byte(i))
		m['A'+rune(i)] = shifted(0x04 + byte(i))
	}
	for i, r := range "123456789" {
		m[r] = plain(0x1E + byte(i))
	}
	for i, r := range "!@#$%^&*(" {
		m[r] = shifted(0x1E + byte(i))
	}
	return m
}()

// Encoder converts text to keycode pairs on a US layout, typing Hangul
// with the Dubeolsik layout and an input-method toggle.
type Encoder struct {
	// Toggle switches between English and Korean input.
	Toggle textbridge.KeycodeItem
	// AppendEnter adds Enter after the text.
	AppendEnter bool
}

// DefaultEncoder uses the Windows toggle and no trailing Enter.
func DefaultEncoder() Encoder {
	return Encoder{Toggle: ToggleWindows}
}

// TextToKeycodes converts text with the default encoder.
func TextToKeycodes(text string, appendEnter bool) ([]textbridge.KeycodeItem, error) {
	e := DefaultEncoder()
	e.AppendEnter = appendEnter
	return e.Encode(text)
}

// Encode converts text to keycode pairs. Output always ends in English
// input mode. Digits, spaces and punctuation do not switch modes.
func (e Encoder) Encode(text string) ([]textbridge.KeycodeItem, error) {
	var out []textbridge.KeycodeItem
	korean := false
	toKorean := func() {
		if !korean {
			out = append(out, e.Toggle)
			korean = true
		}
	}

	for i, r := range text {
		switch {
		case r >= syllableFirst && r <= syllableLast:
			toKorean()
			out = appendSyllable(out, r)
		case r >= jamoFirst && r <= jamoLast:
			toKorean()
			out = append(out, compatJamo[r-jamoFirst]...)
		default:
			item, ok := usASCII[r]
			if !ok {
				return nil, fmt.Errorf("%q at byte %d: %w", r, i, ErrUnsupportedRune)
			}
			if korean && isLetter(r) {
				out = append(out, e.Toggle)
				korean = false
			}
			out = append(out, item)
		}
	}
	if korean {
		out = append(out, e.Toggle)
	}
	if e.AppendEnter {
		out = append(out, plain(KeyEnter))
	}
	return out, nil
}

func isLetter(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

// Chunk splits items into batches of at most size pairs. Each toggle key
// travels in a batch of its own so the bridge applies its settle delay
// before anything typed in the new mode.
func Chunk(items []textbridge.KeycodeItem, size int, toggles ...textbridge.KeycodeItem) [][]textbridge.KeycodeItem {
	if size <= 0 || size > textbridge.MaxKeycodes {
		size = textbridge.MaxKeycodes
	}
	isToggle := func(it textbridge.KeycodeItem) bool {
		for _, t := range toggles {
			if it == t {
				return true
			}
		}
		return false
	}

	var chunks [][]textbridge.KeycodeItem
	for i := 0; i < len(items); {
		if isToggle(items[i]) {
			chunks = append(chunks, items[i:i+1])
			i++
			continue
		}
		start := i
		for i < len(items) && i-start < size && !isToggle(items[i]) {
			i++
		}
		chunks = append(chunks, items[start:i])
	}
	return chunks
}
