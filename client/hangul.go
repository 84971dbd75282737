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

package client

import textbridge "github.com/ZaparooProject/go-textbridge"

// Unicode ranges for precomposed syllables and compatibility jamo.
const (
	syllableFirst = 0xAC00
	syllableLast  = 0xD7A3
	jamoFirst     = 0x3131
	jamoLast      = 0x3163

	medialCount = 21
	finalCount  = 28
)

type keys = []textbridge.KeycodeItem

// Dubeolsik initial consonants, in Unicode order.
var initials = []textbridge.KeycodeItem{
	plain(0x15), shifted(0x15), plain(0x16), plain(0x08), shifted(0x08),
	plain(0x09), plain(0x04), plain(0x14), shifted(0x14), plain(0x17),
	shifted(0x17), plain(0x07), plain(0x1A), shifted(0x1A), plain(0x06),
	plain(0x1D), plain(0x1B), plain(0x19), plain(0x0A),
}

// Dubeolsik medial vowels. Compound vowels take two keys.
var medials = []keys{
	{plain(0x0E)}, {plain(0x12)}, {plain(0x0C)}, {shifted(0x12)},
	{plain(0x0D)}, {plain(0x13)}, {plain(0x18)}, {shifted(0x13)},
	{plain(0x0B)}, {plain(0x0B), plain(0x0E)}, {plain(0x0B), plain(0x12)},
	{plain(0x0B), plain(0x0F)}, {plain(0x1C)}, {plain(0x11)},
	{plain(0x11), plain(0x0D)}, {plain(0x11), plain(0x13)},
	{plain(0x11), plain(0x0F)}, {plain(0x05)}, {plain(0x10)},
	{plain(0x10), plain(0x0F)}, {plain(0x0F)},
}

// Dubeolsik final consonants; index 0 is no final. Compound finals take
// two keys.
var finals = []keys{
	nil,
	{plain(0x15)}, {shifted(0x15)}, {plain(0x15), plain(0x17)},
	{plain(0x16)}, {plain(0x16), plain(0x1A)}, {plain(0x16), plain(0x0A)},
	{plain(0x08)}, {plain(0x09)}, {plain(0x09), plain(0x15)},
	{plain(0x09), plain(0x04)}, {plain(0x09), plain(0x14)},
	{plain(0x09), plain(0x17)}, {plain(0x09), plain(0x1B)},
	{plain(0x09), plain(0x19)}, {plain(0x09), plain(0x0A)},
	{plain(0x04)}, {plain(0x14)}, {plain(0x14), plain(0x17)},
	{plain(0x17)}, {shifted(0x17)}, {plain(0x07)}, {plain(0x1A)},
	{plain(0x06)}, {plain(0x1D)}, {plain(0x1B)}, {plain(0x19)},
	{plain(0x0A)},
}

// compatJamo covers U+3131..U+3163.
var compatJamo = []keys{
	{plain(0x15)}, {shifted(0x15)}, {plain(0x15), plain(0x17)},
	{plain(0x16)}, {plain(0x16), plain(0x1A)}, {plain(0x16), plain(0x0A)},
	{plain(0x08)}, {shifted(0x08)}, {plain(0x09)},
	{plain(0x09), plain(0x15)}, {plain(0x09), plain(0x04)},
	{plain(0x09), plain(0x14)}, {plain(0x09), plain(0x17)},
	{plain(0x09), plain(0x1B)}, {plain(0x09), plain(0x19)},
	{plain(0x09), plain(0x0A)}, {plain(0x04)}, {plain(0x14)},
	{shifted(0x14)}, {plain(0x14), plain(0x17)}, {plain(0x17)},
	{shifted(0x17)}, {plain(0x07)}, {plain(0x1A)}, {shifted(0x1A)},
	{plain(0x06)}, {plain(0x1D)}, {plain(0x1B)}, {plain(0x19)},
	{plain(0x0A)},
	{plain(0x0E)}, {plain(0x12)}, {plain(0x0C)}, {shifted(0x12)},
	{plain(0x0D)}, {plain(0x13)}, {plain(0x18)}, {shifted(0x13)},
	{plain(0x0B)}, {plain(0x0B), plain(0x0E)}, {plain(0x0B), plain(0x12)},
	{plain(0x0B), plain(0x0F)}, {plain(0x1C)}, {plain(0x11)},
	{plain(0x11), plain(0x0D)}, {plain(0x11), plain(0x13)},
	{plain(0x11), plain(0x0F)}, {plain(0x05)}, {plain(0x10)},
	{plain(0x10), plain(0x0F)}, {plain(0x0F)},
}

func appendSyllable(out []textbridge.KeycodeItem, r rune) []textbridge.KeycodeItem {
	code := int(r - syllableFirst)
	out = append(out, initials[code/(medialCount*finalCount)])
	out = append(out, medials[code%(medialCount*finalCount)/finalCount]...)
	return append(out, finals[code%finalCount]...)
}
