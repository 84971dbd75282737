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

package frame

import (
	textbridge "github.com/ZaparooProject/go-textbridge"
)

// ValidateFrameLength checks the LEN/LCS pair at buf[off] and returns the
// total frame length measured from the start code. It reports
// ErrFrameCorrupted for a bad LCS and needMore when buf is too short.
func ValidateFrameLength(buf []byte, off int) (frameLen int, needMore bool, err error) {
	if off < 0 || off+1 >= len(buf) {
		return 0, true, nil
	}
	length := buf[off]
	if length+buf[off+1] != 0 {
		return 0, false, textbridge.NewFrameCorruptedError("ValidateFrameLength", "")
	}
	if length == 0 {
		return 0, false, textbridge.NewFrameCorruptedError("ValidateFrameLength", "")
	}
	// start code (2) + LEN + LCS + body + DCS + postamble
	return 2 + 2 + int(length) + trailerLength, false, nil
}

// ValidateFrameChecksum checks that buf[start:end] sums to zero, which is
// the case for TYPE, PAYLOAD and DCS of a well-formed frame.
func ValidateFrameChecksum(buf []byte, start, end int) error {
	if start < 0 || end > len(buf) || start >= end {
		return textbridge.NewFrameCorruptedError("ValidateFrameChecksum", "")
	}
	if CalculateChecksum(buf[start:end]) != 0 {
		return textbridge.NewChecksumMismatchError("ValidateFrameChecksum", "")
	}
	return nil
}
