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
	"bytes"
	"errors"

	textbridge "github.com/ZaparooProject/go-textbridge"
)

var startCode = []byte{StartCode1, StartCode2}

// Decoder reassembles messages from a byte stream that may arrive in
// arbitrary fragments and may contain noise. It is not safe for concurrent
// use.
type Decoder struct {
	buf []byte
	// Corrupted counts frames dropped for a bad LCS or DCS.
	Corrupted int
	// Skipped counts noise bytes discarded while looking for a start code.
	Skipped int
}

// Write buffers stream bytes. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next returns the next complete message, or false when more bytes are
// needed. The returned payload is owned by the caller.
func (d *Decoder) Next() (Message, bool) {
	for {
		idx := bytes.Index(d.buf, startCode)
		if idx < 0 {
			// Keep a trailing StartCode1 that may begin the next start code.
			keep := 0
			if n := len(d.buf); n > 0 && d.buf[n-1] == StartCode1 {
				keep = 1
			}
			d.discard(len(d.buf) - keep)
			return Message{}, false
		}
		d.discard(idx)

		frameLen, needMore, err := ValidateFrameLength(d.buf, len(startCode))
		if needMore {
			return Message{}, false
		}
		if err != nil {
			d.drop()
			continue
		}
		if len(d.buf) < frameLen {
			return Message{}, false
		}

		bodyStart := len(startCode) + 2
		dcsEnd := frameLen - 1
		if err := ValidateFrameChecksum(d.buf, bodyStart, dcsEnd); err != nil {
			d.drop()
			continue
		}

		msg := Message{
			Type:    d.buf[bodyStart],
			Payload: append([]byte(nil), d.buf[bodyStart+1:dcsEnd-1]...),
		}
		d.discard(frameLen)
		return msg, true
	}
}

// Buffered returns the number of bytes waiting for a complete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards buffered bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// drop skips the start code of a corrupted frame so scanning resumes
// inside it.
func (d *Decoder) drop() {
	d.Corrupted++
	d.buf = d.buf[len(startCode):]
}

func (d *Decoder) discard(n int) {
	if n <= 0 {
		return
	}
	// Preamble bytes before a start code are not noise.
	for _, b := range d.buf[:n] {
		if b != Preamble {
			d.Skipped++
		}
	}
	d.buf = d.buf[n:]
	if len(d.buf) == 0 {
		d.buf = d.buf[:0:0]
	}
}

// IsCorruption reports whether err came from a malformed frame.
func IsCorruption(err error) bool {
	return errors.Is(err, textbridge.ErrFrameCorrupted) || errors.Is(err, textbridge.ErrChecksumMismatch)
}
