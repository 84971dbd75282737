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
	"testing"
)

// Fuzz tests for the co-processor stream decoder. Noise on a UART line or a
// misbehaving co-processor must never panic the host.
//
// Run with: go test -fuzz=FuzzDecoder -fuzztime=30s ./internal/frame/

// FuzzDecoder feeds arbitrary bytes in arbitrary chunk sizes and checks
// that every decoded message re-encodes to a frame the decoder accepts.
func FuzzDecoder(f *testing.F) {
	seed, _ := Encode(EvtWrite, []byte{0x01, 0x00, 0x01, 0x04, 0x00})
	f.Add(seed, 1)
	f.Add(seed, 64)
	f.Add([]byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}, 3)
	f.Add([]byte{0x00, 0xFF, 0xFF, 0x01, 0x10, 0xF0, 0x00}, 2)
	f.Add([]byte{}, 0)
	f.Add(bytes.Repeat([]byte{0x00, 0xFF}, 40), 5)

	f.Fuzz(func(t *testing.T, data []byte, chunk int) {
		if chunk <= 0 {
			chunk = 1
		}
		var d Decoder
		for len(data) > 0 {
			n := min(chunk, len(data))
			_, _ = d.Write(data[:n])
			data = data[n:]
			for {
				msg, ok := d.Next()
				if !ok {
					break
				}
				again, err := Encode(msg.Type, msg.Payload)
				if err != nil {
					t.Fatalf("decoded message does not re-encode: %v", err)
				}
				var check Decoder
				_, _ = check.Write(again)
				round, ok := check.Next()
				if !ok || round.Type != msg.Type || !bytes.Equal(round.Payload, msg.Payload) {
					t.Fatalf("round trip mismatch for type 0x%02X", msg.Type)
				}
			}
		}
	})
}

// FuzzValidateFrameChecksum checks bounds handling with arbitrary ranges.
func FuzzValidateFrameChecksum(f *testing.F) {
	f.Add([]byte{0x20, 0x01, 0x05, 0xDA}, 0, 4)
	f.Add([]byte{}, 0, 0)
	f.Add([]byte{0x01, 0x02, 0x03}, 1, 5)
	f.Add([]byte{0x01, 0x02, 0x03}, 5, 7)

	f.Fuzz(func(_ *testing.T, buf []byte, start, end int) {
		_ = ValidateFrameChecksum(buf, start, end)
	})
}

// FuzzValidateFrameLength checks bounds handling with arbitrary offsets.
func FuzzValidateFrameLength(f *testing.F) {
	f.Add([]byte{0x00, 0xFF, 0x03, 0xFD}, 2)
	f.Add([]byte{0x00}, 5)
	f.Add([]byte{}, -1)

	f.Fuzz(func(_ *testing.T, buf []byte, off int) {
		_, _, _ = ValidateFrameLength(buf, off)
	})
}
