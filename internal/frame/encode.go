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

// Message is one decoded frame.
type Message struct {
	Payload []byte
	Type    byte
}

// AppendFrame appends the framed message to dst.
func AppendFrame(dst []byte, typ byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLength {
		return dst, textbridge.NewDataTooLargeError("AppendFrame", TypeName(typ))
	}
	length := byte(len(payload) + 1)
	dst = append(dst, Preamble, StartCode1, StartCode2, length, -length, typ)
	dst = append(dst, payload...)
	return append(dst, DataChecksum(typ, payload), Postamble), nil
}

// Encode returns a newly allocated frame.
func Encode(typ byte, payload []byte) ([]byte, error) {
	return AppendFrame(make([]byte, 0, headerLength+1+len(payload)+trailerLength), typ, payload)
}
