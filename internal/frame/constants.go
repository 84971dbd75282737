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

// Package frame implements the byte framing spoken with a BLE co-processor
// over UART, SPI or I2C:
//
//	00 00 FF LEN LCS TYPE PAYLOAD... DCS 00
//
// LEN counts TYPE and PAYLOAD, LEN+LCS is zero mod 256, and
// TYPE+sum(PAYLOAD)+DCS is zero mod 256.
package frame

// Frame markers
const (
	Preamble   = 0x00 // Frame preamble byte
	StartCode1 = 0x00 // Start code byte 1
	StartCode2 = 0xFF // Start code byte 2
	Postamble  = 0x00 // Frame postamble byte
)

// Message types sent by the co-processor.
const (
	EvtWrite        byte = 0x10 // Peer wrote the command characteristic
	EvtConnected    byte = 0x11 // Peer connected; payload is its address
	EvtDisconnected byte = 0x12 // Peer disconnected; payload is the reason
	EvtNotify       byte = 0x13 // Peer (un)subscribed; payload 1 or 0
)

// Message types sent by the host.
const (
	CmdNotify     byte = 0x20 // Notify the response characteristic
	CmdAdvStart   byte = 0x21 // Start advertising; payload is the name
	CmdAdvStop    byte = 0x22 // Stop advertising
	CmdDisconnect byte = 0x23 // Drop the current peer
)

// Frame size limits
const (
	MaxPayloadLength = 254 // LEN is one byte and includes TYPE
	headerLength     = 5   // preamble + start code + LEN + LCS
	trailerLength    = 2   // DCS + postamble
	MinFrameLength   = headerLength + 1 + trailerLength
	MaxFrameLength   = headerLength + 1 + MaxPayloadLength + trailerLength
)

// TypeName returns a printable name for a message type.
func TypeName(t byte) string {
	switch t {
	case EvtWrite:
		return "EvtWrite"
	case EvtConnected:
		return "EvtConnected"
	case EvtDisconnected:
		return "EvtDisconnected"
	case EvtNotify:
		return "EvtNotify"
	case CmdNotify:
		return "CmdNotify"
	case CmdAdvStart:
		return "CmdAdvStart"
	case CmdAdvStop:
		return "CmdAdvStop"
	case CmdDisconnect:
		return "CmdDisconnect"
	default:
		return "unknown"
	}
}
