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

import (
	"encoding/binary"
	"fmt"
)

// Commands sent by the peer (write characteristic).
const (
	CmdKeycode  byte = 0x01
	CmdStart    byte = 0x02
	CmdDone     byte = 0x03
	CmdAbort    byte = 0x04
	CmdSetDelay byte = 0x05
)

// Responses sent to the peer (notify characteristic).
const (
	RespAck   byte = 0x01
	RespNack  byte = 0x02
	RespReady byte = 0x03
	RespDone  byte = 0x04
	RespError byte = 0x05
)

// Error codes carried in the third byte of an ERROR response.
const (
	ErrCodeOverflow byte = 0x03
	ErrCodeSeq      byte = 0x04
	ErrCodeTimeout  byte = 0x05
)

// NoSeq marks that no batch has been acknowledged in the current transmission.
const NoSeq byte = 0xFF

// Minimum frame lengths per command, including the opcode byte.
const (
	minKeycodeLen  = 3
	minStartLen    = 2
	minDoneLen     = 2
	minAbortLen    = 2
	minSetDelayLen = 7

	keycodeHeaderLen = 3
)

// Command is a decoded inbound frame.
type Command struct {
	// Pairs aliases the frame for KEYCODE; it is only valid until the
	// dispatcher returns.
	Pairs  []byte
	Timing Timing
	Total  uint16
	Op     byte
	Seq    byte
	Count  byte
	// HasTotal reports whether START carried the optional total field.
	HasTotal bool
}

// ParseCommand decodes a frame into a Command. Frames that fail here are
// dropped by the dispatcher without a response.
func ParseCommand(data []byte) (Command, error) {
	if len(data) == 0 {
		return Command{}, ErrEmptyFrame
	}

	cmd := Command{Op: data[0]}
	switch cmd.Op {
	case CmdStart:
		if len(data) < minStartLen {
			return cmd, fmt.Errorf("START: %w", ErrFrameTooShort)
		}
		cmd.Seq = data[1]
		if len(data) >= minStartLen+2 {
			cmd.Total = binary.BigEndian.Uint16(data[2:4])
			cmd.HasTotal = true
		}
	case CmdKeycode:
		if len(data) < minKeycodeLen {
			return cmd, fmt.Errorf("KEYCODE: %w", ErrFrameTooShort)
		}
		cmd.Seq = data[1]
		cmd.Count = data[2]
		cmd.Pairs = data[keycodeHeaderLen:]
	case CmdDone:
		if len(data) < minDoneLen {
			return cmd, fmt.Errorf("DONE: %w", ErrFrameTooShort)
		}
		cmd.Seq = data[1]
	case CmdAbort:
		if len(data) < minAbortLen {
			return cmd, fmt.Errorf("ABORT: %w", ErrFrameTooShort)
		}
		cmd.Seq = data[1]
	case CmdSetDelay:
		if len(data) < minSetDelayLen {
			return cmd, fmt.Errorf("SET_DELAY: %w", ErrFrameTooShort)
		}
		cmd.Timing = TimingFromWire(data[1:minSetDelayLen])
	default:
		return cmd, fmt.Errorf("opcode 0x%02X: %w", cmd.Op, ErrUnknownCommand)
	}
	return cmd, nil
}

// EncodeResponse builds a two-byte response frame.
func EncodeResponse(resp, seq byte) []byte {
	return []byte{resp, seq}
}

// EncodeError builds an ERROR response frame.
func EncodeError(seq, code byte) []byte {
	return []byte{RespError, seq, code}
}

// EncodeKeycode builds a KEYCODE frame. It is the sender-side counterpart
// of ParseCommand and does not enforce the buffer capacity.
func EncodeKeycode(seq byte, items []KeycodeItem) []byte {
	out := make([]byte, 0, keycodeHeaderLen+2*len(items))
	out = append(out, CmdKeycode, seq, byte(len(items)))
	for _, it := range items {
		out = append(out, it.Keycode, it.Modifier)
	}
	return out
}

// EncodeStart builds a START frame carrying the advisory batch total.
func EncodeStart(seq byte, total uint16) []byte {
	out := []byte{CmdStart, seq, 0, 0}
	binary.BigEndian.PutUint16(out[2:], total)
	return out
}

// EncodeDone builds a DONE frame.
func EncodeDone(seq byte) []byte {
	return []byte{CmdDone, seq}
}

// EncodeAbort builds an ABORT frame.
func EncodeAbort(seq byte) []byte {
	return []byte{CmdAbort, seq}
}

// EncodeSetDelay builds a SET_DELAY frame.
func EncodeSetDelay(t Timing) []byte {
	return append([]byte{CmdSetDelay}, t.Wire()...)
}

// CommandName returns a printable name for a command opcode.
func CommandName(op byte) string {
	switch op {
	case CmdKeycode:
		return "KEYCODE"
	case CmdStart:
		return "START"
	case CmdDone:
		return "DONE"
	case CmdAbort:
		return "ABORT"
	case CmdSetDelay:
		return "SET_DELAY"
	default:
		return fmt.Sprintf("CMD(0x%02X)", op)
	}
}

// ResponseName returns a printable name for a response opcode.
func ResponseName(resp byte) string {
	switch resp {
	case RespAck:
		return "ACK"
	case RespNack:
		return "NACK"
	case RespReady:
		return "READY"
	case RespDone:
		return "DONE"
	case RespError:
		return "ERROR"
	default:
		return fmt.Sprintf("RESP(0x%02X)", resp)
	}
}

// ErrorCodeName returns a printable name for an ERROR code.
func ErrorCodeName(code byte) string {
	switch code {
	case ErrCodeOverflow:
		return "overflow"
	case ErrCodeSeq:
		return "no transmission"
	case ErrCodeTimeout:
		return "session timeout"
	default:
		return fmt.Sprintf("code 0x%02X", code)
	}
}
