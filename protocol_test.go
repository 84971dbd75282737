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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		data    []byte
		want    Command
	}{
		{name: "empty", data: nil, wantErr: ErrEmptyFrame},
		{name: "start", data: []byte{CmdStart, 5}, want: Command{Op: CmdStart, Seq: 5}},
		{
			name: "start with total",
			data: []byte{CmdStart, 0, 0x01, 0x00},
			want: Command{Op: CmdStart, Total: 256, HasTotal: true},
		},
		{name: "start odd trailing byte", data: []byte{CmdStart, 1, 0x01}, want: Command{Op: CmdStart, Seq: 1}},
		{name: "start short", data: []byte{CmdStart}, wantErr: ErrFrameTooShort},
		{
			name: "keycode",
			data: []byte{CmdKeycode, 3, 1, 0x04, 0x02},
			want: Command{Op: CmdKeycode, Seq: 3, Count: 1, Pairs: []byte{0x04, 0x02}},
		},
		{
			name: "keycode empty batch",
			data: []byte{CmdKeycode, 3, 0},
			want: Command{Op: CmdKeycode, Seq: 3, Pairs: []byte{}},
		},
		{name: "keycode short", data: []byte{CmdKeycode, 3}, wantErr: ErrFrameTooShort},
		{name: "done", data: []byte{CmdDone, 9}, want: Command{Op: CmdDone, Seq: 9}},
		{name: "done short", data: []byte{CmdDone}, wantErr: ErrFrameTooShort},
		{name: "abort", data: []byte{CmdAbort, 4, 0xAA}, want: Command{Op: CmdAbort, Seq: 4}},
		{name: "abort short", data: []byte{CmdAbort}, wantErr: ErrFrameTooShort},
		{name: "set delay short", data: []byte{CmdSetDelay, 1, 2, 3, 4, 5}, wantErr: ErrFrameTooShort},
		{name: "unknown", data: []byte{0x42, 0}, wantErr: ErrUnknownCommand},
		{name: "zero opcode", data: []byte{0x00}, wantErr: ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCommand(tt.data)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand_SetDelay(t *testing.T) {
	t.Parallel()

	cmd, err := ParseCommand([]byte{CmdSetDelay, 8, 9, 10, 80, 120, 255})
	require.NoError(t, err)
	assert.Equal(t, Timing{
		Press:       8 * time.Millisecond,
		Release:     9 * time.Millisecond,
		Combo:       10 * time.Millisecond,
		TogglePress: 80 * time.Millisecond,
		Toggle:      120 * time.Millisecond,
		Warmup:      255 * time.Millisecond,
	}, cmd.Timing)
}

func TestEncoders(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{RespAck, 5}, EncodeResponse(RespAck, 5))
	assert.Equal(t, []byte{RespError, 6, ErrCodeOverflow}, EncodeError(6, ErrCodeOverflow))
	assert.Equal(t, []byte{CmdStart, 0, 0x01, 0x2C}, EncodeStart(0, 300))
	assert.Equal(t, []byte{CmdDone, 4}, EncodeDone(4))
	assert.Equal(t, []byte{CmdAbort, 7}, EncodeAbort(7))
	assert.Equal(t,
		[]byte{CmdKeycode, 1, 2, 0x0B, ModLeftShift, 0x0C, 0x00},
		EncodeKeycode(1, []KeycodeItem{{Keycode: 0x0B, Modifier: ModLeftShift}, {Keycode: 0x0C}}),
	)
	assert.Equal(t, []byte{CmdSetDelay, 5, 5, 5, 5, 100, 1}, EncodeSetDelay(DefaultTiming()))
}

func TestEncodeKeycode_ParsesBack(t *testing.T) {
	t.Parallel()

	items := []KeycodeItem{{Keycode: 0x04}, {Keycode: 0x1E, Modifier: ModLeftShift}, {Keycode: KeyLang1}}
	cmd, err := ParseCommand(EncodeKeycode(200, items))
	require.NoError(t, err)

	var buf KeycodeBuffer
	require.NoError(t, buf.Load(int(cmd.Count), cmd.Pairs))
	assert.Equal(t, items, buf.Items())
	assert.Equal(t, byte(200), cmd.Seq)
}

func TestNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "KEYCODE", CommandName(CmdKeycode))
	assert.Equal(t, "SET_DELAY", CommandName(CmdSetDelay))
	assert.Equal(t, "CMD(0x7F)", CommandName(0x7F))
	assert.Equal(t, "READY", ResponseName(RespReady))
	assert.Equal(t, "RESP(0x00)", ResponseName(0x00))
	assert.Equal(t, "no transmission", ErrorCodeName(ErrCodeSeq))
	assert.Equal(t, "code 0x09", ErrorCodeName(0x09))
}
