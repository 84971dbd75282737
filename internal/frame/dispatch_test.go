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
	"testing"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	frames    [][]byte
	events    []string
	notifyOns []bool
}

func (r *recordingHandler) HandleFrame(data []byte) int {
	r.frames = append(r.frames, data)
	r.events = append(r.events, "frame")
	return len(data)
}

func (r *recordingHandler) OnConnected()    { r.events = append(r.events, "connected") }
func (r *recordingHandler) OnDisconnected() { r.events = append(r.events, "disconnected") }

func (r *recordingHandler) OnNotificationsEnabled(enabled bool) {
	r.notifyOns = append(r.notifyOns, enabled)
	r.events = append(r.events, "notify")
}

func TestDispatch(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	msgs := []Message{
		{Type: EvtConnected, Payload: []byte("11:22:33:44:55:66")},
		{Type: EvtNotify, Payload: []byte{1}},
		{Type: EvtWrite, Payload: []byte{0x02, 0x00}},
		{Type: EvtNotify, Payload: []byte{0}},
		{Type: EvtNotify},
		{Type: EvtDisconnected, Payload: []byte{0x13}},
		{Type: EvtDisconnected},
	}
	for _, m := range msgs {
		require.NoError(t, Dispatch(m, h))
	}

	assert.Equal(t, []string{"connected", "notify", "frame", "notify", "notify", "disconnected", "disconnected"}, h.events)
	assert.Equal(t, []bool{true, false, false}, h.notifyOns)
	assert.Equal(t, [][]byte{{0x02, 0x00}}, h.frames)
}

func TestDispatch_RejectsHostTypes(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	for _, typ := range []byte{CmdNotify, CmdAdvStart, CmdAdvStop, CmdDisconnect, 0x7F} {
		err := Dispatch(Message{Type: typ}, h)
		require.ErrorIs(t, err, textbridge.ErrUnexpected)
	}
	assert.Empty(t, h.events)
}
