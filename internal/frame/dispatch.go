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
	"fmt"

	textbridge "github.com/ZaparooProject/go-textbridge"
)

// Dispatch delivers one co-processor event to h. Host-bound types and
// unknown types are reported as ErrUnexpected.
func Dispatch(msg Message, h textbridge.LinkHandler) error {
	switch msg.Type {
	case EvtWrite:
		h.HandleFrame(msg.Payload)
	case EvtConnected:
		textbridge.Debugf("co-processor: peer %q connected", msg.Payload)
		h.OnConnected()
	case EvtDisconnected:
		reason := byte(0)
		if len(msg.Payload) > 0 {
			reason = msg.Payload[0]
		}
		textbridge.Debugf("co-processor: peer disconnected (reason 0x%02X)", reason)
		h.OnDisconnected()
	case EvtNotify:
		h.OnNotificationsEnabled(len(msg.Payload) > 0 && msg.Payload[0] == 1)
	default:
		return fmt.Errorf("%s (0x%02X): %w", TypeName(msg.Type), msg.Type, textbridge.ErrUnexpected)
	}
	return nil
}
