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

import "fmt"

// Session is the per-transmission protocol state.
//
// Whenever the bridge lock is released, Injecting implies Transmitting and
// ActiveModifiers is non-zero only while Injecting.
type Session struct {
	// Total is the advisory key count from the last START.
	Total uint16
	// Transmitting is true between START and DONE, ABORT or a reset.
	Transmitting bool
	// Injecting is true while a batch is being typed.
	Injecting bool
	// LastAckedSeq is the seq of the last batch acknowledged in this
	// transmission, or NoSeq.
	LastAckedSeq byte
	// CurrentSeq is the seq of the batch being typed.
	CurrentSeq byte
	// ActiveModifiers is the modifier mask currently registered with the
	// HID sink by the injector.
	ActiveModifiers byte
}

func newSession() Session {
	return Session{LastAckedSeq: NoSeq}
}

// Active reports whether a transmission or injection is in progress.
func (s Session) Active() bool {
	return s.Transmitting || s.Injecting
}

// State names the session for logs.
func (s Session) State() string {
	switch {
	case s.Injecting:
		return "injecting"
	case s.Transmitting:
		return "transmitting"
	default:
		return "idle"
	}
}

func (s Session) String() string {
	return fmt.Sprintf("%s last=%d cur=%d mods=0x%02X total=%d",
		s.State(), s.LastAckedSeq, s.CurrentSeq, s.ActiveModifiers, s.Total)
}

// open starts a transmission, forgetting the previous seq.
func (s *Session) open(total uint16) {
	s.Transmitting = true
	s.LastAckedSeq = NoSeq
	s.Total = total
}
