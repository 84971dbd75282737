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

import "sync/atomic"

// Stats is a snapshot of bridge counters.
type Stats struct {
	Frames         int64 // Frames handed to HandleFrame
	Dropped        int64 // Malformed or unknown frames dropped without reply
	Batches        int64 // KEYCODE batches accepted for injection
	BatchesAcked   int64 // Batches fully injected and acknowledged
	Keys           int64 // Key pairs injected
	Duplicates     int64 // KEYCODE retransmits answered with ACK only
	Nacks          int64 // KEYCODE or START rejected as busy
	Errors         int64 // ERROR responses sent
	Aborts         int64 // ABORT commands handled
	Timeouts       int64 // Watchdog resets of an open transmission
	Cleanups       int64 // Cleanup runs that released an active session
	HIDErrors      int64 // HID sink calls that returned an error
	Notifications  int64 // Frames delivered to the link
	NotifySkipped  int64 // Frames not sent: no peer or notifications off
	NotifyFailures int64 // Frames the link failed to send
}

type counters struct {
	frames         atomic.Int64
	dropped        atomic.Int64
	batches        atomic.Int64
	batchesAcked   atomic.Int64
	keys           atomic.Int64
	duplicates     atomic.Int64
	nacks          atomic.Int64
	errors         atomic.Int64
	aborts         atomic.Int64
	timeouts       atomic.Int64
	cleanups       atomic.Int64
	hidErrors      atomic.Int64
	notifications  atomic.Int64
	notifySkipped  atomic.Int64
	notifyFailures atomic.Int64
}

// Stats returns current counters.
func (b *Bridge) Stats() Stats {
	c := &b.counters
	return Stats{
		Frames:         c.frames.Load(),
		Dropped:        c.dropped.Load(),
		Batches:        c.batches.Load(),
		BatchesAcked:   c.batchesAcked.Load(),
		Keys:           c.keys.Load(),
		Duplicates:     c.duplicates.Load(),
		Nacks:          c.nacks.Load(),
		Errors:         c.errors.Load(),
		Aborts:         c.aborts.Load(),
		Timeouts:       c.timeouts.Load(),
		Cleanups:       c.cleanups.Load(),
		HIDErrors:      c.hidErrors.Load(),
		Notifications:  c.notifications.Load(),
		NotifySkipped:  c.notifySkipped.Load(),
		NotifyFailures: c.notifyFailures.Load(),
	}
}
