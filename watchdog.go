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
	"sync"
	"time"
)

// Watchdog is a single rearmable timer. Each Arm starts a new generation;
// a callback from an older generation is recognised with Current and
// ignored, so a timer that fires while being rearmed cannot reset a live
// session.
type Watchdog struct {
	timer   *time.Timer
	fire    func(gen uint64)
	timeout time.Duration
	gen     uint64
	mu      sync.Mutex
	armed   bool
}

// NewWatchdog creates a disarmed watchdog that calls fire with the arming
// generation once timeout elapses after the latest Arm.
func NewWatchdog(timeout time.Duration, fire func(gen uint64)) *Watchdog {
	return &Watchdog{timeout: timeout, fire: fire}
}

// Arm starts or restarts the timer and returns the new generation.
func (w *Watchdog) Arm() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
	w.gen++
	gen := w.gen
	w.armed = true
	w.timer = time.AfterFunc(w.timeout, func() { w.fire(gen) })
	return gen
}

// Disarm stops the timer. Disarming a disarmed watchdog is a no-op.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
	w.gen++
	w.armed = false
}

// Current reports whether gen is the live, armed generation.
func (w *Watchdog) Current(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed && w.gen == gen
}

// Armed reports whether the timer is running.
func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

// SetTimeout changes the bound used by the next Arm.
func (w *Watchdog) SetTimeout(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timeout = d
}

// Timeout returns the configured bound.
func (w *Watchdog) Timeout() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timeout
}

func (w *Watchdog) stopLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
