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

import "time"

// Option configures a Bridge.
type Option func(*Bridge)

// WithLink attaches the transport adapter used for notifications and
// advertising. A bridge without a link still injects but cannot reply.
func WithLink(link Link) Option {
	return func(b *Bridge) {
		b.link = link
	}
}

// WithTiming sets the initial injection timing.
func WithTiming(t Timing) Option {
	return func(b *Bridge) {
		b.timing = t
	}
}

// WithSessionTimeout sets how long an open transmission may stay idle
// before the watchdog resets it.
func WithSessionTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.sessionTimeout = d
		}
	}
}

// WithSleep replaces the injector's delay function.
func WithSleep(sleep func(time.Duration)) Option {
	return func(b *Bridge) {
		if sleep != nil {
			b.sleep = sleep
		}
	}
}

// WithStateListener registers fn to be told when local key blocking turns
// on or off. fn runs outside the bridge lock but must not call HandleFrame.
func WithStateListener(fn func(blocking bool)) Option {
	return func(b *Bridge) {
		b.listener = fn
	}
}

// WithTimeoutNotification makes the watchdog send ERROR(lastSeq, TIMEOUT)
// to the peer when it resets a transmission.
func WithTimeoutNotification(enabled bool) Option {
	return func(b *Bridge) {
		b.notifyTimeout = enabled
	}
}
