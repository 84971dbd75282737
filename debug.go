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
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// debugEnabled gates console output. The injector goroutine and the
// watchdog callback log concurrently with SetDebugEnabled, so it is atomic.
var debugEnabled atomic.Bool

func init() {
	if os.Getenv("TEXTBRIDGE_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled.Store(true)
	}
}

// Debugf prints debug information.
// Always writes to the session log (if open) with a timestamp; prints to
// the console only when debug mode is enabled.
func Debugf(format string, args ...any) {
	emit(fmt.Sprintf(format, args...))
}

// Debugln prints debug information with fmt.Sprintln spacing.
func Debugln(args ...any) {
	msg := fmt.Sprintln(args...)
	emit(msg[:len(msg)-1])
}

func emit(message string) {
	writeSessionLine(time.Now().Format("15:04:05.000") + " DEBUG: " + message)

	if debugEnabled.Load() {
		_, _ = fmt.Printf("DEBUG: %s\n", message)
	}
}

// SetDebugEnabled turns console debug output on or off.
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// DebugEnabled reports whether console debug output is on.
func DebugEnabled() bool {
	return debugEnabled.Load()
}
