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

package config

import (
	"fmt"
	"strings"
)

// Limits for configured values.
const (
	maxDelayMs          = 1000
	maxSessionTimeout   = 3600
	maxI2CAddress       = 0x7F
	maxHIDWriteTimeout  = 10000
	maxUSBPollInterval  = 60000
	minSerialBaudRate   = 9600
	maxSerialBaudRate   = 3000000
	maxAdvertisedLength = 29
)

// ValidationError is one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid field.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for i := range e {
		msgs = append(msgs, e[i].Error())
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationErrors) add(field, format string, args ...any) {
	*e = append(*e, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks every section and returns ValidationErrors, or nil.
func (c *Config) Validate() error {
	var errs ValidationErrors
	c.validateLink(&errs)

	if c.HID.Device == "" {
		errs.add("hid.device", "required")
	}
	if c.HID.WriteTimeoutMs < 0 || c.HID.WriteTimeoutMs > maxHIDWriteTimeout {
		errs.add("hid.write_timeout_ms", "must be 0..%d", maxHIDWriteTimeout)
	}

	c.Timing.validate(&errs)

	if c.USB.PollMs < 0 || c.USB.PollMs > maxUSBPollInterval {
		errs.add("usb.poll_ms", "must be 0..%d", maxUSBPollInterval)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateLink(errs *ValidationErrors) {
	l := &c.Link
	if len(l.Name) > maxAdvertisedLength {
		errs.add("link.name", "longer than %d bytes", maxAdvertisedLength)
	}
	switch l.Type {
	case LinkUART:
		if l.Port == "" {
			errs.add("link.port", "required for %s", l.Type)
		}
		if l.BaudRate < minSerialBaudRate || l.BaudRate > maxSerialBaudRate {
			errs.add("link.baud_rate", "must be %d..%d", minSerialBaudRate, maxSerialBaudRate)
		}
	case LinkSPI:
		if l.Port == "" || l.Port == AutoPort {
			errs.add("link.port", "an explicit SPI port is required")
		}
		if l.Frequency < 0 {
			errs.add("link.frequency_hz", "must not be negative")
		}
	case LinkI2C:
		if l.Port == AutoPort {
			errs.add("link.port", "auto is only supported for uart")
		}
		if l.Address == 0 || l.Address > maxI2CAddress {
			errs.add("link.address", "must be a 7-bit address")
		}
	case LinkBlueZ:
		if l.Adapter == "" {
			errs.add("link.adapter", "required for %s", l.Type)
		}
	default:
		errs.add("link.type", "unknown link type %q", l.Type)
	}
}

func (t *TimingConfig) validate(errs *ValidationErrors) {
	delays := []struct {
		field string
		v     int
		min   int
	}{
		{"timing.press_ms", t.PressMs, 1},
		{"timing.release_ms", t.ReleaseMs, 1},
		{"timing.combo_ms", t.ComboMs, 1},
		{"timing.toggle_press_ms", t.TogglePressMs, 1},
		{"timing.toggle_ms", t.ToggleMs, 1},
		{"timing.warmup_ms", t.WarmupMs, 0},
	}
	for _, d := range delays {
		if d.v < d.min || d.v > maxDelayMs {
			errs.add(d.field, "must be %d..%d", d.min, maxDelayMs)
		}
	}
	if t.SessionTimeoutSec < 1 || t.SessionTimeoutSec > maxSessionTimeout {
		errs.add("timing.session_timeout_sec", "must be 1..%d", maxSessionTimeout)
	}
}
