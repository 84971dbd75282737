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

// Package config loads textbridged configuration from TOML, YAML or JSON
// files with TEXTBRIDGE_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/ZaparooProject/go-textbridge/hid"
)

// Link types.
const (
	LinkUART  = "uart"
	LinkSPI   = "spi"
	LinkI2C   = "i2c"
	LinkBlueZ = "bluez"
)

// AutoPort asks the daemon to pick the serial port itself.
const AutoPort = "auto"

// Link defaults, matching the transport packages.
const (
	defaultBaudRate   = 115200
	defaultI2CAddress = 0x24
)

// Config holds the daemon configuration.
type Config struct {
	Link     LinkConfig     `toml:"link" json:"link" yaml:"link"`
	HID      HIDConfig      `toml:"hid" json:"hid" yaml:"hid"`
	Timing   TimingConfig   `toml:"timing" json:"timing" yaml:"timing"`
	Keyboard KeyboardConfig `toml:"keyboard" json:"keyboard" yaml:"keyboard"`
	USB      USBConfig      `toml:"usb" json:"usb" yaml:"usb"`
	Debug    DebugConfig    `toml:"debug" json:"debug" yaml:"debug"`
}

// LinkConfig selects how the BLE side is reached.
type LinkConfig struct {
	// Type is one of uart, spi, i2c or bluez.
	Type string `toml:"type" json:"type" yaml:"type"`
	// Port is the serial port, SPI port or I2C bus. "auto" scans serial
	// ports for a co-processor.
	Port string `toml:"port" json:"port" yaml:"port"`
	// Name is the advertised BLE name.
	Name      string `toml:"name" json:"name" yaml:"name"`
	Adapter   string `toml:"adapter" json:"adapter" yaml:"adapter"`
	BaudRate  int    `toml:"baud_rate" json:"baud_rate" yaml:"baud_rate"`
	Frequency int64  `toml:"frequency_hz" json:"frequency_hz" yaml:"frequency_hz"`
	Address   uint16 `toml:"address" json:"address" yaml:"address"`
}

// HIDConfig locates the USB gadget.
type HIDConfig struct {
	Device         string `toml:"device" json:"device" yaml:"device"`
	FunctionDir    string `toml:"function_dir" json:"function_dir" yaml:"function_dir"`
	WriteTimeoutMs int    `toml:"write_timeout_ms" json:"write_timeout_ms" yaml:"write_timeout_ms"`
}

// TimingConfig holds injection delays in milliseconds. These can be
// reloaded while the daemon runs.
type TimingConfig struct {
	PressMs           int  `toml:"press_ms" json:"press_ms" yaml:"press_ms"`
	ReleaseMs         int  `toml:"release_ms" json:"release_ms" yaml:"release_ms"`
	ComboMs           int  `toml:"combo_ms" json:"combo_ms" yaml:"combo_ms"`
	TogglePressMs     int  `toml:"toggle_press_ms" json:"toggle_press_ms" yaml:"toggle_press_ms"`
	ToggleMs          int  `toml:"toggle_ms" json:"toggle_ms" yaml:"toggle_ms"`
	WarmupMs          int  `toml:"warmup_ms" json:"warmup_ms" yaml:"warmup_ms"`
	SessionTimeoutSec int  `toml:"session_timeout_sec" json:"session_timeout_sec" yaml:"session_timeout_sec"`
	NotifyTimeout     bool `toml:"notify_timeout" json:"notify_timeout" yaml:"notify_timeout"`
}

// KeyboardConfig names a local keyboard to hold while typing.
type KeyboardConfig struct {
	Grab string `toml:"grab" json:"grab" yaml:"grab"`
}

// USBConfig controls the UDC watcher.
type USBConfig struct {
	UDC    string `toml:"udc" json:"udc" yaml:"udc"`
	Watch  bool   `toml:"watch" json:"watch" yaml:"watch"`
	PollMs int    `toml:"poll_ms" json:"poll_ms" yaml:"poll_ms"`
}

// DebugConfig controls diagnostics.
type DebugConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	LogDir  string `toml:"log_dir" json:"log_dir" yaml:"log_dir"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	t := textbridge.DefaultTiming()
	return &Config{
		Link: LinkConfig{
			Type:     LinkUART,
			Port:     AutoPort,
			Name:     "TextBridge",
			Adapter:  "hci0",
			BaudRate: defaultBaudRate,
			Address:  defaultI2CAddress,
		},
		HID: HIDConfig{
			Device:         hid.DefaultGadgetPath,
			WriteTimeoutMs: int(hid.DefaultWriteTimeout / time.Millisecond),
		},
		Timing: TimingConfig{
			PressMs:           int(t.Press / time.Millisecond),
			ReleaseMs:         int(t.Release / time.Millisecond),
			ComboMs:           int(t.Combo / time.Millisecond),
			TogglePressMs:     int(t.TogglePress / time.Millisecond),
			ToggleMs:          int(t.Toggle / time.Millisecond),
			WarmupMs:          int(t.Warmup / time.Millisecond),
			SessionTimeoutSec: int(textbridge.DefaultSessionTimeout / time.Second),
		},
		USB: USBConfig{
			Watch:  true,
			PollMs: 500,
		},
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	return &out
}

// BridgeTiming converts the timing section for the bridge.
func (t TimingConfig) BridgeTiming() textbridge.Timing {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return textbridge.Timing{
		Press:       ms(t.PressMs),
		Release:     ms(t.ReleaseMs),
		Combo:       ms(t.ComboMs),
		TogglePress: ms(t.TogglePressMs),
		Toggle:      ms(t.ToggleMs),
		Warmup:      ms(t.WarmupMs),
	}
}

// SessionTimeout returns the watchdog timeout.
func (t TimingConfig) SessionTimeout() time.Duration {
	return time.Duration(t.SessionTimeoutSec) * time.Second
}

// Environment variables that override file values.
const (
	EnvLinkType       = "TEXTBRIDGE_LINK_TYPE"
	EnvLinkPort       = "TEXTBRIDGE_LINK_PORT"
	EnvLinkName       = "TEXTBRIDGE_LINK_NAME"
	EnvHIDDevice      = "TEXTBRIDGE_HID_DEVICE"
	EnvKeyboardGrab   = "TEXTBRIDGE_KEYBOARD_GRAB"
	EnvUDC            = "TEXTBRIDGE_USB_UDC"
	EnvSessionTimeout = "TEXTBRIDGE_SESSION_TIMEOUT_SEC"
	EnvLogDir         = "TEXTBRIDGE_LOG_DIR"
)

// ApplyEnvOverrides applies TEXTBRIDGE_* environment variables.
func (c *Config) ApplyEnvOverrides() error {
	strs := []struct {
		dst *string
		env string
	}{
		{&c.Link.Type, EnvLinkType},
		{&c.Link.Port, EnvLinkPort},
		{&c.Link.Name, EnvLinkName},
		{&c.HID.Device, EnvHIDDevice},
		{&c.Keyboard.Grab, EnvKeyboardGrab},
		{&c.USB.UDC, EnvUDC},
		{&c.Debug.LogDir, EnvLogDir},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}
	if v := os.Getenv(EnvSessionTimeout); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvSessionTimeout, v, err)
		}
		c.Timing.SessionTimeoutSec = n
	}
	return nil
}
