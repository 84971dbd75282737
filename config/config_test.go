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
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, textbridge.DefaultTiming(), cfg.Timing.BridgeTiming())
	assert.Equal(t, textbridge.DefaultSessionTimeout, cfg.Timing.SessionTimeout())
	assert.Equal(t, "/dev/hidg0", cfg.HID.Device)
}

func TestLoad_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		body string
	}{
		{
			name: "toml",
			file: "textbridge.toml",
			body: "[link]\ntype = \"i2c\"\nport = \"/dev/i2c-1\"\naddress = 0x28\n\n[timing]\npress_ms = 8\ntoggle_ms = 150\n",
		},
		{
			name: "yaml",
			file: "textbridge.yaml",
			body: "link:\n  type: i2c\n  port: /dev/i2c-1\n  address: 40\ntiming:\n  press_ms: 8\n  toggle_ms: 150\n",
		},
		{
			name: "json",
			file: "textbridge.json",
			body: `{"link":{"type":"i2c","port":"/dev/i2c-1","address":40},"timing":{"press_ms":8,"toggle_ms":150}}`,
		},
		{
			name: "detected",
			file: "textbridge.conf",
			body: `{"link":{"type":"i2c","port":"/dev/i2c-1","address":40},"timing":{"press_ms":8,"toggle_ms":150}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := Load(writeFile(t, tt.file, tt.body))
			require.NoError(t, err)
			assert.Equal(t, LinkI2C, cfg.Link.Type)
			assert.Equal(t, uint16(0x28), cfg.Link.Address)
			assert.Equal(t, 8*time.Millisecond, cfg.Timing.BridgeTiming().Press)
			assert.Equal(t, 150*time.Millisecond, cfg.Timing.BridgeTiming().Toggle)
			assert.Equal(t, 5*time.Millisecond, cfg.Timing.BridgeTiming().Release, "unset fields keep defaults")
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Link, cfg.Link)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	_, err := Load(writeFile(t, "bad.toml", "link = ["))
	require.ErrorContains(t, err, "decode TOML")

	_, err = Load(writeFile(t, "bad.conf", "link: [unclosed"))
	require.ErrorContains(t, err, "not TOML, JSON or YAML")

	_, err = Load(writeFile(t, "invalid.toml", "[link]\ntype = \"carrier-pigeon\"\n"))
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "link.type", verrs[0].Field)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mutate func(*Config)
		name   string
		fields []string
	}{
		{name: "spi needs port", mutate: func(c *Config) { c.Link.Type = LinkSPI }, fields: []string{"link.port"}},
		{name: "i2c address", mutate: func(c *Config) {
			c.Link.Type, c.Link.Port, c.Link.Address = LinkI2C, "", 0x80
		}, fields: []string{"link.address"}},
		{name: "bluez adapter", mutate: func(c *Config) { c.Link.Type, c.Link.Adapter = LinkBlueZ, "" }, fields: []string{"link.adapter"}},
		{name: "baud rate", mutate: func(c *Config) { c.Link.BaudRate = 300 }, fields: []string{"link.baud_rate"}},
		{name: "long name", mutate: func(c *Config) { c.Link.Name = "a-very-long-advertised-device-name" }, fields: []string{"link.name"}},
		{name: "hid device", mutate: func(c *Config) { c.HID.Device = "" }, fields: []string{"hid.device"}},
		{name: "timings", mutate: func(c *Config) {
			c.Timing.PressMs = 0
			c.Timing.WarmupMs = 2000
			c.Timing.SessionTimeoutSec = 0
		}, fields: []string{"timing.press_ms", "timing.warmup_ms", "timing.session_timeout_sec"}},
		{name: "usb poll", mutate: func(c *Config) { c.USB.PollMs = -1 }, fields: []string{"usb.poll_ms"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			fields := make([]string, 0, len(verrs))
			for _, v := range verrs {
				fields = append(fields, v.Field)
			}
			assert.Equal(t, tt.fields, fields)
			assert.Contains(t, err.Error(), "config: "+tt.fields[0])
		})
	}
}

// Environment tests cannot run in parallel.
func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLinkType, LinkBlueZ)
	t.Setenv(EnvLinkName, "Desk")
	t.Setenv(EnvHIDDevice, "/dev/hidg1")
	t.Setenv(EnvSessionTimeout, "12")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, LinkBlueZ, cfg.Link.Type)
	assert.Equal(t, "Desk", cfg.Link.Name)
	assert.Equal(t, "/dev/hidg1", cfg.HID.Device)
	assert.Equal(t, 12*time.Second, cfg.Timing.SessionTimeout())
}

func TestApplyEnvOverrides_BadNumber(t *testing.T) {
	t.Setenv(EnvSessionTimeout, "soon")

	_, err := Load("")
	require.ErrorContains(t, err, EnvSessionTimeout)
}

func TestSave_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, ext := range []string{".toml", ".yaml", ".json"} {
		t.Run(ext, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			cfg.Link.Type = LinkSPI
			cfg.Link.Port = "SPI0.0"
			cfg.Timing.ToggleMs = 120
			path := filepath.Join(t.TempDir(), "sub", "textbridge"+ext)
			require.NoError(t, Save(cfg, path))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, got)
		})
	}
}

func TestLoader_WatchReloads(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "textbridge.toml", "[timing]\npress_ms = 5\n")
	l := NewLoader(path)
	_, err := l.Load()
	require.NoError(t, err)

	changed := make(chan *Config, 4)
	l.OnChange(func(c *Config) { changed <- c })
	require.NoError(t, l.Watch(context.Background()))
	t.Cleanup(func() { _ = l.Close() })

	require.NoError(t, os.WriteFile(path, []byte("[timing]\npress_ms = 9\n"), 0o600))
	select {
	case c := <-changed:
		assert.Equal(t, 9, c.Timing.PressMs)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
	}
	assert.Equal(t, 9, l.Config().Timing.PressMs)

	require.NoError(t, os.WriteFile(path, []byte("[timing]\npress_ms = 0\n"), 0o600))
	select {
	case err := <-l.Errors():
		var verrs ValidationErrors
		assert.True(t, errors.As(err, &verrs))
	case <-time.After(5 * time.Second):
		t.Fatal("no reload error")
	}
	assert.Equal(t, 9, l.Config().Timing.PressMs, "bad reload keeps current config")
}

func TestLoader_ReloadRunsCallbacksInOrder(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "textbridge.toml", "[timing]\npress_ms = 5\n")
	l := NewLoader(path)
	_, err := l.Load()
	require.NoError(t, err)

	var order []int
	l.OnChange(func(c *Config) {
		order = append(order, c.Timing.PressMs)
		// Registered during a reload; runs from the next one.
		l.OnChange(func(*Config) { order = append(order, -1) })
	})
	l.OnChange(func(c *Config) { order = append(order, c.Timing.PressMs*10) })

	require.NoError(t, os.WriteFile(path, []byte("[timing]\npress_ms = 7\n"), 0o600))
	l.reload()
	assert.Equal(t, []int{7, 70}, order)
	assert.Equal(t, 7, l.Config().Timing.PressMs)

	order = nil
	l.reload()
	assert.Equal(t, []int{7, 70, -1}, order)
}

func TestLoader_WatchWithoutFile(t *testing.T) {
	t.Parallel()

	require.Error(t, NewLoader("").Watch(context.Background()))
	require.NoError(t, NewLoader("").Close())
}
