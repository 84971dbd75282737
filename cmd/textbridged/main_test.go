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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/ZaparooProject/go-textbridge/client"
	"github.com/ZaparooProject/go-textbridge/config"
	"github.com/ZaparooProject/go-textbridge/detection"
	testutil "github.com/ZaparooProject/go-textbridge/internal/testing"
)

func fastConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Timing.PressMs = 1
	cfg.Timing.ReleaseMs = 1
	cfg.Timing.ComboMs = 1
	cfg.Timing.TogglePressMs = 1
	cfg.Timing.ToggleMs = 1
	return cfg
}

func noSleep(time.Duration) {}

func TestRunTypeMode(t *testing.T) {
	t.Parallel()

	kb := testutil.NewRecordingKeyboard()
	opts := &options{typeText: "Hi", enter: true}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := runTypeMode(ctx, kb, fastConfig(), opts, textbridge.WithSleep(kb.Sleep))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0B, 0x0C, client.KeyEnter}, kb.Presses())

	keys, mods := kb.State()
	assert.Empty(t, keys)
	assert.Zero(t, mods)
}

func TestRunTypeModeMacToggle(t *testing.T) {
	t.Parallel()

	kb := testutil.NewRecordingKeyboard()
	opts := &options{typeText: "한", mac: true}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, runTypeMode(ctx, kb, fastConfig(), opts, textbridge.WithSleep(kb.Sleep)))
	presses := kb.Presses()
	require.NotEmpty(t, presses)
	assert.Equal(t, client.KeyF18, presses[0])
	assert.Equal(t, client.KeyF18, presses[len(presses)-1])
}

func TestRunTypeModeRejectsUnsupportedText(t *testing.T) {
	t.Parallel()

	kb := testutil.NewRecordingKeyboard()
	err := runTypeMode(context.Background(), kb, fastConfig(), &options{typeText: "café"},
		textbridge.WithSleep(kb.Sleep))
	require.ErrorIs(t, err, client.ErrUnsupportedRune)
	assert.Empty(t, kb.Presses())
}

func TestRunSelfTest(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()
	cfg.Debug.LogDir = t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, runSelfTest(ctx, cfg, 6, textbridge.WithSleep(noSleep)))

	crashes, err := filepath.Glob(filepath.Join(cfg.Debug.LogDir, "selftest_crash_*.json"))
	require.NoError(t, err)
	assert.Empty(t, crashes)
}

func TestRunSelfTestStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runSelfTest(ctx, fastConfig(), 3, textbridge.WithSleep(noSleep))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReportRecorder(t *testing.T) {
	t.Parallel()

	rec := &reportRecorder{}
	reports := [][]byte{
		{0x02, 0, 0x0B, 0, 0, 0, 0, 0}, // shift+h down
		{0, 0, 0, 0, 0, 0, 0, 0},
		{0, 0, 0x0C, 0, 0, 0, 0, 0}, // i down
		{0, 0, 0x0C, 0, 0, 0, 0, 0}, // repeat of a held key
		{0, 0, 0x0C, 0x28, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0, 0, 0},
	}
	for _, r := range reports {
		n, err := rec.Write(r)
		require.NoError(t, err)
		assert.Equal(t, len(r), n)
	}

	assert.Equal(t, []textbridge.KeycodeItem{
		{Keycode: 0x0B, Modifier: 0x02},
		{Keycode: 0x0C},
		{Keycode: 0x28},
	}, rec.take())
	assert.Empty(t, rec.take())

	_, err := rec.Write([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestGenerateTestTextIsTypeable(t *testing.T) {
	t.Parallel()

	for _, size := range []testSize{testSizeTiny, testSizeMedium, testSizeFull} {
		text := generateTestText(size)
		assert.NotEmpty(t, text, size.String())
		_, err := client.TextToKeycodes(text, false)
		assert.NoError(t, err, "%s: %q", size, text)
	}
}

func TestWriteCrashReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	report := &CrashReport{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Round:     7,
		Size:      "tiny",
		Text:      "ab",
		Error:     "typed 1 keys, expected 2",
		Expected:  formatItems([]textbridge.KeycodeItem{{Keycode: 0x04}, {Keycode: 0x05}}),
		Actual:    formatItems([]textbridge.KeycodeItem{{Keycode: 0x04}}),
	}

	path, err := writeCrashReportToFile(report, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "selftest_crash_007_20260102_030405.json"), path)

	data, err := os.ReadFile(path) //nolint:gosec // test file
	require.NoError(t, err)
	var got CrashReport
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, []string{"(0x04,0x00)", "(0x05,0x00)"}, got.Expected)
	assert.Equal(t, "ab", got.Text)
}

func TestOpenLinkUnsupportedType(t *testing.T) {
	t.Parallel()

	_, err := openLink(context.Background(), config.LinkConfig{Type: "carrier-pigeon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported link type")
}

//nolint:paralleltest // replaces the package-level detectPort hook
func TestResolvePort(t *testing.T) {
	orig := detectPort
	t.Cleanup(func() { detectPort = orig })

	detectPort = func(context.Context) (detection.Port, error) {
		return detection.Port{Path: "/dev/ttyACM0", VIDPID: "303A:1001", Confidence: detection.High}, nil
	}
	port, err := resolvePort(context.Background(), config.LinkConfig{Port: config.AutoPort})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", port)

	port, err = resolvePort(context.Background(), config.LinkConfig{Port: "/dev/ttyUSB3"})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB3", port)

	detectPort = func(context.Context) (detection.Port, error) {
		return detection.Port{}, detection.ErrNoDevicesFound
	}
	_, err = resolvePort(context.Background(), config.LinkConfig{Port: config.AutoPort})
	assert.ErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestDaemonHandlerReadvertises(t *testing.T) {
	t.Parallel()

	link := textbridge.NewMockLink()
	bridge, err := textbridge.New(testutil.NewRecordingKeyboard(), textbridge.WithLink(link))
	require.NoError(t, err)
	defer func() { _ = bridge.Close() }()
	h := daemonHandler{Bridge: bridge}

	h.OnConnected()
	require.NoError(t, link.StopAdvertising())
	h.OnDisconnected()
	assert.True(t, link.Advertising())
	assert.True(t, bridge.Advertising())

	h.OnHostTransportChanged(textbridge.HostTransportNone)
	assert.False(t, link.Advertising())
	h.OnHostTransportChanged(textbridge.HostTransportUSB)
	assert.True(t, link.Advertising())
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "textbridge.toml")
	require.NoError(t, os.WriteFile(path, []byte("[link]\ntype = \"carrier-pigeon\"\n"), 0o600))

	err := run(context.Background(), &options{configPath: path})
	require.Error(t, err)
	var verrs config.ValidationErrors
	assert.True(t, errors.As(err, &verrs))
}

func TestRunMissingGadget(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "textbridge.toml")
	cfg := config.DefaultConfig()
	cfg.HID.Device = filepath.Join(t.TempDir(), "hidg0")
	require.NoError(t, config.Save(cfg, path))

	err := run(context.Background(), &options{configPath: path, typeText: "x"})
	assert.ErrorIs(t, err, textbridge.ErrHIDNotReady)
}
