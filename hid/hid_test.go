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

package hid

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reports(b []byte) [][]byte {
	var out [][]byte
	for len(b) >= ReportSize {
		out = append(out, b[:ReportSize])
		b = b[ReportSize:]
	}
	return out
}

func TestKeyboard_PressReleaseReports(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	kb := NewKeyboard(&buf)

	require.NoError(t, kb.RegisterModifiers(textbridge.ModLeftShift))
	require.NoError(t, kb.Press(0x0B))
	require.NoError(t, kb.Flush())
	require.NoError(t, kb.Release(0x0B))
	require.NoError(t, kb.UnregisterModifiers(textbridge.ModLeftShift))
	require.NoError(t, kb.Flush())

	assert.Equal(t, [][]byte{
		{0x02, 0x00, 0x0B, 0, 0, 0, 0, 0},
		{0x00, 0x00, 0, 0, 0, 0, 0, 0},
	}, reports(buf.Bytes()))
	assert.Equal(t, 2, kb.Flushes())
}

func TestKeyboard_Rollover(t *testing.T) {
	t.Parallel()

	kb := NewKeyboard(&bytes.Buffer{})
	for k := byte(0x04); k < 0x0A; k++ {
		require.NoError(t, kb.Press(k))
	}
	require.NoError(t, kb.Press(0x04), "a held key is not a new slot")
	err := kb.Press(0x0A)
	require.ErrorIs(t, err, textbridge.ErrRollover)
	assert.Equal(t, []byte{0x04, 0x05, 0x06, 0x07, 0x08, 0x09}, func() []byte { r := kb.Report(); return r.Held() }())

	require.NoError(t, kb.Release(0x05))
	require.NoError(t, kb.Press(0x0A))
	r := kb.Report()
	assert.Equal(t, [maxKeys]byte{0x04, 0x06, 0x07, 0x08, 0x09, 0x0A}, r.Keys)
}

func TestKeyboard_ClearKeys(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	kb := NewKeyboard(&buf)
	require.NoError(t, kb.RegisterModifiers(textbridge.ModLeftCtrl|textbridge.ModRightAlt))
	require.NoError(t, kb.Press(0x2C))
	require.NoError(t, kb.ClearKeys())
	require.NoError(t, kb.Flush())
	assert.Equal(t, make([]byte, ReportSize), buf.Bytes())
}

func TestKeyboard_PressZeroIgnored(t *testing.T) {
	t.Parallel()

	kb := NewKeyboard(&bytes.Buffer{})
	require.NoError(t, kb.Press(0))
	assert.Empty(t, func() []byte { r := kb.Report(); return r.Held() }())
}

type failingWriter struct {
	err   error
	short bool
}

func (w failingWriter) Write(p []byte) (int, error) {
	if w.short {
		return len(p) - 1, nil
	}
	return 0, w.err
}

func TestKeyboard_FlushErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("endpoint stalled")
	err := NewKeyboard(failingWriter{err: boom}).Flush()
	require.ErrorIs(t, err, textbridge.ErrHIDWrite)
	require.ErrorIs(t, err, boom)

	err = NewKeyboard(failingWriter{short: true}).Flush()
	require.ErrorIs(t, err, textbridge.ErrHIDWrite)
}

func TestReport_MarshalTo(t *testing.T) {
	t.Parallel()

	r := Report{Modifiers: 0x22, Keys: [maxKeys]byte{0x04, 0x05}}
	assert.Zero(t, r.MarshalTo(make([]byte, 7)))
	b := r.Bytes()
	assert.Equal(t, [ReportSize]byte{0x22, 0, 0x04, 0x05, 0, 0, 0, 0}, b)
	assert.Equal(t, "mods=0x22 keys=04 05 00 00 00 00", r.String())
}

func TestReportDescriptor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{0x05, 0x01, 0x09, 0x06, 0xA1, 0x01}, ReportDescriptor[:6])
	assert.Equal(t, byte(0xC0), ReportDescriptor[len(ReportDescriptor)-1])
}

func TestGadget_WritesReports(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hidg0")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	g, err := OpenGadget(path, DefaultWriteTimeout)
	require.NoError(t, err)
	assert.Equal(t, path, g.Path())
	kb := NewKeyboard(g)
	require.NoError(t, kb.Press(0x04))
	require.NoError(t, kb.Flush())
	require.NoError(t, kb.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{
		{0, 0, 0x04, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0, 0, 0},
	}, reports(data))
}

func TestOpenGadget_Missing(t *testing.T) {
	t.Parallel()

	_, err := OpenGadget(filepath.Join(t.TempDir(), "nope"), 0)
	require.ErrorIs(t, err, textbridge.ErrHIDNotReady)
	assert.True(t, textbridge.IsFatal(err))
}

func TestWriteFunction(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, WriteFunction(FunctionConfig{Dir: dir}))

	desc, err := os.ReadFile(filepath.Join(dir, "report_desc"))
	require.NoError(t, err)
	assert.Equal(t, ReportDescriptor, desc)
	length, err := os.ReadFile(filepath.Join(dir, "report_length"))
	require.NoError(t, err)
	assert.Equal(t, "8", string(length))

	require.Error(t, WriteFunction(FunctionConfig{Dir: filepath.Join(dir, "missing")}))
}
