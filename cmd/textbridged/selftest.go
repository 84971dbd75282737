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
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	textbridge "github.com/ZaparooProject/go-textbridge"
	"github.com/ZaparooProject/go-textbridge/client"
	"github.com/ZaparooProject/go-textbridge/config"
	"github.com/ZaparooProject/go-textbridge/hid"
	"github.com/ZaparooProject/go-textbridge/internal/syncutil"
)

// SelfTestResult holds the outcome of one transmission.
type SelfTestResult struct {
	Size      string
	CrashFile string
	Runes     int
	Keys      int
	Duration  time.Duration
	Round     int
	Success   bool
}

// CrashReport contains everything needed to replay a failed transmission.
type CrashReport struct {
	Timestamp time.Time        `json:"timestamp"`
	Size      string           `json:"size"`
	Text      string           `json:"text"`
	Error     string           `json:"error"`
	Expected  []string         `json:"expected,omitempty"`
	Actual    []string         `json:"actual,omitempty"`
	Stats     textbridge.Stats `json:"stats"`
	Round     int              `json:"round"`
}

// testSize cycles through transmission lengths.
type testSize int

const (
	testSizeTiny   testSize = iota // 1-4 characters, one batch
	testSizeMedium                 // a few batches
	testSizeFull                   // enough to wrap several batches and toggles
)

func (s testSize) String() string {
	switch s {
	case testSizeTiny:
		return "tiny"
	case testSizeMedium:
		return "medium"
	case testSizeFull:
		return "full"
	default:
		return "unknown"
	}
}

func (s testSize) runes() int {
	switch s {
	case testSizeTiny:
		return randomInt(1, 4)
	case testSizeMedium:
		return randomInt(20, 60)
	default:
		return randomInt(150, 250)
	}
}

const asciiTestChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 .,-_!?@#:;'\"()[]{}/\\=+*&%$~`<>|^\t"

// generateTestText mixes ASCII with Hangul syllables and jamo so input-mode
// toggles land at batch boundaries as well as inside them.
func generateTestText(size testSize) string {
	n := size.runes()
	var b strings.Builder
	for range n {
		switch randomInt(0, 9) {
		case 0, 1:
			_, _ = b.WriteRune(rune(randomInt(0xAC00, 0xD7A3)))
		case 2:
			_, _ = b.WriteRune(rune(randomInt(0x3131, 0x3163)))
		default:
			_ = b.WriteByte(asciiTestChars[randomInt(0, len(asciiTestChars)-1)])
		}
	}
	return b.String()
}

// randomInt returns a random int in [low, high] inclusive
func randomInt(low, high int) int {
	if low >= high {
		return low
	}
	return low + rand.IntN(high-low+1) //nolint:gosec // test data only
}

// reportRecorder decodes boot reports back into the pairs that were
// pressed. It stands in for the gadget node.
type reportRecorder struct {
	prev  [hid.ReportSize]byte
	typed []textbridge.KeycodeItem
	mu    syncutil.Mutex
}

func (r *reportRecorder) Write(p []byte) (int, error) {
	if len(p) != hid.ReportSize {
		return 0, fmt.Errorf("report of %d bytes", len(p))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	held := r.prev[2:]
	for _, k := range p[2:] {
		if k != 0 && !slices.Contains(held, k) {
			r.typed = append(r.typed, textbridge.KeycodeItem{Keycode: k, Modifier: p[0]})
		}
	}
	copy(r.prev[:], p)
	return len(p), nil
}

func (r *reportRecorder) take() []textbridge.KeycodeItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.typed
	r.typed = nil
	return out
}

func formatItems(items []textbridge.KeycodeItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.String()
	}
	return out
}

func printSelfTestBanner(rounds int) {
	_, _ = fmt.Println("================================================================================")
	_, _ = fmt.Println("                          TextBridge Self-Test Mode")
	_, _ = fmt.Println("================================================================================")
	_, _ = fmt.Printf("Transmissions: %d (tiny, medium, full in turn)\n", rounds)
}

// runSelfTest sends randomized text through the sender, the bridge and a
// real boot keyboard, and checks every key that reached the report stream.
func runSelfTest(ctx context.Context, cfg *config.Config, rounds int, extra ...textbridge.Option) error {
	printSelfTestBanner(rounds)

	rec := &reportRecorder{}
	kb := hid.NewKeyboard(rec)
	enc := client.DefaultEncoder()
	bridge, sender, closeFn, err := loopbackBridge(kb, cfg, enc, extra...)
	if err != nil {
		return err
	}
	defer closeFn()

	results := make([]*SelfTestResult, 0, rounds)
	for round := 1; round <= rounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		size := testSize((round - 1) % 3)
		result := runSingleTest(ctx, bridge, sender, rec, cfg, round, size)
		results = append(results, result)
	}

	return printFinalSummary(results)
}

func runSingleTest(ctx context.Context, bridge *textbridge.Bridge, sender *client.Sender,
	rec *reportRecorder, cfg *config.Config, round int, size testSize,
) *SelfTestResult {
	text := generateTestText(size)
	result := &SelfTestResult{Round: round, Size: size.String(), Runes: len([]rune(text))}
	_, _ = fmt.Printf("  [%3d %-6s] %3d chars... ", round, size, result.Runes)

	expected, err := client.TextToKeycodes(text, false)
	if err != nil {
		_, _ = fmt.Println("FAIL")
		handleTestFailure(bridge, cfg, result, text, err, nil, nil)
		return result
	}

	start := time.Now()
	err = sender.SendText(ctx, text)
	result.Duration = time.Since(start)
	actual := rec.take()
	result.Keys = len(actual)

	if err == nil && !slices.Equal(expected, actual) {
		err = fmt.Errorf("typed %d keys, expected %d", len(actual), len(expected))
	}
	if err != nil {
		_, _ = fmt.Println("FAIL")
		handleTestFailure(bridge, cfg, result, text, err, expected, actual)
		return result
	}

	result.Success = true
	_, _ = fmt.Printf("OK  %d keys in %s\n", result.Keys, result.Duration.Round(time.Millisecond))
	return result
}

func handleTestFailure(bridge *textbridge.Bridge, cfg *config.Config, result *SelfTestResult,
	text string, err error, expected, actual []textbridge.KeycodeItem,
) {
	_, _ = fmt.Printf("  [!] FAILURE in round %d: %v\n", result.Round, err)

	report := &CrashReport{
		Timestamp: time.Now(),
		Round:     result.Round,
		Size:      result.Size,
		Text:      text,
		Error:     err.Error(),
		Expected:  formatItems(expected),
		Actual:    formatItems(actual),
		Stats:     bridge.Stats(),
	}
	filename, writeErr := writeCrashReportToFile(report, cfg.Debug.LogDir)
	if writeErr != nil {
		_, _ = fmt.Printf("  [!] Failed to write crash report: %v\n", writeErr)
		return
	}
	_, _ = fmt.Printf("  Crash report: %s\n", filename)
	result.CrashFile = filename
}

func writeCrashReportToFile(report *CrashReport, dir string) (string, error) {
	filename := fmt.Sprintf("selftest_crash_%03d_%s.json", report.Round, report.Timestamp.Format("20060102_150405"))
	if dir != "" {
		filename = filepath.Join(dir, filename)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal crash report: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write crash report: %w", err)
	}
	return filename, nil
}

func printFinalSummary(results []*SelfTestResult) error {
	passCount, failCount, keys := 0, 0, 0
	var elapsed time.Duration
	for _, r := range results {
		keys += r.Keys
		elapsed += r.Duration
		if r.Success {
			passCount++
		} else {
			failCount++
		}
	}

	_, _ = fmt.Println("================================================================================")
	_, _ = fmt.Printf("Overall: %d PASS, %d FAIL, %d keys in %s\n",
		passCount, failCount, keys, elapsed.Round(100*time.Millisecond))
	_, _ = fmt.Println("================================================================================")

	if failCount > 0 {
		return fmt.Errorf("%d of %d transmissions failed: %w", failCount, len(results), errSelfTestFailed)
	}
	return nil
}

var errSelfTestFailed = errors.New("self-test failed")
