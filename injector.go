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

// runInjection types the staged batch. It owns the HID sink between pairs
// only while holding the bridge lock, sleeps without it, and gives up as
// soon as gen stops being current.
func (b *Bridge) runInjection(gen uint64, idle chan struct{}) {
	defer func() {
		b.mu.Lock()
		if b.injectorIdle == idle {
			b.injectorAlive = false
		}
		b.mu.Unlock()
		close(idle)
	}()

	b.mu.Lock()
	if b.injectGen != gen {
		b.mu.Unlock()
		return
	}
	count := b.buf.Len()
	warmup := b.timing.Warmup
	b.mu.Unlock()

	if warmup > 0 {
		b.sleep(warmup)
	}

	for i := range count {
		hold, ok := b.pressPair(gen, i)
		if !ok {
			Debugf("injection cancelled before pair %d/%d", i+1, count)
			return
		}
		b.sleep(hold)

		gap, ok := b.releasePair(gen, i)
		if !ok {
			Debugf("injection cancelled while pair %d/%d was held", i+1, count)
			return
		}
		b.sleep(gap)
	}

	b.finishInjection(gen)
}

// pressPair registers the pair's modifier and presses its key in a single
// report, returning how long to hold it.
func (b *Bridge) pressPair(gen uint64, i int) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.injectGen != gen {
		return 0, false
	}

	item := b.buf.At(i)
	if item.Modifier != 0 {
		b.hidErr("register modifiers", b.hid.RegisterModifiers(item.Modifier))
		b.session.ActiveModifiers = item.Modifier
	}
	b.hidErr("press", b.hid.Press(item.Keycode))
	b.hidErr("flush", b.hid.Flush())
	return b.timing.HoldFor(item), true
}

// releasePair releases the key and its modifier in a single report,
// returning the gap before the next pair.
func (b *Bridge) releasePair(gen uint64, i int) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.injectGen != gen {
		return 0, false
	}

	item := b.buf.At(i)
	b.hidErr("release", b.hid.Release(item.Keycode))
	if item.Modifier != 0 {
		b.hidErr("unregister modifiers", b.hid.UnregisterModifiers(item.Modifier))
		b.session.ActiveModifiers = 0
	}
	b.hidErr("flush", b.hid.Flush())
	b.counters.keys.Add(1)
	return b.timing.GapAfter(item), true
}

func (b *Bridge) finishInjection(gen uint64) {
	b.mu.Lock()
	if b.injectGen != gen {
		b.mu.Unlock()
		return
	}

	seq := b.session.CurrentSeq
	b.session.Injecting = false
	// Nothing touches the sink after this point, so the next batch may start
	// before this goroutine has fully returned.
	b.injectorAlive = false
	b.session.LastAckedSeq = seq
	b.buf.Reset()
	b.counters.batchesAcked.Add(1)
	out := [][]byte{EncodeResponse(RespAck, seq)}

	if b.doneQueued {
		b.doneQueued = false
		b.session.Transmitting = false
		b.watchdog.Disarm()
		Debugf("DONE seq=%d", b.doneSeq)
		out = append(out, EncodeResponse(RespDone, b.doneSeq))
	}
	b.mu.Unlock()

	Debugf("batch seq=%d typed", seq)
	b.send(out)
	b.reportState()
}
