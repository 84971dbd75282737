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

package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	textbridge "github.com/ZaparooProject/go-textbridge"
)

// Sender defaults.
const (
	DefaultChunkSize       = 8
	DefaultResponseTimeout = 5 * time.Second
	// DefaultEnterPause lets the host finish IME composition before a
	// batch that presses Enter.
	DefaultEnterPause = 300 * time.Millisecond
)

// ErrNothingToSend is returned for text that produces no keys.
var ErrNothingToSend = errors.New("no keys to send")

// Conn carries frames to a bridge and its responses back.
type Conn interface {
	// Send writes one command frame.
	Send(ctx context.Context, frame []byte) error
	// Recv waits for the next response frame.
	Recv(ctx context.Context) ([]byte, error)
}

// Sender types text through a bridge. It is not safe for concurrent use.
type Sender struct {
	conn       Conn
	retry      *textbridge.RetryConfig
	sleep      func(context.Context, time.Duration) error
	encoder    Encoder
	chunkSize  int
	timeout    time.Duration
	enterPause time.Duration
}

// Option configures a Sender.
type Option func(*Sender)

// WithChunkSize sets the maximum pairs per KEYCODE batch.
func WithChunkSize(n int) Option {
	return func(s *Sender) {
		s.chunkSize = n
	}
}

// WithEncoder sets the text encoder.
func WithEncoder(e Encoder) Option {
	return func(s *Sender) {
		s.encoder = e
	}
}

// WithResponseTimeout sets how long to wait for each response.
func WithResponseTimeout(d time.Duration) Option {
	return func(s *Sender) {
		s.timeout = d
	}
}

// WithRetryConfig sets the backoff used when the bridge is busy or silent.
func WithRetryConfig(cfg *textbridge.RetryConfig) Option {
	return func(s *Sender) {
		s.retry = cfg
	}
}

// WithEnterPause sets the pause before a batch that contains Enter.
func WithEnterPause(d time.Duration) Option {
	return func(s *Sender) {
		s.enterPause = d
	}
}

// NewSender creates a sender over conn.
func NewSender(conn Conn, opts ...Option) *Sender {
	s := &Sender{
		conn:       conn,
		encoder:    DefaultEncoder(),
		chunkSize:  DefaultChunkSize,
		timeout:    DefaultResponseTimeout,
		enterPause: DefaultEnterPause,
		retry:      textbridge.BatchRetryConfig(),
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retry == nil {
		s.retry = textbridge.DefaultRetryConfig()
	}
	return s
}

// SendText converts text and types it as one transmission.
func (s *Sender) SendText(ctx context.Context, text string) error {
	items, err := s.encoder.Encode(text)
	if err != nil {
		return err
	}
	return s.SendKeycodes(ctx, items)
}

// SendKeycodes types items as one transmission: START at sequence 0,
// batch i at (i+1) mod 256, and DONE after the last batch. A failed
// transmission is aborted before returning.
func (s *Sender) SendKeycodes(ctx context.Context, items []textbridge.KeycodeItem) error {
	if len(items) == 0 {
		return ErrNothingToSend
	}
	chunks := Chunk(items, s.chunkSize, s.encoder.Toggle)

	if err := s.exchange(ctx, textbridge.EncodeStart(0, uint16(len(chunks))), textbridge.RespReady); err != nil {
		return err
	}
	for i, chunk := range chunks {
		seq := byte(i + 1)
		if i > 0 && s.enterPause > 0 && containsEnter(chunk) {
			if err := s.sleep(ctx, s.enterPause); err != nil {
				s.abort(seq)
				return err
			}
		}
		if err := s.exchange(ctx, textbridge.EncodeKeycode(seq, chunk), textbridge.RespAck); err != nil {
			s.abort(seq)
			return err
		}
	}
	return s.exchange(ctx, textbridge.EncodeDone(byte(len(chunks)+1)), textbridge.RespDone)
}

// SetDelay sends new injection timings.
func (s *Sender) SetDelay(ctx context.Context, t textbridge.Timing) error {
	return s.exchange(ctx, textbridge.EncodeSetDelay(t), textbridge.RespAck)
}

// Abort cancels any transmission on the bridge.
func (s *Sender) Abort(ctx context.Context, seq byte) error {
	return s.exchange(ctx, textbridge.EncodeAbort(seq), textbridge.RespAck)
}

// abort tells the bridge to drop a failed transmission without waiting
// for the reply.
func (s *Sender) abort(seq byte) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.conn.Send(ctx, textbridge.EncodeAbort(seq)); err != nil {
		textbridge.Debugf("sender: abort seq=%d: %v", seq, err)
	}
}

// exchange sends frame until the bridge answers want. NACK and silence are
// retried with backoff; ERROR fails at once.
func (s *Sender) exchange(ctx context.Context, frame []byte, want byte) error {
	op, seq := frame[0], byte(0)
	if len(frame) > 1 && op != textbridge.CmdSetDelay {
		seq = frame[1]
	}
	name := textbridge.CommandName(op)

	retry := *s.retry
	retry.OnRetry = func(attempt int, err error) {
		textbridge.Debugf("sender: %s seq=%d retry %d: %v", name, seq, attempt, err)
	}
	return textbridge.RetryWithConfig(ctx, &retry, func() error {
		if err := s.conn.Send(ctx, frame); err != nil {
			return fmt.Errorf("send %s: %w", name, err)
		}
		return s.await(ctx, name, seq, want)
	})
}

func (s *Sender) await(ctx context.Context, name string, seq, want byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for {
		resp, err := s.conn.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return &textbridge.ProtocolError{Command: name, Seq: seq, Err: textbridge.ErrNoResponse}
			}
			return fmt.Errorf("receive %s reply: %w", name, err)
		}
		if len(resp) < 2 {
			textbridge.Debugf("sender: short response % X", resp)
			continue
		}

		switch resp[0] {
		case want:
			if resp[1] != seq && want == textbridge.RespAck && seq != 0 {
				textbridge.Debugf("sender: stale ACK seq=%d while waiting for %d", resp[1], seq)
				continue
			}
			return nil
		case textbridge.RespNack:
			return &textbridge.ProtocolError{Command: name, Seq: seq, Response: resp[0], Err: textbridge.ErrPeerBusy}
		case textbridge.RespError:
			perr := &textbridge.ProtocolError{Command: name, Seq: seq, Response: resp[0], Err: textbridge.ErrPeerRejected}
			if len(resp) > 2 {
				perr.Code = resp[2]
			}
			return perr
		default:
			textbridge.Debugf("sender: ignoring %s seq=%d while waiting for %s",
				textbridge.ResponseName(resp[0]), resp[1], textbridge.ResponseName(want))
		}
	}
}

func containsEnter(chunk []textbridge.KeycodeItem) bool {
	return slices.ContainsFunc(chunk, func(it textbridge.KeycodeItem) bool {
		return it.Keycode == KeyEnter
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
