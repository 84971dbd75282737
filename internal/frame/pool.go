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

package frame

import "sync"

// BufferPool manages reusable byte slices for outbound frames. Response
// notifications are a few bytes; event frames may reach MaxFrameLength.
type BufferPool struct {
	smallPool sync.Pool
	framePool sync.Pool
}

// Size thresholds for buffer categories
const (
	SmallBufferSize = 16             // Framed protocol responses
	FrameBufferSize = MaxFrameLength // Any single frame
)

var defaultPool = NewBufferPool()

// NewBufferPool creates a new buffer pool
func NewBufferPool() *BufferPool {
	return &BufferPool{
		smallPool: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, SmallBufferSize)
				return &buf
			},
		},
		framePool: sync.Pool{
			New: func() any {
				buf := make([]byte, 0, FrameBufferSize)
				return &buf
			},
		},
	}
}

// GetBuffer returns an empty slice with at least size bytes of capacity.
// Return it with PutBuffer when done.
func (p *BufferPool) GetBuffer(size int) []byte {
	var pool *sync.Pool
	switch {
	case size <= SmallBufferSize:
		pool = &p.smallPool
	case size <= FrameBufferSize:
		pool = &p.framePool
	default:
		// Oversized requests bypass the pool
		return make([]byte, 0, size)
	}
	bufPtr, ok := pool.Get().(*[]byte)
	if !ok {
		return make([]byte, 0, size)
	}
	return (*bufPtr)[:0]
}

// PutBuffer returns a buffer to the pool. The buffer must not be used
// afterwards.
func (p *BufferPool) PutBuffer(buf []byte) {
	buf = buf[:0]
	switch cap(buf) {
	case SmallBufferSize:
		p.smallPool.Put(&buf)
	case FrameBufferSize:
		p.framePool.Put(&buf)
	}
}

// GetBuffer acquires a buffer from the default pool
func GetBuffer(size int) []byte {
	return defaultPool.GetBuffer(size)
}

// PutBuffer returns a buffer to the default pool
func PutBuffer(buf []byte) {
	defaultPool.PutBuffer(buf)
}
