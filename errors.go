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
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Error categories for better error handling and retry logic
var (
	// Transport errors - potentially retryable
	ErrTransportTimeout = errors.New("transport timeout")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportClosed  = errors.New("transport is closed")

	// Link framing errors - potentially retryable
	ErrFrameCorrupted   = errors.New("frame corrupted")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrDataTooLarge     = errors.New("data too large")

	// Peer link state - not retryable until the peer changes state
	ErrLinkNotReady        = errors.New("link not ready")
	ErrNotConnected        = errors.New("no peer connected")
	ErrNotificationsOff    = errors.New("peer has not enabled notifications")
	ErrAdvertisingRejected = errors.New("advertising request rejected")

	// Protocol decode errors - the frame is dropped without a response
	ErrEmptyFrame     = errors.New("empty frame")
	ErrFrameTooShort  = errors.New("frame shorter than command minimum")
	ErrUnknownCommand = errors.New("unknown command opcode")

	// Staging errors - answered with ERROR(OVERFLOW)
	ErrBatchTooLarge  = errors.New("batch exceeds keycode buffer capacity")
	ErrBatchTruncated = errors.New("batch shorter than declared count")

	// HID sink errors - logged and counted, never fatal
	ErrHIDWrite    = errors.New("HID report write failed")
	ErrRollover    = errors.New("too many keys held for boot report")
	ErrHIDNotReady = errors.New("HID sink not ready")

	// Sender errors
	ErrPeerBusy     = errors.New("bridge busy")
	ErrPeerRejected = errors.New("bridge rejected command")
	ErrNoResponse   = errors.New("no response from bridge")
	ErrUnexpected   = errors.New("unexpected response")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s on %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a bridge response that ended a sender operation.
type ProtocolError struct {
	Err      error
	Command  string
	Seq      byte
	Code     byte
	Response byte
}

func (e *ProtocolError) Error() string {
	if e.Response == RespError {
		return fmt.Sprintf("%s seq=%d: %v (%s)", e.Command, e.Seq, e.Err, ErrorCodeName(e.Code))
	}
	return fmt.Sprintf("%s seq=%d: %v", e.Command, e.Seq, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrFrameCorrupted),
		errors.Is(err, ErrChecksumMismatch),
		errors.Is(err, ErrPeerBusy),
		errors.Is(err, ErrNoResponse):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the link is gone and the
// serve loop should stop. Per-operation retries are IsRetryable's concern.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// isDeviceGoneError checks for OS-level errors indicating the serial adapter
// or bus device was unplugged during I/O.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}
	return false
}

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for transport operations
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewFrameCorruptedError creates a frame corruption error
func NewFrameCorruptedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrFrameCorrupted, ErrorTypeTransient)
}

// NewChecksumMismatchError creates a checksum mismatch error (transient)
func NewChecksumMismatchError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrChecksumMismatch, ErrorTypeTransient)
}

// NewDataTooLargeError creates a data too large error (permanent)
func NewDataTooLargeError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrDataTooLarge, ErrorTypePermanent)
}

// NewTransportWriteError creates a write error (transient)
func NewTransportWriteError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportWrite, ErrorTypeTransient)
}

// NewTransportClosedError creates a closed transport error (permanent)
func NewTransportClosedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportClosed, ErrorTypePermanent)
}
