// Package platform provides channel communication between Go and the native
// authorization subsystems. Go calls native through MethodChannel.Invoke and
// receives asynchronous outcomes through EventChannel subscriptions.
package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// MessageCodec encodes and decodes messages for platform channel communication.
type MessageCodec interface {
	// Encode converts a Go value to bytes for transmission to native code.
	Encode(value any) ([]byte, error)

	// Decode converts bytes received from native code to a Go value.
	Decode(data []byte) (any, error)
}

// JsonCodec implements MessageCodec using JSON encoding.
type JsonCodec struct{}

// Encode serializes the value to JSON bytes.
func (JsonCodec) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

// Decode deserializes JSON bytes to a Go value.
func (JsonCodec) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CBORCodec implements MessageCodec using deterministic CBOR. Maps decode
// as map[string]any so parsers see the same shapes as with JsonCodec.
type CBORCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBORCodec builds a CBORCodec with Core Deterministic Encoding.
func NewCBORCodec() (*CBORCodec, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor decoder: %w", err)
	}
	return &CBORCodec{enc: enc, dec: dec}, nil
}

// Encode serializes the value to CBOR bytes.
func (c *CBORCodec) Encode(value any) ([]byte, error) {
	return c.enc.Marshal(value)
}

// Decode deserializes CBOR bytes to a Go value.
func (c *CBORCodec) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result any
	if err := c.dec.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

var (
	codecMu      sync.RWMutex
	defaultCodec MessageCodec = JsonCodec{}
)

// DefaultCodec returns the codec used by platform channels.
func DefaultCodec() MessageCodec {
	codecMu.RLock()
	defer codecMu.RUnlock()
	return defaultCodec
}

// SetCodec replaces the codec used by platform channels. Both sides of the
// bridge must agree on it, so call this before SetNativeBridge.
func SetCodec(c MessageCodec) {
	codecMu.Lock()
	defer codecMu.Unlock()
	if c == nil {
		c = JsonCodec{}
	}
	defaultCodec = c
}

// CodecByName returns the codec for "json" or "cbor".
func CodecByName(name string) (MessageCodec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JsonCodec{}, nil
	case "cbor":
		return NewCBORCodec()
	default:
		return nil, fmt.Errorf("unknown codec %q (use json or cbor)", name)
	}
}

// Standard errors for platform channel operations.
var (
	// ErrChannelNotFound indicates the requested platform channel does not exist.
	ErrChannelNotFound = errors.New("platform channel not found")

	// ErrMethodNotFound indicates the method is not implemented on the other side.
	ErrMethodNotFound = errors.New("method not implemented")

	// ErrInvalidArguments indicates the arguments passed to the method were invalid.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrPlatformUnavailable indicates no native bridge is installed or the
	// feature is not available on this device.
	ErrPlatformUnavailable = errors.New("platform feature unavailable")

	// ErrTimeout indicates the operation exceeded its deadline. For permission
	// requests, the user did not respond within the timeout period.
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates the operation was canceled via context cancellation.
	ErrCanceled = errors.New("operation was canceled")
)

// ChannelError represents an error returned from native code.
type ChannelError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *ChannelError) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

// NewChannelError creates a new ChannelError with the given code and message.
func NewChannelError(code, message string) *ChannelError {
	return &ChannelError{Code: code, Message: message}
}
