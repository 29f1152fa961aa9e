package platform

import (
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/go-drift/permissions/pkg/errors"
)

// recordingBridge answers every call with a canned response and records
// the event streams native was asked to start and stop.
type recordingBridge struct {
	mu       sync.Mutex
	response any
	err      error
	startErr error
	calls    []string
	lastArgs any
	started  []string
	stopped  []string
}

func (b *recordingBridge) InvokeMethod(channel, method string, args []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, channel+"."+method)
	decoded, err := DefaultCodec().Decode(args)
	if err != nil {
		return nil, err
	}
	b.lastArgs = decoded
	if b.err != nil {
		return nil, b.err
	}
	return DefaultCodec().Encode(b.response)
}

func (b *recordingBridge) StartEventStream(channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = append(b.started, channel)
	return b.startErr
}

func (b *recordingBridge) StopEventStream(channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = append(b.stopped, channel)
	return nil
}

func TestInvokeWithoutBridge(t *testing.T) {
	t.Cleanup(ResetForTest)
	ch := NewMethodChannel("test/invoke/nobridge")
	if _, err := ch.Invoke("check", nil); !stderrors.Is(err, ErrPlatformUnavailable) {
		t.Fatalf("expected ErrPlatformUnavailable, got %v", err)
	}
}

func TestInvokeRoundTrip(t *testing.T) {
	for _, codecName := range []string{"json", "cbor"} {
		t.Run(codecName, func(t *testing.T) {
			t.Cleanup(ResetForTest)
			codec, err := CodecByName(codecName)
			if err != nil {
				t.Fatal(err)
			}
			SetCodec(codec)
			bridge := &recordingBridge{response: map[string]any{"status": "authorized", "servicesEnabled": true}}
			SetNativeBridge(bridge)

			ch := NewMethodChannel("test/invoke/roundtrip")
			result, err := ch.Invoke("check", map[string]any{"domain": "avcapture", "target": "video"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			m := ParseMap(result)
			if ParseString(m["status"]) != "authorized" {
				t.Errorf("status = %v, want authorized", m["status"])
			}
			if !ParseBool(m["servicesEnabled"]) {
				t.Errorf("servicesEnabled = %v, want true", m["servicesEnabled"])
			}
			args := ParseMap(bridge.lastArgs)
			if ParseString(args["domain"]) != "avcapture" {
				t.Errorf("native received args %v", bridge.lastArgs)
			}
			if len(bridge.calls) != 1 || bridge.calls[0] != "test/invoke/roundtrip.check" {
				t.Errorf("calls = %v", bridge.calls)
			}
		})
	}
}

func TestInvokeNativeError(t *testing.T) {
	t.Cleanup(ResetForTest)
	want := NewChannelError("E_BUSY", "dialog already showing")
	SetNativeBridge(&recordingBridge{err: want})

	ch := NewMethodChannel("test/invoke/error")
	_, err := ch.Invoke("request", nil)
	var chErr *ChannelError
	if !stderrors.As(err, &chErr) || chErr.Code != "E_BUSY" {
		t.Fatalf("expected ChannelError E_BUSY, got %v", err)
	}
	if got := chErr.Error(); got != "E_BUSY: dialog already showing" {
		t.Errorf("Error() = %q", got)
	}
}

func TestCodecByName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"", false},
		{"json", false},
		{" CBOR ", false},
		{"protobuf", true},
	}
	for _, tt := range tests {
		_, err := CodecByName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("CodecByName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestEventDispatch(t *testing.T) {
	t.Cleanup(ResetForTest)
	bridge := &recordingBridge{}
	SetNativeBridge(bridge)

	ch := NewEventChannel("test/events/dispatch")
	var got []string
	sub := ch.Listen(EventHandler{OnEvent: func(data any) {
		got = append(got, ParseString(ParseMap(data)["status"]))
	}})

	data, _ := DefaultCodec().Encode(map[string]any{"status": "denied"})
	if err := HandleEvent("test/events/dispatch", data); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	sub.Cancel()
	sub.Cancel()
	if err := HandleEvent("test/events/dispatch", data); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(got) != 1 || got[0] != "denied" {
		t.Errorf("received %v, want exactly one denied event", got)
	}
	if len(bridge.started) != 1 || len(bridge.stopped) != 1 {
		t.Errorf("started=%v stopped=%v, want one each", bridge.started, bridge.stopped)
	}
}

func TestHandleEventUnknownChannel(t *testing.T) {
	t.Cleanup(ResetForTest)
	oldHandler := errors.DefaultHandler
	errors.SetHandler(&captureHandler{})
	defer errors.SetHandler(oldHandler)

	err := HandleEvent("test/events/never-registered", nil)
	if !stderrors.Is(err, ErrChannelNotRegistered) {
		t.Fatalf("expected ErrChannelNotRegistered, got %v", err)
	}
}

func TestHandleEventErrorAndDone(t *testing.T) {
	t.Cleanup(ResetForTest)
	SetNativeBridge(&recordingBridge{})

	ch := NewEventChannel("test/events/lifecycle")
	var gotErr error
	done := false
	sub := ch.Listen(EventHandler{
		OnError: func(err error) { gotErr = err },
		OnDone:  func() { done = true },
	})

	if err := HandleEventError("test/events/lifecycle", "E_DENIED", "stream refused"); err != nil {
		t.Fatal(err)
	}
	if err := HandleEventDone("test/events/lifecycle"); err != nil {
		t.Fatal(err)
	}

	var chErr *ChannelError
	if !stderrors.As(gotErr, &chErr) || chErr.Code != "E_DENIED" {
		t.Errorf("OnError got %v", gotErr)
	}
	if !done {
		t.Error("OnDone not called")
	}
	if !sub.IsCanceled() {
		t.Error("subscription should be canceled after done")
	}
}

func TestSetNativeBridgeStartsPendingStreams(t *testing.T) {
	t.Cleanup(ResetForTest)

	ch := NewEventChannel("test/events/pending")
	var startErr error
	ch.Listen(EventHandler{OnError: func(err error) { startErr = err }})
	if !stderrors.Is(startErr, ErrPlatformUnavailable) {
		t.Fatalf("expected ErrPlatformUnavailable before bridge, got %v", startErr)
	}

	bridge := &recordingBridge{}
	SetNativeBridge(bridge)

	found := false
	for _, name := range bridge.started {
		if name == "test/events/pending" {
			found = true
		}
	}
	if !found {
		t.Errorf("stream not started on SetNativeBridge; started=%v", bridge.started)
	}
}

func TestHandleMethodCall(t *testing.T) {
	t.Cleanup(ResetForTest)
	ch := NewMethodChannel("test/methods/incoming")

	args, _ := DefaultCodec().Encode(map[string]any{"name": "camera"})
	if _, err := HandleMethodCall("test/methods/incoming", "ping", args); !stderrors.Is(err, ErrMethodNotFound) {
		t.Fatalf("expected ErrMethodNotFound without handler, got %v", err)
	}

	ch.SetHandler(func(method string, args any) (any, error) {
		return map[string]any{"echo": fmt.Sprintf("%s:%s", method, ParseString(ParseMap(args)["name"]))}, nil
	})
	out, err := HandleMethodCall("test/methods/incoming", "ping", args)
	if err != nil {
		t.Fatal(err)
	}
	decoded, _ := DefaultCodec().Decode(out)
	if got := ParseString(ParseMap(decoded)["echo"]); got != "ping:camera" {
		t.Errorf("echo = %q", got)
	}

	if _, err := HandleMethodCall("test/methods/missing", "ping", args); !stderrors.Is(err, ErrChannelNotFound) {
		t.Errorf("expected ErrChannelNotFound, got %v", err)
	}
}

func TestStreamReportsParseErrors(t *testing.T) {
	platformTestBridge(t)
	capture := &captureHandler{}
	oldHandler := errors.DefaultHandler
	errors.SetHandler(capture)
	defer errors.SetHandler(oldHandler)

	ch := NewEventChannel("test/stream/parse")
	stream := NewStream(ch, func(data any) (string, error) {
		s, ok := data.(string)
		if !ok {
			return "", &errors.ParseError{Channel: "test/stream/parse", DataType: "string", Got: data}
		}
		return s, nil
	})

	var got []string
	unsubscribe := stream.Listen(func(s string) { got = append(got, s) })
	defer unsubscribe()

	good, _ := DefaultCodec().Encode("granted")
	bad, _ := DefaultCodec().Encode(42)
	_ = HandleEvent("test/stream/parse", good)
	_ = HandleEvent("test/stream/parse", bad)

	if len(got) != 1 || got[0] != "granted" {
		t.Errorf("handler received %v", got)
	}
	if len(capture.errs) != 1 || capture.errs[0].Kind != errors.KindParsing {
		t.Errorf("reported %v, want one parsing error", capture.errs)
	}
}

func TestParseMapConvertsAnyKeys(t *testing.T) {
	m := ParseMap(map[any]any{"status": "granted", 7: "dropped"})
	if len(m) != 1 || m["status"] != "granted" {
		t.Errorf("ParseMap = %v", m)
	}
	if ParseMap("not a map") != nil {
		t.Error("expected nil for non-map input")
	}
}

func platformTestBridge(t *testing.T) {
	t.Helper()
	SetupTestBridge(t.Cleanup)
}

type captureHandler struct {
	mu   sync.Mutex
	errs []*errors.Error
}

func (h *captureHandler) HandleError(err *errors.Error) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
}

func (h *captureHandler) HandlePanic(*errors.PanicError) {}
