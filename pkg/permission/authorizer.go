package permission

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/go-drift/permissions/pkg/errors"
	"github.com/go-drift/permissions/pkg/platform"
)

// Channel names shared with the native side.
const (
	MethodChannelName  = "drift/permissions"
	ResultsChannelName = "drift/permissions/results"
	ChangesChannelName = "drift/permissions/changes"
)

var (
	methodChannel  = platform.NewMethodChannel(MethodChannelName)
	resultsChannel = platform.NewEventChannel(ResultsChannelName)
	changesChannel = platform.NewEventChannel(ChangesChannelName)
)

// NativeRequest addresses one native authorization domain, e.g.
// {Domain: "avcapture", Target: "video"}. Level is only meaningful for
// requests that ask for a specific grant level (location).
type NativeRequest struct {
	Domain string
	Target string
	Level  string
}

func (r NativeRequest) args() map[string]any {
	args := map[string]any{"domain": r.Domain}
	if r.Target != "" {
		args["target"] = r.Target
	}
	if r.Level != "" {
		args["level"] = r.Level
	}
	return args
}

// Reading is a raw answer from a native authorization domain.
type Reading struct {
	// Status is the native status string, e.g. "authorized".
	Status string
	// ServicesDisabled is set when the backing system service is off.
	ServicesDisabled bool
}

func readingFrom(m map[string]any) Reading {
	r := Reading{Status: platform.ParseString(m["status"])}
	if v, ok := m["servicesEnabled"]; ok && !platform.ParseBool(v) {
		r.ServicesDisabled = true
	}
	return r
}

// Authorizer is the opaque native authorization primitive strategies are
// built on. Request must call done at most once; it may call it
// synchronously, from another goroutine, or never if the platform never
// answers.
type Authorizer interface {
	Check(req NativeRequest) (Reading, error)
	Request(req NativeRequest, done func(Reading, error))
}

// SettingsOpener is implemented by authorizers that can open the system
// settings page for the app.
type SettingsOpener interface {
	OpenSettings() (bool, error)
}

// ChangeWatcher is implemented by authorizers that observe authorization
// changes made outside the app (for example in system settings).
type ChangeWatcher interface {
	WatchChanges(handler func(NativeRequest)) (unsubscribe func())
}

// ChannelAuthorizer implements Authorizer over the platform channels. A
// request subscribes to the results channel before invoking native, and
// native answers either inline with a status or later with a result event
// carrying the same request ID.
type ChannelAuthorizer struct {
	changes       *platform.Stream[NativeRequest]
	answerTimeout time.Duration
}

// AuthorizerOption configures a ChannelAuthorizer.
type AuthorizerOption func(*ChannelAuthorizer)

// WithAnswerTimeout bounds how long a request waits for native. A request
// still unanswered after d finishes with platform.ErrTimeout, which settles
// the capability as StatusUnknown, and releases its results subscription.
// Zero, the default, waits indefinitely.
func WithAnswerTimeout(d time.Duration) AuthorizerOption {
	return func(a *ChannelAuthorizer) {
		a.answerTimeout = d
	}
}

// NewChannelAuthorizer returns an authorizer bound to the shared permission
// channels.
func NewChannelAuthorizer(opts ...AuthorizerOption) *ChannelAuthorizer {
	a := &ChannelAuthorizer{
		changes: platform.NewStream(changesChannel, parseNativeChange),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Check returns the current native status without prompting.
func (a *ChannelAuthorizer) Check(req NativeRequest) (Reading, error) {
	result, err := methodChannel.Invoke("check", req.args())
	if err != nil {
		return Reading{}, err
	}
	m := platform.ParseMap(result)
	if m == nil {
		return Reading{}, &errors.ParseError{Channel: MethodChannelName, DataType: "Reading", Got: result}
	}
	return readingFrom(m), nil
}

// Request triggers the native authorization flow. done receives the first
// answer; later answers for the same request are dropped.
func (a *ChannelAuthorizer) Request(req NativeRequest, done func(Reading, error)) {
	id := uuid.NewString()
	p := &pendingRequest{done: done}

	// Subscribe before triggering native so an immediate answer is not missed.
	sub := resultsChannel.Listen(platform.EventHandler{
		OnEvent: func(data any) {
			m := platform.ParseMap(data)
			if m == nil {
				errors.Report(&errors.Error{
					Op:      "permission.result",
					Kind:    errors.KindParsing,
					Channel: ResultsChannelName,
					Err:     &errors.ParseError{Channel: ResultsChannelName, DataType: "Result", Got: data},
				})
				return
			}
			if platform.ParseString(m["requestId"]) != id {
				return
			}
			p.finish(readingFrom(m), nil)
		},
		OnError: func(err error) {
			p.finish(Reading{}, err)
		},
		OnDone: func() {
			p.finish(Reading{}, platform.ErrCanceled)
		},
	})
	if !p.attach(sub) {
		return
	}
	if a.answerTimeout > 0 {
		p.expireAfter(a.answerTimeout)
	}

	args := req.args()
	args["requestId"] = id
	result, err := methodChannel.Invoke("request", args)
	if err != nil {
		p.finish(Reading{}, err)
		return
	}
	if m := platform.ParseMap(result); m != nil && platform.ParseString(m["status"]) != "" {
		p.finish(readingFrom(m), nil)
	}
}

// OpenSettings asks native to open the app's settings page.
func (a *ChannelAuthorizer) OpenSettings() (bool, error) {
	result, err := methodChannel.Invoke("openSettings", nil)
	if err != nil {
		return false, err
	}
	m := platform.ParseMap(result)
	if m == nil {
		return false, &errors.ParseError{Channel: MethodChannelName, DataType: "OpenSettingsResult", Got: result}
	}
	return platform.ParseBool(m["opened"]), nil
}

// WatchChanges calls handler with the native domain of every authorization
// change native reports.
func (a *ChannelAuthorizer) WatchChanges(handler func(NativeRequest)) (unsubscribe func()) {
	return a.changes.Listen(handler)
}

func parseNativeChange(data any) (NativeRequest, error) {
	m := platform.ParseMap(data)
	domain := platform.ParseString(m["domain"])
	if domain == "" {
		return NativeRequest{}, &errors.ParseError{Channel: ChangesChannelName, DataType: "Change", Got: data}
	}
	return NativeRequest{Domain: domain, Target: platform.ParseString(m["target"])}, nil
}

// pendingRequest delivers exactly one answer for a native request and
// releases its results subscription.
type pendingRequest struct {
	mu       sync.Mutex
	sub      *platform.Subscription
	timer    *time.Timer
	finished bool
	done     func(Reading, error)
}

// attach records the subscription. It returns false if the request already
// finished while subscribing, in which case the subscription is released.
func (p *pendingRequest) attach(sub *platform.Subscription) bool {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		sub.Cancel()
		return false
	}
	p.sub = sub
	p.mu.Unlock()
	return true
}

// expireAfter finishes the request with platform.ErrTimeout if nothing
// else finishes it within d.
func (p *pendingRequest) expireAfter(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.timer = time.AfterFunc(d, func() {
		p.finish(Reading{}, platform.ErrTimeout)
	})
}

func (p *pendingRequest) finish(r Reading, err error) {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.finished = true
	sub := p.sub
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	p.done(r, err)
}
