package permission

import (
	"sync"

	"github.com/go-drift/permissions/pkg/errors"
)

// Strategy checks and requests authorization for one family of capabilities
// that share a native authorization domain. Strategies hold no per-call state
// and may be shared between capabilities and goroutines.
type Strategy interface {
	// Status returns the current status without prompting. It never blocks
	// on user interaction and reports StatusUnknown when the platform cannot
	// answer.
	Status(c Capability) Status

	// Request triggers the authorization flow if the status is not yet
	// determined and calls settle exactly once with the outcome. When the
	// status is already determined settle is called with it right away.
	Request(c Capability, settle func(Status))
}

// sourced is implemented by strategies that can name the native domain
// backing a capability, so change events can be routed back to it.
type sourced interface {
	Source(c Capability) NativeRequest
}

// gatedStrategy is the common shape of a strategy backed by one native domain
// with an optional per-capability target.
type gatedStrategy struct {
	auth            Authorizer
	domain          string
	targets         map[Capability]string
	supportsLimited bool
}

func (s *gatedStrategy) Source(c Capability) NativeRequest {
	return NativeRequest{Domain: s.domain, Target: s.targets[c]}
}

func (s *gatedStrategy) Status(c Capability) Status {
	return check(s.auth, c, s.Source(c), s.mapReading)
}

func (s *gatedStrategy) Request(c Capability, settle func(Status)) {
	request(s.auth, c, s.Source(c), s.Status(c), s.mapReading, settle)
}

func (s *gatedStrategy) mapReading(_ Capability, r Reading) Status {
	return mapNative(r.Status, s.supportsLimited)
}

func check(auth Authorizer, c Capability, req NativeRequest, mapReading func(Capability, Reading) Status) Status {
	r, err := auth.Check(req)
	if err != nil {
		reportFailure("permission.check", c, err)
		return StatusUnknown
	}
	return mapReading(c, r)
}

// request settles with current when it is already determined, otherwise
// asks native and settles with the mapped answer.
func request(auth Authorizer, c Capability, req NativeRequest, current Status, mapReading func(Capability, Reading) Status, settle func(Status)) {
	var once sync.Once
	done := func(s Status) {
		once.Do(func() { settle(s) })
	}

	if current.IsDetermined() {
		done(current)
		return
	}

	auth.Request(req, func(r Reading, err error) {
		if err != nil {
			reportFailure("permission.request", c, err)
			done(StatusUnknown)
			return
		}
		done(mapReading(c, r))
	})
}

func reportFailure(op string, c Capability, err error) {
	errors.Report(&errors.Error{
		Op:         op,
		Kind:       errors.KindPlatform,
		Channel:    MethodChannelName,
		Capability: string(c),
		Err:        err,
	})
}
