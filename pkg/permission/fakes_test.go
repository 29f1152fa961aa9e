package permission

import (
	"sync"
	"time"
)

// funcStrategy is a Strategy whose behavior is supplied per test.
type funcStrategy struct {
	status  func(Capability) Status
	request func(Capability, func(Status))
}

func (s *funcStrategy) Status(c Capability) Status {
	if s.status == nil {
		return StatusUnknown
	}
	return s.status(c)
}

func (s *funcStrategy) Request(c Capability, settle func(Status)) {
	s.request(c, settle)
}

// settleWith returns a strategy that settles synchronously with status.
func settleWith(status Status) *funcStrategy {
	return &funcStrategy{
		status:  func(Capability) Status { return status },
		request: func(_ Capability, settle func(Status)) { settle(status) },
	}
}

// settleAfter returns a strategy that settles with status from another
// goroutine after delay.
func settleAfter(status Status, delay time.Duration) *funcStrategy {
	return &funcStrategy{
		request: func(_ Capability, settle func(Status)) {
			time.AfterFunc(delay, func() { settle(status) })
		},
	}
}

// neverSettles returns a strategy whose request never completes.
func neverSettles() *funcStrategy {
	return &funcStrategy{request: func(Capability, func(Status)) {}}
}

// fakeAuthorizer answers native checks and requests from in-memory tables
// keyed by "domain/target".
type fakeAuthorizer struct {
	mu          sync.Mutex
	readings    map[string]Reading
	answers     map[string]Reading
	checkErr    error
	requestErr  error
	answerTwice bool
	checks      []NativeRequest
	requests    []NativeRequest
}

func newFakeAuthorizer() *fakeAuthorizer {
	return &fakeAuthorizer{
		readings: map[string]Reading{},
		answers:  map[string]Reading{},
	}
}

func nativeKey(domain, target string) string {
	return domain + "/" + target
}

func (a *fakeAuthorizer) set(domain, target, status string) {
	a.mu.Lock()
	a.readings[nativeKey(domain, target)] = Reading{Status: status}
	a.mu.Unlock()
}

func (a *fakeAuthorizer) answer(domain, target, status string) {
	a.mu.Lock()
	a.answers[nativeKey(domain, target)] = Reading{Status: status}
	a.mu.Unlock()
}

func (a *fakeAuthorizer) Check(req NativeRequest) (Reading, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checks = append(a.checks, req)
	if a.checkErr != nil {
		return Reading{}, a.checkErr
	}
	r, ok := a.readings[nativeKey(req.Domain, req.Target)]
	if !ok {
		return Reading{Status: nativeNotDetermined}, nil
	}
	return r, nil
}

func (a *fakeAuthorizer) Request(req NativeRequest, done func(Reading, error)) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	err := a.requestErr
	r, ok := a.answers[nativeKey(req.Domain, req.Target)]
	twice := a.answerTwice
	a.mu.Unlock()

	if err != nil {
		done(Reading{}, err)
		return
	}
	if !ok {
		r = Reading{Status: nativeDenied}
	}
	done(r, nil)
	if twice {
		done(Reading{Status: nativeAuthorized}, nil)
	}
}

func (a *fakeAuthorizer) requestCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}
