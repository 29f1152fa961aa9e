// Package simulator provides a platform.NativeBridge that plays the native
// side of the permission channels from a permissions.yaml profile.
package simulator

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-drift/permissions/internal/config"
	"github.com/go-drift/permissions/pkg/errors"
	"github.com/go-drift/permissions/pkg/permission"
	"github.com/go-drift/permissions/pkg/platform"
)

const (
	statusNotDetermined = "notDetermined"
	statusUnavailable   = "unavailable"
)

type key struct {
	domain string
	target string
}

type entry struct {
	status   string
	response string
	delay    time.Duration
	silent   bool
}

// Bridge answers check, request and openSettings calls on the permission
// method channel. Prompted requests answer on the results channel after the
// configured delay and publish the new status on the changes channel.
type Bridge struct {
	logger *slog.Logger

	mu              sync.Mutex
	entries         map[key]*entry
	servicesEnabled bool
	settingsOpen    bool
	streams         map[string]bool
	timers          map[string]*time.Timer
	closed          bool
}

// New builds a bridge from a resolved profile.
func New(profile *config.Resolved, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := &Bridge{
		logger:          logger,
		entries:         make(map[key]*entry, len(profile.Domains)),
		servicesEnabled: profile.ServicesEnabled,
		settingsOpen:    profile.SettingsOpen,
		streams:         make(map[string]bool),
		timers:          make(map[string]*time.Timer),
	}
	for _, d := range profile.Domains {
		b.entries[key{d.Domain, d.Target}] = &entry{
			status:   d.Status,
			response: d.Response,
			delay:    d.Delay,
			silent:   d.Silent,
		}
	}
	return b
}

// InvokeMethod implements platform.NativeBridge.
func (b *Bridge) InvokeMethod(channel, method string, args []byte) ([]byte, error) {
	if channel != permission.MethodChannelName {
		return nil, platform.ErrChannelNotFound
	}
	decoded, err := platform.DefaultCodec().Decode(args)
	if err != nil {
		return nil, fmt.Errorf("decode %s args: %w", method, err)
	}
	m := platform.ParseMap(decoded)

	var reply map[string]any
	switch method {
	case "check":
		reply = b.check(m)
	case "request":
		reply, err = b.request(m)
	case "openSettings":
		reply = b.openSettings()
	default:
		return nil, platform.ErrMethodNotFound
	}
	if err != nil {
		return nil, err
	}
	return platform.DefaultCodec().Encode(reply)
}

// StartEventStream implements platform.NativeBridge.
func (b *Bridge) StartEventStream(channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[channel] = true
	return nil
}

// StopEventStream implements platform.NativeBridge.
func (b *Bridge) StopEventStream(channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.streams, channel)
	return nil
}

// SetStatus changes the native status of a domain as if the user flipped it
// in system settings, and publishes the change.
func (b *Bridge) SetStatus(domain, target, status string) {
	b.mu.Lock()
	e := b.lookup(domain, target)
	if e == nil {
		e = &entry{response: "denied"}
		b.entries[key{domain, target}] = e
	}
	e.status = status
	b.mu.Unlock()

	b.emit(permission.ChangesChannelName, map[string]any{
		"domain": domain,
		"target": target,
		"status": status,
	})
}

// SetServicesEnabled toggles the simulated location services switch.
func (b *Bridge) SetServicesEnabled(enabled bool) {
	b.mu.Lock()
	b.servicesEnabled = enabled
	b.mu.Unlock()

	b.emit(permission.ChangesChannelName, map[string]any{"domain": "corelocation"})
}

// Close stops every pending answer. Requests that have not been answered yet
// never will be.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, t := range b.timers {
		t.Stop()
	}
	clear(b.timers)
}

// lookup finds the entry for domain/target, falling back to the domain-wide
// entry. Callers hold b.mu.
func (b *Bridge) lookup(domain, target string) *entry {
	if e, ok := b.entries[key{domain, target}]; ok {
		return e
	}
	if target != "" {
		if e, ok := b.entries[key{domain, ""}]; ok {
			return e
		}
	}
	return nil
}

func (b *Bridge) check(args map[string]any) map[string]any {
	domain := platform.ParseString(args["domain"])
	target := platform.ParseString(args["target"])

	b.mu.Lock()
	defer b.mu.Unlock()

	reply := map[string]any{"status": statusUnavailable}
	if e := b.lookup(domain, target); e != nil {
		reply["status"] = e.status
	}
	if domain == "corelocation" {
		reply["servicesEnabled"] = b.servicesEnabled
	}
	return reply
}

func (b *Bridge) request(args map[string]any) (map[string]any, error) {
	domain := platform.ParseString(args["domain"])
	target := platform.ParseString(args["target"])
	id := platform.ParseString(args["requestId"])
	if id == "" {
		return nil, platform.ErrInvalidArguments
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(domain, target)
	if e == nil {
		return map[string]any{"status": statusUnavailable}, nil
	}
	if e.status != statusNotDetermined {
		return map[string]any{"status": e.status}, nil
	}
	if e.silent {
		b.logger.Debug("simulated prompt left open", "domain", domain, "target", target, "request_id", id)
		return map[string]any{}, nil
	}
	if b.closed {
		return map[string]any{}, nil
	}

	b.timers[id] = time.AfterFunc(e.delay, func() {
		defer errors.Recover("simulator.answer")
		b.answer(e, domain, target, id)
	})
	return map[string]any{}, nil
}

func (b *Bridge) answer(e *entry, domain, target, id string) {
	b.mu.Lock()
	delete(b.timers, id)
	if b.closed {
		b.mu.Unlock()
		return
	}
	// A prompt answered meanwhile (or changed in settings) wins.
	if e.status == statusNotDetermined {
		e.status = e.response
	}
	status := e.status
	b.mu.Unlock()

	b.logger.Debug("simulated prompt answered", "domain", domain, "target", target, "request_id", id, "status", status)
	b.emit(permission.ResultsChannelName, map[string]any{"requestId": id, "status": status})
	b.emit(permission.ChangesChannelName, map[string]any{"domain": domain, "target": target, "status": status})
}

func (b *Bridge) openSettings() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]any{"opened": b.settingsOpen}
}

// emit sends an event to Go if the channel's stream is running. It must not
// be called with b.mu held: handlers may call back into the bridge.
func (b *Bridge) emit(channel string, event map[string]any) {
	b.mu.Lock()
	running := b.streams[channel]
	b.mu.Unlock()
	if !running {
		return
	}

	data, err := platform.DefaultCodec().Encode(event)
	if err != nil {
		errors.Report(&errors.Error{
			Op:      "simulator.emit",
			Kind:    errors.KindPlatform,
			Channel: channel,
			Err:     err,
		})
		return
	}
	if err := platform.HandleEvent(channel, data); err != nil {
		b.logger.Warn("simulated event dropped", "channel", channel, "error", err)
	}
}
