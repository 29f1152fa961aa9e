// Package permission coordinates authorization requests for device
// capabilities. Each capability is handled by a Strategy that talks to the
// native authorization subsystem; the Coordinator requests a batch of
// capabilities and emits one combined Result once every capability settles.
package permission

import "strings"

// Capability identifies a requestable, independently gated capability.
type Capability string

// Known capabilities. Capabilities without a strategy on this platform
// (phone, sms, storage, notification, ignore_battery_optimizations) and
// capabilities not listed here always resolve to StatusUnknown.
const (
	Calendar                   Capability = "calendar"
	Camera                     Capability = "camera"
	Contacts                   Capability = "contacts"
	Location                   Capability = "location"
	LocationAlways             Capability = "location_always"
	LocationWhenInUse          Capability = "location_when_in_use"
	MediaLibrary               Capability = "media_library"
	Microphone                 Capability = "microphone"
	Phone                      Capability = "phone"
	Photos                     Capability = "photos"
	Reminders                  Capability = "reminders"
	Sensors                    Capability = "sensors"
	SMS                        Capability = "sms"
	Speech                     Capability = "speech"
	Storage                    Capability = "storage"
	Notification               Capability = "notification"
	IgnoreBatteryOptimizations Capability = "ignore_battery_optimizations"
)

var knownCapabilities = []Capability{
	Calendar, Camera, Contacts, Location, LocationAlways, LocationWhenInUse,
	MediaLibrary, Microphone, Phone, Photos, Reminders, Sensors, SMS, Speech,
	Storage, Notification, IgnoreBatteryOptimizations,
}

// KnownCapabilities returns every declared capability, supported or not.
func KnownCapabilities() []Capability {
	out := make([]Capability, len(knownCapabilities))
	copy(out, knownCapabilities)
	return out
}

// ParseCapability normalizes a capability name from an external caller.
// Case, surrounding space and "-" vs "_" are ignored, and camelCase names
// such as "locationWhenInUse" map to their snake_case form. Unrecognized
// names are returned normalized but otherwise untouched; they resolve to no
// strategy.
func ParseCapability(s string) Capability {
	s = strings.TrimSpace(s)
	var b strings.Builder
	var prev rune
	for _, r := range s {
		switch {
		case r == '-' || r == ' ':
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			if prev >= 'a' && prev <= 'z' || prev >= '0' && prev <= '9' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
		prev = r
	}
	return Capability(b.String())
}

// Known reports whether c is one of the declared capabilities.
func (c Capability) Known() bool {
	for _, k := range knownCapabilities {
		if c == k {
			return true
		}
	}
	return false
}

func (c Capability) String() string {
	return string(c)
}

// dedupe returns the unique capabilities in first-seen order.
func dedupe(caps []Capability) []Capability {
	seen := make(map[Capability]struct{}, len(caps))
	out := make([]Capability, 0, len(caps))
	for _, c := range caps {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
