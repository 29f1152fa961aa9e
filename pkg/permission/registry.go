package permission

import "sort"

// Registry maps capabilities to the strategy that handles them. It is
// immutable after construction and safe for concurrent use.
type Registry struct {
	strategies map[Capability]Strategy
}

// NewRegistry builds a registry from an explicit table. Several capabilities
// may map to the same strategy.
func NewRegistry(table map[Capability]Strategy) *Registry {
	strategies := make(map[Capability]Strategy, len(table))
	for c, s := range table {
		if s != nil {
			strategies[c] = s
		}
	}
	return &Registry{strategies: strategies}
}

// DefaultRegistry returns the standard capability table backed by auth.
func DefaultRegistry(auth Authorizer) *Registry {
	audioVideo := newAudioVideoStrategy(auth)
	events := newEventStrategy(auth)
	location := newLocationStrategy(auth)

	return NewRegistry(map[Capability]Strategy{
		Calendar:          events,
		Camera:            audioVideo,
		Contacts:          newContactsStrategy(auth),
		Location:          location,
		LocationAlways:    location,
		LocationWhenInUse: location,
		MediaLibrary:      newMediaLibraryStrategy(auth),
		Microphone:        audioVideo,
		Photos:            newPhotosStrategy(auth),
		Reminders:         events,
		Sensors:           newSensorsStrategy(auth),
		Speech:            newSpeechStrategy(auth),
	})
}

// Resolve returns the strategy for c. A missing strategy is not an error:
// the capability settles as StatusUnknown.
func (r *Registry) Resolve(c Capability) (Strategy, bool) {
	s, ok := r.strategies[c]
	return s, ok
}

// Capabilities returns the capabilities that have a strategy, sorted.
func (r *Registry) Capabilities() []Capability {
	out := make([]Capability, 0, len(r.strategies))
	for c := range r.strategies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
