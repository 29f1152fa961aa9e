package permission

// newEventStrategy handles the event store, which gates calendar events and
// reminders separately.
func newEventStrategy(auth Authorizer) Strategy {
	return &gatedStrategy{
		auth:   auth,
		domain: "eventkit",
		targets: map[Capability]string{
			Calendar:  "event",
			Reminders: "reminder",
		},
	}
}
