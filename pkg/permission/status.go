package permission

// Status is the settled authorization state of a capability.
type Status string

const (
	// StatusGranted indicates access has been granted.
	StatusGranted Status = "granted"

	// StatusDenied indicates the user denied access.
	StatusDenied Status = "denied"

	// StatusRestricted indicates a system policy prevents granting (parental
	// controls, MDM). No dialog will be shown.
	StatusRestricted Status = "restricted"

	// StatusUnknown indicates there is no strategy for the capability or the
	// platform could not answer.
	StatusUnknown Status = "unknown"

	// StatusNotDetermined indicates the user has not been asked yet.
	StatusNotDetermined Status = "not_determined"

	// StatusDisabled indicates the backing system service is switched off
	// (location services).
	StatusDisabled Status = "disabled"

	// StatusLimited indicates partial access, such as a user-selected subset
	// of the photo library.
	StatusLimited Status = "limited"
)

// Result maps each requested capability to its settled status.
// Callers must not depend on iteration order.
type Result map[Capability]Status

// IsGranted reports whether the status allows use of the capability.
func (s Status) IsGranted() bool {
	return s == StatusGranted || s == StatusLimited
}

// IsDetermined reports whether requesting again would not show a dialog.
func (s Status) IsDetermined() bool {
	return s != StatusNotDetermined
}

// Native status strings sent by the bridge.
const (
	nativeNotDetermined       = "notDetermined"
	nativeRestricted          = "restricted"
	nativeDenied              = "denied"
	nativeAuthorized          = "authorized"
	nativeAuthorizedAlways    = "authorizedAlways"
	nativeAuthorizedWhenInUse = "authorizedWhenInUse"
	nativeLimited             = "limited"
)

// mapNative converts a native status string. Domains without a partial-access
// mode report limited as granted.
func mapNative(raw string, supportsLimited bool) Status {
	switch raw {
	case nativeAuthorized, nativeAuthorizedAlways, nativeAuthorizedWhenInUse:
		return StatusGranted
	case nativeDenied:
		return StatusDenied
	case nativeRestricted:
		return StatusRestricted
	case nativeNotDetermined:
		return StatusNotDetermined
	case nativeLimited:
		if supportsLimited {
			return StatusLimited
		}
		return StatusGranted
	default:
		return StatusUnknown
	}
}
