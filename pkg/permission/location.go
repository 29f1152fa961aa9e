package permission

// Location request levels understood by native.
const (
	levelWhenInUse = "whenInUse"
	levelAlways    = "always"
)

// locationStrategy serves location, location_when_in_use and
// location_always from one native authorization. The capabilities read the
// same native status differently: when-in-use authorization grants the
// foreground capabilities but not background (always) access.
type locationStrategy struct {
	auth Authorizer
}

func newLocationStrategy(auth Authorizer) Strategy {
	return &locationStrategy{auth: auth}
}

func (s *locationStrategy) Source(Capability) NativeRequest {
	return NativeRequest{Domain: "corelocation"}
}

func (s *locationStrategy) Status(c Capability) Status {
	return check(s.auth, c, s.Source(c), mapLocation)
}

func (s *locationStrategy) Request(c Capability, settle func(Status)) {
	req := s.Source(c)
	req.Level = levelWhenInUse
	if c == LocationAlways {
		req.Level = levelAlways
	}
	request(s.auth, c, req, s.Status(c), mapLocation, settle)
}

func mapLocation(c Capability, r Reading) Status {
	if r.ServicesDisabled {
		return StatusDisabled
	}
	switch r.Status {
	case nativeAuthorizedWhenInUse:
		if c == LocationAlways {
			return StatusDenied
		}
		return StatusGranted
	case nativeAuthorized, nativeAuthorizedAlways:
		return StatusGranted
	default:
		return mapNative(r.Status, false)
	}
}
