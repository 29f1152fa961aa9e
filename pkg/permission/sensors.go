package permission

// newSensorsStrategy handles motion and fitness activity. Devices without a
// motion coprocessor answer "unavailable", which settles as StatusUnknown.
func newSensorsStrategy(auth Authorizer) Strategy {
	return &gatedStrategy{auth: auth, domain: "coremotion"}
}

// newSpeechStrategy handles speech recognition.
func newSpeechStrategy(auth Authorizer) Strategy {
	return &gatedStrategy{auth: auth, domain: "speech"}
}
