package permission

// newAudioVideoStrategy handles camera and microphone capture access.
func newAudioVideoStrategy(auth Authorizer) Strategy {
	return &gatedStrategy{
		auth:   auth,
		domain: "avcapture",
		targets: map[Capability]string{
			Camera:     "video",
			Microphone: "audio",
		},
	}
}
