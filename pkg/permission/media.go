package permission

// newMediaLibraryStrategy handles the music and video library.
func newMediaLibraryStrategy(auth Authorizer) Strategy {
	return &gatedStrategy{auth: auth, domain: "mediaplayer"}
}

// newPhotosStrategy handles the photo library. Users may grant access to a
// selection of photos only, which settles as StatusLimited.
func newPhotosStrategy(auth Authorizer) Strategy {
	return &gatedStrategy{auth: auth, domain: "photokit", supportsLimited: true}
}
