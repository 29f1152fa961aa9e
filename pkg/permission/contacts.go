package permission

func newContactsStrategy(auth Authorizer) Strategy {
	return &gatedStrategy{auth: auth, domain: "contacts"}
}
