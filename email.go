package passwordless

import (
	"net/mail"
	"strings"
)

// validEmail tells if addr is a bare email address (no display name).
func validEmail(addr string) bool {
	a, err := mail.ParseAddress(addr)
	return err == nil && a.Address == addr
}

// userEmails returns the emails of a new user built from addr.
// The address is kept as submitted.
func userEmails(addr string, verified bool) []Email {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	return []Email{{Address: addr, Verified: verified}}
}
