package common

import "net/mail"

// BareAddress reports whether s is a plain addr-spec such as a@example.org.
// Display names and angle brackets are rejected, so "<a@example.org>" and
// "A <a@example.org>" both fail.
func BareAddress(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Name == "" && a.Address == s
}
