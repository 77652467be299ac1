package dispatch

import "strings"

// Recipient is one row of the recipient dataset. The whole field
// mapping doubles as the template context, so arbitrary extra columns
// are usable from subject and body templates.
type Recipient map[string]string

// Email returns the recipient address, trimmed. An empty result marks
// the recipient as undeliverable before any session activity.
func (r Recipient) Email() string {
	return strings.TrimSpace(r["email"])
}

// UnsubscribeURL returns the optional per-recipient unsubscribe link.
func (r Recipient) UnsubscribeURL() string {
	return strings.TrimSpace(r["unsubscribe_url"])
}
