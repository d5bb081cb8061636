package contacts

import "outbound-dialer/internal/phone"

// Contact is one row of an uploaded contact list.
// Rows are immutable for the lifetime of a campaign run; a new upload replaces them.
type Contact struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	PhoneRaw string `json:"phone"`
}

// Phone returns the canonical key for the contact's raw phone.
func (c Contact) Phone() phone.Canonical { return phone.Normalize(c.PhoneRaw) }

// QueueItem is a contact scheduled for dialing.
type QueueItem struct {
	Phone    phone.Canonical `json:"phone"`
	Name     string          `json:"name"`
	ClientID string          `json:"client_id"`
}
