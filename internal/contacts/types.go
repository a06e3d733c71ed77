package contacts

import "strings"

// Contact is an immutable snapshot of one address-book record.
// PhoneNumbers and Emails keep the store's order and raw formatting;
// deduplication is not guaranteed.
type Contact struct {
	ID           int64    `json:"id"`
	FirstName    string   `json:"first_name,omitempty"`
	LastName     string   `json:"last_name,omitempty"`
	Nickname     string   `json:"nickname,omitempty"`
	FullName     string   `json:"full_name"`
	PhoneNumbers []string `json:"phone_numbers,omitempty"`
	Emails       []string `json:"emails,omitempty"`
}

// fullName joins first and last name with a single space, or returns
// "Unknown" when both are absent.
func fullName(first, last string) string {
	parts := make([]string, 0, 2)
	if strings.TrimSpace(first) != "" {
		parts = append(parts, strings.TrimSpace(first))
	}
	if strings.TrimSpace(last) != "" {
		parts = append(parts, strings.TrimSpace(last))
	}
	if len(parts) == 0 {
		return "Unknown"
	}
	return strings.Join(parts, " ")
}
