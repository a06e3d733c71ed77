// Package imessage is the boundary to the local messaging backend: typed
// records, typed query filters, a read-only chat.db reader, and an
// AppleScript-driven sender.
package imessage

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Services recognized by the backend.
const (
	ServiceIMessage = "iMessage"
	ServiceSMS      = "SMS"
	ServiceRCS      = "RCS"
)

// Attachment describes a file carried by a message.
type Attachment struct {
	Filename string `json:"filename"`
	Path     string `json:"path,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size"`
	IsImage  bool   `json:"is_image"`
}

// Message is one record from the message store. It is immutable input for
// the aggregation and resolution layers.
type Message struct {
	GUID        string       `json:"guid"`
	ChatID      string       `json:"chat_id"`
	Sender      string       `json:"sender"`
	Text        string       `json:"text,omitempty"`
	Service     string       `json:"service"`
	Time        time.Time    `json:"time"`
	IsFromMe    bool         `json:"is_from_me"`
	IsRead      bool         `json:"is_read"`
	IsGroupChat bool         `json:"is_group_chat"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Chat is one entry of the backend's chat list.
type Chat struct {
	GUID         string    `json:"guid"`
	DisplayName  string    `json:"display_name,omitempty"`
	IsGroup      bool      `json:"is_group"`
	UnreadCount  int       `json:"unread_count"`
	LastActivity time.Time `json:"last_activity"`
}

// Identifier extracts the address part of a composite chat GUID, e.g.
// "iMessage;-;+14155550100" yields "+14155550100". GUIDs without a ";"
// delimiter are returned whole.
func (c Chat) Identifier() string {
	return ChatIdentifier(c.GUID)
}

// ChatIdentifier returns the final ";"-delimited segment of a composite
// chat GUID, or the whole string when no delimiter is present.
func ChatIdentifier(guid string) string {
	if idx := strings.LastIndex(guid, ";"); idx >= 0 {
		return guid[idx+1:]
	}
	return guid
}

// MessageFilters selects messages from the store. Every field is optional
// except Limit; filters replace the original backend's untyped filter
// objects and are validated before query execution.
type MessageFilters struct {
	Sender         string     `validate:"omitempty,max=256"`
	ChatID         string     `validate:"omitempty,max=256"`
	Service        string     `validate:"omitempty,oneof=iMessage SMS RCS"`
	Since          *time.Time `validate:"-"`
	Limit          int        `validate:"required,min=1,max=500"`
	UnreadOnly     bool       `validate:"-"`
	HasAttachments bool       `validate:"-"`
	ExcludeOwn     bool       `validate:"-"`
}

// ChatFilters selects entries of the chat list.
type ChatFilters struct {
	Limit      int  `validate:"required,min=1,max=500"`
	DirectOnly bool `validate:"-"`
}

var validate = validator.New()

// Validate checks filter bounds; it is called at the boundary before any
// query executes.
func (f MessageFilters) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("imessage: invalid message filters: %w", err)
	}
	return nil
}

func (f ChatFilters) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("imessage: invalid chat filters: %w", err)
	}
	return nil
}

// Receipt reports a completed send operation.
type Receipt struct {
	To     string    `json:"to"`
	SentAt time.Time `json:"sent_at"`
}
