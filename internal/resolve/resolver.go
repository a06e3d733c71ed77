// Package resolve answers "who is X" queries by combining the contact
// index with a fallback scan of the recent chat list.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sameelarif/imessage-mcp/internal/contacts"
	"github.com/sameelarif/imessage-mcp/internal/imessage"
)

// ErrNotFound indicates neither the contact index nor the chat list holds
// a candidate for the query. The caller may retry with a different query.
var ErrNotFound = errors.New("resolve: no match in contacts or chats")

// maxCandidates caps the candidates carried in an ambiguous resolution;
// Total still reports the full match count.
const maxCandidates = 10

// chatListWindow bounds the fallback scan of the chat list.
const chatListWindow = 100

// Candidate sources.
const (
	SourceContacts = "contacts"
	SourceChats    = "chats"
)

// Candidate is one possible identity for a query.
type Candidate struct {
	// ID is a contact's numeric identifier rendered as a string, or the
	// address segment of a chat GUID.
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Phones []string `json:"phones,omitempty"`
	Emails []string `json:"emails,omitempty"`
}

/// Resolution is the outcome of a successful resolve: a single match or a
// ranked candidate list. Ambiguity is surfaced as data, never collapsed to
// an arbitrary pick.
type Resolution struct {
	Source     string      `json:"source"`
	Candidates []Candidate `json:"candidates"`
	// Total is the full match count before the candidate cap.
	Total int `json:"total"`
}

// Single returns the sole candidate when the resolution is unambiguous.
func (r Resolution) Single() (Candidate, bool) {
	if r.Total == 1 && len(r.Candidates) == 1 {
		return r.Candidates[0], true
	}
	return Candidate{}, false
}

// ContactSearcher is the slice of the contact index the resolver needs.
type ContactSearcher interface {
	Search(ctx context.Context, query string) ([]contacts.Contact, error)
}

// ChatLister is the slice of the messaging backend the resolver needs.
type ChatLister interface {
	ListChats(ctx context.Context, f imessage.ChatFilters) ([]imessage.Chat, error)
}

// Resolver orchestrates the two sources. It caches nothing; every call
// re-queries in tier order and stops at the first tier with results.
type Resolver struct {
	index  ContactSearcher
	chats  ChatLister
	logger *slog.Logger
}

func NewResolver(log *slog.Logger, index ContactSearcher, chats ChatLister) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		index:  index,
		chats:  chats,
		logger: log.With(slog.String("component", "resolver")),
	}
}

// Resolve matches a free-text name or number against the contact index,
// falling back to display names in the recent direct-chat list. The
// fallback is never consulted when the index returns results.
func (r *Resolver) Resolve(ctx context.Context, name string) (Resolution, error) {
	query := strings.TrimSpace(name)
	if query == "" {
		return Resolution{}, fmt.Errorf("resolve: query is required")
	}

	matched, err := r.index.Search(ctx, query)
	if err != nil {
		// a broken or missing contact store is reported, not treated as
		// zero contacts
		return Resolution{}, fmt.Errorf("resolve %q: contact search: %w", query, err)
	}
	if len(matched) > 0 {
		res := Resolution{Source: SourceContacts, Total: len(matched)}
		for _, c := range matched {
			if len(res.Candidates) == maxCandidates {
				break
			}
			res.Candidates = append(res.Candidates, Candidate{
				ID:     fmt.Sprintf("%d", c.ID),
				Name:   c.FullName,
				Phones: c.PhoneNumbers,
				Emails: c.Emails,
			})
		}
		return res, nil
	}

	chats, err := r.chats.ListChats(ctx, imessage.ChatFilters{Limit: chatListWindow, DirectOnly: true})
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve %q: list chats: %w", query, err)
	}
	lower := strings.ToLower(query)
	var hits []imessage.Chat
	for _, chat := range chats {
		// Chats without a display name are excluded from this tier.
		if chat.DisplayName == "" {
			continue
		}
		if strings.Contains(strings.ToLower(chat.DisplayName), lower) {
			hits = append(hits, chat)
		}
	}
	if len(hits) == 0 {
		r.logger.Debug("no match", slog.String("query", query))
		return Resolution{}, fmt.Errorf("resolve %q: %w", query, ErrNotFound)
	}

	res := Resolution{Source: SourceChats, Total: len(hits)}
	for _, chat := range hits {
		if len(res.Candidates) == maxCandidates {
			break
		}
		res.Candidates = append(res.Candidates, Candidate{
			ID:   chat.Identifier(),
			Name: chat.DisplayName,
		})
	}
	return res, nil
}
