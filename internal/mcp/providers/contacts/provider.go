// Package contacts exposes address book lookups as MCP tools.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sameelarif/imessage-mcp/internal/contacts"
	mcpgw "github.com/sameelarif/imessage-mcp/internal/mcp"
	"github.com/sameelarif/imessage-mcp/internal/resolve"
)

const (
	toolFindContact    = "find-contact"
	toolSearchContacts = "search-contacts"
	toolLookupPhone    = "lookup-phone"
)

// maxSearchResults caps the search-contacts listing.
const maxSearchResults = 25

// Resolver maps a free-form name to messageable candidates.
type Resolver interface {
	Resolve(ctx context.Context, name string) (resolve.Resolution, error)
}

// Searcher queries the contact index by name fragments.
type Searcher interface {
	Search(ctx context.Context, query string) ([]contacts.Contact, error)
	FindByPhone(ctx context.Context, phone string) (*contacts.Contact, error)
}

// Executor exposes the contact tools.
type Executor struct {
	resolver Resolver
	index    Searcher
	logger   *slog.Logger
}

func NewExecutor(log *slog.Logger, resolver Resolver, index Searcher) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		resolver: resolver,
		index:    index,
		logger:   log.With(slog.String("provider", "contacts")),
	}
}

func (p *Executor) ListTools(ctx context.Context) ([]mcpgw.ToolDescriptor, error) {
	return []mcpgw.ToolDescriptor{
		{
			Name:        toolFindContact,
			Description: "Find who to message by name, falling back to named chats when the address book has no match",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{
						"type":        "string",
						"description": "Name or partial name to look up",
					},
				},
				"required": []string{"name"},
			},
		},
		{
			Name:        toolSearchContacts,
			Description: "Search the address book by first name, last name, or nickname",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Name fragment to search for",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        toolLookupPhone,
			Description: "Find the contact that owns a phone number",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"phone": map[string]any{
						"type":        "string",
						"description": "Phone number in any common format",
					},
				},
				"required": []string{"phone"},
			},
		},
	}, nil
}

func (p *Executor) CallTool(ctx context.Context, toolName string, arguments map[string]any) (map[string]any, error) {
	switch toolName {
	case toolFindContact:
		return p.callFindContact(ctx, arguments)
	case toolSearchContacts:
		return p.callSearchContacts(ctx, arguments)
	case toolLookupPhone:
		return p.callLookupPhone(ctx, arguments)
	default:
		return nil, mcpgw.ErrToolNotFound
	}
}

func (p *Executor) callFindContact(ctx context.Context, arguments map[string]any) (map[string]any, error) {
	name := mcpgw.StringArg(arguments, "name")
	if name == "" {
		return mcpgw.BuildToolErrorResult("name is required"), nil
	}
	res, err := p.resolver.Resolve(ctx, name)
	if errors.Is(err, resolve.ErrNotFound) {
		return mcpgw.BuildToolSuccessResult(
			fmt.Sprintf("No contact or chat found matching %q", name), nil), nil
	}
	if err != nil {
		p.logger.Warn("find-contact failed", slog.Any("error", err), slog.String("name", name))
		return mcpgw.BuildToolErrorResult(fmt.Sprintf("find-contact %q: %v", name, err)), nil
	}

	if c, ok := res.Single(); ok {
		text := fmt.Sprintf("Found %s:\n%s", c.Name, formatCandidate(c))
		return mcpgw.BuildToolSuccessResult(text, res), nil
	}

	lines := make([]string, 0, len(res.Candidates))
	for i, c := range res.Candidates {
		lines = append(lines, fmt.Sprintf("%d. %s\n%s", i+1, c.Name, formatCandidate(c)))
	}
	header := fmt.Sprintf("%d matches for %q", res.Total, name)
	if res.Total > len(res.Candidates) {
		header = fmt.Sprintf("%d matches for %q (showing first %d)", res.Total, name, len(res.Candidates))
	}
	if res.Source == resolve.SourceChats {
		header += " from chat names"
	}
	text := fmt.Sprintf("%s:\n\n%s", header, strings.Join(lines, "\n"))
	return mcpgw.BuildToolSuccessResult(text, res), nil
}

func (p *Executor) callSearchContacts(ctx context.Context, arguments map[string]any) (map[string]any, error) {
	query := mcpgw.StringArg(arguments, "query")
	if query == "" {
		return mcpgw.BuildToolErrorResult("query is required"), nil
	}
	found, err := p.index.Search(ctx, query)
	if err != nil {
		p.logger.Warn("search-contacts failed", slog.Any("error", err), slog.String("query", query))
		return mcpgw.BuildToolErrorResult(fmt.Sprintf("search-contacts %q: %v", query, err)), nil
	}
	if len(found) == 0 {
		return mcpgw.BuildToolSuccessResult(fmt.Sprintf("No contacts found matching %q", query), nil), nil
	}

	total := len(found)
	if len(found) > maxSearchResults {
		found = found[:maxSearchResults]
	}
	lines := make([]string, 0, len(found))
	for _, c := range found {
		lines = append(lines, formatContact(c))
	}
	text := fmt.Sprintf("Found %d contacts matching %q:\n\n%s", total, query, strings.Join(lines, "\n\n"))
	return mcpgw.BuildToolSuccessResult(text, map[string]any{"total": total, "contacts": found}), nil
}

func (p *Executor) callLookupPhone(ctx context.Context, arguments map[string]any) (map[string]any, error) {
	phone := mcpgw.StringArg(arguments, "phone")
	if phone == "" {
		return mcpgw.BuildToolErrorResult("phone is required"), nil
	}
	c, err := p.index.FindByPhone(ctx, phone)
	if err != nil {
		p.logger.Warn("lookup-phone failed", slog.Any("error", err))
		return mcpgw.BuildToolErrorResult(fmt.Sprintf("lookup-phone: %v", err)), nil
	}
	if c == nil {
		return mcpgw.BuildToolSuccessResult(fmt.Sprintf("No contact found for %s", phone), nil), nil
	}
	text := fmt.Sprintf("%s owns %s:\n\n%s", c.FullName, phone, formatContact(*c))
	return mcpgw.BuildToolSuccessResult(text, c), nil
}

func formatCandidate(c resolve.Candidate) string {
	var lines []string
	if len(c.Phones) > 0 {
		lines = append(lines, "   Phones: "+strings.Join(c.Phones, ", "))
	}
	if len(c.Emails) > 0 {
		lines = append(lines, "   Emails: "+strings.Join(c.Emails, ", "))
	}
	if len(lines) == 0 {
		lines = append(lines, "   Chat ID: "+c.ID)
	}
	return strings.Join(lines, "\n")
}

func formatContact(c contacts.Contact) string {
	lines := []string{c.FullName}
	if c.Nickname != "" {
		lines = append(lines, "  Nickname: "+c.Nickname)
	}
	if len(c.PhoneNumbers) > 0 {
		lines = append(lines, "  Phones: "+strings.Join(c.PhoneNumbers, ", "))
	}
	if len(c.Emails) > 0 {
		lines = append(lines, "  Emails: "+strings.Join(c.Emails, ", "))
	}
	return strings.Join(lines, "\n")
}
