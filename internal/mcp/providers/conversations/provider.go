// Package conversations exposes per-thread views of the message history as
// MCP tools.
package conversations

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sameelarif/imessage-mcp/internal/conversation"
	"github.com/sameelarif/imessage-mcp/internal/imessage"
	mcpgw "github.com/sameelarif/imessage-mcp/internal/mcp"
)

const (
	toolGetConversation = "get-conversation"
	toolGetRecent       = "get-recent-conversations"
	toolGetChatMessages = "get-chat-messages"
)

// aggregateWindow is how many recent messages feed the conversation summary.
const aggregateWindow = 500

// previewRunes caps the last-message preview in conversation listings.
const previewRunes = 50

// Reader fetches messages from the store.
type Reader interface {
	GetMessages(ctx context.Context, f imessage.MessageFilters) ([]imessage.Message, error)
}

// Executor exposes the conversation tools.
type Executor struct {
	reader Reader
	logger *slog.Logger
}

func NewExecutor(log *slog.Logger, reader Reader) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		reader: reader,
		logger: log.With(slog.String("provider", "conversations")),
	}
}

func (p *Executor) ListTools(ctx context.Context) ([]mcpgw.ToolDescriptor, error) {
	return []mcpgw.ToolDescriptor{
		{
			Name:        toolGetConversation,
			Description: "Get the conversation with a specific contact, both sides included",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"contact": map[string]any{
						"type":        "string",
						"description": "Phone number or email of the contact",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Max messages (1-200, default 50)",
					},
					"since": map[string]any{
						"type":        "string",
						"description": "Only messages after this RFC 3339 date",
					},
				},
				"required": []string{"contact"},
			},
		},
		{
			Name:        toolGetRecent,
			Description: "List recent conversations with unread counts and last-message previews",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Max conversations (1-50, default 20)",
					},
				},
				"required": []string{},
			},
		},
		{
			Name:        toolGetChatMessages,
			Description: "Get messages from a specific chat (including group chats) by chat ID",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"chatId": map[string]any{
						"type":        "string",
						"description": "Chat identifier, e.g. chat123456 or a full chat GUID",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Max messages (1-100, default 50)",
					},
					"since": map[string]any{
						"type":        "string",
						"description": "Only messages after this RFC 3339 date",
					},
				},
				"required": []string{"chatId"},
			},
		},
	}, nil
}

func (p *Executor) CallTool(ctx context.Context, toolName string, arguments map[string]any) (map[string]any, error) {
	switch toolName {
	case toolGetConversation:
		return p.callGetConversation(ctx, arguments)
	case toolGetRecent:
		return p.callGetRecent(ctx, arguments)
	case toolGetChatMessages:
		return p.callGetChatMessages(ctx, arguments)
	default:
		return nil, mcpgw.ErrToolNotFound
	}
}

func (p *Executor) callGetConversation(ctx context.Context, arguments map[string]any) (map[string]any, error) {
	contact := mcpgw.StringArg(arguments, "contact")
	if contact == "" {
		return mcpgw.BuildToolErrorResult("contact is required"), nil
	}
	limit, err := mcpgw.BoundedIntArg(arguments, "limit", 50, 1, 200)
	if err != nil {
		return mcpgw.BuildToolErrorResult(err.Error()), nil
	}
	since, err := sinceArg(arguments)
	if err != nil {
		return mcpgw.BuildToolErrorResult(err.Error()), nil
	}

	msgs, err := p.reader.GetMessages(ctx, imessage.MessageFilters{
		Sender: contact,
		Since:  since,
		Limit:  limit,
	})
	if err != nil {
		p.logger.Warn("get-conversation failed", slog.Any("error", err), slog.String("contact", contact))
		return mcpgw.BuildToolErrorResult(fmt.Sprintf("get-conversation with %s: %v", contact, err)), nil
	}
	if len(msgs) == 0 {
		return mcpgw.BuildToolSuccessResult(fmt.Sprintf("No conversation found with %s", contact), nil), nil
	}

	// store order is newest first; a conversation reads oldest first
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Time.Before(msgs[j].Time) })

	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		who := contact
		if m.IsFromMe {
			who = "Me"
		}
		attachments := ""
		if n := len(m.Attachments); n > 0 {
			attachments = fmt.Sprintf(" [%d attachment(s)]", n)
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s%s", formatTime(m.Time), who, textOrPlaceholder(m.Text), attachments))
	}
	text := fmt.Sprintf("Conversation with %s (%d messages):\n\n%s", contact, len(msgs), strings.Join(lines, "\n"))
	return mcpgw.BuildToolSuccessResult(text, map[string]any{"total": len(msgs)}), nil
}

func (p *Executor) callGetRecent(ctx context.Context, arguments map[string]any) (map[string]any, error) {
	limit, err := mcpgw.BoundedIntArg(arguments, "limit", 20, 1, 50)
	if err != nil {
		return mcpgw.BuildToolErrorResult(err.Error()), nil
	}

	msgs, err := p.reader.GetMessages(ctx, imessage.MessageFilters{Limit: aggregateWindow})
	if err != nil {
		p.logger.Warn("get-recent-conversations failed", slog.Any("error", err))
		return mcpgw.BuildToolErrorResult(fmt.Sprintf("get-recent-conversations: %v", err)), nil
	}

	summaries := conversation.Aggregate(msgs, limit)
	if len(summaries) == 0 {
		return mcpgw.BuildToolSuccessResult("No recent conversations found", nil), nil
	}

	lines := make([]string, 0, len(summaries))
	for _, s := range summaries {
		unread := ""
		if s.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d unread)", s.UnreadCount)
		}
		lines = append(lines, fmt.Sprintf("%s%s\n  [%s] %s", s.Counterparty, unread, formatTime(s.LastTime), preview(s.LastMessage)))
	}
	text := fmt.Sprintf("%d recent conversations:\n\n%s", len(summaries), strings.Join(lines, "\n\n"))
	return mcpgw.BuildToolSuccessResult(text, summaries), nil
}

func (p *Executor) callGetChatMessages(ctx context.Context, arguments map[string]any) (map[string]any, error) {
	chatID := mcpgw.StringArg(arguments, "chatId")
	if chatID == "" {
		return mcpgw.BuildToolErrorResult("chatId is required"), nil
	}
	limit, err := mcpgw.BoundedIntArg(arguments, "limit", 50, 1, 100)
	if err != nil {
		return mcpgw.BuildToolErrorResult(err.Error()), nil
	}
	since, err := sinceArg(arguments)
	if err != nil {
		return mcpgw.BuildToolErrorResult(err.Error()), nil
	}

	msgs, err := p.reader.GetMessages(ctx, imessage.MessageFilters{
		ChatID: chatID,
		Since:  since,
		Limit:  limit,
	})
	if err != nil {
		p.logger.Warn("get-chat-messages failed", slog.Any("error", err), slog.String("chat_id", chatID))
		return mcpgw.BuildToolErrorResult(fmt.Sprintf("get-chat-messages %s: %v", chatID, err)), nil
	}
	if len(msgs) == 0 {
		return mcpgw.BuildToolSuccessResult(fmt.Sprintf("No messages found in chat %s", chatID), nil), nil
	}

	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Time.Before(msgs[j].Time) })

	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		who := m.Sender
		if m.IsFromMe {
			who = "Me"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", formatTime(m.Time), who, textOrPlaceholder(m.Text)))
	}
	text := fmt.Sprintf("Chat %s (%d messages):\n\n%s", chatID, len(msgs), strings.Join(lines, "\n"))
	return mcpgw.BuildToolSuccessResult(text, map[string]any{"total": len(msgs)}), nil
}

func sinceArg(arguments map[string]any) (*time.Time, error) {
	raw := mcpgw.StringArg(arguments, "since")
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("since must be an RFC 3339 date: %v", err)
	}
	return &t, nil
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func textOrPlaceholder(text string) string {
	if text == "" {
		return "[No text]"
	}
	return text
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "..."
}
