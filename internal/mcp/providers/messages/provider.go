// Package messages exposes message reading, searching, and sending as MCP
// tools.
package messages

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sameelarif/imessage-mcp/internal/imessage"
	mcpgw "github.com/sameelarif/imessage-mcp/internal/mcp"
)

const (
	toolGetMessages    = "get-messages"
	toolGetUnread      = "get-unread-messages"
	toolSearchMessages = "search-messages"
	toolSendMessage    = "send-message"
	toolSendFile       = "send-file"
	toolSendFiles      = "send-files"
)

// searchWindow is how many recent messages a text search scans.
const searchWindow = 500

// Reader fetches messages from the store.
type Reader interface {
	GetMessages(ctx context.Context, f imessage.MessageFilters) ([]imessage.Message, error)
}

// Sender delivers outbound messages and files.
type Sender interface {
	SendText(ctx context.Context, to, text string) (imessage.Receipt, error)
	SendFile(ctx context.Context, to, path, caption string) (imessage.Receipt, error)
	SendFiles(ctx context.Context, to string, paths []string, caption string) (imessage.Receipt, error)
}

// Executor exposes the message tools. sender may be nil, which disables
// the send tools.
type Executor struct {
	reader Reader
	sender Sender
	logger *slog.Logger
}

func NewExecutor(log *slog.Logger, reader Reader, sender Sender) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		reader: reader,
		sender: sender,
		logger: log.With(slog.String("provider", "messages")),
	}
}

func (p *Executor) ListTools(ctx context.Context) ([]mcpgw.ToolDescriptor, error) {
	var tools []mcpgw.ToolDescriptor
	if p.reader != nil {
		tools = append(tools,
			mcpgw.ToolDescriptor{
				Name:        toolGetMessages,
				Description: "Get messages with optional filtering by sender, date, service, etc.",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"sender": map[string]any{
							"type":        "string",
							"description": "Filter by sender phone/email",
						},
						"limit": map[string]any{
							"type":        "integer",
							"description": "Max messages to return (1-100, default 50)",
						},
						"since": map[string]any{
							"type":        "string",
							"description": "Get messages after this RFC 3339 date",
						},
						"unreadOnly": map[string]any{
							"type":        "boolean",
							"description": "Only get unread messages",
						},
						"hasAttachments": map[string]any{
							"type":        "boolean",
							"description": "Only messages with attachments",
						},
						"service": map[string]any{
							"type":        "string",
							"description": "Filter by service (iMessage, SMS, RCS)",
						},
						"chatId": map[string]any{
							"type":        "string",
							"description": "Filter by chat ID",
						},
						"includeOwn": map[string]any{
							"type":        "boolean",
							"description": "Include your own messages",
						},
					},
					"required": []string{},
				},
			},
			mcpgw.ToolDescriptor{
				Name:        toolGetUnread,
				Description: "Get all unread messages grouped by sender",
				InputSchema: map[string]any{
					"type":       "object",
					"properties": map[string]any{},
				},
			},
			mcpgw.ToolDescriptor{
				Name:        toolSearchMessages,
				Description: "Search for messages containing specific text",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "Text to search for",
						},
						"sender": map[string]any{
							"type":        "string",
							"description": "Filter by sender",
						},
						"limit": map[string]any{
							"type":        "integer",
							"description": "Max results (1-100, default 20)",
						},
					},
					"required": []string{"query"},
				},
			},
		)
	}
	if p.sender != nil {
		tools = append(tools,
			mcpgw.ToolDescriptor{
				Name:        toolSendMessage,
				Description: "Send a text message to a phone number or email",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"to": map[string]any{
							"type":        "string",
							"description": "Recipient phone number (e.g. +14155550100) or email",
						},
						"message": map[string]any{
							"type":        "string",
							"description": "Message text to send",
						},
					},
					"required": []string{"to", "message"},
				},
			},
			mcpgw.ToolDescriptor{
				Name:        toolSendFile,
				Description: "Send a file or image attachment to a recipient",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"to": map[string]any{
							"type":        "string",
							"description": "Recipient phone number or email",
						},
						"filePath": map[string]any{
							"type":        "string",
							"description": "Path to the file to send",
						},
						"message": map[string]any{
							"type":        "string",
							"description": "Optional text message with the file",
						},
					},
					"required": []string{"to", "filePath"},
				},
			},
			mcpgw.ToolDescriptor{
				Name:        toolSendFiles,
				Description: "Send multiple files to a recipient",
				InputSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"to": map[string]any{
							"type":        "string",
							"description": "Recipient phone number or email",
						},
						"filePaths": map[string]any{
							"type":        "array",
							"description": "File paths to send, in order",
							"items":       map[string]any{"type": "string"},
						},
						"message": map[string]any{
							"type":        "string",
							"description": "Optional text message",
						},
					},
					"required": []string{"to", "filePaths"},
				},
			},
		)
	}
	return tools, nil
}

func (p *Executor) CallTool(ctx context.Context, toolName string, arguments map[string]any) (map[string]any, error) {
	switch toolName {
	case toolGetMessages:
		return p.callGetMessages(ctx, arguments)
	case toolGetUnread:
		return p.callGetUnread(ctx)
	case toolSearchMessages:
		return p.callSearchMessages(ctx, arguments)
	case toolSendMessage:
		return p.callSendMessage(ctx, arguments)
	case toolSendFile:
		return p.callSendFile(ctx, arguments)
	case toolSendFiles:
		return p.callSendFiles(ctx, arguments)
	default:
		return nil, mcpgw.ErrToolNotFound
	}
}

func (p *Executor) callGetMessages(ctx context.Context, arguments map[string]any) (map[string]any, error) {
	if p.reader == nil {
		return mcpgw.BuildToolErrorResult("message store not available"), nil
	}
	limit, err := mcpgw.BoundedIntArg(arguments, "limit", 50, 1, 100)
	if err != nil {
		return mcpgw.BuildToolErrorResult(err.Error()), nil
	}
	includeOwn, _, err := mcpgw.BoolArg(arguments, "includeOwn")
	if err != nil {
		return mcpgw.BuildToolErrorResult(err.Error()), nil
	}
	unreadOnly, _, err := mcpgw.BoolArg(arguments, "unreadOnly")
	if err != nil {
		return mcpgw.BuildToolErrorResult(err.Error()), nil
	}
	hasAttachments, _, err := mcpgw.BoolArg(arguments, "hasAttachments")
	if err != nil {
		return mcpgw.BuildToolErrorResult(err.Error()), nil
	}
	since, err := sinceArg(arguments)
	if err != nil {
		return mcpgw.BuildToolErrorResult(err.Error()), nil
	}

	filters := imessage.MessageFilters{
		Sender:         mcpgw.StringArg(arguments, "sender"),
		ChatID:         mcpgw.StringArg(arguments, "chatId"),
		Service:        mcpgw.StringArg(arguments, "service"),
		Since:          since,
		Limit:          limit,
		UnreadOnly:     unreadOnly,
		HasAttachments: hasAttachments,
		ExcludeOwn:     !includeOwn,
	}
	msgs, err := p.reader.GetMessages(ctx, filters)
	if err != nil {
		p.logger.Warn("get-messages failed", slog.Any("error", err))
		return mcpgw.BuildToolErrorResult(fmt.Sprintf("get-messages: %v", err)), nil
	}
	if len(msgs) == 0 {
		return mcpgw.BuildToolSuccessResult("No messages found matching criteria", nil), nil
	}

	unread := 0
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsRead {
			unread++
		}
		marker := ""
		if !m.IsRead {
			marker = " [UNREAD]"
		}
		attachments := ""
		if n := len(m.Attachments); n > 0 {
			attachments = fmt.Sprintf(" [%d attachment(s)]", n)
		}
		lines = append(lines, fmt.Sprintf("[%s] %s (%s)%s: %s%s",
			formatTime(m.Time), displaySender(m), m.Service, marker, textOrPlaceholder(m.Text), attachments))
	}
	text := fmt.Sprintf("Found %d messages (%d unread):\n\n%s", len(msgs), unread, strings.Join(lines, "\n"))
	return mcpgw.BuildToolSuccessResult(text, map[string]any{
		"total":  len(msgs),
		"unread": unread,
	}), nil
}

func (p *Executor) callGetUnread(ctx context.Context) (map[string]any, error) {
	if p.reader == nil {
		return mcpgw.BuildToolErrorResult("message store not available"), nil
	}
	msgs, err := p.reader.GetMessages(ctx, imessage.MessageFilters{
		Limit:      searchWindow,
		UnreadOnly: true,
		ExcludeOwn: true,
	})
	if err != nil {
		p.logger.Warn("get-unread-messages failed", slog.Any("error", err))
		return mcpgw.BuildToolErrorResult(fmt.Sprintf("get-unread-messages: %v", err)), nil
	}
	if len(msgs) == 0 {
		return mcpgw.BuildToolSuccessResult("No unread messages", nil), nil
	}

	bySender := map[string][]imessage.Message{}
	var senders []string
	for _, m := range msgs {
		if _, seen := bySender[m.Sender]; !seen {
			senders = append(senders, m.Sender)
		}
		bySender[m.Sender] = append(bySender[m.Sender], m)
	}
	sort.Strings(senders)

	var blocks []string
	for _, sender := range senders {
		group := bySender[sender]
		lines := make([]string, 0, len(group))
		for _, m := range group {
			lines = append(lines, fmt.Sprintf("  [%s] %s", formatTime(m.Time), textOrPlaceholder(m.Text)))
		}
		blocks = append(blocks, fmt.Sprintf("%s (%d unread):\n%s", sender, len(group), strings.Join(lines, "\n")))
	}
	text := fmt.Sprintf("%d unread messages from %d sender(s):\n\n%s",
		len(msgs), len(senders), strings.Join(blocks, "\n\n"))
	return mcpgw.BuildToolSuccessResult(text, map[string]any{
		"total":   len(msgs),
		"senders": len(senders),
	}), nil
}

func (p *Executor) callSearchMessages(ctx context.Context, arguments map[string]any) (map[string]any, error) {
	if p.reader == nil {
		return mcpgw.BuildToolErrorResult("message store not available"), nil
	}
	query := mcpgw.StringArg(arguments, "query")
	if query == "" {
		return mcpgw.BuildToolErrorResult("query is required"), nil
	}
	limit, err := mcpgw.BoundedIntArg(arguments, "limit", 20, 1, 100)
	if err != nil {
		return mcpgw.BuildToolErrorResult(err.Error()), nil
	}
	msgs, err := p.reader.GetMessages(ctx, imessage.MessageFilters{
		Sender: mcpgw.StringArg(arguments, "sender"),
		Limit:  searchWindow,
	})
	if err != nil {
		p.logger.Warn("search-messages failed", slog.Any("error", err), slog.String("query", query))
		return mcpgw.BuildToolErrorResult(fmt.Sprintf("search-messages %q: %v", query, err)), nil
	}

	lower := strings.ToLower(query)
	var matches []imessage.Message
	for _, m := range msgs {
		if m.Text != "" && strings.Contains(strings.ToLower(m.Text), lower) {
			matches = append(matches, m)
			if len(matches) == limit {
				break
			}
		}
	}
	if len(matches) == 0 {
		return mcpgw.BuildToolSuccessResult(fmt.Sprintf("No messages found containing %q", query), nil), nil
	}

	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", formatTime(m.Time), displaySender(m), m.Text))
	}
	text := fmt.Sprintf("Found %d messages containing %q:\n\n%s", len(matches), query, strings.Join(lines, "\n"))
	return mcpgw.BuildToolSuccessResult(text, map[string]any{"total": len(matches)}), nil
}

func (p *Executor) callSendMessage(ctx context.Context, arguments map[string]any) (map[string]any, error) {
	if p.sender == nil {
		return mcpgw.BuildToolErrorResult("send service not available"), nil
	}
	to := mcpgw.StringArg(arguments, "to")
	message := mcpgw.StringArg(arguments, "message")
	if to == "" || message == "" {
		return mcpgw.BuildToolErrorResult("to and message are required"), nil
	}
	receipt, err := p.sender.SendText(ctx, to, message)
	if err != nil {
		p.logger.Warn("send-message failed", slog.Any("error", err), slog.String("to", to))
		return mcpgw.BuildToolErrorResult(fmt.Sprintf("send-message to %s: %v", to, err)), nil
	}
	text := fmt.Sprintf("Message sent successfully!\nTo: %s\nSent at: %s", receipt.To, formatTime(receipt.SentAt))
	return mcpgw.BuildToolSuccessResult(text, receipt), nil
}

func (p *Executor) callSendFile(ctx context.Context, arguments map[string]any) (map[string]any, error) {
	if p.sender == nil {
		return mcpgw.BuildToolErrorResult("send service not available"), nil
	}
	to := mcpgw.StringArg(arguments, "to")
	filePath := mcpgw.StringArg(arguments, "filePath")
	if to == "" || filePath == "" {
		return mcpgw.BuildToolErrorResult("to and filePath are required"), nil
	}
	receipt, err := p.sender.SendFile(ctx, to, filePath, mcpgw.StringArg(arguments, "message"))
	if err != nil {
		p.logger.Warn("send-file failed", slog.Any("error", err), slog.String("to", to))
		return mcpgw.BuildToolErrorResult(fmt.Sprintf("send-file to %s: %v", to, err)), nil
	}
	text := fmt.Sprintf("File sent successfully!\nTo: %s\nFile: %s\nSent at: %s", receipt.To, filePath, formatTime(receipt.SentAt))
	return mcpgw.BuildToolSuccessResult(text, receipt), nil
}

func (p *Executor) callSendFiles(ctx context.Context, arguments map[string]any) (map[string]any, error) {
	if p.sender == nil {
		return mcpgw.BuildToolErrorResult("send service not available"), nil
	}
	to := mcpgw.StringArg(arguments, "to")
	paths := mcpgw.StringSliceArg(arguments, "filePaths")
	if to == "" || len(paths) == 0 {
		return mcpgw.BuildToolErrorResult("to and filePaths are required"), nil
	}
	receipt, err := p.sender.SendFiles(ctx, to, paths, mcpgw.StringArg(arguments, "message"))
	if err != nil {
		p.logger.Warn("send-files failed", slog.Any("error", err), slog.String("to", to), slog.Int("count", len(paths)))
		return mcpgw.BuildToolErrorResult(fmt.Sprintf("send-files to %s: %v", to, err)), nil
	}
	text := fmt.Sprintf("%d files sent successfully!\nTo: %s\nFiles: %s\nSent at: %s",
		len(paths), receipt.To, strings.Join(paths, ", "), formatTime(receipt.SentAt))
	return mcpgw.BuildToolSuccessResult(text, receipt), nil
}

// --- shared formatting ---

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

func displaySender(m imessage.Message) string {
	if m.IsFromMe {
		return "Me"
	}
	return m.Sender
}

func textOrPlaceholder(text string) string {
	if text == "" {
		return "[No text]"
	}
	return text
}
