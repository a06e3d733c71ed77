// Package attachments exposes attachment discovery as MCP tools.
package attachments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sameelarif/imessage-mcp/internal/imessage"
	mcpgw "github.com/sameelarif/imessage-mcp/internal/mcp"
)

const (
	toolGetAttachments          = "get-attachments"
	toolGetConversationFiles    = "get-conversation-attachments"
	conversationAttachmentsScan = 200
)

// Reader fetches messages from the store.
type Reader interface {
	GetMessages(ctx context.Context, f imessage.MessageFilters) ([]imessage.Message, error)
}

// Executor exposes the attachment tools.
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
		logger: log.With(slog.String("provider", "attachments")),
	}
}

func (p *Executor) ListTools(ctx context.Context) ([]mcpgw.ToolDescriptor, error) {
	return []mcpgw.ToolDescriptor{
		{
			Name:        toolGetAttachments,
			Description: "Get recent attachments, optionally from a specific sender or images only",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sender": map[string]any{
						"type":        "string",
						"description": "Filter by sender phone/email",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Max attachments (1-50, default 20)",
					},
					"imagesOnly": map[string]any{
						"type":        "boolean",
						"description": "Only image attachments",
					},
				},
				"required": []string{},
			},
		},
		{
			Name:        toolGetConversationFiles,
			Description: "Get all attachments exchanged with a specific contact",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"contact": map[string]any{
						"type":        "string",
						"description": "Phone number or email of the contact",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Max attachments (1-100, default 50)",
					},
				},
				"required": []string{"contact"},
			},
		},
	}, nil
}

func (p *Executor) CallTool(ctx context.Context, toolName string, arguments map[string]any) (map[string]any, error) {
	switch toolName {
	case toolGetAttachments:
		return p.callGetAttachments(ctx, arguments)
	case toolGetConversationFiles:
		return p.callGetConversationAttachments(ctx, arguments)
	default:
		return nil, mcpgw.ErrToolNotFound
	}
}

// attachmentRecord pairs an attachment with the message that carried it.
type attachmentRecord struct {
	imessage.Attachment
	Sender   string    `json:"sender"`
	IsFromMe bool      `json:"is_from_me"`
	Time     time.Time `json:"time"`
}

func (p *Executor) callGetAttachments(ctx context.Context, arguments map[string]any) (map[string]any, error) {
	limit, err := mcpgw.BoundedIntArg(arguments, "limit", 20, 1, 50)
	if err != nil {
		return mcpgw.BuildToolErrorResult(err.Error()), nil
	}
	imagesOnly, _, err := mcpgw.BoolArg(arguments, "imagesOnly")
	if err != nil {
		return mcpgw.BuildToolErrorResult(err.Error()), nil
	}
	sender := mcpgw.StringArg(arguments, "sender")

	// messages can carry several attachments, so scan beyond the cap
	msgs, err := p.reader.GetMessages(ctx, imessage.MessageFilters{
		Sender:         sender,
		HasAttachments: true,
		Limit:          limit * 2,
	})
	if err != nil {
		p.logger.Warn("get-attachments failed", slog.Any("error", err))
		return mcpgw.BuildToolErrorResult(fmt.Sprintf("get-attachments: %v", err)), nil
	}

	records := collect(msgs, imagesOnly, limit)
	if len(records) == 0 {
		kind := "attachments"
		if imagesOnly {
			kind = "images"
		}
		return mcpgw.BuildToolSuccessResult(fmt.Sprintf("No %s found", kind), nil), nil
	}

	text := fmt.Sprintf("Found %d attachment(s):\n\n%s", len(records), formatRecords(records))
	return mcpgw.BuildToolSuccessResult(text, map[string]any{
		"total":       len(records),
		"attachments": records,
	}), nil
}

func (p *Executor) callGetConversationAttachments(ctx context.Context, arguments map[string]any) (map[string]any, error) {
	contact := mcpgw.StringArg(arguments, "contact")
	if contact == "" {
		return mcpgw.BuildToolErrorResult("contact is required"), nil
	}
	limit, err := mcpgw.BoundedIntArg(arguments, "limit", 50, 1, 100)
	if err != nil {
		return mcpgw.BuildToolErrorResult(err.Error()), nil
	}

	msgs, err := p.reader.GetMessages(ctx, imessage.MessageFilters{
		Sender:         contact,
		HasAttachments: true,
		Limit:          conversationAttachmentsScan,
	})
	if err != nil {
		p.logger.Warn("get-conversation-attachments failed", slog.Any("error", err), slog.String("contact", contact))
		return mcpgw.BuildToolErrorResult(fmt.Sprintf("get-conversation-attachments with %s: %v", contact, err)), nil
	}

	records := collect(msgs, false, limit)
	if len(records) == 0 {
		return mcpgw.BuildToolSuccessResult(fmt.Sprintf("No attachments found in conversation with %s", contact), nil), nil
	}

	text := fmt.Sprintf("Found %d attachment(s) with %s:\n\n%s", len(records), contact, formatRecords(records))
	return mcpgw.BuildToolSuccessResult(text, map[string]any{
		"total":       len(records),
		"attachments": records,
	}), nil
}

func collect(msgs []imessage.Message, imagesOnly bool, limit int) []attachmentRecord {
	var records []attachmentRecord
	for _, m := range msgs {
		for _, a := range m.Attachments {
			if imagesOnly && !a.IsImage {
				continue
			}
			records = append(records, attachmentRecord{
				Attachment: a,
				Sender:     m.Sender,
				IsFromMe:   m.IsFromMe,
				Time:       m.Time,
			})
			if len(records) == limit {
				return records
			}
		}
	}
	return records
}

func formatRecords(records []attachmentRecord) string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		who := r.Sender
		if r.IsFromMe {
			who = "Me"
		}
		name := r.Filename
		if name == "" {
			name = "(unnamed)"
		}
		detail := formatFileSize(r.Size)
		if r.MimeType != "" {
			detail = r.MimeType + ", " + detail
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s (%s)",
			r.Time.Local().Format("2006-01-02 15:04:05"), who, name, detail))
	}
	return strings.Join(lines, "\n")
}

func formatFileSize(size int64) string {
	switch {
	case size >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(size)/(1<<30))
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
