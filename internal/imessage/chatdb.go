package imessage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sameelarif/imessage-mcp/internal/phone"
)

// appleEpoch is 2001-01-01T00:00:00Z, the zero point of chat.db timestamps.
const appleEpoch = 978307200

// chat.db style codes.
const (
	styleGroup  = 43
	styleDirect = 45
)

// ChatDB reads the local Messages database. Like the contact store it is
// opened read-only once by the host and closed on shutdown; a mutex keeps
// the single handle safe under concurrent tool calls.
type ChatDB struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// DefaultChatDBPath returns ~/Library/Messages/chat.db for the current user.
func DefaultChatDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Library", "Messages", "chat.db")
}

// OpenChatDB opens the message store at path read-only.
func OpenChatDB(log *slog.Logger, path string) (*ChatDB, error) {
	if log == nil {
		log = slog.Default()
	}
	if path == "" {
		return nil, fmt.Errorf("imessage: empty chat.db path")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("imessage: chat.db not found at %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("imessage: open chat.db: %w", err)
	}
	c := &ChatDB{
		db:     db,
		path:   path,
		logger: log.With(slog.String("component", "chatdb")),
	}
	c.logger.Info("message store opened", slog.String("path", path))
	return c, nil
}

func (c *ChatDB) Close() error {
	return c.db.Close()
}

// appleTime converts a chat.db date column to time.Time. Modern databases
// store nanoseconds since the Apple epoch; pre-High Sierra rows hold
// seconds. Values above 1e12 are treated as nanoseconds.
func appleTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	if v > 1e12 {
		return time.Unix(appleEpoch, v).UTC()
	}
	return time.Unix(appleEpoch+v, 0).UTC()
}

// appleNanos converts a time.Time to the nanosecond representation used in
// query bounds.
func appleNanos(t time.Time) int64 {
	return t.Unix()*int64(time.Second) + int64(t.Nanosecond()) - appleEpoch*int64(time.Second)
}

// GetMessages returns messages newest-first. SQL handles every filter
// except Sender, which needs loose phone matching: candidate rows are
// over-fetched and narrowed with phone.Matches against the handle and, for
// own messages, the chat identifier.
func (c *ChatDB) GetMessages(ctx context.Context, f MessageFilters) ([]Message, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	where := []string{"1=1"}
	var args []any
	if f.ChatID != "" {
		where = append(where, "ch.guid = ?")
		args = append(args, f.ChatID)
	}
	if f.Service != "" {
		where = append(where, "m.service = ?")
		args = append(args, f.Service)
	}
	if f.Since != nil {
		where = append(where, "m.date > ?")
		args = append(args, appleNanos(*f.Since))
	}
	if f.UnreadOnly {
		where = append(where, "m.is_read = 0 AND m.is_from_me = 0")
	}
	if f.HasAttachments {
		where = append(where, "m.cache_has_attachments = 1")
	}
	if f.ExcludeOwn {
		where = append(where, "m.is_from_me = 0")
	}

	fetch := f.Limit
	if f.Sender != "" {
		// Sender narrowing happens after the query; read a wider window.
		fetch = f.Limit * 4
		if fetch < 200 {
			fetch = 200
		}
	}

	query := fmt.Sprintf(`
		SELECT m.ROWID, m.guid, COALESCE(m.text, ''), COALESCE(h.id, ''),
		       COALESCE(m.service, ''), m.date, m.is_from_me, m.is_read,
		       m.cache_has_attachments, COALESCE(ch.guid, ''), COALESCE(ch.style, %d)
		FROM message m
		LEFT JOIN handle h ON h.ROWID = m.handle_id
		LEFT JOIN chat_message_join cmj ON cmj.message_id = m.ROWID
		LEFT JOIN chat ch ON ch.ROWID = cmj.chat_id
		WHERE %s
		ORDER BY m.date DESC
		LIMIT ?`, styleDirect, strings.Join(where, " AND "))
	args = append(args, fetch)

	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("imessage: query messages: %w", err)
	}
	defer rows.Close()

	type rawMessage struct {
		rowID          int64
		hasAttachments bool
		msg            Message
	}
	var raw []rawMessage
	for rows.Next() {
		var (
			r            rawMessage
			date         int64
			fromMe, read int
			hasAttach    int
			style        int
		)
		if err := rows.Scan(&r.rowID, &r.msg.GUID, &r.msg.Text, &r.msg.Sender,
			&r.msg.Service, &date, &fromMe, &read, &hasAttach, &r.msg.ChatID, &style); err != nil {
			return nil, fmt.Errorf("imessage: scan message: %w", err)
		}
		r.msg.Time = appleTime(date)
		r.msg.IsFromMe = fromMe == 1
		// Own messages never sit unread in the inbox.
		r.msg.IsRead = read == 1 || r.msg.IsFromMe
		r.msg.IsGroupChat = style == styleGroup
		r.hasAttachments = hasAttach == 1
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("imessage: iterate messages: %w", err)
	}

	var result []Message
	for _, r := range raw {
		if f.Sender != "" && !senderMatches(r.msg, f.Sender) {
			continue
		}
		if r.hasAttachments {
			attachments, err := c.attachmentsFor(ctx, r.rowID)
			if err != nil {
				return nil, err
			}
			r.msg.Attachments = attachments
		}
		result = append(result, r.msg)
		if len(result) >= f.Limit {
			break
		}
	}
	return result, nil
}

// senderMatches reports whether a message belongs to the conversation with
// the given address. Inbound messages match on the handle; own messages
// match on the chat's address segment so both sides of a conversation
// survive a sender filter.
func senderMatches(m Message, sender string) bool {
	if m.IsFromMe {
		return phone.Matches(ChatIdentifier(m.ChatID), sender)
	}
	if phone.Matches(m.Sender, sender) {
		return true
	}
	return strings.EqualFold(m.Sender, sender)
}

// attachmentsFor loads attachment rows for one message. Callers hold c.mu.
func (c *ChatDB) attachmentsFor(ctx context.Context, messageRowID int64) ([]Attachment, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT COALESCE(a.transfer_name, ''), COALESCE(a.filename, ''),
		       COALESCE(a.mime_type, ''), COALESCE(a.total_bytes, 0)
		FROM attachment a
		JOIN message_attachment_join maj ON maj.attachment_id = a.ROWID
		WHERE maj.message_id = ?
		ORDER BY a.ROWID`, messageRowID)
	if err != nil {
		return nil, fmt.Errorf("imessage: query attachments: %w", err)
	}
	defer rows.Close()

	var result []Attachment
	for rows.Next() {
		var a Attachment
		var transferName string
		if err := rows.Scan(&transferName, &a.Path, &a.MimeType, &a.Size); err != nil {
			return nil, fmt.Errorf("imessage: scan attachment: %w", err)
		}
		a.Filename = transferName
		if a.Filename == "" && a.Path != "" {
			a.Filename = filepath.Base(a.Path)
		}
		a.IsImage = strings.HasPrefix(a.MimeType, "image/")
		result = append(result, a)
	}
	return result, rows.Err()
}

// ListChats returns the chat list ordered by last activity, newest first.
func (c *ChatDB) ListChats(ctx context.Context, f ChatFilters) ([]Chat, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	where := "1=1"
	if f.DirectOnly {
		where = fmt.Sprintf("ch.style = %d", styleDirect)
	}
	query := fmt.Sprintf(`
		SELECT ch.guid, COALESCE(ch.display_name, ''), ch.style,
		       COALESCE(MAX(m.date), 0),
		       COALESCE(SUM(CASE WHEN m.is_read = 0 AND m.is_from_me = 0 THEN 1 ELSE 0 END), 0)
		FROM chat ch
		LEFT JOIN chat_message_join cmj ON cmj.chat_id = ch.ROWID
		LEFT JOIN message m ON m.ROWID = cmj.message_id
		WHERE %s
		GROUP BY ch.ROWID
		ORDER BY MAX(m.date) DESC
		LIMIT ?`, where)

	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.QueryContext(ctx, query, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("imessage: query chats: %w", err)
	}
	defer rows.Close()

	var result []Chat
	for rows.Next() {
		var (
			chat  Chat
			style int
			last  int64
		)
		if err := rows.Scan(&chat.GUID, &chat.DisplayName, &style, &last, &chat.UnreadCount); err != nil {
			return nil, fmt.Errorf("imessage: scan chat: %w", err)
		}
		chat.IsGroup = style == styleGroup
		chat.LastActivity = appleTime(last)
		result = append(result, chat)
	}
	return result, rows.Err()
}
