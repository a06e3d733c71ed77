package imessage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// fixtureTime converts a wall-clock time to the nanosecond column format.
func fixtureTime(t time.Time) int64 {
	return appleNanos(t)
}

var (
	t1 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 = time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	t3 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func writeChatDB(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	schema := `
		CREATE TABLE handle (ROWID INTEGER PRIMARY KEY, id TEXT);
		CREATE TABLE chat (ROWID INTEGER PRIMARY KEY, guid TEXT, display_name TEXT, style INTEGER);
		CREATE TABLE message (
			ROWID INTEGER PRIMARY KEY,
			guid TEXT,
			text TEXT,
			handle_id INTEGER,
			service TEXT,
			date INTEGER,
			is_from_me INTEGER,
			is_read INTEGER,
			cache_has_attachments INTEGER DEFAULT 0
		);
		CREATE TABLE chat_message_join (chat_id INTEGER, message_id INTEGER);
		CREATE TABLE attachment (ROWID INTEGER PRIMARY KEY, transfer_name TEXT, filename TEXT, mime_type TEXT, total_bytes INTEGER);
		CREATE TABLE message_attachment_join (message_id INTEGER, attachment_id INTEGER);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatal(err)
	}

	exec := func(stmt string, args ...any) {
		t.Helper()
		if _, err := db.Exec(stmt, args...); err != nil {
			t.Fatal(err)
		}
	}

	exec(`INSERT INTO handle VALUES (1, '+14155550100')`)
	exec(`INSERT INTO handle VALUES (2, '+14155550177')`)

	exec(`INSERT INTO chat VALUES (1, 'iMessage;-;+14155550100', NULL, 45)`)
	exec(`INSERT INTO chat VALUES (2, 'iMessage;+;chat88', 'Climbing Crew', 43)`)

	// Direct chat: inbound unread, own reply, inbound read with attachment.
	exec(`INSERT INTO message VALUES (1, 'g1', 'hey', 1, 'iMessage', ?, 0, 0, 0)`, fixtureTime(t1))
	exec(`INSERT INTO message VALUES (2, 'g2', 'on my way', NULL, 'iMessage', ?, 1, 0, 0)`, fixtureTime(t2))
	exec(`INSERT INTO message VALUES (3, 'g3', 'see attached', 1, 'iMessage', ?, 0, 1, 1)`, fixtureTime(t3))
	exec(`INSERT INTO chat_message_join VALUES (1, 1)`)
	exec(`INSERT INTO chat_message_join VALUES (1, 2)`)
	exec(`INSERT INTO chat_message_join VALUES (1, 3)`)

	// Group chat: one unread SMS from another handle.
	exec(`INSERT INTO message VALUES (4, 'g4', 'group ping', 2, 'SMS', ?, 0, 0, 0)`, fixtureTime(t2))
	exec(`INSERT INTO chat_message_join VALUES (2, 4)`)

	exec(`INSERT INTO attachment VALUES (1, 'photo.jpg', '/att/photo.jpg', 'image/jpeg', 2048)`)
	exec(`INSERT INTO message_attachment_join VALUES (3, 1)`)
}

func openFixture(t *testing.T) *ChatDB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	writeChatDB(t, path)
	c, err := OpenChatDB(nil, path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetMessagesNewestFirst(t *testing.T) {
	c := openFixture(t)
	msgs, err := c.GetMessages(context.Background(), MessageFilters{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].GUID != "g3" {
		t.Errorf("newest message = %s, want g3", msgs[0].GUID)
	}
	if !msgs[0].Time.Equal(t3) {
		t.Errorf("timestamp = %v, want %v", msgs[0].Time, t3)
	}
}

func TestGetMessagesUnreadOnly(t *testing.T) {
	c := openFixture(t)
	msgs, err := c.GetMessages(context.Background(), MessageFilters{Limit: 10, UnreadOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 unread, got %d", len(msgs))
	}
	for _, m := range msgs {
		if m.IsRead || m.IsFromMe {
			t.Errorf("message %s should be inbound unread", m.GUID)
		}
	}
}

func TestGetMessagesOwnAreRead(t *testing.T) {
	c := openFixture(t)
	msgs, err := c.GetMessages(context.Background(), MessageFilters{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range msgs {
		if m.IsFromMe && !m.IsRead {
			t.Errorf("own message %s must be read", m.GUID)
		}
	}
}

func TestGetMessagesSenderFilterKeepsBothSides(t *testing.T) {
	c := openFixture(t)
	msgs, err := c.GetMessages(context.Background(), MessageFilters{Limit: 10, Sender: "415-555-0100"})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages in the conversation, got %d", len(msgs))
	}
	var sawOwn bool
	for _, m := range msgs {
		if m.IsFromMe {
			sawOwn = true
		}
	}
	if !sawOwn {
		t.Error("own reply missing from sender-filtered conversation")
	}
}

func TestGetMessagesServiceFilter(t *testing.T) {
	c := openFixture(t)
	msgs, err := c.GetMessages(context.Background(), MessageFilters{Limit: 10, Service: ServiceSMS})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].GUID != "g4" {
		t.Fatalf("expected only the SMS message, got %+v", msgs)
	}
	if !msgs[0].IsGroupChat {
		t.Error("group chat flag lost")
	}
}

func TestGetMessagesSince(t *testing.T) {
	c := openFixture(t)
	since := t2
	msgs, err := c.GetMessages(context.Background(), MessageFilters{Limit: 10, Since: &since})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].GUID != "g3" {
		t.Fatalf("expected only messages after t2, got %+v", msgs)
	}
}

func TestGetMessagesAttachments(t *testing.T) {
	c := openFixture(t)
	msgs, err := c.GetMessages(context.Background(), MessageFilters{Limit: 10, HasAttachments: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message with attachments, got %d", len(msgs))
	}
	atts := msgs[0].Attachments
	if len(atts) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(atts))
	}
	if atts[0].Filename != "photo.jpg" || !atts[0].IsImage || atts[0].Size != 2048 {
		t.Errorf("unexpected attachment: %+v", atts[0])
	}
}

func TestGetMessagesInvalidFilters(t *testing.T) {
	c := openFixture(t)
	if _, err := c.GetMessages(context.Background(), MessageFilters{Limit: 0}); err == nil {
		t.Error("expected validation error for zero limit")
	}
	if _, err := c.GetMessages(context.Background(), MessageFilters{Limit: 10, Service: "carrier-pigeon"}); err == nil {
		t.Error("expected validation error for unknown service")
	}
}

func TestListChats(t *testing.T) {
	c := openFixture(t)
	chats, err := c.ListChats(context.Background(), ChatFilters{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(chats))
	}
	// Direct chat has the newer message, so it sorts first.
	if chats[0].GUID != "iMessage;-;+14155550100" {
		t.Errorf("most recent chat = %s", chats[0].GUID)
	}
	if chats[0].UnreadCount != 1 {
		t.Errorf("direct chat unread = %d, want 1", chats[0].UnreadCount)
	}
	if !chats[1].IsGroup || chats[1].DisplayName != "Climbing Crew" {
		t.Errorf("unexpected group chat: %+v", chats[1])
	}
}

func TestListChatsDirectOnly(t *testing.T) {
	c := openFixture(t)
	chats, err := c.ListChats(context.Background(), ChatFilters{Limit: 10, DirectOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 1 || chats[0].IsGroup {
		t.Fatalf("expected only the direct chat, got %+v", chats)
	}
}

func TestAppleTimeRoundTrip(t *testing.T) {
	want := time.Date(2024, 5, 4, 3, 2, 1, 0, time.UTC)
	if got := appleTime(appleNanos(want)); !got.Equal(want) {
		t.Errorf("round trip = %v, want %v", got, want)
	}
}

func TestAppleTimeSecondsFallback(t *testing.T) {
	// Pre-High Sierra rows store seconds since the Apple epoch.
	want := time.Date(2015, 1, 2, 3, 4, 5, 0, time.UTC)
	secs := want.Unix() - appleEpoch
	if got := appleTime(secs); !got.Equal(want) {
		t.Errorf("seconds conversion = %v, want %v", got, want)
	}
}

func TestChatIdentifier(t *testing.T) {
	cases := []struct{ in, want string }{
		{"iMessage;-;+14155550100", "+14155550100"},
		{"SMS;-;+14155550177", "+14155550177"},
		{"plain-guid", "plain-guid"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ChatIdentifier(tc.in); got != tc.want {
			t.Errorf("ChatIdentifier(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
