// Package conversation collapses a flat message feed into per-counterparty
// summaries ordered by recency.
package conversation

import (
	"sort"
	"time"

	"github.com/sameelarif/imessage-mcp/internal/imessage"
)

// Summary describes the state of one conversation within the aggregated
// window: who it is with, its latest message, and how many messages in the
// window are unread.
type Summary struct {
	Counterparty string    `json:"counterparty"`
	LastMessage  string    `json:"last_message"`
	LastTime     time.Time `json:"last_time"`
	UnreadCount  int       `json:"unread_count"`
	Service      string    `json:"service"`
}

// noTextPlaceholder stands in for messages without a text body.
const noTextPlaceholder = "[No text]"

// Aggregate groups messages by counterparty and returns summaries sorted
// by last activity, newest first, truncated to limit. Input order is not
// trusted; recency is re-derived from timestamps.
//
// The update rule is deliberately asymmetric: the displayed last message
// always reflects the chronologically latest message, while unread counts
// accumulate over the whole window regardless of message order. Timestamp
// ties keep first-seen order (the sort is stable over insertion order).
func Aggregate(msgs []imessage.Message, limit int) []Summary {
	type entry struct {
		summary Summary
	}
	byKey := make(map[string]*entry, len(msgs))
	var keys []string

	for _, m := range msgs {
		key := m.Sender
		if m.IsFromMe {
			key = m.ChatID
		}
		if key == "" {
			continue
		}
		text := m.Text
		if text == "" {
			text = noTextPlaceholder
		}

		e, ok := byKey[key]
		if !ok {
			unread := 0
			if !m.IsRead {
				unread = 1
			}
			byKey[key] = &entry{summary: Summary{
				Counterparty: key,
				LastMessage:  text,
				LastTime:     m.Time,
				UnreadCount:  unread,
				Service:      m.Service,
			}}
			keys = append(keys, key)
			continue
		}
		if m.Time.After(e.summary.LastTime) {
			e.summary.LastMessage = text
			e.summary.LastTime = m.Time
			e.summary.Service = m.Service
		}
		if !m.IsRead {
			e.summary.UnreadCount++
		}
	}

	entries := make([]*entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, byKey[key])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].summary.LastTime.After(entries[j].summary.LastTime)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	result := make([]Summary, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.summary)
	}
	return result
}
