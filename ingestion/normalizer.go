// Copyright 2025 Opsmesh Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/opsmesh/contexture/core"
)

const chatTitleLen = 50

// Normalize maps one raw source record onto the canonical entity model.
// Every source must resolve an ID, content, and a timestamp; a missing
// required field yields an error wrapping core.ErrMalformedRecord so batch
// callers can skip and count it.
func Normalize(src core.Source, raw json.RawMessage) (*core.Entity, error) {
	switch src {
	case core.SourceChat:
		return normalizeChat(raw)
	case core.SourceDocument:
		return normalizeDocument(raw)
	case core.SourceCodeChange:
		return normalizeCodeChange(raw)
	case core.SourceTicket:
		return normalizeTicket(raw)
	case core.SourceMeeting:
		return normalizeMeeting(raw)
	}
	return nil, fmt.Errorf("%w: unknown source %q", core.ErrMalformedRecord, src)
}

type chatReply struct {
	User    string `json:"user"`
	Content string `json:"content"`
}

type chatRecord struct {
	ThreadID  string      `json:"thread_id"`
	Type      string      `json:"type"`
	Content   string      `json:"content"`
	Author    string      `json:"author"`
	Timestamp string      `json:"timestamp"`
	Replies   []chatReply `json:"replies"`
}

func normalizeChat(raw json.RawMessage) (*core.Entity, error) {
	var rec chatRecord
	if err := decode(raw, &rec); err != nil {
		return nil, err
	}
	if err := checkLocalID(core.SourceChat, "thread_id", rec.ThreadID); err != nil {
		return nil, err
	}
	if rec.Content == "" {
		return nil, missingField(core.SourceChat, "content")
	}
	ts, err := parseTimestamp(core.SourceChat, rec.Timestamp)
	if err != nil {
		return nil, err
	}

	// Thread content plus all replies, so a match anywhere in the
	// conversation surfaces the whole thread.
	var content strings.Builder
	content.WriteString(rec.Content)
	for _, reply := range rec.Replies {
		user := reply.User
		if user == "" {
			user = "Unknown"
		}
		fmt.Fprintf(&content, "\n[%s]: %s", user, reply.Content)
	}

	title := rec.Content
	if len(title) > chatTitleLen {
		title = title[:chatTitleLen] + "..."
	}

	return finishEntity(&core.Entity{
		ID:        core.EntityID(core.SourceChat, rec.ThreadID),
		Source:    core.SourceChat,
		Type:      defaultType(rec.Type, "conversation"),
		Title:     title,
		Content:   content.String(),
		Author:    rec.Author,
		Timestamp: ts,
	}), nil
}

type documentRecord struct {
	DocID     string `json:"doc_id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
}

func normalizeDocument(raw json.RawMessage) (*core.Entity, error) {
	var rec documentRecord
	if err := decode(raw, &rec); err != nil {
		return nil, err
	}
	if err := checkLocalID(core.SourceDocument, "doc_id", rec.DocID); err != nil {
		return nil, err
	}
	if rec.Content == "" {
		return nil, missingField(core.SourceDocument, "content")
	}
	ts, err := parseTimestamp(core.SourceDocument, rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	return finishEntity(&core.Entity{
		ID:        core.EntityID(core.SourceDocument, rec.DocID),
		Source:    core.SourceDocument,
		Type:      defaultType(rec.Type, "document"),
		Title:     rec.Title,
		Content:   rec.Content,
		Author:    rec.Author,
		Timestamp: ts,
	}), nil
}

type codeChangeRecord struct {
	PRNumber    json.Number `json:"pr_number"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Author      string      `json:"author"`
	CreatedAt   string      `json:"created_at"`
}

func normalizeCodeChange(raw json.RawMessage) (*core.Entity, error) {
	var rec codeChangeRecord
	if err := decode(raw, &rec); err != nil {
		return nil, err
	}
	if err := checkLocalID(core.SourceCodeChange, "pr_number", rec.PRNumber.String()); err != nil {
		return nil, err
	}
	if rec.Description == "" {
		return nil, missingField(core.SourceCodeChange, "description")
	}
	ts, err := parseTimestamp(core.SourceCodeChange, rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	return finishEntity(&core.Entity{
		ID:        core.EntityID(core.SourceCodeChange, rec.PRNumber.String()),
		Source:    core.SourceCodeChange,
		Type:      "pull_request",
		Title:     rec.Title,
		Content:   rec.Description,
		Author:    rec.Author,
		Timestamp: ts,
	}), nil
}

type ticketRecord struct {
	TicketID    string `json:"ticket_id"`
	Type        string `json:"type"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Reporter    string `json:"reporter"`
	CreatedAt   string `json:"created_at"`
}

func normalizeTicket(raw json.RawMessage) (*core.Entity, error) {
	var rec ticketRecord
	if err := decode(raw, &rec); err != nil {
		return nil, err
	}
	if err := checkLocalID(core.SourceTicket, "ticket_id", rec.TicketID); err != nil {
		return nil, err
	}
	if rec.Description == "" {
		return nil, missingField(core.SourceTicket, "description")
	}
	ts, err := parseTimestamp(core.SourceTicket, rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	entity := finishEntity(&core.Entity{
		ID:        core.EntityID(core.SourceTicket, rec.TicketID),
		Source:    core.SourceTicket,
		Type:      defaultType(rec.Type, "ticket"),
		Title:     rec.Summary,
		Content:   rec.Description,
		Author:    rec.Reporter,
		Timestamp: ts,
	})

	// A ticket carries its own key, so entities that mention the key link
	// back to the ticket itself.
	entity.Refs = appendRef(entity.Refs, core.Ref{Kind: core.RefTicket, Key: rec.TicketID})
	return entity, nil
}

type transcriptEntry struct {
	TimestampOffset string `json:"timestamp_offset"`
	Speaker         string `json:"speaker"`
	Text            string `json:"text"`
}

type actionItem struct {
	Action   string `json:"action"`
	Assignee string `json:"assignee"`
	Status   string `json:"status"`
}

type meetingRecord struct {
	MeetingID     string            `json:"meeting_id"`
	Type          string            `json:"type"`
	Title         string            `json:"title"`
	Summary       string            `json:"summary"`
	Organizer     string            `json:"organizer"`
	ScheduledTime string            `json:"scheduled_time"`
	Transcript    []transcriptEntry `json:"transcript"`
	ActionItems   []actionItem      `json:"action_items"`
}

func normalizeMeeting(raw json.RawMessage) (*core.Entity, error) {
	var rec meetingRecord
	if err := decode(raw, &rec); err != nil {
		return nil, err
	}
	if err := checkLocalID(core.SourceMeeting, "meeting_id", rec.MeetingID); err != nil {
		return nil, err
	}
	if rec.Summary == "" && len(rec.Transcript) == 0 {
		return nil, missingField(core.SourceMeeting, "summary")
	}
	ts, err := parseTimestamp(core.SourceMeeting, rec.ScheduledTime)
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	fmt.Fprintf(&content, "Summary: %s\n\nTranscript:\n", rec.Summary)
	for _, entry := range rec.Transcript {
		fmt.Fprintf(&content, "[%s] %s: %s\n", entry.TimestampOffset, entry.Speaker, entry.Text)
	}
	if len(rec.ActionItems) > 0 {
		content.WriteString("\nAction Items:\n")
		for _, item := range rec.ActionItems {
			fmt.Fprintf(&content, "- %s (Assignee: %s, Status: %s)\n", item.Action, item.Assignee, item.Status)
		}
	}

	return finishEntity(&core.Entity{
		ID:        core.EntityID(core.SourceMeeting, rec.MeetingID),
		Source:    core.SourceMeeting,
		Type:      defaultType(rec.Type, "meeting"),
		Title:     rec.Title,
		Content:   content.String(),
		Author:    rec.Organizer,
		Timestamp: ts,
	}), nil
}

// finishEntity derives the fields shared by every source: cross-references
// from title and content, plus the content fingerprint.
func finishEntity(entity *core.Entity) *core.Entity {
	entity.Refs = core.ExtractRefs(entity.Title + " " + entity.Content)
	entity.Fingerprint = core.FingerprintOf(entity.Title, entity.Content)
	return entity
}

func appendRef(refs []core.Ref, ref core.Ref) []core.Ref {
	for _, existing := range refs {
		if existing == ref {
			return refs
		}
	}
	return append(refs, ref)
}

func decode(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformedRecord, err)
	}
	return nil
}

func missingField(src core.Source, field string) error {
	return fmt.Errorf("%w: %s record missing %s", core.ErrMalformedRecord, src, field)
}

// checkLocalID rejects empty identifiers and ones that would break the
// storage key scheme, which delimits segments with ':'.
func checkLocalID(src core.Source, field, value string) error {
	if value == "" {
		return missingField(src, field)
	}
	if strings.Contains(value, ":") {
		return fmt.Errorf("%w: %s record %s %q must not contain ':'", core.ErrMalformedRecord, src, field, value)
	}
	return nil
}

func parseTimestamp(src core.Source, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, missingField(src, "timestamp")
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s record timestamp %q: %v", core.ErrMalformedRecord, src, value, err)
	}
	return ts.UTC(), nil
}

func defaultType(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
