package storage

import (
	"errors"
	"testing"

	"github.com/kmorel/lantern/internal/consent"
)

func TestUpsertMessageReplacesByID(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)

	mustUpsertMessage(t, store, Message{ID: 100, AuthorID: 3, ServerID: 1, ChannelID: 2, Content: "first"})
	mustUpsertMessage(t, store, Message{ID: 100, AuthorID: 3, ServerID: 1, ChannelID: 2, Content: "edited"})

	msg, err := store.GetMessage(100)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if msg.Content != "edited" {
		t.Errorf("content after replace: got %q", msg.Content)
	}
}

func TestUpsertMessageConsentGate(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)

	if err := store.IgnoreAccount(3); err != nil {
		t.Fatalf("IgnoreAccount: %v", err)
	}
	err := store.UpsertMessage(&Message{ID: 100, AuthorID: 3, ServerID: 1, ChannelID: 2}, nil, nil, false)
	if !errors.Is(err, consent.ErrAuthorIgnored) {
		t.Errorf("ignored author: got %v, want ErrAuthorIgnored", err)
	}

	// ignoreChecks bypasses the gate (used by trusted backfills).
	err = store.UpsertMessage(&Message{ID: 100, AuthorID: 3, ServerID: 1, ChannelID: 2}, nil, nil, true)
	if err != nil {
		t.Errorf("ignoreChecks upsert: %v", err)
	}
}

func TestUpsertMessageIndexingDisabledGate(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)

	if _, _, err := store.UpdateUserServerSettings(&UserServerSettings{
		UserID: 3, ServerID: 1, MessageIndexingDisabled: true,
	}); err != nil {
		t.Fatalf("UpdateUserServerSettings: %v", err)
	}

	err := store.UpsertMessage(&Message{ID: 100, AuthorID: 3, ServerID: 1, ChannelID: 2}, nil, nil, false)
	if !errors.Is(err, consent.ErrIndexingDisabled) {
		t.Errorf("disabled author: got %v, want ErrIndexingDisabled", err)
	}
	if msg, _ := store.GetMessage(100); msg != nil {
		t.Error("gated upsert must not resurrect a message")
	}
}

func TestUpsertMessageAttachmentSemantics(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)

	atts := []Attachment{
		{ID: 900, Filename: "a.png", ContentType: "image/png", Size: 10, StorageID: "blob-1"},
		{ID: 901, Filename: "b.png", ContentType: "image/png", Size: 20, StorageID: "blob-2"},
	}
	m := Message{ID: 100, AuthorID: 3, ServerID: 1, ChannelID: 2}
	if err := store.UpsertMessage(&m, &atts, nil, false); err != nil {
		t.Fatalf("UpsertMessage: %v", err)
	}

	got, _ := store.GetAttachments(100)
	if len(got) != 2 {
		t.Fatalf("attachments: got %d, want 2", len(got))
	}

	// Omitted (nil) leaves attachments untouched.
	if err := store.UpsertMessage(&m, nil, nil, false); err != nil {
		t.Fatalf("UpsertMessage nil attachments: %v", err)
	}
	got, _ = store.GetAttachments(100)
	if len(got) != 2 {
		t.Errorf("nil attachments must not touch the set, got %d", len(got))
	}

	// Empty slice wipes them.
	empty := []Attachment{}
	if err := store.UpsertMessage(&m, &empty, nil, false); err != nil {
		t.Fatalf("UpsertMessage empty attachments: %v", err)
	}
	got, _ = store.GetAttachments(100)
	if len(got) != 0 {
		t.Errorf("empty attachments must wipe the set, got %d", len(got))
	}
}

func TestUpsertMessageReactionsAndEmojiDedup(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)

	reactions := []Reaction{
		{UserID: 3, Emoji: Emoji{ID: 7000, Name: "blobwave"}},
		{UserID: 4, Emoji: Emoji{ID: 7000, Name: "blobwave"}},
		{UserID: 5, Emoji: Emoji{ID: 0, Name: "👍"}}, // unicode-only, skipped
	}
	m := Message{ID: 100, AuthorID: 3, ServerID: 1, ChannelID: 2}
	if err := store.UpsertMessage(&m, nil, &reactions, false); err != nil {
		t.Fatalf("UpsertMessage: %v", err)
	}

	got, err := store.GetReactions(100)
	if err != nil {
		t.Fatalf("GetReactions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("reactions: got %d, want 2 (unicode-only skipped)", len(got))
	}
	for _, r := range got {
		if r.Emoji.ID != 7000 || r.Emoji.Name != "blobwave" {
			t.Errorf("hydrated emoji: got %+v", r.Emoji)
		}
	}

	// Second upsert with a different emoji name must not overwrite the
	// existing emoji row: emojis are created once and never updated.
	reactions = []Reaction{{UserID: 3, Emoji: Emoji{ID: 7000, Name: "renamed"}}}
	if err := store.UpsertMessage(&m, nil, &reactions, false); err != nil {
		t.Fatalf("UpsertMessage: %v", err)
	}
	emoji, _ := store.GetEmoji(7000)
	if emoji == nil || emoji.Name != "blobwave" {
		t.Errorf("emoji must never be overwritten: got %+v", emoji)
	}
	got, _ = store.GetReactions(100)
	if len(got) != 1 {
		t.Errorf("reactions after replace: got %d, want 1", len(got))
	}
}

func TestDeleteMessageCascades(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)

	atts := []Attachment{{ID: 900, Filename: "a.png"}}
	reactions := []Reaction{{UserID: 4, Emoji: Emoji{ID: 7000, Name: "blobwave"}}}
	m := Message{ID: 100, AuthorID: 3, ServerID: 1, ChannelID: 2}
	if err := store.UpsertMessage(&m, &atts, &reactions, false); err != nil {
		t.Fatalf("UpsertMessage: %v", err)
	}

	if err := store.DeleteMessage(100); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if msg, _ := store.GetMessage(100); msg != nil {
		t.Error("message should be deleted")
	}
	if got, _ := store.GetAttachments(100); len(got) != 0 {
		t.Error("attachments should be deleted with the message")
	}
	if got, _ := store.GetReactions(100); len(got) != 0 {
		t.Error("reactions should be deleted with the message")
	}
	// Shared emoji rows are intentionally never garbage-collected.
	if emoji, _ := store.GetEmoji(7000); emoji == nil {
		t.Error("emoji row must survive message deletion")
	}
}

func TestSetSolutionRelinks(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)

	mustUpsertMessage(t, store, Message{ID: 10, AuthorID: 3, ServerID: 1, ChannelID: 2, Content: "question"})
	mustUpsertMessage(t, store, Message{ID: 11, AuthorID: 3, ServerID: 1, ChannelID: 2, Content: "answer A"})
	mustUpsertMessage(t, store, Message{ID: 12, AuthorID: 3, ServerID: 1, ChannelID: 2, Content: "answer B"})

	solA, solB := int64(11), int64(12)
	if err := store.SetSolution(10, &solA); err != nil {
		t.Fatalf("SetSolution A: %v", err)
	}
	if err := store.SetSolution(10, &solB); err != nil {
		t.Fatalf("SetSolution B: %v", err)
	}

	solutions, err := store.GetSolutions(10)
	if err != nil {
		t.Fatalf("GetSolutions: %v", err)
	}
	if len(solutions) != 1 || solutions[0].ID != 12 {
		t.Fatalf("solutions after relink: got %+v", solutions)
	}
	a, _ := store.GetMessage(11)
	if a.QuestionID != nil {
		t.Errorf("old solution link must be cleared, got %v", *a.QuestionID)
	}
}

func TestSetSolutionClear(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)

	mustUpsertMessage(t, store, Message{ID: 10, AuthorID: 3, ServerID: 1, ChannelID: 2})
	mustUpsertMessage(t, store, Message{ID: 11, AuthorID: 3, ServerID: 1, ChannelID: 2})

	sol := int64(11)
	if err := store.SetSolution(10, &sol); err != nil {
		t.Fatalf("SetSolution: %v", err)
	}
	if err := store.SetSolution(10, nil); err != nil {
		t.Fatalf("SetSolution clear: %v", err)
	}
	solutions, _ := store.GetSolutions(10)
	if len(solutions) != 0 {
		t.Errorf("solutions after clear: got %+v", solutions)
	}
}

func TestSetSolutionErrors(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)
	if err := store.UpsertServer(&Server{ID: 50, Name: "Other"}); err != nil {
		t.Fatalf("UpsertServer: %v", err)
	}
	if err := store.UpsertChannel(&Channel{ID: 51, ServerID: 50, Name: "general", Type: ChannelTypeText}); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}

	mustUpsertMessage(t, store, Message{ID: 10, AuthorID: 3, ServerID: 1, ChannelID: 2})
	mustUpsertMessage(t, store, Message{ID: 60, AuthorID: 3, ServerID: 50, ChannelID: 51})

	sol := int64(60)
	if err := store.SetSolution(10, &sol); !errors.Is(err, ErrCrossServerSolution) {
		t.Errorf("cross-server solution: got %v, want ErrCrossServerSolution", err)
	}
	if err := store.SetSolution(999, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing question: got %v, want ErrNotFound", err)
	}
	missing := int64(999)
	if err := store.SetSolution(10, &missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing solution: got %v, want ErrNotFound", err)
	}
}

func TestSetSolutionSelfReferenceAllowed(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)
	mustUpsertMessage(t, store, Message{ID: 10, AuthorID: 3, ServerID: 1, ChannelID: 2})

	self := int64(10)
	if err := store.SetSolution(10, &self); err != nil {
		t.Fatalf("self-referential solution should not be rejected here: %v", err)
	}
	solutions, _ := store.GetSolutions(10)
	if len(solutions) != 1 || solutions[0].ID != 10 {
		t.Errorf("self solution: got %+v", solutions)
	}
}

func TestMessageExists(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)
	mustUpsertMessage(t, store, Message{ID: 10, AuthorID: 3, ServerID: 1, ChannelID: 2})

	if ok, _ := store.MessageExists(10); !ok {
		t.Error("message 10 should exist")
	}
	if ok, _ := store.MessageExists(11); ok {
		t.Error("message 11 should not exist")
	}
}
