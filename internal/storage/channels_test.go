package storage

import (
	"errors"
	"testing"
)

func TestChannelSettingsLazyCreate(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)

	settings, err := store.GetChannelSettings(2)
	if err != nil {
		t.Fatalf("GetChannelSettings: %v", err)
	}
	if settings != nil {
		t.Fatalf("unconfigured channel should have nil settings, got %+v", settings)
	}

	tag := int64(777)
	err = store.SetChannelSettings(&ChannelSettings{
		ChannelID:       2,
		IndexingEnabled: true,
		SolutionTagID:   &tag,
	})
	if err != nil {
		t.Fatalf("SetChannelSettings: %v", err)
	}
	settings, err = store.GetChannelSettings(2)
	if err != nil {
		t.Fatalf("GetChannelSettings: %v", err)
	}
	if settings == nil || !settings.IndexingEnabled || settings.SolutionTagID == nil || *settings.SolutionTagID != 777 {
		t.Errorf("settings: got %+v", settings)
	}
	if settings.AutoThreadEnabled || settings.MarkSolutionEnabled {
		t.Errorf("unset flags should default off: %+v", settings)
	}

	err = store.SetChannelSettings(&ChannelSettings{ChannelID: 999})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("settings for missing channel: got %v, want ErrNotFound", err)
	}
}

func TestDeleteChannelTree(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)

	parent := int64(2)
	if err := store.UpsertChannel(&Channel{ID: 20, ServerID: 1, Name: "thread-a", Type: ChannelTypePublicThread, ParentID: &parent}); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}
	if err := store.UpsertChannel(&Channel{ID: 21, ServerID: 1, Name: "thread-b", Type: ChannelTypePublicThread, ParentID: &parent}); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}
	for _, id := range []int64{2, 20, 21} {
		if err := store.SetChannelSettings(&ChannelSettings{ChannelID: id, IndexingEnabled: true}); err != nil {
			t.Fatalf("SetChannelSettings %d: %v", id, err)
		}
	}

	// Messages with children in the parent and one thread.
	atts := []Attachment{{ID: 900, Filename: "a.png"}}
	reactions := []Reaction{{UserID: 4, Emoji: Emoji{ID: 7000, Name: "blobwave"}}}
	m := Message{ID: 100, AuthorID: 3, ServerID: 1, ChannelID: 2}
	if err := store.UpsertMessage(&m, &atts, &reactions, false); err != nil {
		t.Fatalf("UpsertMessage: %v", err)
	}
	mustUpsertMessage(t, store, Message{ID: 101, AuthorID: 3, ServerID: 1, ChannelID: 20, ParentChannelID: &parent})

	deleted, err := store.DeleteChannelTree(2)
	if err != nil {
		t.Fatalf("DeleteChannelTree: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted %d channels, want 3", deleted)
	}

	for _, id := range []int64{2, 20, 21} {
		if c, _ := store.GetChannel(id); c != nil {
			t.Errorf("channel %d should be gone", id)
		}
		if cs, _ := store.GetChannelSettings(id); cs != nil {
			t.Errorf("settings for channel %d should be gone", id)
		}
	}
	for _, id := range []int64{100, 101} {
		if msg, _ := store.GetMessage(id); msg != nil {
			t.Errorf("message %d should be gone", id)
		}
	}
	if got, _ := store.GetAttachments(100); len(got) != 0 {
		t.Error("no orphaned attachment rows may remain")
	}
	if got, _ := store.GetReactions(100); len(got) != 0 {
		t.Error("no orphaned reaction rows may remain")
	}
}

func TestDeleteChannelTreeNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.DeleteChannelTree(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing channel: got %v, want ErrNotFound", err)
	}
}

func TestDeleteChannelTreeDeepNesting(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)

	// Grandchildren are not observed in practice; the worklist handles them
	// anyway.
	parent := int64(2)
	child := int64(20)
	if err := store.UpsertChannel(&Channel{ID: 20, ServerID: 1, Name: "thread", Type: ChannelTypePublicThread, ParentID: &parent}); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}
	if err := store.UpsertChannel(&Channel{ID: 30, ServerID: 1, Name: "nested", Type: ChannelTypePublicThread, ParentID: &child}); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}

	deleted, err := store.DeleteChannelTree(2)
	if err != nil {
		t.Fatalf("DeleteChannelTree: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted %d channels, want 3", deleted)
	}
	if c, _ := store.GetChannel(30); c != nil {
		t.Error("grandchild channel should be gone")
	}
}

func TestDeleteChannelTreeParentCycle(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)

	// Corrupted parent pointers forming a cycle must not hang the walk.
	parent := int64(2)
	if err := store.UpsertChannel(&Channel{ID: 20, ServerID: 1, Name: "thread", Type: ChannelTypePublicThread, ParentID: &parent}); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}
	child := int64(20)
	if err := store.UpsertChannel(&Channel{ID: 2, ServerID: 1, Name: "general", Type: ChannelTypeText, ParentID: &child}); err != nil {
		t.Fatalf("UpsertChannel cycle edge: %v", err)
	}

	deleted, err := store.DeleteChannelTree(2)
	if err != nil {
		t.Fatalf("DeleteChannelTree: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted %d channels, want 2", deleted)
	}
	for _, id := range []int64{2, 20} {
		if c, _ := store.GetChannel(id); c != nil {
			t.Errorf("channel %d should be gone", id)
		}
	}
}

func TestGetChannelChildren(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)

	parent := int64(2)
	store.UpsertChannel(&Channel{ID: 21, ServerID: 1, Name: "b", Type: ChannelTypePublicThread, ParentID: &parent})
	store.UpsertChannel(&Channel{ID: 20, ServerID: 1, Name: "a", Type: ChannelTypePublicThread, ParentID: &parent})

	children, err := store.GetChannelChildren(2)
	if err != nil {
		t.Fatalf("GetChannelChildren: %v", err)
	}
	if len(children) != 2 || children[0].ID != 20 || children[1].ID != 21 {
		t.Errorf("children: got %+v", children)
	}
}

func TestLatestChannelMessageUsesSnowflakeOrder(t *testing.T) {
	store := newTestStore(t)
	seedServer(t, store, 1, 2, 3)

	// Inserted out of order; the highest id is the newest regardless.
	mustUpsertMessage(t, store, Message{ID: 500, AuthorID: 3, ServerID: 1, ChannelID: 2})
	mustUpsertMessage(t, store, Message{ID: 300, AuthorID: 3, ServerID: 1, ChannelID: 2})
	mustUpsertMessage(t, store, Message{ID: 400, AuthorID: 3, ServerID: 1, ChannelID: 2})

	latest, err := store.LatestChannelMessage(2)
	if err != nil {
		t.Fatalf("LatestChannelMessage: %v", err)
	}
	if latest == nil || latest.ID != 500 {
		t.Errorf("latest: got %+v, want id 500", latest)
	}

	empty, err := store.LatestChannelMessage(999)
	if err != nil || empty != nil {
		t.Errorf("empty channel: got %+v, %v", empty, err)
	}
}
