package mentions

import (
	"testing"
)

// fakeDirectory serves lookups from in-memory maps.
type fakeDirectory struct {
	accounts map[int64]*Account
	channels map[int64]*Channel
	messages map[int64]bool
}

func (d *fakeDirectory) LookupAccount(id int64) (*Account, error) { return d.accounts[id], nil }
func (d *fakeDirectory) LookupChannel(id int64) (*Channel, error) { return d.channels[id], nil }
func (d *fakeDirectory) MessageExists(id int64) (bool, error)     { return d.messages[id], nil }

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		accounts: map[int64]*Account{
			100: {ID: 100, Name: "rhea"},
		},
		channels: map[int64]*Channel{
			200: {ID: 200, ServerID: 1, Name: "help", Type: 15, IndexingEnabled: true},
			201: {ID: 201, ServerID: 1, Name: "off-topic", Type: 0, IndexingEnabled: false},
		},
		messages: map[int64]bool{300: true},
	}
}

func TestResolveKnownUser(t *testing.T) {
	meta, err := Resolve(newFakeDirectory(), Parse("<@100>"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(meta.Users) != 1 {
		t.Fatalf("users: got %d, want 1", len(meta.Users))
	}
	u := meta.Users[0]
	if !u.Exists || u.Username != "rhea" || u.URL != "/u/100" {
		t.Errorf("resolved user: %+v", u)
	}
}

func TestResolveGhostUser(t *testing.T) {
	meta, err := Resolve(newFakeDirectory(), Parse("<@999>"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(meta.Users) != 1 {
		t.Fatalf("ghost user must still be emitted, got %d entries", len(meta.Users))
	}
	u := meta.Users[0]
	if u.Exists || u.Username != "Unknown user" || u.URL != "" {
		t.Errorf("ghost user: %+v", u)
	}
}

func TestResolveChannels(t *testing.T) {
	meta, err := Resolve(newFakeDirectory(), Parse("<#200> <#201> <#999>"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(meta.Channels) != 3 {
		t.Fatalf("channels: got %d, want 3", len(meta.Channels))
	}

	indexed := meta.Channels[0]
	if !indexed.Exists || indexed.URL != "/c/1/200" || !indexed.IndexingEnabled {
		t.Errorf("indexed channel: %+v", indexed)
	}

	unindexed := meta.Channels[1]
	if !unindexed.Exists || unindexed.URL != "discord://discord.com/channels/1/201" {
		t.Errorf("unindexed channel should deep link: %+v", unindexed)
	}

	ghost := meta.Channels[2]
	if ghost.Exists || ghost.IndexingEnabled || ghost.URL == "" {
		t.Errorf("ghost channel: %+v", ghost)
	}
}

func TestResolvePermalink(t *testing.T) {
	meta, err := Resolve(newFakeDirectory(), Parse("https://discord.com/channels/1/200/300"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(meta.Permalinks) != 1 {
		t.Fatalf("permalinks: got %d, want 1", len(meta.Permalinks))
	}
	if meta.Permalinks[0].URL != "/m/300" {
		t.Errorf("permalink URL: got %q", meta.Permalinks[0].URL)
	}
}

func TestResolvePermalinkToMissingMessageIsDropped(t *testing.T) {
	meta, err := Resolve(newFakeDirectory(), Parse("https://discord.com/channels/1/200/999"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(meta.Permalinks) != 0 {
		t.Errorf("dead permalink must be dropped, got %+v", meta.Permalinks)
	}
}

func TestResolvePermalinkGuildMismatchIsDropped(t *testing.T) {
	meta, err := Resolve(newFakeDirectory(), Parse("https://discord.com/channels/42/200/300"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(meta.Permalinks) != 0 {
		t.Errorf("permalink with wrong guild must be dropped, got %+v", meta.Permalinks)
	}
}

func TestResolveChannelOnlyPermalink(t *testing.T) {
	meta, err := Resolve(newFakeDirectory(), Parse("https://discord.com/channels/1/200"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(meta.Permalinks) != 1 {
		t.Fatalf("permalinks: got %d, want 1", len(meta.Permalinks))
	}
	if meta.Permalinks[0].URL != "/c/1/200" {
		t.Errorf("channel permalink URL: got %q", meta.Permalinks[0].URL)
	}
}
