package mentions

import (
	"testing"
)

func TestParseMixedContent(t *testing.T) {
	p := Parse("hello <@123> and <#456>, see https://discord.com/channels/1/2/3")

	if len(p.UserIDs) != 1 || p.UserIDs[0] != 123 {
		t.Errorf("user ids: got %v, want [123]", p.UserIDs)
	}
	if len(p.ChannelIDs) != 1 || p.ChannelIDs[0] != 456 {
		t.Errorf("channel ids: got %v, want [456]", p.ChannelIDs)
	}
	if len(p.Permalinks) != 1 {
		t.Fatalf("permalinks: got %d, want 1", len(p.Permalinks))
	}
	link := p.Permalinks[0]
	if link.GuildID != 1 || link.ChannelID != 2 {
		t.Errorf("permalink ids: got guild=%d channel=%d", link.GuildID, link.ChannelID)
	}
	if link.MessageID == nil || *link.MessageID != 3 {
		t.Errorf("permalink message id: got %v, want 3", link.MessageID)
	}
	if link.Raw != "https://discord.com/channels/1/2/3" {
		t.Errorf("raw substring: got %q", link.Raw)
	}
}

func TestParseEmptyContent(t *testing.T) {
	p := Parse("no mentions here")
	if len(p.UserIDs) != 0 || len(p.ChannelIDs) != 0 || len(p.Permalinks) != 0 {
		t.Errorf("expected empty parse, got %+v", p)
	}
}

func TestParseMentionsAreSets(t *testing.T) {
	p := Parse("<@7> <@7> <@8> <#9> <#9>")
	if len(p.UserIDs) != 2 || p.UserIDs[0] != 7 || p.UserIDs[1] != 8 {
		t.Errorf("user ids should dedupe preserving order: got %v", p.UserIDs)
	}
	if len(p.ChannelIDs) != 1 || p.ChannelIDs[0] != 9 {
		t.Errorf("channel ids should dedupe: got %v", p.ChannelIDs)
	}
}

func TestParsePermalinksPreserveDuplicates(t *testing.T) {
	content := "https://discord.com/channels/1/2/3 again https://discord.com/channels/1/2/3"
	p := Parse(content)
	if len(p.Permalinks) != 2 {
		t.Fatalf("duplicate permalinks must both be kept: got %d", len(p.Permalinks))
	}
}

func TestParseChannelOnlyPermalink(t *testing.T) {
	p := Parse("https://discord.com/channels/10/20")
	if len(p.Permalinks) != 1 {
		t.Fatalf("permalinks: got %d, want 1", len(p.Permalinks))
	}
	if p.Permalinks[0].MessageID != nil {
		t.Errorf("channel-only link should have nil message id, got %v", *p.Permalinks[0].MessageID)
	}
}

func TestParseIgnoresMalformedMentions(t *testing.T) {
	p := Parse("<@abc> <#> <@!555> https://example.com/channels/1/2/3")
	if len(p.UserIDs) != 0 {
		t.Errorf("malformed user mentions should not parse: got %v", p.UserIDs)
	}
	if len(p.ChannelIDs) != 0 {
		t.Errorf("malformed channel mentions should not parse: got %v", p.ChannelIDs)
	}
	if len(p.Permalinks) != 0 {
		t.Errorf("non-discord hosts should not parse: got %v", p.Permalinks)
	}
}
