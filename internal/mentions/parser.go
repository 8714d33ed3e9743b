// Package mentions extracts user/channel mentions and message permalinks
// from raw Discord message content and resolves them into renderable
// metadata. Parsing is pure; resolution goes through the Directory interface.
package mentions

import (
	"regexp"
	"strconv"
)

// The wire formats are fixed by the source platform and must be matched
// exactly: <@123> for users, <#456> for channels, and full permalinks of the
// form https://discord.com/channels/guild/channel[/message].
var (
	userMentionPattern    = regexp.MustCompile(`<@(\d+)>`)
	channelMentionPattern = regexp.MustCompile(`<#(\d+)>`)
	permalinkPattern      = regexp.MustCompile(`https://discord\.com/channels/(\d+)/(\d+)(?:/(\d+))?`)
)

// Permalink is one parsed message link. Raw preserves the exact matched
// substring so callers can substitute rendered links back into the content.
// MessageID is nil for channel-only links.
type Permalink struct {
	Raw       string
	GuildID   int64
	ChannelID int64
	MessageID *int64
}

// Parsed holds everything extracted from one message's content. UserIDs and
// ChannelIDs are sets (first occurrence wins); Permalinks preserve order and
// duplicates.
type Parsed struct {
	UserIDs    []int64
	ChannelIDs []int64
	Permalinks []Permalink
}

// Parse scans content for mentions and permalinks.
func Parse(content string) Parsed {
	var p Parsed
	p.UserIDs = parseIDSet(userMentionPattern, content)
	p.ChannelIDs = parseIDSet(channelMentionPattern, content)

	for _, m := range permalinkPattern.FindAllStringSubmatch(content, -1) {
		link := Permalink{
			Raw:       m[0],
			GuildID:   mustParseID(m[1]),
			ChannelID: mustParseID(m[2]),
		}
		if m[3] != "" {
			id := mustParseID(m[3])
			link.MessageID = &id
		}
		p.Permalinks = append(p.Permalinks, link)
	}
	return p
}

func parseIDSet(pattern *regexp.Regexp, content string) []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	for _, m := range pattern.FindAllStringSubmatch(content, -1) {
		id := mustParseID(m[1])
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// mustParseID converts a \d+ capture. Overflowing digits map to 0 rather
// than panicking; a zero id never resolves.
func mustParseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
