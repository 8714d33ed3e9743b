package mentions

import (
	"fmt"
)

// Account is the directory's view of an indexed Discord account.
type Account struct {
	ID   int64
	Name string
}

// Channel is the directory's view of an indexed channel.
type Channel struct {
	ID              int64
	ServerID        int64
	Name            string
	Type            int
	IndexingEnabled bool
}

// Directory answers existence/lookup queries for parsed ids. Lookups return
// (nil, nil) for ids with no indexed entity; errors are reserved for storage
// failures.
type Directory interface {
	LookupAccount(id int64) (*Account, error)
	LookupChannel(id int64) (*Channel, error)
	MessageExists(id int64) (bool, error)
}

// UserMeta is renderable metadata for one mentioned user. Exists=false is a
// ghost reference: the caller still renders a placeholder, never drops it.
type UserMeta struct {
	ID       int64  `json:"id"`
	Exists   bool   `json:"exists"`
	Username string `json:"username"`
	URL      string `json:"url"`
}

// ChannelMeta is renderable metadata for one mentioned channel. For indexed
// channels with indexing enabled, URL is an internal route; otherwise it is
// a deep link back into the source platform.
type ChannelMeta struct {
	ID              int64  `json:"id"`
	Exists          bool   `json:"exists"`
	Name            string `json:"name"`
	Type            int    `json:"type"`
	IndexingEnabled bool   `json:"indexing_enabled"`
	URL             string `json:"url"`
}

// PermalinkMeta is one resolved message link, with the original substring
// kept for in-content substitution.
type PermalinkMeta struct {
	Raw       string `json:"raw"`
	GuildID   int64  `json:"guild_id"`
	ChannelID int64  `json:"channel_id"`
	MessageID *int64 `json:"message_id,omitempty"`
	URL       string `json:"url"`
}

// Metadata is the full resolution result for one message's content.
type Metadata struct {
	Users      []UserMeta      `json:"users,omitempty"`
	Channels   []ChannelMeta   `json:"channels,omitempty"`
	Permalinks []PermalinkMeta `json:"permalinks,omitempty"`
}

// Resolve looks up every parsed reference. Unknown users and channels become
// explicit ghost entries. Permalinks are asymmetric on purpose: a link whose
// guild, channel, or message cannot be found is dropped from the result
// entirely, matching the source platform's behavior. (Surfacing those as
// ghosts too is an open product question; do not change without confirmation.)
func Resolve(dir Directory, parsed Parsed) (*Metadata, error) {
	meta := &Metadata{}

	for _, id := range parsed.UserIDs {
		account, err := dir.LookupAccount(id)
		if err != nil {
			return nil, fmt.Errorf("resolve user mention %d: %w", id, err)
		}
		if account == nil {
			meta.Users = append(meta.Users, UserMeta{ID: id, Username: "Unknown user"})
			continue
		}
		meta.Users = append(meta.Users, UserMeta{
			ID:       id,
			Exists:   true,
			Username: account.Name,
			URL:      fmt.Sprintf("/u/%d", id),
		})
	}

	for _, id := range parsed.ChannelIDs {
		channel, err := dir.LookupChannel(id)
		if err != nil {
			return nil, fmt.Errorf("resolve channel mention %d: %w", id, err)
		}
		if channel == nil {
			meta.Channels = append(meta.Channels, ChannelMeta{
				ID:  id,
				URL: fmt.Sprintf("discord://discord.com/channels/%d", id),
			})
			continue
		}
		cm := ChannelMeta{
			ID:              id,
			Exists:          true,
			Name:            channel.Name,
			Type:            channel.Type,
			IndexingEnabled: channel.IndexingEnabled,
		}
		if channel.IndexingEnabled {
			cm.URL = fmt.Sprintf("/c/%d/%d", channel.ServerID, channel.ID)
		} else {
			cm.URL = fmt.Sprintf("discord://discord.com/channels/%d/%d", channel.ServerID, channel.ID)
		}
		meta.Channels = append(meta.Channels, cm)
	}

	for _, link := range parsed.Permalinks {
		channel, err := dir.LookupChannel(link.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("resolve permalink channel %d: %w", link.ChannelID, err)
		}
		if channel == nil || channel.ServerID != link.GuildID {
			continue
		}
		pm := PermalinkMeta{
			Raw:       link.Raw,
			GuildID:   link.GuildID,
			ChannelID: link.ChannelID,
			MessageID: link.MessageID,
			URL:       fmt.Sprintf("/c/%d/%d", link.GuildID, link.ChannelID),
		}
		if link.MessageID != nil {
			exists, err := dir.MessageExists(*link.MessageID)
			if err != nil {
				return nil, fmt.Errorf("resolve permalink message %d: %w", *link.MessageID, err)
			}
			if !exists {
				continue
			}
			pm.URL = fmt.Sprintf("/m/%d", *link.MessageID)
		}
		meta.Permalinks = append(meta.Permalinks, pm)
	}

	return meta, nil
}
