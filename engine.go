package lantern

import (
	"context"
	"errors"
	"fmt"

	"github.com/forPelevin/gomoji"
	"golang.org/x/sync/errgroup"

	"github.com/kmorel/lantern/internal/consent"
	"github.com/kmorel/lantern/internal/mentions"
	"github.com/kmorel/lantern/internal/storage"
)

// Error taxonomy, re-exported so callers don't import internal packages.
var (
	ErrNotFound            = storage.ErrNotFound
	ErrAuthorIgnored       = consent.ErrAuthorIgnored
	ErrIndexingDisabled    = consent.ErrIndexingDisabled
	ErrCrossServerSolution = storage.ErrCrossServerSolution

	// ErrUnknownEmoji rejects a reaction whose emoji carries no id and whose
	// name is not a unicode emoji either; such input is malformed, not a
	// legitimate unicode-only reaction.
	ErrUnknownEmoji = errors.New("reaction emoji has no id and is not a unicode emoji")
)

// Engine is the public API for lantern's consent, visibility, and
// cross-reference engine. It wraps the internal store and composes the
// consent, mention, and enrichment logic.
type Engine struct {
	store *storage.Store
	blobs BlobResolver
	site  string
}

// NewEngine creates an engine backed by the given SQLite database.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.SiteBaseURL == "" {
		cfg.SiteBaseURL = "https://lantern.local"
	}
	if cfg.CDNBaseURL == "" {
		cfg.CDNBaseURL = "https://cdn.discordapp.com"
	}

	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	blobs := cfg.Blobs
	if blobs == nil {
		blobs = &cdnResolver{baseURL: cfg.CDNBaseURL}
	}

	return &Engine{
		store: store,
		blobs: blobs,
		site:  cfg.SiteBaseURL,
	}, nil
}

// Close releases all resources held by the engine.
func (e *Engine) Close() error {
	return e.store.Close()
}

// cdnResolver is the default blob resolver, mirroring the source platform's
// attachment URL layout.
type cdnResolver struct {
	baseURL string
}

func (r *cdnResolver) AttachmentURL(a Attachment) string {
	if a.StorageID == "" {
		return ""
	}
	return fmt.Sprintf("%s/attachments/%s/%s", r.baseURL, a.StorageID, a.Filename)
}

// MessageURL returns the absolute permalink for an indexed message.
func (e *Engine) MessageURL(messageID int64) string {
	return fmt.Sprintf("%s/m/%d", e.site, messageID)
}

// ChannelURL returns the absolute URL for an indexed channel's message list.
func (e *Engine) ChannelURL(serverID, channelID int64) string {
	return fmt.Sprintf("%s/c/%d/%d", e.site, serverID, channelID)
}

// --- index maintenance (servers, accounts, channels) ---

// UpsertServer indexes or refreshes a server record.
func (e *Engine) UpsertServer(s Server) error {
	return e.store.UpsertServer(&storage.Server{ID: s.ID, Name: s.Name, Icon: s.Icon})
}

// UpsertAccount indexes or refreshes a Discord account.
func (e *Engine) UpsertAccount(a DiscordAccount) error {
	return e.store.UpsertAccount(&storage.DiscordAccount{ID: a.ID, Name: a.Name, Avatar: a.Avatar})
}

// GetAccount returns an indexed Discord account, or nil if unknown.
func (e *Engine) GetAccount(accountID int64) (*DiscordAccount, error) {
	a, err := e.store.GetAccount(accountID)
	if err != nil || a == nil {
		return nil, err
	}
	return &DiscordAccount{ID: a.ID, Name: a.Name, Avatar: a.Avatar}, nil
}

// IgnoreAccount permanently excludes an account from indexing and deletes
// everything it authored.
func (e *Engine) IgnoreAccount(accountID int64) error {
	return e.store.IgnoreAccount(accountID)
}

// UpsertChannel indexes or refreshes a channel or thread.
func (e *Engine) UpsertChannel(c Channel) error {
	return e.store.UpsertChannel(&storage.Channel{
		ID: c.ID, ServerID: c.ServerID, Name: c.Name, Type: c.Type, ParentID: c.ParentID,
	})
}

// GetChannel returns an indexed channel, or nil if unknown.
func (e *Engine) GetChannel(channelID int64) (*Channel, error) {
	c, err := e.store.GetChannel(channelID)
	if err != nil || c == nil {
		return nil, err
	}
	out := channelFromInternal(*c)
	return &out, nil
}

// SetChannelSettings writes a channel's settings, creating the row lazily.
func (e *Engine) SetChannelSettings(cs ChannelSettings) error {
	return e.store.SetChannelSettings(&storage.ChannelSettings{
		ChannelID:                    cs.ChannelID,
		IndexingEnabled:              cs.IndexingEnabled,
		AutoThreadEnabled:            cs.AutoThreadEnabled,
		MarkSolutionEnabled:          cs.MarkSolutionEnabled,
		SendMarkSolutionInstructions: cs.SendMarkSolutionInstructions,
		SolutionTagID:                cs.SolutionTagID,
	})
}

// SetServerPreferences writes a server's visibility defaults.
func (e *Engine) SetServerPreferences(p ServerPreferences) error {
	return e.store.SetServerPreferences(&storage.ServerPreferences{
		ServerID:                  p.ServerID,
		ConsiderAllMessagesPublic: p.ConsiderAllMessagesPublic,
		AnonymizeMessages:         p.AnonymizeMessages,
		ReadTheRulesConsent:       p.ReadTheRulesConsent,
		Plan:                      p.Plan,
	})
}

// DeleteChannel removes a channel, its descendant threads, their settings,
// and all contained messages. Returns the number of channels removed.
func (e *Engine) DeleteChannel(channelID int64) (int, error) {
	return e.store.DeleteChannelTree(channelID)
}

// --- consent ---

// UpdateConsentSettings persists a user's consent flags on a server. A
// request to keep public display while disabling indexing is corrected, not
// rejected. Disabling indexing cascades deletion of the author's messages on
// that server; the cascade and the settings write land in one transaction.
// The usage counter is untouched by consent writes. Returns the settings as
// persisted and the number of messages deleted.
func (e *Engine) UpdateConsentSettings(s UserServerSettings) (*UserServerSettings, int, error) {
	updated, deleted, err := e.store.UpdateUserServerSettings(&storage.UserServerSettings{
		UserID:                     s.UserID,
		ServerID:                   s.ServerID,
		MessageIndexingDisabled:    s.MessageIndexingDisabled,
		CanPubliclyDisplayMessages: s.CanPubliclyDisplayMessages,
	})
	if err != nil {
		return nil, 0, err
	}
	out := settingsFromInternal(*updated)
	return &out, deleted, nil
}

// GetConsentSettings returns a user's consent flags on a server, or nil if
// never configured.
func (e *Engine) GetConsentSettings(userID, serverID int64) (*UserServerSettings, error) {
	s, err := e.store.GetUserServerSettings(userID, serverID)
	if err != nil || s == nil {
		return nil, err
	}
	out := settingsFromInternal(*s)
	return &out, nil
}

// --- messages ---

// UpsertMessage writes one message, reconciling its attachment and reaction
// sets per the snapshot semantics of MessageUpsert. Consent-gated authors
// fail with ErrAuthorIgnored or ErrIndexingDisabled unless opts.IgnoreChecks
// is set; malformed reaction emoji fail with ErrUnknownEmoji.
func (e *Engine) UpsertMessage(up MessageUpsert, opts UpsertOptions) error {
	reactions, err := e.filterReactions(up.Reactions)
	if err != nil {
		return err
	}
	m := messageToInternal(up.Message)
	return e.store.UpsertMessage(&m, attachmentsToInternal(up.Attachments), reactions, opts.IgnoreChecks)
}

// UpsertMessages applies the per-message upsert across a batch. Authors who
// fail the consent gate are filtered out up front rather than failing the
// whole batch; structural storage errors still abort the call.
func (e *Engine) UpsertMessages(batch []MessageUpsert) (*BatchResult, error) {
	res := &BatchResult{}

	// One gate decision per (author, server) pair.
	type authorKey struct{ author, server int64 }
	allowed := make(map[authorKey]bool)
	for _, up := range batch {
		key := authorKey{up.Message.AuthorID, up.Message.ServerID}
		if _, ok := allowed[key]; ok {
			continue
		}
		ok, err := e.authorAllowed(up.Message.AuthorID, up.Message.ServerID)
		if err != nil {
			return nil, err
		}
		allowed[key] = ok
	}

	for _, up := range batch {
		if !allowed[authorKey{up.Message.AuthorID, up.Message.ServerID}] {
			res.Skipped++
			continue
		}
		reactions, err := e.filterReactions(up.Reactions)
		if err != nil {
			return nil, err
		}
		m := messageToInternal(up.Message)
		err = e.store.UpsertMessage(&m, attachmentsToInternal(up.Attachments), reactions, true)
		if err != nil {
			return nil, fmt.Errorf("upsert message %d: %w", up.Message.ID, err)
		}
		res.Stored++
	}
	return res, nil
}

func (e *Engine) authorAllowed(authorID, serverID int64) (bool, error) {
	ignored, err := e.store.IsAccountIgnored(authorID)
	if err != nil {
		return false, err
	}
	settings, err := e.store.GetUserServerSettings(authorID, serverID)
	if err != nil {
		return false, err
	}
	var cs *consent.UserSettings
	if settings != nil {
		cs = &consent.UserSettings{
			MessageIndexingDisabled:    settings.MessageIndexingDisabled,
			CanPubliclyDisplayMessages: settings.CanPubliclyDisplayMessages,
		}
	}
	return consent.Gate(ignored, cs) == nil, nil
}

// filterReactions screens reactions before they reach storage. Reactions
// whose emoji has no persistable id are dropped when the name is a real
// unicode emoji (the expected zero-id case); a zero-id emoji with any other
// non-empty name is malformed input and fails with ErrUnknownEmoji.
func (e *Engine) filterReactions(reactions *[]Reaction) (*[]storage.Reaction, error) {
	if reactions == nil {
		return nil, nil
	}
	out := make([]storage.Reaction, 0, len(*reactions))
	for _, r := range *reactions {
		if r.Emoji.ID == 0 {
			if r.Emoji.Name != "" && !gomoji.ContainsEmoji(r.Emoji.Name) {
				return nil, fmt.Errorf("reaction %q on message %d: %w", r.Emoji.Name, r.MessageID, ErrUnknownEmoji)
			}
			continue
		}
		out = append(out, storage.Reaction{
			MessageID: r.MessageID,
			UserID:    r.UserID,
			Emoji:     storage.Emoji{ID: r.Emoji.ID, Name: r.Emoji.Name},
		})
	}
	return &out, nil
}

// DeleteMessage removes a message with its attachments and reactions.
func (e *Engine) DeleteMessage(messageID int64) error {
	return e.store.DeleteMessage(messageID)
}

// GetMessage returns a raw stored message, or nil if unknown. Most callers
// want EnrichMessage instead.
func (e *Engine) GetMessage(messageID int64) (*Message, error) {
	m, err := e.store.GetMessage(messageID)
	if err != nil || m == nil {
		return nil, err
	}
	out := messageFromInternal(*m)
	return &out, nil
}

// LatestChannelMessage returns the newest message in a channel by snowflake
// value, or nil for an empty channel.
func (e *Engine) LatestChannelMessage(channelID int64) (*Message, error) {
	m, err := e.store.LatestChannelMessage(channelID)
	if err != nil || m == nil {
		return nil, err
	}
	out := messageFromInternal(*m)
	return &out, nil
}

// SetSolution marks solutionID as the accepted answer to questionID, or
// clears the link when solutionID is nil. Any prior holder of the link is
// cleared first so at most one solution remains.
func (e *Engine) SetSolution(questionID int64, solutionID *int64) error {
	return e.store.SetSolution(questionID, solutionID)
}

// --- mention resolution ---

// storeDirectory adapts the store to the mention resolver's lookups.
type storeDirectory struct {
	store *storage.Store
}

func (d *storeDirectory) LookupAccount(id int64) (*mentions.Account, error) {
	a, err := d.store.GetAccount(id)
	if err != nil || a == nil {
		return nil, err
	}
	return &mentions.Account{ID: a.ID, Name: a.Name}, nil
}

func (d *storeDirectory) LookupChannel(id int64) (*mentions.Channel, error) {
	c, err := d.store.GetChannel(id)
	if err != nil || c == nil {
		return nil, err
	}
	settings, err := d.store.GetChannelSettings(id)
	if err != nil {
		return nil, err
	}
	return &mentions.Channel{
		ID:              c.ID,
		ServerID:        c.ServerID,
		Name:            c.Name,
		Type:            c.Type,
		IndexingEnabled: settings != nil && settings.IndexingEnabled,
	}, nil
}

func (d *storeDirectory) MessageExists(id int64) (bool, error) {
	return d.store.MessageExists(id)
}

// ResolveMentions parses content for user/channel mentions and permalinks
// and resolves them against the index. Unknown users and channels come back
// as explicit ghost entries; permalinks to unindexed targets are dropped.
func (e *Engine) ResolveMentions(content string) (*mentions.Metadata, error) {
	return mentions.Resolve(&storeDirectory{store: e.store}, mentions.Parse(content))
}

// --- enrichment ---

// EnrichMessage assembles the full read-side view of one message: author,
// attachments, reactions, solutions, server/channel context, and mention
// metadata, with the visibility rules applied for the given viewer (nil
// means anonymous). Returns ErrNotFound for unknown ids.
func (e *Engine) EnrichMessage(ctx context.Context, viewerID *int64, messageID int64) (*EnrichedMessage, error) {
	m, err := e.store.GetMessage(messageID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("message %d: %w", messageID, ErrNotFound)
	}
	return e.enrich(ctx, viewerID, m, true)
}

// EnrichMessages enriches a set of messages by id. Unknown ids are skipped
// rather than failing the batch; callers that need a hard failure for one
// message use EnrichMessage.
func (e *Engine) EnrichMessages(ctx context.Context, viewerID *int64, messageIDs []int64) ([]EnrichedMessage, error) {
	out := make([]EnrichedMessage, 0, len(messageIDs))
	for _, id := range messageIDs {
		m, err := e.store.GetMessage(id)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		enriched, err := e.enrich(ctx, viewerID, m, true)
		if err != nil {
			return nil, err
		}
		out = append(out, *enriched)
	}
	return out, nil
}

// EnrichChannelMessages returns the enriched page of a channel's messages in
// snowflake order. Private messages the viewer may not see appear as
// redacted stand-ins so pagination stays stable. Mention metadata is
// resolved only at this top level, not for nested solution messages.
func (e *Engine) EnrichChannelMessages(ctx context.Context, viewerID *int64, channelID int64, limit, offset int) ([]EnrichedMessage, error) {
	messages, err := e.store.GetChannelMessages(channelID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]EnrichedMessage, len(messages))
	for i := range messages {
		enriched, err := e.enrich(ctx, viewerID, &messages[i], true)
		if err != nil {
			return nil, err
		}
		out[i] = *enriched
	}
	return out, nil
}

// EnrichAuthorMessages returns the enriched view of every message one author
// wrote on a server, in snowflake order. Visibility is evaluated per message
// for the given viewer exactly as in channel listings.
func (e *Engine) EnrichAuthorMessages(ctx context.Context, viewerID *int64, authorID, serverID int64) ([]EnrichedMessage, error) {
	messages, err := e.store.GetAuthorMessages(authorID, serverID)
	if err != nil {
		return nil, err
	}
	out := make([]EnrichedMessage, len(messages))
	for i := range messages {
		enriched, err := e.enrich(ctx, viewerID, &messages[i], true)
		if err != nil {
			return nil, err
		}
		out[i] = *enriched
	}
	return out, nil
}

// enrich builds the read-side view of one message. At the top level it also
// resolves mention metadata and materializes each solution as a nested
// EnrichedMessage; nested levels carry solution ids only, which bounds the
// depth even for self-referential solution links.
func (e *Engine) enrich(ctx context.Context, viewerID *int64, m *storage.Message, topLevel bool) (*EnrichedMessage, error) {
	var (
		author         *storage.DiscordAccount
		attachments    []storage.Attachment
		reactions      []storage.Reaction
		solutions      []storage.Message
		server         *storage.Server
		channel        *storage.Channel
		prefs          *storage.ServerPreferences
		authorSettings *storage.UserServerSettings
		viewerSettings *storage.UserServerSettings
		meta           *mentions.Metadata
	)

	// Independent reads, issued concurrently; assembly waits for all of them
	// before any visibility decision.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) { author, err = e.store.GetAccount(m.AuthorID); return })
	g.Go(func() (err error) { attachments, err = e.store.GetAttachments(m.ID); return })
	g.Go(func() (err error) { reactions, err = e.store.GetReactions(m.ID); return })
	g.Go(func() (err error) { solutions, err = e.store.GetSolutions(m.ID); return })
	g.Go(func() (err error) { server, err = e.store.GetServer(m.ServerID); return })
	g.Go(func() (err error) { channel, err = e.store.GetChannel(m.ChannelID); return })
	g.Go(func() (err error) { prefs, err = e.store.GetServerPreferences(m.ServerID); return })
	g.Go(func() (err error) {
		authorSettings, err = e.store.GetUserServerSettings(m.AuthorID, m.ServerID)
		return
	})
	if viewerID != nil {
		id := *viewerID
		g.Go(func() (err error) {
			viewerSettings, err = e.store.GetUserServerSettings(id, m.ServerID)
			return
		})
	}
	if topLevel {
		g.Go(func() (err error) { meta, err = e.ResolveMentions(m.Content); return })
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("enrich message %d: %w", m.ID, err)
	}

	cPrefs := prefsToConsent(prefs)
	public := consent.IsMessagePublic(cPrefs, authorSettingsToConsent(authorSettings))

	if !public && !viewerPrivileged(viewerID, m, viewerSettings) {
		return redactedStandIn(m), nil
	}

	enriched := &EnrichedMessage{
		Message: messageFromInternal(*m),
		Public:  public,
	}

	if consent.ShouldAnonymize(cPrefs) {
		enriched.Anonymized = true
		enriched.Message.AuthorID = 0
		enriched.Author = &MessageAuthor{
			Name:      consent.Pseudonym(m.AuthorID),
			Anonymous: true,
		}
	} else if author != nil {
		enriched.Author = &MessageAuthor{
			ID:        author.ID,
			Name:      author.Name,
			AvatarURL: author.Avatar,
			URL:       fmt.Sprintf("/u/%d", author.ID),
		}
	}

	for _, a := range attachments {
		att := attachmentFromInternal(a)
		enriched.Attachments = append(enriched.Attachments, EnrichedAttachment{
			Attachment: att,
			URL:        e.blobs.AttachmentURL(att),
		})
	}
	for _, r := range reactions {
		enriched.Reactions = append(enriched.Reactions, Reaction{
			MessageID: r.MessageID,
			UserID:    r.UserID,
			Emoji:     Emoji{ID: r.Emoji.ID, Name: r.Emoji.Name},
		})
	}
	for _, sol := range solutions {
		enriched.SolutionIDs = append(enriched.SolutionIDs, sol.ID)
	}
	if topLevel {
		for i := range solutions {
			sub, err := e.enrich(ctx, viewerID, &solutions[i], false)
			if err != nil {
				return nil, fmt.Errorf("enrich solution %d: %w", solutions[i].ID, err)
			}
			enriched.Solutions = append(enriched.Solutions, *sub)
		}
	}

	if server != nil {
		enriched.Server = &Server{ID: server.ID, Name: server.Name, Icon: server.Icon}
	}
	if channel != nil {
		c := channelFromInternal(*channel)
		if m.ParentChannelID != nil {
			// The message lives in a thread; surface both the thread and its
			// root channel.
			enriched.Thread = &c
			root, err := e.store.GetChannel(*m.ParentChannelID)
			if err != nil {
				return nil, err
			}
			if root != nil {
				rc := channelFromInternal(*root)
				enriched.Channel = &rc
			}
		} else {
			enriched.Channel = &c
		}
	}

	enriched.Mentions = meta
	return enriched, nil
}

// viewerPrivileged reports whether a viewer may read a private message: the
// author always may, and so may any signed-in member with settings on that
// server.
func viewerPrivileged(viewerID *int64, m *storage.Message, viewerSettings *storage.UserServerSettings) bool {
	if viewerID == nil {
		return false
	}
	if *viewerID == m.AuthorID {
		return true
	}
	return viewerSettings != nil
}

// redactedStandIn keeps only the coordinates of a private message so lists
// and pagination remain stable for unprivileged viewers.
func redactedStandIn(m *storage.Message) *EnrichedMessage {
	return &EnrichedMessage{
		Message: Message{
			ID:        m.ID,
			ServerID:  m.ServerID,
			ChannelID: m.ChannelID,
		},
		Redacted: true,
	}
}

// --- internal type conversion helpers ---

func messageFromInternal(m storage.Message) Message {
	return Message{
		ID:              m.ID,
		AuthorID:        m.AuthorID,
		ServerID:        m.ServerID,
		ChannelID:       m.ChannelID,
		ParentChannelID: m.ParentChannelID,
		ChildThreadID:   m.ChildThreadID,
		QuestionID:      m.QuestionID,
		Content:         m.Content,
	}
}

func messageToInternal(m Message) storage.Message {
	return storage.Message{
		ID:              m.ID,
		AuthorID:        m.AuthorID,
		ServerID:        m.ServerID,
		ChannelID:       m.ChannelID,
		ParentChannelID: m.ParentChannelID,
		ChildThreadID:   m.ChildThreadID,
		QuestionID:      m.QuestionID,
		Content:         m.Content,
	}
}

func attachmentFromInternal(a storage.Attachment) Attachment {
	return Attachment{
		ID:          a.ID,
		MessageID:   a.MessageID,
		Filename:    a.Filename,
		ContentType: a.ContentType,
		Size:        a.Size,
		StorageID:   a.StorageID,
	}
}

func attachmentsToInternal(attachments *[]Attachment) *[]storage.Attachment {
	if attachments == nil {
		return nil
	}
	out := make([]storage.Attachment, len(*attachments))
	for i, a := range *attachments {
		out[i] = storage.Attachment{
			ID:          a.ID,
			MessageID:   a.MessageID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
			StorageID:   a.StorageID,
		}
	}
	return &out
}

func channelFromInternal(c storage.Channel) Channel {
	return Channel{ID: c.ID, ServerID: c.ServerID, Name: c.Name, Type: c.Type, ParentID: c.ParentID}
}

func settingsFromInternal(s storage.UserServerSettings) UserServerSettings {
	return UserServerSettings{
		UserID:                     s.UserID,
		ServerID:                   s.ServerID,
		MessageIndexingDisabled:    s.MessageIndexingDisabled,
		CanPubliclyDisplayMessages: s.CanPubliclyDisplayMessages,
		APICallsUsed:               s.APICallsUsed,
	}
}

func prefsToConsent(p *storage.ServerPreferences) *consent.ServerPreferences {
	if p == nil {
		return nil
	}
	return &consent.ServerPreferences{
		ConsiderAllMessagesPublic: p.ConsiderAllMessagesPublic,
		AnonymizeMessages:         p.AnonymizeMessages,
		ReadTheRulesConsent:       p.ReadTheRulesConsent,
	}
}

func authorSettingsToConsent(s *storage.UserServerSettings) *consent.UserSettings {
	if s == nil {
		return nil
	}
	return &consent.UserSettings{
		MessageIndexingDisabled:    s.MessageIndexingDisabled,
		CanPubliclyDisplayMessages: s.CanPubliclyDisplayMessages,
	}
}
